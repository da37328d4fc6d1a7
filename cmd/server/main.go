package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/api"
	"github.com/yplo6403/rcsjta-sub005/internal/auth"
	"github.com/yplo6403/rcsjta-sub005/internal/cms"
	"github.com/yplo6403/rcsjta-sub005/internal/config"
	"github.com/yplo6403/rcsjta-sub005/internal/db"
	"github.com/yplo6403/rcsjta-sub005/internal/logging"
	"github.com/yplo6403/rcsjta-sub005/internal/provider"
	"github.com/yplo6403/rcsjta-sub005/internal/scheduler"
	"github.com/yplo6403/rcsjta-sub005/internal/settings"
	ws "github.com/yplo6403/rcsjta-sub005/internal/websocket"
)

const (
	maxWebSocketConnections = 10
	shutdownTimeout         = 10 * time.Second
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.CloseConnection(pool)
	log.Info("Successfully connected to database")

	store := db.NewStore(pool)

	var account settings.Provider
	var settingsStore api.SettingsStore
	static, err := settings.FromConfig(cfg)
	if err != nil {
		return err
	}
	if static != nil {
		account = static
	} else {
		cipher, err := settings.NewPasswordCipher(cfg.EncryptionKeyBase64)
		if err != nil {
			return fmt.Errorf("failed to create password cipher: %w", err)
		}
		dbProvider := settings.NewDBProvider(store, cipher, cfg.IMAPDialTimeout)
		account = dbProvider
		settingsStore = dbProvider
	}

	hub := ws.NewHub(maxWebSocketConnections, log)
	defer hub.Close()
	notifier := ws.NewNotifier(hub, log)

	messages := provider.New(store, settings.NewFolderNamer(cfg.RootDirectory, cfg.FolderSeparator), notifier, log)

	service := cms.NewService(account, store, messages.Handlers(), cms.Options{
		RootDirectory:             cfg.RootDirectory,
		FolderSeparator:           cfg.FolderSeparator,
		SyncInterval:              cfg.SyncInterval,
		DataConnectionMinInterval: cfg.DataConnectionMinInterval,
	}, log)

	sched := service.Scheduler()
	for _, t := range scheduler.OperationTypes() {
		sched.RegisterListener(t, notifier)
	}
	if err := service.Start(ctx); err != nil {
		return err
	}
	defer service.Stop()

	handler := NewServer(cfg, Dependencies{
		Settings:  settingsStore,
		Scheduler: sched,
		Messages:  service,
		Outbox:    messages,
		Local:     messages,
		Events:    notifier,
	}, log)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"address": server.Addr, "environment": cfg.Environment}).Info("CMS sync server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Dependencies are the services behind the HTTP API. Settings is nil when the
// account comes from the environment.
type Dependencies struct {
	Settings  api.SettingsStore
	Scheduler api.Scheduler
	Messages  api.Messages
	Outbox    api.Outbox
	Local     api.LocalMarker
	Events    http.Handler
}

// NewServer creates the HTTP handler of the control API.
func NewServer(cfg *config.Config, deps Dependencies, log logrus.FieldLogger) http.Handler {
	syncHandler := api.NewSyncHandler(deps.Scheduler, log)
	messagesHandler := api.NewMessagesHandler(deps.Messages, deps.Local, log)
	conversationsHandler := api.NewConversationsHandler(deps.Outbox, deps.Messages, log)

	protected := http.NewServeMux()
	if deps.Settings != nil {
		settingsHandler := api.NewSettingsHandler(deps.Settings, log)
		protected.HandleFunc("GET /api/v1/settings", settingsHandler.GetSettings)
		protected.HandleFunc("POST /api/v1/settings", settingsHandler.PostSettings)
	}
	protected.HandleFunc("POST /api/v1/sync", syncHandler.Sync)
	protected.HandleFunc("POST /api/v1/push", syncHandler.Push)
	protected.HandleFunc("POST /api/v1/flags", syncHandler.UpdateFlags)
	protected.HandleFunc("GET /api/v1/status", syncHandler.Status)
	protected.HandleFunc("POST /api/v1/messages", messagesHandler.QueuePush)
	protected.HandleFunc("POST /api/v1/messages/{id}/read", messagesHandler.MarkRead)
	protected.HandleFunc("POST /api/v1/messages/{id}/deleted", messagesHandler.MarkDeleted)
	protected.HandleFunc("GET /api/v1/conversations/{id}/messages", conversationsHandler.List)
	protected.HandleFunc("POST /api/v1/conversations/{id}/messages", conversationsHandler.Send)
	if deps.Events != nil {
		protected.Handle("GET /api/v1/ws", deps.Events)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handleRoot)
	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle("/api/", auth.RequireToken(cfg.APIToken, log, protected))

	return mux
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "CMS sync API is running")
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "ok")
}
