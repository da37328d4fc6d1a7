package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/settings"
)

// SettingsStore reads and writes the CMS account.
type SettingsStore interface {
	Settings(ctx context.Context) (*models.CMSSettings, error)
	Save(ctx context.Context, s *models.CMSSettings) error
}

var _ SettingsStore = (*settings.DBProvider)(nil)

// SettingsRequest updates the account. An empty password keeps the stored one.
type SettingsRequest struct {
	ServerAddress                 string `json:"server_address" validate:"required,hostname_port"`
	Username                      string `json:"username" validate:"required"`
	Password                      string `json:"password"`
	UseTLS                        bool   `json:"use_tls"`
	RootDirectory                 string `json:"root_directory" validate:"required"`
	FolderSeparator               string `json:"folder_separator" validate:"required,len=1"`
	SyncIntervalSeconds           int    `json:"sync_interval_seconds" validate:"gt=0"`
	DataConnectionIntervalSeconds int    `json:"data_connection_interval_seconds" validate:"gte=0"`
}

// SettingsResponse never carries the password.
type SettingsResponse struct {
	ServerAddress                 string `json:"server_address"`
	Username                      string `json:"username"`
	PasswordSet                   bool   `json:"password_set"`
	UseTLS                        bool   `json:"use_tls"`
	RootDirectory                 string `json:"root_directory"`
	FolderSeparator               string `json:"folder_separator"`
	SyncIntervalSeconds           int    `json:"sync_interval_seconds"`
	DataConnectionIntervalSeconds int    `json:"data_connection_interval_seconds"`
}

// SettingsHandler serves /api/v1/settings.
type SettingsHandler struct {
	store SettingsStore
	log   logrus.FieldLogger
}

func NewSettingsHandler(store SettingsStore, log logrus.FieldLogger) *SettingsHandler {
	return &SettingsHandler{store: store, log: log.WithField("handler", "settings")}
}

// GetSettings returns the stored account.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Settings(r.Context())
	if errors.Is(err, settings.ErrNotConfigured) {
		http.Error(w, "Settings not configured", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.WithError(err).Error("Failed to get settings")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, http.StatusOK, SettingsResponse{
		ServerAddress:                 s.ServerAddress,
		Username:                      s.Username,
		PasswordSet:                   s.Password != "",
		UseTLS:                        s.UseTLS,
		RootDirectory:                 s.RootDirectory,
		FolderSeparator:               s.FolderSeparator,
		SyncIntervalSeconds:           int(s.SyncInterval / time.Second),
		DataConnectionIntervalSeconds: int(s.DataConnectionInterval / time.Second),
	})
}

// PostSettings saves the account. The next session uses it.
func (h *SettingsHandler) PostSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SettingsRequest
	if !decodeJSON(w, r, h.log, &req) {
		return
	}

	password := req.Password
	if password == "" {
		existing, err := h.store.Settings(ctx)
		if errors.Is(err, settings.ErrNotConfigured) {
			http.Error(w, "password is required for initial setup", http.StatusBadRequest)
			return
		}
		if err != nil {
			h.log.WithError(err).Error("Failed to get existing settings")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		password = existing.Password
	}

	s := &models.CMSSettings{
		ServerAddress:          req.ServerAddress,
		Username:               req.Username,
		Password:               password,
		UseTLS:                 req.UseTLS,
		RootDirectory:          req.RootDirectory,
		FolderSeparator:        req.FolderSeparator,
		SyncInterval:           time.Duration(req.SyncIntervalSeconds) * time.Second,
		DataConnectionInterval: time.Duration(req.DataConnectionIntervalSeconds) * time.Second,
	}
	if err := h.store.Save(ctx, s); err != nil {
		h.log.WithError(err).Error("Failed to save settings")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
