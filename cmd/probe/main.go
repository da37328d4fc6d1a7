// Command probe checks that a CMS account can be synchronized: it logs in,
// prints the server capabilities and the folders under the root directory,
// and optionally selects one folder with CONDSTORE.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yplo6403/rcsjta-sub005/internal/imap"
	"github.com/yplo6403/rcsjta-sub005/internal/imap/command"
	"github.com/yplo6403/rcsjta-sub005/internal/models"
	"github.com/yplo6403/rcsjta-sub005/internal/settings"
)

func main() {
	var (
		folder  = flag.String("folder", "", "Folder to select with CONDSTORE")
		useTLS  = flag.Bool("tls", true, "Connect with TLS")
		root    = flag.String("root", "Default", "Root directory of the CMS folders")
		sep     = flag.String("separator", "/", "Folder separator")
		timeout = flag.Duration("timeout", 30*time.Second, "Overall timeout")
		verbose = flag.Bool("verbose", false, "Log IMAP traffic")
	)
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	account, err := loadSettings(os.Getenv, *useTLS, *root, *sep)
	if err != nil {
		log.WithError(err).Fatal("Invalid account")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, account, *folder, os.Stdout, log); err != nil {
		log.WithError(err).Fatal("Probe failed")
	}
}

// loadSettings reads the account from CMS_IMAP_SERVER, CMS_IMAP_USERNAME and
// CMS_IMAP_PASSWORD.
func loadSettings(getenv func(string) string, useTLS bool, root, sep string) (*settings.Static, error) {
	server := getenv("CMS_IMAP_SERVER")
	username := getenv("CMS_IMAP_USERNAME")
	password := getenv("CMS_IMAP_PASSWORD")
	if server == "" || username == "" || password == "" {
		return nil, errors.New("CMS_IMAP_SERVER, CMS_IMAP_USERNAME and CMS_IMAP_PASSWORD are required")
	}

	return settings.NewStatic(&models.CMSSettings{
		ServerAddress:          server,
		Username:               username,
		Password:               password,
		UseTLS:                 useTLS,
		RootDirectory:          root,
		FolderSeparator:        sep,
		SyncInterval:           time.Hour,
		DataConnectionInterval: time.Minute,
	})
}

func run(ctx context.Context, account *settings.Static, folder string, out io.Writer, log logrus.FieldLogger) error {
	cfg, err := account.Settings(ctx)
	if err != nil {
		return err
	}
	namer := settings.NewFolderNamer(cfg.RootDirectory, cfg.FolderSeparator)

	controller := imap.NewController(account, log)
	svc, err := controller.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := controller.Release(); err != nil {
			log.WithError(err).Warn("Failed to log out")
		}
	}()

	caps := svc.Capabilities()
	names := make([]string, 0, len(caps))
	for name := range caps {
		names = append(names, name)
	}
	sort.Strings(names)

	_, _ = fmt.Fprintf(out, "Connected to %s\n", cfg.ServerAddress)
	_, _ = fmt.Fprintln(out, "Capabilities:")
	for _, name := range names {
		_, _ = fmt.Fprintf(out, "  - %s\n", name)
	}
	if !caps.Has(command.CapabilityCondstore) {
		_, _ = fmt.Fprintln(out, "CONDSTORE is not supported: incremental sync is impossible")
		return nil
	}

	folders, err := svc.ListStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to list folders: %w", err)
	}
	_, _ = fmt.Fprintln(out, "Folders:")
	for _, f := range folders {
		if !namer.Manages(f.Name) {
			continue
		}
		_, _ = fmt.Fprintf(out, "  - %s messages=%d uidnext=%d uidvalidity=%d highestmodseq=%d\n",
			f.Name, f.MessageCount, f.UIDNext, f.UIDValidity, f.HighestModseq)
	}

	if folder == "" {
		return nil
	}
	selected, err := svc.SelectCondstore(ctx, folder)
	if err != nil {
		return fmt.Errorf("failed to select %s: %w", folder, err)
	}
	_, _ = fmt.Fprintf(out, "Selected %s: messages=%d uidnext=%d uidvalidity=%d highestmodseq=%d\n",
		selected.Name, selected.MessageCount, selected.UIDNext, selected.UIDValidity, selected.HighestModseq)
	return nil
}
