// Package settings provides the message store account and sync pacing to the
// connection controller and scheduler.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yplo6403/rcsjta-sub005/internal/config"
	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// ErrNotConfigured is returned when no CMS account has been stored yet.
var ErrNotConfigured = errors.New("CMS settings are not configured")

const defaultDialTimeout = 5 * time.Second

var validate = validator.New()

// Provider returns the current settings. Implementations may read them on
// every call, so a changed account is picked up by the next session.
type Provider interface {
	Settings(ctx context.Context) (*models.CMSSettings, error)
}

// Validate checks a settings value before it is used or stored.
func Validate(s *models.CMSSettings) error {
	if s == nil {
		return ErrNotConfigured
	}
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid CMS settings: %s failed on %q", verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid CMS settings: %w", err)
	}
	return nil
}

// Static serves a fixed settings value.
type Static struct {
	settings models.CMSSettings
}

// NewStatic validates s and returns a provider serving copies of it.
func NewStatic(s *models.CMSSettings) (*Static, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}
	return &Static{settings: *s}, nil
}

// FromConfig builds a Static provider from the CMS_IMAP_* variables.
// It returns (nil, nil) when no server is configured.
func FromConfig(cfg *config.Config) (*Static, error) {
	if cfg.IMAPServer == "" {
		return nil, nil
	}
	return NewStatic(&models.CMSSettings{
		ServerAddress:          cfg.IMAPServer,
		Username:               cfg.IMAPUsername,
		Password:               cfg.IMAPPassword,
		UseTLS:                 cfg.IMAPUseTLS,
		RootDirectory:          cfg.RootDirectory,
		FolderSeparator:        cfg.FolderSeparator,
		SyncInterval:           cfg.SyncInterval,
		DataConnectionInterval: cfg.DataConnectionMinInterval,
		DialTimeout:            cfg.IMAPDialTimeout,
	})
}

func (s *Static) Settings(context.Context) (*models.CMSSettings, error) {
	c := s.settings
	return &c, nil
}

// Store persists the single cms_settings row.
type Store interface {
	GetCMSSettings(ctx context.Context) (*models.StoredCMSSettings, error)
	SaveCMSSettings(ctx context.Context, s *models.StoredCMSSettings) error
}

// DBProvider reads the account from the database and decrypts its password.
type DBProvider struct {
	store       Store
	cipher      *PasswordCipher
	dialTimeout time.Duration
}

func NewDBProvider(store Store, cipher *PasswordCipher, dialTimeout time.Duration) *DBProvider {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	return &DBProvider{store: store, cipher: cipher, dialTimeout: dialTimeout}
}

func (p *DBProvider) Settings(ctx context.Context) (*models.CMSSettings, error) {
	stored, err := p.store.GetCMSSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get CMS settings: %w", err)
	}
	if stored == nil {
		return nil, ErrNotConfigured
	}

	password, err := p.cipher.Decrypt(stored.EncryptedPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt IMAP password: %w", err)
	}

	s := &models.CMSSettings{
		ServerAddress:          stored.ServerAddress,
		Username:               stored.Username,
		Password:               password,
		UseTLS:                 stored.UseTLS,
		RootDirectory:          stored.RootDirectory,
		FolderSeparator:        stored.FolderSeparator,
		SyncInterval:           time.Duration(stored.SyncIntervalSeconds) * time.Second,
		DataConnectionInterval: time.Duration(stored.DataConnectionIntervalSeconds) * time.Second,
		DialTimeout:            p.dialTimeout,
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save validates s, encrypts its password and stores it.
func (p *DBProvider) Save(ctx context.Context, s *models.CMSSettings) error {
	if err := Validate(s); err != nil {
		return err
	}
	encrypted, err := p.cipher.Encrypt(s.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt IMAP password: %w", err)
	}
	return p.store.SaveCMSSettings(ctx, &models.StoredCMSSettings{
		ServerAddress:                 s.ServerAddress,
		Username:                      s.Username,
		EncryptedPassword:             encrypted,
		UseTLS:                        s.UseTLS,
		RootDirectory:                 s.RootDirectory,
		FolderSeparator:               s.FolderSeparator,
		SyncIntervalSeconds:           int(s.SyncInterval / time.Second),
		DataConnectionIntervalSeconds: int(s.DataConnectionInterval / time.Second),
	})
}
