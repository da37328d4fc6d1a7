package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// GetCMSSettings returns the stored account, or nil if none was saved.
func (s *Store) GetCMSSettings(ctx context.Context) (*models.StoredCMSSettings, error) {
	var settings models.StoredCMSSettings

	err := s.pool.QueryRow(ctx, `
		SELECT
			server_address,
			username,
			encrypted_password,
			use_tls,
			root_directory,
			folder_separator,
			sync_interval_seconds,
			data_connection_interval_seconds,
			created_at,
			updated_at
		FROM cms_settings
		WHERE id = 1
	`).Scan(
		&settings.ServerAddress,
		&settings.Username,
		&settings.EncryptedPassword,
		&settings.UseTLS,
		&settings.RootDirectory,
		&settings.FolderSeparator,
		&settings.SyncIntervalSeconds,
		&settings.DataConnectionIntervalSeconds,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get CMS settings: %w", err)
	}

	return &settings, nil
}

func (s *Store) SaveCMSSettings(ctx context.Context, settings *models.StoredCMSSettings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cms_settings (
			id,
			server_address,
			username,
			encrypted_password,
			use_tls,
			root_directory,
			folder_separator,
			sync_interval_seconds,
			data_connection_interval_seconds
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			server_address = EXCLUDED.server_address,
			username = EXCLUDED.username,
			encrypted_password = EXCLUDED.encrypted_password,
			use_tls = EXCLUDED.use_tls,
			root_directory = EXCLUDED.root_directory,
			folder_separator = EXCLUDED.folder_separator,
			sync_interval_seconds = EXCLUDED.sync_interval_seconds,
			data_connection_interval_seconds = EXCLUDED.data_connection_interval_seconds,
			updated_at = NOW()
	`,
		settings.ServerAddress,
		settings.Username,
		settings.EncryptedPassword,
		settings.UseTLS,
		settings.RootDirectory,
		settings.FolderSeparator,
		settings.SyncIntervalSeconds,
		settings.DataConnectionIntervalSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to save CMS settings: %w", err)
	}
	return nil
}
