package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

// GetLocalFolder returns the folder counters, or nil if the folder was never synced.
func (s *Store) GetLocalFolder(ctx context.Context, name string) (*models.LocalFolder, error) {
	var maxUID, modseq, uidValidity int64
	err := s.pool.QueryRow(ctx, `
		SELECT max_uid, modseq, uid_validity
		FROM local_folders
		WHERE name = $1
	`, name).Scan(&maxUID, &modseq, &uidValidity)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get local folder: %w", err)
	}

	return &models.LocalFolder{
		Name:        name,
		MaxUID:      uint32(maxUID),
		Modseq:      uint64(modseq),
		UIDValidity: uint32(uidValidity),
	}, nil
}

func (s *Store) GetLocalFolders(ctx context.Context) ([]*models.LocalFolder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, max_uid, modseq, uid_validity
		FROM local_folders
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query local folders: %w", err)
	}
	defer rows.Close()

	var folders []*models.LocalFolder
	for rows.Next() {
		var f models.LocalFolder
		var maxUID, modseq, uidValidity int64
		if err := rows.Scan(&f.Name, &maxUID, &modseq, &uidValidity); err != nil {
			return nil, fmt.Errorf("failed to scan local folder: %w", err)
		}
		f.MaxUID = uint32(maxUID)
		f.Modseq = uint64(modseq)
		f.UIDValidity = uint32(uidValidity)
		folders = append(folders, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating local folders: %w", err)
	}

	return folders, nil
}

func (s *Store) SaveLocalFolder(ctx context.Context, folder *models.LocalFolder) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO local_folders (name, max_uid, modseq, uid_validity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			max_uid = EXCLUDED.max_uid,
			modseq = EXCLUDED.modseq,
			uid_validity = EXCLUDED.uid_validity,
			updated_at = NOW()
	`, folder.Name, int64(folder.MaxUID), int64(folder.Modseq), int64(folder.UIDValidity))
	if err != nil {
		return fmt.Errorf("failed to save local folder: %w", err)
	}
	return nil
}

func (s *Store) DeleteLocalFolder(ctx context.Context, name string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM local_folders WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to delete local folder: %w", err)
	}
	return nil
}
