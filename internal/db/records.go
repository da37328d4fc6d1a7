package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

const recordColumns = `
	id, folder_name, uid, message_id, message_type, correlator,
	read_status, delete_status, push_status, created_at, updated_at`

func scanRecord(row pgx.Row) (*models.MessageRecord, error) {
	var r models.MessageRecord
	var uid *int64
	if err := row.Scan(
		&r.ID,
		&r.Folder,
		&uid,
		&r.MessageID,
		&r.Type,
		&r.Correlator,
		&r.ReadStatus,
		&r.DeleteStatus,
		&r.PushStatus,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if uid != nil {
		u := uint32(*uid)
		r.UID = &u
	}
	return &r, nil
}

func (s *Store) getRecord(ctx context.Context, where string, args ...any) (*models.MessageRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM message_records WHERE `+where+` LIMIT 1`, args...)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message record: %w", err)
	}
	return record, nil
}

func (s *Store) listRecords(ctx context.Context, where string, args ...any) ([]*models.MessageRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+recordColumns+` FROM message_records WHERE `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query message records: %w", err)
	}
	defer rows.Close()

	var records []*models.MessageRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message records: %w", err)
	}

	return records, nil
}

func (s *Store) GetRecordByUID(ctx context.Context, folder string, uid uint32) (*models.MessageRecord, error) {
	return s.getRecord(ctx, `folder_name = $1 AND uid = $2`, folder, int64(uid))
}

func (s *Store) GetRecordByCorrelator(ctx context.Context, folder, correlator string) (*models.MessageRecord, error) {
	return s.getRecord(ctx, `folder_name = $1 AND correlator = $2`, folder, correlator)
}

func (s *Store) GetRecordByMessageID(ctx context.Context, messageID string) (*models.MessageRecord, error) {
	return s.getRecord(ctx, `message_id = $1`, messageID)
}

// SaveRecord upserts a record by id and fills its timestamps.
func (s *Store) SaveRecord(ctx context.Context, record *models.MessageRecord) error {
	var uid *int64
	if record.UID != nil {
		u := int64(*record.UID)
		uid = &u
	}

	var createdAt, updatedAt time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO message_records (
			id, folder_name, uid, message_id, message_type, correlator,
			read_status, delete_status, push_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			folder_name = EXCLUDED.folder_name,
			uid = EXCLUDED.uid,
			message_id = EXCLUDED.message_id,
			message_type = EXCLUDED.message_type,
			correlator = EXCLUDED.correlator,
			read_status = EXCLUDED.read_status,
			delete_status = EXCLUDED.delete_status,
			push_status = EXCLUDED.push_status,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`,
		record.ID,
		record.Folder,
		uid,
		record.MessageID,
		string(record.Type),
		record.Correlator,
		string(record.ReadStatus),
		string(record.DeleteStatus),
		string(record.PushStatus),
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save message record: %w", err)
	}

	record.CreatedAt = createdAt
	record.UpdatedAt = updatedAt
	return nil
}

func (s *Store) UpdateReadStatus(ctx context.Context, id string, from, to models.ReadStatus) (bool, error) {
	return s.updateStatus(ctx, "read_status", id, string(from), string(to))
}

func (s *Store) UpdateDeleteStatus(ctx context.Context, id string, from, to models.DeleteStatus) (bool, error) {
	return s.updateStatus(ctx, "delete_status", id, string(from), string(to))
}

// updateStatus writes one status column only while it still holds from.
func (s *Store) updateStatus(ctx context.Context, column, id, from, to string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE message_records SET `+column+` = $3, updated_at = NOW()
		WHERE id = $1 AND `+column+` = $2
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update %s: %w", column, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) MarkRecordPushed(ctx context.Context, id string, uid uint32) error {
	var uidParam *int64
	if uid != 0 {
		u := int64(uid)
		uidParam = &u
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE message_records
		SET push_status = $2, uid = COALESCE($3, uid), updated_at = NOW()
		WHERE id = $1
	`, id, string(models.PushStatusPushed), uidParam)
	if err != nil {
		return fmt.Errorf("failed to mark record pushed: %w", err)
	}
	return nil
}

func (s *Store) ResetFolderUIDs(ctx context.Context, folder string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE message_records SET uid = NULL, updated_at = NOW()
		WHERE folder_name = $1 AND uid IS NOT NULL
	`, folder)
	if err != nil {
		return fmt.Errorf("failed to reset folder UIDs: %w", err)
	}
	return nil
}

func (s *Store) DeleteFolderRecords(ctx context.Context, folder string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM message_records
		WHERE folder_name = $1 AND push_status <> $2
	`, folder, string(models.PushStatusPushRequested))
	if err != nil {
		return fmt.Errorf("failed to delete folder records: %w", err)
	}
	return nil
}

func (s *Store) GetPendingFlagRecords(ctx context.Context, folder string) ([]*models.MessageRecord, error) {
	return s.listRecords(ctx, `
		($1 = '' OR folder_name = $1)
		AND uid IS NOT NULL AND uid <> 0
		AND (read_status = $2 OR delete_status = $3)
	`, folder, string(models.ReadStatusReadReportRequested), string(models.DeleteStatusDeletedReportRequested))
}

func (s *Store) GetPushRequested(ctx context.Context, folder string) ([]*models.MessageRecord, error) {
	return s.listRecords(ctx, `($1 = '' OR folder_name = $1) AND push_status = $2`,
		folder, string(models.PushStatusPushRequested))
}
