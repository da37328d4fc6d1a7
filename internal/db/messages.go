package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yplo6403/rcsjta-sub005/internal/models"
)

const localMessageColumns = `
	id, message_type, conversation, correlator, direction, from_address,
	to_addresses, subject, body_text, payload, sent_at, is_read, is_deleted, created_at`

// SaveLocalMessage inserts a message and its attachments in one transaction.
func (s *Store) SaveLocalMessage(ctx context.Context, msg *models.LocalMessage) error {
	to := msg.To
	if to == nil {
		to = []string{}
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO local_messages (
				id,
				message_type,
				conversation,
				correlator,
				direction,
				from_address,
				to_addresses,
				subject,
				body_text,
				payload,
				sent_at,
				is_read,
				is_deleted
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING created_at
		`,
			msg.ID,
			msg.Type,
			msg.Conversation,
			msg.Correlator,
			msg.Direction,
			msg.From,
			to,
			msg.Subject,
			msg.Text,
			msg.Payload,
			msg.SentAt,
			msg.Read,
			msg.Deleted,
		).Scan(&msg.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert local message: %w", err)
		}

		for _, a := range msg.Attachments {
			if _, err := tx.Exec(ctx, `
				INSERT INTO local_attachments (local_message_id, filename, content_type, content_id, content)
				VALUES ($1, $2, $3, $4, $5)
			`, msg.ID, a.FileName, a.ContentType, a.ContentID, a.Content); err != nil {
				return fmt.Errorf("failed to insert attachment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save local message: %w", err)
	}
	return nil
}

func scanLocalMessage(row pgx.Row) (*models.LocalMessage, error) {
	var msg models.LocalMessage
	if err := row.Scan(
		&msg.ID,
		&msg.Type,
		&msg.Conversation,
		&msg.Correlator,
		&msg.Direction,
		&msg.From,
		&msg.To,
		&msg.Subject,
		&msg.Text,
		&msg.Payload,
		&msg.SentAt,
		&msg.Read,
		&msg.Deleted,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetLocalMessage returns a message with its attachments, or nil if unknown.
func (s *Store) GetLocalMessage(ctx context.Context, id string) (*models.LocalMessage, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+localMessageColumns+` FROM local_messages WHERE id = $1`, id)
	msg, err := scanLocalMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get local message: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT filename, content_type, content_id, content
		FROM local_attachments
		WHERE local_message_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.LocalAttachment
		if err := rows.Scan(&a.FileName, &a.ContentType, &a.ContentID, &a.Content); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		a.SizeBytes = len(a.Content)
		msg.Attachments = append(msg.Attachments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}

	return msg, nil
}

// ListLocalMessages returns the non-deleted messages of a conversation, oldest first.
// Attachments are not loaded.
func (s *Store) ListLocalMessages(ctx context.Context, conversation string) ([]*models.LocalMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+localMessageColumns+`
		FROM local_messages
		WHERE conversation = $1 AND NOT is_deleted
		ORDER BY sent_at, created_at
	`, conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to list local messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.LocalMessage
	for rows.Next() {
		msg, err := scanLocalMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan local message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating local messages: %w", err)
	}

	return messages, nil
}

// MarkLocalMessageRead sets the read flag. It reports whether the message exists.
func (s *Store) MarkLocalMessageRead(ctx context.Context, id string) (bool, error) {
	return s.updateLocalMessage(ctx, `is_read = TRUE`, id)
}

// MarkLocalMessageDeleted sets the deleted flag. It reports whether the message exists.
func (s *Store) MarkLocalMessageDeleted(ctx context.Context, id string) (bool, error) {
	return s.updateLocalMessage(ctx, `is_deleted = TRUE`, id)
}

func (s *Store) updateLocalMessage(ctx context.Context, set, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE local_messages SET `+set+`, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to update local message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
