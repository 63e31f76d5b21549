package store

import (
	"context"
	"database/sql"
	"fmt"
)

const messageColumns = `id, property_id, stage_id, sender_id, recipient_id, original_content, filtered_content,
	approved_content, approval_status, status, approved_by, approved_at, created_at`

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var m Message
	err := row.Scan(
		&m.ID,
		&m.PropertyID,
		&m.StageID,
		&m.SenderID,
		&m.RecipientID,
		&m.OriginalContent,
		&m.FilteredContent,
		&m.ApprovedContent,
		&m.ApprovalStatus,
		&m.Status,
		&m.ApprovedBy,
		&m.ApprovedAt,
		&m.CreatedAt,
	)
	return m, err
}

// The legacy status column mirrors approval_status; both writes below keep
// them in lockstep.
func (s *PostgresStore) InsertMessage(ctx context.Context, message Message) (Message, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, property_id, stage_id, sender_id, recipient_id, original_content, filtered_content,
			approved_content, approval_status, status, approved_by, approved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $11)
		RETURNING `+messageColumns+`
	`, message.ID, message.PropertyID, message.StageID, message.SenderID, message.RecipientID,
		message.OriginalContent, message.FilteredContent, message.ApprovedContent,
		message.ApprovalStatus, message.ApprovedBy, message.ApprovedAt)
	created, err := scanMessage(row)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, messageID int64) (Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	return scanMessage(row)
}

func (s *PostgresStore) ListMessages(ctx context.Context, propertyID int64) ([]Message, error) {
	return s.listMessages(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE property_id=$1 ORDER BY created_at, id
	`, propertyID)
}

func (s *PostgresStore) ListPendingMessages(ctx context.Context, propertyID int64) ([]Message, error) {
	return s.listMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE property_id=$1 AND approval_status='pending'
		ORDER BY created_at, id
	`, propertyID)
}

func (s *PostgresStore) listMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		item, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

// ResolveMessage moves a pending message to approved or rejected. The
// pending guard makes the transition first-wins: a message that has already
// been resolved is left untouched and the method reports false.
func (s *PostgresStore) ResolveMessage(ctx context.Context, messageID int64, status string, approvedContent *string, approvedBy int64, notifs []Notification) (bool, error) {
	applied := false
	err := s.withTx(ctx, "resolve message", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE messages
			SET approval_status=$2, status=$2, approved_content=$3, approved_by=$4, approved_at=NOW()
			WHERE id=$1 AND approval_status='pending'
		`, messageID, status, approvedContent, approvedBy)
		if err != nil {
			return fmt.Errorf("resolve message: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("resolve message rows: %w", err)
		}
		if affected == 0 {
			return nil
		}
		applied = true
		return insertNotificationsTx(ctx, tx, notifs)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
