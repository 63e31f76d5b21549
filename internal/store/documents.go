package store

import (
	"context"
	"database/sql"
	"fmt"
)

const documentColumns = `id, property_id, uploaded_by, filename, original_filename, document_type, object_key, size,
	review_status, reviewed_by, reviewed_at, uploaded_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var d Document
	err := row.Scan(
		&d.ID,
		&d.PropertyID,
		&d.UploadedBy,
		&d.Filename,
		&d.OriginalFilename,
		&d.DocumentType,
		&d.ObjectKey,
		&d.Size,
		&d.ReviewStatus,
		&d.ReviewedBy,
		&d.ReviewedAt,
		&d.UploadedAt,
	)
	return d, err
}

func (s *PostgresStore) InsertDocument(ctx context.Context, document Document, notifs []Notification) (Document, error) {
	var created Document
	err := s.withTx(ctx, "insert document", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO documents (id, property_id, uploaded_by, filename, original_filename, document_type, object_key, size)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+documentColumns+`
		`, document.ID, document.PropertyID, document.UploadedBy, document.Filename,
			document.OriginalFilename, document.DocumentType, document.ObjectKey, document.Size)
		var err error
		created, err = scanDocument(row)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return insertNotificationsTx(ctx, tx, notifs)
	})
	if err != nil {
		return Document{}, err
	}
	return created, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID int64) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, documentID)
	return scanDocument(row)
}

func (s *PostgresStore) ListDocuments(ctx context.Context, propertyID int64) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE property_id=$1 ORDER BY uploaded_at DESC
	`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

// ReviewDocument records a solicitor's verdict on a pending document.
func (s *PostgresStore) ReviewDocument(ctx context.Context, documentID int64, status string, reviewedBy int64, notifs []Notification) (bool, error) {
	applied := false
	err := s.withTx(ctx, "review document", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET review_status=$2, reviewed_by=$3, reviewed_at=NOW()
			WHERE id=$1 AND review_status='pending'
		`, documentID, status, reviewedBy)
		if err != nil {
			return fmt.Errorf("review document: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("review document rows: %w", err)
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
