package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the transactional timeline and stage methods.
// The service layer maps these onto HTTP-facing domain errors.
var (
	ErrTimelineLocked  = errors.New("timeline locked")
	ErrAlreadyApproved = errors.New("already approved")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) withTx(ctx context.Context, label string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", label, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s tx: %w", label, err)
	}
	return nil
}

func insertNotificationTx(ctx context.Context, tx *sql.Tx, n Notification) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, property_id, type, message)
		VALUES ($1, $2, $3, $4, $5)
	`, n.ID, n.UserID, n.PropertyID, n.Type, n.Message)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func insertNotificationsTx(ctx context.Context, tx *sql.Tx, notifs []Notification) error {
	for _, n := range notifs {
		if err := insertNotificationTx(ctx, tx, n); err != nil {
			return err
		}
	}
	return nil
}

const userColumns = `id, email, password_hash, first_name, last_name, role, phone, company_name,
	is_email_verified, verification_token, verification_expires_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.Phone,
		&user.CompanyName,
		&user.IsEmailVerified,
		&user.VerificationToken,
		&user.VerificationExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, phone, company_name, verification_token, verification_expires_at)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+userColumns+`
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role, user.Phone, user.CompanyName,
		user.VerificationToken, user.VerificationExpiresAt)
	created, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=LOWER($1)`, email)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID int64) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	return scanUser(row)
}

func (s *PostgresStore) VerifyEmailByToken(ctx context.Context, token string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token='', verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_token <> '' AND verification_expires_at > NOW()
		RETURNING `+userColumns+`
	`, token)
	return scanUser(row)
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, reset PasswordReset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
	`, reset.ID, reset.UserID, reset.TokenHash, reset.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

// ConsumePasswordReset marks an unused, unexpired reset as used and returns
// the owning user. sql.ErrNoRows means the token is unknown, spent or stale.
func (s *PostgresStore) ConsumePasswordReset(ctx context.Context, tokenHash string) (int64, error) {
	var userID int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE password_resets
		SET used_at=NOW()
		WHERE token_hash=$1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING user_id
	`, tokenHash).Scan(&userID)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (s *PostgresStore) InsertNotification(ctx context.Context, n Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, property_id, type, message)
		VALUES ($1, $2, $3, $4, $5)
	`, n.ID, n.UserID, n.PropertyID, n.Type, n.Message)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID int64, propertyID int64, unreadOnly bool) ([]Notification, error) {
	query := `
		SELECT id, user_id, property_id, type, message, read, created_at
		FROM notifications
		WHERE user_id=$1
	`
	args := []any{userID}
	if propertyID != 0 {
		query += ` AND property_id=$2`
		args = append(args, propertyID)
	}
	if unreadOnly {
		query += ` AND read=FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		if err := rows.Scan(&item.ID, &item.UserID, &item.PropertyID, &item.Type, &item.Message, &item.Read, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, notificationID, userID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read=TRUE WHERE id=$1 AND user_id=$2 AND read=FALSE
	`, notificationID, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read=TRUE WHERE user_id=$1 AND read=FALSE`, userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetStageExplanation(ctx context.Context, stage, role string) (StageExplanation, error) {
	var item StageExplanation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, stage, role, explanation, created_at, updated_at
		FROM stage_explanations
		WHERE stage=$1 AND role=$2
	`, stage, role).Scan(&item.ID, &item.Stage, &item.Role, &item.Explanation, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return StageExplanation{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpsertStageExplanation(ctx context.Context, item StageExplanation) (StageExplanation, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO stage_explanations (id, stage, role, explanation)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stage, role) DO UPDATE SET explanation=EXCLUDED.explanation, updated_at=NOW()
		RETURNING id, stage, role, explanation, created_at, updated_at
	`, item.ID, item.Stage, item.Role, item.Explanation).Scan(
		&item.ID, &item.Stage, &item.Role, &item.Explanation, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return StageExplanation{}, fmt.Errorf("upsert stage explanation: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) SeedStageExplanations(ctx context.Context, items []StageExplanation) error {
	for _, item := range items {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO stage_explanations (id, stage, role, explanation)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (stage, role) DO NOTHING
		`, item.ID, item.Stage, item.Role, item.Explanation)
		if err != nil {
			return fmt.Errorf("seed stage explanation: %w", err)
		}
	}
	return nil
}
