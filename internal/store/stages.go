package store

import (
	"context"
	"database/sql"
	"fmt"
)

const stageColumns = `id, property_id, name, status, description, responsible_role, sort_order,
	start_date, due_date, completed_at, created_at, updated_at`

func scanStage(row interface{ Scan(...any) error }) (Stage, error) {
	var st Stage
	err := row.Scan(
		&st.ID,
		&st.PropertyID,
		&st.Name,
		&st.Status,
		&st.Description,
		&st.ResponsibleRole,
		&st.SortOrder,
		&st.StartDate,
		&st.DueDate,
		&st.CompletedAt,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	return st, err
}

func (s *PostgresStore) ListStages(ctx context.Context, propertyID int64) ([]Stage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stageColumns+` FROM stages WHERE property_id=$1 ORDER BY sort_order
	`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	items := make([]Stage, 0)
	for rows.Next() {
		item, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetStage(ctx context.Context, propertyID, stageID int64) (Stage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+stageColumns+` FROM stages WHERE id=$1 AND property_id=$2
	`, stageID, propertyID)
	return scanStage(row)
}

// InsertStageAt inserts a stage at the requested position, shifting later
// stages up by one so positions stay dense. When hasPosition is false the
// stage is appended at the end.
func (s *PostgresStore) InsertStageAt(ctx context.Context, stage Stage, hasPosition bool) (Stage, error) {
	var created Stage
	err := s.withTx(ctx, "insert stage", func(tx *sql.Tx) error {
		if hasPosition {
			var count int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM stages WHERE property_id=$1`, stage.PropertyID).Scan(&count); err != nil {
				return fmt.Errorf("count stages: %w", err)
			}
			if stage.SortOrder < 0 {
				stage.SortOrder = 0
			}
			if stage.SortOrder > count {
				stage.SortOrder = count
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE stages SET sort_order=sort_order+1, updated_at=NOW()
				WHERE property_id=$1 AND sort_order >= $2
			`, stage.PropertyID, stage.SortOrder); err != nil {
				return fmt.Errorf("shift stages: %w", err)
			}
		} else {
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM stages WHERE property_id=$1`, stage.PropertyID).Scan(&stage.SortOrder); err != nil {
				return fmt.Errorf("count stages: %w", err)
			}
		}

		row := tx.QueryRowContext(ctx, `
			INSERT INTO stages (id, property_id, name, status, description, responsible_role, sort_order, start_date, due_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+stageColumns+`
		`, stage.ID, stage.PropertyID, stage.Name, stage.Status, stage.Description, stage.ResponsibleRole,
			stage.SortOrder, stage.StartDate, stage.DueDate)
		var err error
		created, err = scanStage(row)
		if err != nil {
			return fmt.Errorf("insert stage: %w", err)
		}
		return nil
	})
	if err != nil {
		return Stage{}, err
	}
	return created, nil
}

// UpdateStage writes the patched stage. When advanceNext is set the next
// still-pending stage after the updated one is promoted to in-progress in the
// same transaction, along with any completion notifications.
func (s *PostgresStore) UpdateStage(ctx context.Context, stage Stage, advanceNext bool, notifs []Notification) (Stage, error) {
	var updated Stage
	err := s.withTx(ctx, "update stage", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE stages
			SET name=$3, status=$4, description=$5, responsible_role=$6, start_date=$7, due_date=$8, completed_at=$9, updated_at=NOW()
			WHERE id=$1 AND property_id=$2
			RETURNING `+stageColumns+`
		`, stage.ID, stage.PropertyID, stage.Name, stage.Status, stage.Description, stage.ResponsibleRole,
			stage.StartDate, stage.DueDate, stage.CompletedAt)
		var err error
		updated, err = scanStage(row)
		if err != nil {
			return err
		}

		if advanceNext {
			// Next stage is the lowest pending id above the completed one,
			// not the next position. Ids are time-ordered so this follows
			// creation order even after reorders.
			if _, err := tx.ExecContext(ctx, `
				UPDATE stages SET status='in-progress', start_date=COALESCE(start_date, NOW()), updated_at=NOW()
				WHERE id = (
					SELECT id FROM stages
					WHERE property_id=$1 AND status='pending' AND id > $2
					ORDER BY id
					LIMIT 1
				)
			`, stage.PropertyID, stage.ID); err != nil {
				return fmt.Errorf("advance next stage: %w", err)
			}
		}
		return insertNotificationsTx(ctx, tx, notifs)
	})
	if err != nil {
		return Stage{}, err
	}
	return updated, nil
}

// CompleteStage marks the stage completed. Unlike UpdateStage it does not
// promote the next pending stage.
func (s *PostgresStore) CompleteStage(ctx context.Context, propertyID, stageID int64, notifs []Notification) (Stage, error) {
	var updated Stage
	err := s.withTx(ctx, "complete stage", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE stages
			SET status='completed', completed_at=NOW(), updated_at=NOW()
			WHERE id=$1 AND property_id=$2
			RETURNING `+stageColumns+`
		`, stageID, propertyID)
		var err error
		updated, err = scanStage(row)
		if err != nil {
			return err
		}
		return insertNotificationsTx(ctx, tx, notifs)
	})
	if err != nil {
		return Stage{}, err
	}
	return updated, nil
}

// DeleteStageRepack deletes the stage and closes the gap in positions.
func (s *PostgresStore) DeleteStageRepack(ctx context.Context, propertyID, stageID int64) (Stage, error) {
	var deleted Stage
	err := s.withTx(ctx, "delete stage", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			DELETE FROM stages WHERE id=$1 AND property_id=$2
			RETURNING `+stageColumns+`
		`, stageID, propertyID)
		var err error
		deleted, err = scanStage(row)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE stages SET sort_order=sort_order-1, updated_at=NOW()
			WHERE property_id=$1 AND sort_order > $2
		`, propertyID, deleted.SortOrder); err != nil {
			return fmt.Errorf("repack stages: %w", err)
		}
		return nil
	})
	if err != nil {
		return Stage{}, err
	}
	return deleted, nil
}

// ReorderStages assigns each stage its index in ids as the new position.
// The caller has already validated that ids is a permutation of the
// property's stage set.
func (s *PostgresStore) ReorderStages(ctx context.Context, propertyID int64, ids []int64) error {
	return s.withTx(ctx, "reorder stages", func(tx *sql.Tx) error {
		for position, id := range ids {
			result, err := tx.ExecContext(ctx, `
				UPDATE stages SET sort_order=$3, updated_at=NOW()
				WHERE id=$1 AND property_id=$2
			`, id, propertyID, position)
			if err != nil {
				return fmt.Errorf("reorder stage: %w", err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("reorder stage rows: %w", err)
			}
			if affected == 0 {
				return sql.ErrNoRows
			}
		}
		return nil
	})
}

// ResetStages returns every stage to pending with cleared dates and drops the
// timeline lock and both approvals.
func (s *PostgresStore) ResetStages(ctx context.Context, propertyID int64, notifs []Notification) error {
	return s.withTx(ctx, "reset stages", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE stages SET status='pending', start_date=NULL, completed_at=NULL, updated_at=NOW()
			WHERE property_id=$1
		`, propertyID); err != nil {
			return fmt.Errorf("reset stages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE properties
			SET timeline_locked=FALSE, buyer_solicitor_approved=FALSE, seller_solicitor_approved=FALSE, updated_at=NOW()
			WHERE id=$1
		`, propertyID); err != nil {
			return fmt.Errorf("reset timeline flags: %w", err)
		}
		return insertNotificationsTx(ctx, tx, notifs)
	})
}
