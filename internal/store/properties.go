package store

import (
	"context"
	"database/sql"
	"fmt"
)

const propertyColumns = `id, address, postcode, price, status, property_type, bedrooms, bathrooms, tenure, description,
	buyer_id, seller_id, buyer_solicitor_id, seller_solicitor_id, estate_agent_id,
	timeline_locked, buyer_solicitor_approved, seller_solicitor_approved, created_at, updated_at`

func scanProperty(row interface{ Scan(...any) error }) (Property, error) {
	var p Property
	err := row.Scan(
		&p.ID,
		&p.Address,
		&p.Postcode,
		&p.Price,
		&p.Status,
		&p.PropertyType,
		&p.Bedrooms,
		&p.Bathrooms,
		&p.Tenure,
		&p.Description,
		&p.BuyerID,
		&p.SellerID,
		&p.BuyerSolicitorID,
		&p.SellerSolicitorID,
		&p.EstateAgentID,
		&p.TimelineLocked,
		&p.BuyerSolicitorApproved,
		&p.SellerSolicitorApproved,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

// InsertPropertyWithStages creates the property and its preset stages in one
// transaction so a half-built timeline can never be observed.
func (s *PostgresStore) InsertPropertyWithStages(ctx context.Context, property Property, stages []Stage) (Property, error) {
	var created Property
	err := s.withTx(ctx, "create property", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO properties (id, address, postcode, price, status, property_type, bedrooms, bathrooms, tenure, description,
				buyer_id, seller_id, buyer_solicitor_id, seller_solicitor_id, estate_agent_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING `+propertyColumns+`
		`, property.ID, property.Address, property.Postcode, property.Price, property.Status,
			property.PropertyType, property.Bedrooms, property.Bathrooms, property.Tenure, property.Description,
			property.BuyerID, property.SellerID, property.BuyerSolicitorID, property.SellerSolicitorID, property.EstateAgentID)
		var err error
		created, err = scanProperty(row)
		if err != nil {
			return fmt.Errorf("insert property: %w", err)
		}
		for _, stage := range stages {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO stages (id, property_id, name, status, description, responsible_role, sort_order, due_date)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, stage.ID, created.ID, stage.Name, stage.Status, stage.Description, stage.ResponsibleRole, stage.SortOrder, stage.DueDate); err != nil {
				return fmt.Errorf("insert stage: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Property{}, err
	}
	return created, nil
}

func (s *PostgresStore) GetProperty(ctx context.Context, propertyID int64) (Property, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id=$1`, propertyID)
	return scanProperty(row)
}

func (s *PostgresStore) ListPropertiesForUser(ctx context.Context, userID int64) ([]Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE buyer_id=$1 OR seller_id=$1 OR buyer_solicitor_id=$1 OR seller_solicitor_id=$1 OR estate_agent_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	items := make([]Property, 0)
	for rows.Next() {
		item, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateProperty(ctx context.Context, property Property) (Property, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE properties
		SET address=$2, postcode=$3, price=$4, status=$5, property_type=$6, bedrooms=$7, bathrooms=$8, tenure=$9, description=$10,
			buyer_id=$11, seller_id=$12, buyer_solicitor_id=$13, seller_solicitor_id=$14, estate_agent_id=$15, updated_at=NOW()
		WHERE id=$1
		RETURNING `+propertyColumns+`
	`, property.ID, property.Address, property.Postcode, property.Price, property.Status,
		property.PropertyType, property.Bedrooms, property.Bathrooms, property.Tenure, property.Description,
		property.BuyerID, property.SellerID, property.BuyerSolicitorID, property.SellerSolicitorID, property.EstateAgentID)
	return scanProperty(row)
}

// DeletePropertyCascade removes the property and everything hanging off it.
// It returns the object keys of the property's documents so the caller can
// clean up blob storage after the rows are gone.
func (s *PostgresStore) DeletePropertyCascade(ctx context.Context, propertyID int64) ([]string, error) {
	var objectKeys []string
	err := s.withTx(ctx, "delete property", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT object_key FROM documents WHERE property_id=$1`, propertyID)
		if err != nil {
			return fmt.Errorf("list document keys: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				return fmt.Errorf("scan document key: %w", err)
			}
			objectKeys = append(objectKeys, key)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate document keys: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM properties WHERE id=$1`, propertyID)
		if err != nil {
			return fmt.Errorf("delete property: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete property rows: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objectKeys, nil
}

// ApproveTimeline records one solicitor side's approval under a row lock.
// When both sides have approved the timeline locks in the same statement.
func (s *PostgresStore) ApproveTimeline(ctx context.Context, propertyID int64, buyerSide bool, notifs []Notification) (Property, error) {
	var updated Property
	err := s.withTx(ctx, "approve timeline", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id=$1 FOR UPDATE`, propertyID)
		current, err := scanProperty(row)
		if err != nil {
			return err
		}
		if current.TimelineLocked {
			return ErrTimelineLocked
		}
		if buyerSide && current.BuyerSolicitorApproved {
			return ErrAlreadyApproved
		}
		if !buyerSide && current.SellerSolicitorApproved {
			return ErrAlreadyApproved
		}

		column := "seller_solicitor_approved"
		if buyerSide {
			column = "buyer_solicitor_approved"
		}
		row = tx.QueryRowContext(ctx, `
			UPDATE properties
			SET `+column+`=TRUE,
				timeline_locked = (buyer_solicitor_approved OR $2) AND (seller_solicitor_approved OR $3),
				updated_at=NOW()
			WHERE id=$1
			RETURNING `+propertyColumns+`
		`, propertyID, buyerSide, !buyerSide)
		updated, err = scanProperty(row)
		if err != nil {
			return fmt.Errorf("approve timeline: %w", err)
		}
		return insertNotificationsTx(ctx, tx, notifs)
	})
	if err != nil {
		return Property{}, err
	}
	return updated, nil
}

// UnlockTimeline clears the lock and both approvals so negotiation restarts
// from scratch.
func (s *PostgresStore) UnlockTimeline(ctx context.Context, propertyID int64, notifs []Notification) (Property, error) {
	var updated Property
	err := s.withTx(ctx, "unlock timeline", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE properties
			SET timeline_locked=FALSE, buyer_solicitor_approved=FALSE, seller_solicitor_approved=FALSE, updated_at=NOW()
			WHERE id=$1
			RETURNING `+propertyColumns+`
		`, propertyID)
		var err error
		updated, err = scanProperty(row)
		if err != nil {
			return err
		}
		return insertNotificationsTx(ctx, tx, notifs)
	})
	if err != nil {
		return Property{}, err
	}
	return updated, nil
}
