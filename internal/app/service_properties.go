package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"

	"conveyo/api/internal/rbac"
	"conveyo/api/internal/search"
	"conveyo/api/internal/store"
	"conveyo/api/internal/util"
)

var propertyStatuses = map[string]struct{}{
	"available":   {},
	"under_offer": {},
	"sold":        {},
	"withdrawn":   {},
}

type CreatePropertyInput struct {
	Address      string
	Postcode     string
	Price        float64
	Status       string
	PropertyType string
	Bedrooms     int
	Bathrooms    int
	Tenure       string
	Description  string

	BuyerID           *int64
	SellerID          *int64
	BuyerSolicitorID  *int64
	SellerSolicitorID *int64
	EstateAgentID     *int64
}

type UpdatePropertyInput struct {
	Address      *string
	Postcode     *string
	Price        *float64
	Status       *string
	PropertyType *string
	Bedrooms     *int
	Bathrooms    *int
	Tenure       *string
	Description  *string

	BuyerID           *int64
	SellerID          *int64
	BuyerSolicitorID  *int64
	SellerSolicitorID *int64
	EstateAgentID     *int64
}

// CreateProperty creates the transaction anchor together with its preset
// timeline and the explanation-cache rows for every preset stage.
func (s *Service) CreateProperty(ctx context.Context, session Session, input CreatePropertyInput) (store.Property, error) {
	if rbac.Normalize(session.Role) != rbac.RoleEstateAgent {
		return store.Property{}, domainError(http.StatusForbidden, "FORBIDDEN", "Only estate agents can create a property", nil)
	}
	if input.Address == "" || input.Postcode == "" {
		return store.Property{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "address and postcode are required", nil)
	}

	status := "available"
	if input.Status != "" {
		if _, ok := propertyStatuses[input.Status]; !ok {
			return store.Property{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid status. Must be one of: available, under_offer, sold, withdrawn", nil)
		}
		status = input.Status
	}

	if err := s.validateAssignment(ctx, input.BuyerID, rbac.RoleBuyer); err != nil {
		return store.Property{}, err
	}
	if err := s.validateAssignment(ctx, input.SellerID, rbac.RoleSeller); err != nil {
		return store.Property{}, err
	}
	if err := s.validateAssignment(ctx, input.BuyerSolicitorID, rbac.RoleSolicitor); err != nil {
		return store.Property{}, err
	}
	if err := s.validateAssignment(ctx, input.SellerSolicitorID, rbac.RoleSolicitor); err != nil {
		return store.Property{}, err
	}
	if err := s.validateAssignment(ctx, input.EstateAgentID, rbac.RoleEstateAgent); err != nil {
		return store.Property{}, err
	}

	property := store.Property{
		ID:                util.NewID(),
		Address:           input.Address,
		Postcode:          input.Postcode,
		Price:             input.Price,
		Status:            status,
		PropertyType:      input.PropertyType,
		Bedrooms:          input.Bedrooms,
		Bathrooms:         input.Bathrooms,
		Tenure:            input.Tenure,
		Description:       input.Description,
		BuyerID:           input.BuyerID,
		SellerID:          input.SellerID,
		BuyerSolicitorID:  input.BuyerSolicitorID,
		SellerSolicitorID: input.SellerSolicitorID,
		EstateAgentID:     input.EstateAgentID,
	}

	created, err := s.store.InsertPropertyWithStages(ctx, property, presetStageRows(property.ID))
	if err != nil {
		return store.Property{}, err
	}

	s.indexProperty(created)
	return created, nil
}

func (s *Service) ListProperties(ctx context.Context, session Session) ([]store.Property, error) {
	return s.store.ListPropertiesForUser(ctx, session.UserID)
}

func (s *Service) GetProperty(ctx context.Context, session Session, propertyID int64) (store.Property, error) {
	return s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpReadProperty)
}

func (s *Service) UpdateProperty(ctx context.Context, session Session, propertyID int64, patch UpdatePropertyInput) (store.Property, error) {
	prop, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpUpdateProperty)
	if err != nil {
		return store.Property{}, err
	}

	if patch.Status != nil {
		if _, ok := propertyStatuses[*patch.Status]; !ok {
			return store.Property{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid status. Must be one of: available, under_offer, sold, withdrawn", nil)
		}
		prop.Status = *patch.Status
	}
	if patch.Address != nil {
		prop.Address = *patch.Address
	}
	if patch.Postcode != nil {
		prop.Postcode = *patch.Postcode
	}
	if patch.Price != nil {
		prop.Price = *patch.Price
	}
	if patch.PropertyType != nil {
		prop.PropertyType = *patch.PropertyType
	}
	if patch.Bedrooms != nil {
		prop.Bedrooms = *patch.Bedrooms
	}
	if patch.Bathrooms != nil {
		prop.Bathrooms = *patch.Bathrooms
	}
	if patch.Tenure != nil {
		prop.Tenure = *patch.Tenure
	}
	if patch.Description != nil {
		prop.Description = *patch.Description
	}
	if patch.BuyerID != nil {
		if err := s.validateAssignment(ctx, patch.BuyerID, rbac.RoleBuyer); err != nil {
			return store.Property{}, err
		}
		prop.BuyerID = patch.BuyerID
	}
	if patch.SellerID != nil {
		if err := s.validateAssignment(ctx, patch.SellerID, rbac.RoleSeller); err != nil {
			return store.Property{}, err
		}
		prop.SellerID = patch.SellerID
	}
	if patch.BuyerSolicitorID != nil {
		if err := s.validateAssignment(ctx, patch.BuyerSolicitorID, rbac.RoleSolicitor); err != nil {
			return store.Property{}, err
		}
		prop.BuyerSolicitorID = patch.BuyerSolicitorID
	}
	if patch.SellerSolicitorID != nil {
		if err := s.validateAssignment(ctx, patch.SellerSolicitorID, rbac.RoleSolicitor); err != nil {
			return store.Property{}, err
		}
		prop.SellerSolicitorID = patch.SellerSolicitorID
	}
	if patch.EstateAgentID != nil {
		if err := s.validateAssignment(ctx, patch.EstateAgentID, rbac.RoleEstateAgent); err != nil {
			return store.Property{}, err
		}
		prop.EstateAgentID = patch.EstateAgentID
	}

	updated, err := s.store.UpdateProperty(ctx, prop)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Property{}, domainError(http.StatusNotFound, "NOT_FOUND", "Property not found", nil)
		}
		return store.Property{}, err
	}

	s.indexProperty(updated)
	return updated, nil
}

// DeleteProperty removes the property and everything hanging off it, then
// cleans up stored document objects best-effort.
func (s *Service) DeleteProperty(ctx context.Context, session Session, propertyID int64) error {
	if _, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpDeleteProperty); err != nil {
		return err
	}

	objectKeys, err := s.store.DeletePropertyCascade(ctx, propertyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "Property not found", nil)
		}
		return err
	}

	if s.objects != nil {
		for _, key := range objectKeys {
			if err := s.objects.Remove(ctx, key); err != nil {
				log.Printf("delete property %d: remove object %s: %v", propertyID, key, err)
			}
		}
	}
	if s.search != nil {
		s.search.DeleteProperty(propertyID)
	}
	return nil
}

func (s *Service) validateAssignment(ctx context.Context, userID *int64, expected rbac.Role) error {
	if userID == nil {
		return nil
	}
	user, err := s.store.GetUserByID(ctx, *userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("User %d does not exist", *userID), nil)
		}
		return err
	}
	if rbac.Normalize(user.Role) != expected {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("User %s does not have a valid role for this assignment (expected %s, got %s)", user.Email, expected, user.Role), nil)
	}
	return nil
}

func (s *Service) indexProperty(p store.Property) {
	if s.search == nil {
		return
	}
	s.search.IndexProperty(search.PropertyRecord{
		ID:          p.ID,
		Address:     p.Address,
		Postcode:    p.Postcode,
		Description: p.Description,
		Status:      p.Status,
	})
}
