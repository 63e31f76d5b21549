package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"conveyo/api/internal/rbac"
	"conveyo/api/internal/store"
	"conveyo/api/internal/util"
)

type CreateStageInput struct {
	Name            string
	Description     string
	ResponsibleRole string
	Position        *int
	DueDate         *time.Time
}

type UpdateStageInput struct {
	Name            *string
	Status          *string
	Description     *string
	ResponsibleRole *string
	StartDate       *time.Time
	DueDate         *time.Time
	CompletedAt     *time.Time
}

var stageStatuses = map[string]struct{}{
	"pending":     {},
	"in-progress": {},
	"completed":   {},
}

func (s *Service) ListStages(ctx context.Context, session Session, propertyID int64) ([]store.Stage, error) {
	if _, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpReadStages); err != nil {
		return nil, err
	}
	return s.store.ListStages(ctx, propertyID)
}

// CreateStage inserts a stage, shifting later positions when a target position
// is given, and seeds explanation-cache rows for the new stage name.
func (s *Service) CreateStage(ctx context.Context, session Session, propertyID int64, input CreateStageInput) (store.Stage, error) {
	if _, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpCreateStage); err != nil {
		return store.Stage{}, err
	}
	if input.Name == "" {
		return store.Stage{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if input.Position != nil && *input.Position < 0 {
		return store.Stage{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "position must not be negative", nil)
	}

	stage := store.Stage{
		ID:              util.NewID(),
		PropertyID:      propertyID,
		Name:            input.Name,
		Status:          "pending",
		Description:     input.Description,
		ResponsibleRole: input.ResponsibleRole,
		DueDate:         input.DueDate,
	}
	if input.Position != nil {
		stage.SortOrder = *input.Position
	}

	created, err := s.store.InsertStageAt(ctx, stage, input.Position != nil)
	if err != nil {
		return store.Stage{}, err
	}

	if err := s.store.SeedStageExplanations(ctx, explanationSeeds(created.Name)); err != nil {
		return store.Stage{}, err
	}
	return created, nil
}

// UpdateStage applies a field patch. A transition into completed promotes the
// next pending stage (by id) to in-progress and notifies the other parties,
// all in one transaction.
func (s *Service) UpdateStage(ctx context.Context, session Session, propertyID, stageID int64, patch UpdateStageInput) (store.Stage, error) {
	prop, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpUpdateStage)
	if err != nil {
		return store.Stage{}, err
	}

	stage, err := s.store.GetStage(ctx, propertyID, stageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Stage{}, domainError(http.StatusNotFound, "NOT_FOUND", "Stage not found", nil)
		}
		return store.Stage{}, err
	}

	if patch.Status != nil {
		if _, ok := stageStatuses[*patch.Status]; !ok {
			return store.Stage{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid status. Must be one of: pending, in-progress, completed", nil)
		}
	}

	completing := patch.Status != nil && *patch.Status == "completed" && stage.Status != "completed"

	if patch.Name != nil {
		stage.Name = *patch.Name
	}
	if patch.Status != nil {
		stage.Status = *patch.Status
	}
	if patch.Description != nil {
		stage.Description = *patch.Description
	}
	if patch.ResponsibleRole != nil {
		stage.ResponsibleRole = *patch.ResponsibleRole
	}
	if patch.StartDate != nil {
		stage.StartDate = patch.StartDate
	}
	if patch.DueDate != nil {
		stage.DueDate = patch.DueDate
	}
	if patch.CompletedAt != nil {
		stage.CompletedAt = patch.CompletedAt
	}
	if completing && stage.CompletedAt == nil {
		now := time.Now()
		stage.CompletedAt = &now
	}

	var notifs []store.Notification
	if completing {
		notifs = notifyParties(prop, session.UserID, "stage_completed",
			fmt.Sprintf("Stage '%s' has been completed by %s.", stage.Name, session.UserName))
	}

	updated, err := s.store.UpdateStage(ctx, stage, completing, notifs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Stage{}, domainError(http.StatusNotFound, "NOT_FOUND", "Stage not found", nil)
		}
		return store.Stage{}, err
	}
	return updated, nil
}

// CompleteStage marks a stage completed and notifies the other parties. It
// does not advance the next stage; only the update path does that.
func (s *Service) CompleteStage(ctx context.Context, session Session, propertyID, stageID int64) (store.Stage, error) {
	prop, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpCompleteStage)
	if err != nil {
		return store.Stage{}, err
	}

	stage, err := s.store.GetStage(ctx, propertyID, stageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Stage{}, domainError(http.StatusNotFound, "NOT_FOUND", "Stage not found", nil)
		}
		return store.Stage{}, err
	}

	notifs := notifyParties(prop, session.UserID, "stage_completed",
		fmt.Sprintf("Stage '%s' has been completed by %s.", stage.Name, session.UserName))

	completed, err := s.store.CompleteStage(ctx, propertyID, stageID, notifs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Stage{}, domainError(http.StatusNotFound, "NOT_FOUND", "Stage not found", nil)
		}
		return store.Stage{}, err
	}
	return completed, nil
}

// DeleteStage removes a stage and closes the position gap. Solicitors only,
// and never while the timeline is locked.
func (s *Service) DeleteStage(ctx context.Context, session Session, propertyID, stageID int64) (store.Stage, error) {
	prop, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpDeleteStage)
	if err != nil {
		return store.Stage{}, err
	}
	if prop.TimelineLocked {
		return store.Stage{}, domainError(http.StatusBadRequest, "INVALID_STATE", "Cannot modify stages when timeline is locked", nil)
	}

	deleted, err := s.store.DeleteStageRepack(ctx, propertyID, stageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Stage{}, domainError(http.StatusNotFound, "NOT_FOUND", "Stage not found", nil)
		}
		return store.Stage{}, err
	}
	return deleted, nil
}

// ReorderStages applies a full permutation of the property's stage ids. The
// supplied set must match the current set exactly.
func (s *Service) ReorderStages(ctx context.Context, session Session, propertyID int64, stageIDs []int64) error {
	prop, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpReorderStages)
	if err != nil {
		return err
	}
	if prop.TimelineLocked {
		return domainError(http.StatusBadRequest, "INVALID_STATE", "Cannot reorder stages when timeline is locked", nil)
	}

	current, err := s.store.ListStages(ctx, propertyID)
	if err != nil {
		return err
	}
	if !sameIDSet(current, stageIDs) {
		return domainError(http.StatusBadRequest, "INVALID_STATE", "Stage IDs do not match current stages", nil)
	}

	return s.store.ReorderStages(ctx, propertyID, stageIDs)
}

// ApproveTimeline records one solicitor side's approval; when both sides have
// approved the timeline locks. An optional comment notifies the other
// solicitor.
func (s *Service) ApproveTimeline(ctx context.Context, session Session, propertyID int64, comment string) (store.Property, error) {
	prop, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpApproveTimeline)
	if err != nil {
		return store.Property{}, err
	}

	buyerSide := prop.BuyerSolicitorID != nil && *prop.BuyerSolicitorID == session.UserID

	var notifs []store.Notification
	if comment != "" {
		other := prop.SellerSolicitorID
		if !buyerSide {
			other = prop.BuyerSolicitorID
		}
		if other != nil {
			notifs = append(notifs, store.Notification{
				ID:         util.NewID(),
				UserID:     *other,
				PropertyID: propertyIDRef(prop.ID),
				Type:       "timeline_approval",
				Message:    "Timeline approved with comment: " + comment,
			})
		}
	}

	updated, err := s.store.ApproveTimeline(ctx, propertyID, buyerSide, notifs)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTimelineLocked):
			return store.Property{}, domainError(http.StatusBadRequest, "INVALID_STATE", "Timeline is already locked and cannot be modified", nil)
		case errors.Is(err, store.ErrAlreadyApproved):
			side := "Seller"
			if buyerSide {
				side = "Buyer"
			}
			return store.Property{}, domainError(http.StatusBadRequest, "INVALID_STATE", side+" solicitor has already approved the timeline", nil)
		case errors.Is(err, sql.ErrNoRows):
			return store.Property{}, domainError(http.StatusNotFound, "NOT_FOUND", "Property not found", nil)
		}
		return store.Property{}, err
	}
	return updated, nil
}

// UnlockTimeline clears the lock and both approval flags without touching
// stage data.
func (s *Service) UnlockTimeline(ctx context.Context, session Session, propertyID int64) (store.Property, error) {
	if _, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpUnlockTimeline); err != nil {
		return store.Property{}, err
	}

	updated, err := s.store.UnlockTimeline(ctx, propertyID, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Property{}, domainError(http.StatusNotFound, "NOT_FOUND", "Property not found", nil)
		}
		return store.Property{}, err
	}
	return updated, nil
}

// ResetStages reverts every stage to pending with cleared dates and drops the
// timeline lock.
func (s *Service) ResetStages(ctx context.Context, session Session, propertyID int64) error {
	if _, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpResetStages); err != nil {
		return err
	}
	return s.store.ResetStages(ctx, propertyID, nil)
}

func sameIDSet(stages []store.Stage, ids []int64) bool {
	if len(stages) != len(ids) {
		return false
	}
	current := make(map[int64]struct{}, len(stages))
	for _, stage := range stages {
		current[stage.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := current[id]; !ok {
			return false
		}
		delete(current, id)
	}
	return len(current) == 0
}

func propertyIDRef(id int64) *int64 {
	return &id
}
