package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"conveyo/api/internal/moderation"
	"conveyo/api/internal/rbac"
	"conveyo/api/internal/search"
	"conveyo/api/internal/store"
	"conveyo/api/internal/util"
)

// MessageView is a message annotated for the property read-all listing.
type MessageView struct {
	store.Message
	IsBuyerSellerMessage bool
}

// SendPropertyMessage is the moderated flow: a buyer or seller writes to the
// other party, the text runs through the rewrite/moderation filter, and the
// result waits in the agent's pending queue. Filter failures degrade to
// marked fallback content; they never block the send.
func (s *Service) SendPropertyMessage(ctx context.Context, session Session, propertyID int64, stageID *int64, content string) (store.Message, error) {
	prop, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpSendMessage)
	if err != nil {
		return store.Message{}, err
	}
	if content == "" {
		return store.Message{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	if stageID != nil {
		if _, err := s.store.GetStage(ctx, propertyID, *stageID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.Message{}, domainError(http.StatusNotFound, "NOT_FOUND", "Stage not found", nil)
			}
			return store.Message{}, err
		}
	}

	var recipient *int64
	if prop.BuyerID != nil && *prop.BuyerID == session.UserID {
		recipient = prop.SellerID
	} else {
		recipient = prop.BuyerID
	}

	filtered := moderation.Filter(ctx, s.ai, content)

	message := store.Message{
		ID:              util.NewID(),
		PropertyID:      propertyID,
		StageID:         stageID,
		SenderID:        session.UserID,
		RecipientID:     recipient,
		OriginalContent: content,
		FilteredContent: filtered.Filtered,
		ApprovalStatus:  "pending",
	}

	created, err := s.store.InsertMessage(ctx, message)
	if err != nil {
		return store.Message{}, err
	}

	s.indexMessage(created)
	return created, nil
}

// PendingPropertyMessages lists the agent's moderation queue for a property.
func (s *Service) PendingPropertyMessages(ctx context.Context, session Session, propertyID int64) ([]store.Message, error) {
	if _, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpPendingMessages); err != nil {
		return nil, err
	}
	return s.store.ListPendingMessages(ctx, propertyID)
}

// ApprovePropertyMessage resolves a pending message terminally to approved,
// copying the version the agent picked into the approved content.
func (s *Service) ApprovePropertyMessage(ctx context.Context, session Session, propertyID, messageID int64, version string) (store.Message, error) {
	if _, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpResolveMessage); err != nil {
		return store.Message{}, err
	}

	message, err := s.propertyMessage(ctx, propertyID, messageID)
	if err != nil {
		return store.Message{}, err
	}

	approved := message.FilteredContent
	if version == "original" {
		approved = message.OriginalContent
	}

	applied, err := s.store.ResolveMessage(ctx, messageID, "approved", &approved, session.UserID, nil)
	if err != nil {
		return store.Message{}, err
	}
	if !applied {
		return store.Message{}, domainError(http.StatusNotFound, "NOT_FOUND", "Message not found or already approved", nil)
	}

	resolved, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return store.Message{}, err
	}
	s.indexMessage(resolved)
	return resolved, nil
}

// RejectPropertyMessage resolves a pending message terminally to rejected.
// No content is copied.
func (s *Service) RejectPropertyMessage(ctx context.Context, session Session, propertyID, messageID int64) error {
	if _, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpResolveMessage); err != nil {
		return err
	}

	if _, err := s.propertyMessage(ctx, propertyID, messageID); err != nil {
		return err
	}

	applied, err := s.store.ResolveMessage(ctx, messageID, "rejected", nil, session.UserID, nil)
	if err != nil {
		return err
	}
	if !applied {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Message not found or already processed", nil)
	}

	if resolved, err := s.store.GetMessage(ctx, messageID); err == nil {
		s.indexMessage(resolved)
	}
	return nil
}

// ListPropertyMessages returns every message on the property, annotated with
// whether the sender/recipient pair is exactly the buyer and seller.
func (s *Service) ListPropertyMessages(ctx context.Context, session Session, propertyID int64) ([]MessageView, error) {
	prop, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpReadMessages)
	if err != nil {
		return nil, err
	}

	messages, err := s.store.ListMessages(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(messages))
	for _, message := range messages {
		views = append(views, MessageView{
			Message:              message,
			IsBuyerSellerMessage: isBuyerSellerMessage(prop, message),
		})
	}
	return views, nil
}

// SendDirectMessage is the legacy flow: any authenticated user writes to an
// explicit recipient and the message lands approved immediately, bypassing
// the moderation queue.
func (s *Service) SendDirectMessage(ctx context.Context, session Session, recipientID, propertyID int64, stageID *int64, content string) (store.Message, error) {
	if content == "" {
		return store.Message{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	if _, err := s.store.GetUserByID(ctx, recipientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Message{}, domainError(http.StatusNotFound, "NOT_FOUND", "Recipient not found", nil)
		}
		return store.Message{}, err
	}
	if _, err := s.store.GetProperty(ctx, propertyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Message{}, domainError(http.StatusNotFound, "NOT_FOUND", "Property not found", nil)
		}
		return store.Message{}, err
	}

	message := store.Message{
		ID:              util.NewID(),
		PropertyID:      propertyID,
		StageID:         stageID,
		SenderID:        session.UserID,
		RecipientID:     &recipientID,
		OriginalContent: content,
		FilteredContent: content,
		ApprovedContent: &content,
		ApprovalStatus:  "approved",
	}

	created, err := s.store.InsertMessage(ctx, message)
	if err != nil {
		return store.Message{}, err
	}

	s.indexMessage(created)
	return created, nil
}

// ApproveDirectMessage is the legacy approval: the property's agent releases a
// pending message and both parties are notified of the delivery.
func (s *Service) ApproveDirectMessage(ctx context.Context, session Session, messageID int64) (store.Message, error) {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Message{}, domainError(http.StatusNotFound, "NOT_FOUND", "Message not found", nil)
		}
		return store.Message{}, err
	}
	if _, err := s.authorizeProperty(ctx, message.PropertyID, session.UserID, rbac.OpResolveMessage); err != nil {
		return store.Message{}, err
	}

	var notifs []store.Notification
	if message.RecipientID != nil {
		notifs = append(notifs, store.Notification{
			ID:         util.NewID(),
			UserID:     *message.RecipientID,
			PropertyID: propertyIDRef(message.PropertyID),
			Type:       "message",
			Message:    "A message has been approved and delivered to you.",
		})
	}
	notifs = append(notifs, store.Notification{
		ID:         util.NewID(),
		UserID:     message.SenderID,
		PropertyID: propertyIDRef(message.PropertyID),
		Type:       "delivered",
		Message:    "Your message was approved and delivered to the recipient.",
	})

	applied, err := s.store.ResolveMessage(ctx, messageID, "approved", &message.FilteredContent, session.UserID, notifs)
	if err != nil {
		return store.Message{}, err
	}
	if !applied {
		return store.Message{}, domainError(http.StatusNotFound, "NOT_FOUND", "Message not found or already approved", nil)
	}

	resolved, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return store.Message{}, err
	}
	s.indexMessage(resolved)
	return resolved, nil
}

// RejectDirectMessage is the legacy rejection, agent-only, terminal.
func (s *Service) RejectDirectMessage(ctx context.Context, session Session, messageID int64) error {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "Message not found", nil)
		}
		return err
	}
	if _, err := s.authorizeProperty(ctx, message.PropertyID, session.UserID, rbac.OpResolveMessage); err != nil {
		return err
	}

	applied, err := s.store.ResolveMessage(ctx, messageID, "rejected", nil, session.UserID, nil)
	if err != nil {
		return err
	}
	if !applied {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Message not found or already processed", nil)
	}
	return nil
}

// ListVisibleMessages is the legacy listing: a message is visible if it is
// approved or the requester wrote it, so authors see their own pending and
// rejected drafts while third parties do not.
func (s *Service) ListVisibleMessages(ctx context.Context, session Session, propertyID int64) ([]store.Message, error) {
	messages, err := s.store.ListMessages(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	visible := make([]store.Message, 0, len(messages))
	for _, message := range messages {
		if message.ApprovalStatus == "approved" || message.SenderID == session.UserID {
			visible = append(visible, message)
		}
	}
	return visible, nil
}

func (s *Service) propertyMessage(ctx context.Context, propertyID, messageID int64) (store.Message, error) {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Message{}, domainError(http.StatusNotFound, "NOT_FOUND", "Message not found", nil)
		}
		return store.Message{}, err
	}
	if message.PropertyID != propertyID {
		return store.Message{}, domainError(http.StatusNotFound, "NOT_FOUND", "Message not found", nil)
	}
	return message, nil
}

func isBuyerSellerMessage(prop store.Property, message store.Message) bool {
	if prop.BuyerID == nil || prop.SellerID == nil || message.RecipientID == nil {
		return false
	}
	buyerToSeller := message.SenderID == *prop.BuyerID && *message.RecipientID == *prop.SellerID
	sellerToBuyer := message.SenderID == *prop.SellerID && *message.RecipientID == *prop.BuyerID
	return buyerToSeller || sellerToBuyer
}

func (s *Service) indexMessage(m store.Message) {
	if s.search == nil {
		return
	}
	content := m.FilteredContent
	if m.ApprovedContent != nil {
		content = *m.ApprovedContent
	}
	s.search.IndexMessage(search.MessageRecord{
		ID:             m.ID,
		Content:        content,
		PropertyID:     m.PropertyID,
		ApprovalStatus: m.ApprovalStatus,
	})
}
