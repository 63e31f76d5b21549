package app

import (
	"context"
	"net/http"

	"conveyo/api/internal/rbac"
	"conveyo/api/internal/store"
)

// PropertyNotifications lists the caller's notifications scoped to a
// property; unreadOnly narrows to unread ones.
func (s *Service) PropertyNotifications(ctx context.Context, session Session, propertyID int64, unreadOnly bool) ([]store.Notification, error) {
	if _, err := s.authorizeProperty(ctx, propertyID, session.UserID, rbac.OpNotifications); err != nil {
		return nil, err
	}
	return s.store.ListNotifications(ctx, session.UserID, propertyID, unreadOnly)
}

// Notifications lists everything addressed to the caller across properties.
func (s *Service) Notifications(ctx context.Context, session Session, unreadOnly bool) ([]store.Notification, error) {
	return s.store.ListNotifications(ctx, session.UserID, 0, unreadOnly)
}

// MarkNotificationRead flips the read flag. Only the addressee can do it.
func (s *Service) MarkNotificationRead(ctx context.Context, session Session, notificationID int64) error {
	applied, err := s.store.MarkNotificationRead(ctx, notificationID, session.UserID)
	if err != nil {
		return err
	}
	if !applied {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Notification not found", nil)
	}
	return nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, session Session) error {
	return s.store.MarkAllNotificationsRead(ctx, session.UserID)
}
