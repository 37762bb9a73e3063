// Package notifications stores per-user notifications and pushes them to
// connected clients.
package notifications

import (
	"context"
	"fmt"

	"broker-calls/apperr"
	"broker-calls/database"
	models "broker-calls/database/models_pkg"

	"go.uber.org/zap"
)

// EventNotification is the realtime event name for a new notification
const EventNotification = "notification"

// Store is the persistence the notification service needs
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) (*models.Notification, error)
}

// Publisher delivers an event to a user's live connections
type Publisher interface {
	Publish(userID int64, event string, payload interface{})
}

// Service creates and lists notifications
type Service struct {
	store     Store
	publisher Publisher
	logger    *zap.Logger
}

// NewService creates a new notification service. publisher may be nil.
func NewService(store Store, publisher Publisher, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// StatusMessage renders the text shown to a call's creator after moderation
func StatusMessage(call *models.Call) string {
	switch call.Status {
	case models.StatusApproved:
		return fmt.Sprintf("Your call on %s has been approved.", call.Stock)
	case models.StatusRejected:
		return fmt.Sprintf("Your call on %s has been rejected.", call.Stock)
	default:
		return fmt.Sprintf("Your call on %s is now %s.", call.Stock, call.Status)
	}
}

// NotifyCallStatus records a CALL_STATUS notification for the call's creator
func (s *Service) NotifyCallStatus(ctx context.Context, call *models.Call) error {
	n := &models.Notification{
		UserID:  call.CreatorID,
		CallID:  call.ID,
		Type:    models.NotificationTypeCallStatus,
		Message: StatusMessage(call),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(n.UserID, EventNotification, n)
	}

	s.logger.Debug("notification created",
		zap.Int64("user_id", n.UserID),
		zap.Int64("call_id", n.CallID),
	)
	return nil
}

// List returns the user's notifications, newest first
func (s *Service) List(ctx context.Context, userID int64) ([]models.Notification, error) {
	list, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to load notifications", err)
	}
	return list, nil
}

// MarkRead flags one of the user's notifications as read
func (s *Service) MarkRead(ctx context.Context, userID, id int64) (*models.Notification, error) {
	n, err := s.store.MarkRead(ctx, userID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("Notification not found")
		}
		return nil, apperr.Internal("Failed to update notification", err)
	}
	return n, nil
}
