package notifications

import (
	"context"
	"errors"
	"fmt"

	"broker-calls/database"
	models "broker-calls/database/models_pkg"

	"gorm.io/gorm"
)

// Repository handles database operations for user notifications
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new notifications repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a notification
func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("CreateNotification: %w", err)
	}
	return nil
}

// ListByUser returns the user's notifications, newest first
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("ListNotifications: %w", err)
	}
	return list, nil
}

// MarkRead flags a notification as read. Only the owner can mark it.
func (r *Repository) MarkRead(ctx context.Context, userID, id int64) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
			return err
		}
		n.Read = true
		return tx.Model(&n).Update("read", true).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.NewNotFoundErrorWithID("notification", id)
	}
	if err != nil {
		return nil, fmt.Errorf("MarkNotificationRead: %w", err)
	}
	return &n, nil
}
