package calls

import (
	"context"
	"errors"
	"fmt"

	"broker-calls/database"
	models "broker-calls/database/models_pkg"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles database operations for broker calls
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new calls repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// withCreator joins the creating user's public fields
func withCreator(db *gorm.DB) *gorm.DB {
	return db.Preload("Creator", func(tx *gorm.DB) *gorm.DB {
		return tx.Select("id", "name", "email")
	})
}

// Create persists a new call
func (r *Repository) Create(ctx context.Context, call *models.Call) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(call).Error; err != nil {
		return fmt.Errorf("CreateCall: %w", err)
	}
	return nil
}

// FindByID retrieves a call by primary key
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Call, error) {
	var call models.Call
	err := r.db.WithContext(ctx).First(&call, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.NewNotFoundErrorWithID("call", id)
	}
	if err != nil {
		return nil, fmt.Errorf("FindCallByID: %w", err)
	}
	return &call, nil
}

// UpdateStatus sets the status of a single call and returns the updated row
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string) (*models.Call, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Call{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return nil, fmt.Errorf("UpdateCallStatus: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, database.NewNotFoundErrorWithID("call", id)
	}
	return r.FindByID(ctx, id)
}

// Save writes every column of an existing call, leaving the creator row alone
func (r *Repository) Save(ctx context.Context, call *models.Call) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(call).Error; err != nil {
		return fmt.Errorf("SaveCall: %w", err)
	}
	return nil
}

// ListByStatus returns calls in the given status with the creator joined
func (r *Repository) ListByStatus(ctx context.Context, status string) ([]models.Call, error) {
	var calls []models.Call
	err := withCreator(r.db.WithContext(ctx)).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&calls).Error
	if err != nil {
		return nil, fmt.Errorf("ListCallsByStatus: %w", err)
	}
	return calls, nil
}

// ListExcludingStatus returns every call not in the given status, optionally for one broker
func (r *Repository) ListExcludingStatus(ctx context.Context, status, broker string) ([]models.Call, error) {
	var calls []models.Call
	query := withCreator(r.db.WithContext(ctx)).
		Where("status <> ?", status).
		Order("created_at DESC")

	if broker != "" {
		query = query.Where("broker = ?", broker)
	}

	if err := query.Find(&calls).Error; err != nil {
		return nil, fmt.Errorf("ListCallsExcludingStatus: %w", err)
	}
	return calls, nil
}

// ListByCreator returns the user's calls, newest first
func (r *Repository) ListByCreator(ctx context.Context, creatorID int64) ([]models.Call, error) {
	var calls []models.Call
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&calls).Error
	if err != nil {
		return nil, fmt.Errorf("ListCallsByCreator: %w", err)
	}
	return calls, nil
}

// ListByBroker returns every call attributed to a broker, whatever its status
func (r *Repository) ListByBroker(ctx context.Context, broker string) ([]models.Call, error) {
	var calls []models.Call
	err := r.db.WithContext(ctx).
		Where("broker = ?", broker).
		Find(&calls).Error
	if err != nil {
		return nil, fmt.Errorf("ListCallsByBroker: %w", err)
	}
	return calls, nil
}
