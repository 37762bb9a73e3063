package users

import (
	"context"
	"errors"
	"fmt"

	"broker-calls/database"
	models "broker-calls/database/models_pkg"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Repository handles database operations for user accounts
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user. A duplicate email yields a ConflictError.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	if user.Watchlist == nil {
		user.Watchlist = pq.StringArray{}
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return database.NewConflictError("user", "email")
		}
		return fmt.Errorf("CreateUser: %w", err)
	}
	return nil
}

// FindByEmail looks a user up by normalised email
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.NewNotFoundError("user")
	}
	if err != nil {
		return nil, fmt.Errorf("FindUserByEmail: %w", err)
	}
	return &user, nil
}

// FindByID retrieves a user by primary key
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.NewNotFoundErrorWithID("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("FindUserByID: %w", err)
	}
	return &user, nil
}

// GetWatchlist returns the user's watchlist in stored order
func (r *Repository) GetWatchlist(ctx context.Context, userID int64) ([]string, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Watchlist == nil {
		return []string{}, nil
	}
	return []string(user.Watchlist), nil
}

// SetWatchlist replaces the user's watchlist wholesale
func (r *Repository) SetWatchlist(ctx context.Context, userID int64, list []string) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("watchlist", pq.StringArray(list))
	if result.Error != nil {
		return fmt.Errorf("SetWatchlist: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return database.NewNotFoundErrorWithID("user", userID)
	}
	return nil
}
