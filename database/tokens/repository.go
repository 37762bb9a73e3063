package tokens

import (
	"context"
	"fmt"
	"time"

	models "broker-calls/database/models_pkg"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles the revoked-token table. Tokens are stored as their sha256 digest.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new token blacklist repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Revoke records a token digest until expiresAt. Revoking twice is a no-op.
func (r *Repository) Revoke(ctx context.Context, digest string, expiresAt time.Time) error {
	entry := models.BlacklistedToken{Token: digest, ExpiresAt: expiresAt}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token"}}, DoNothing: true}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("RevokeToken: %w", err)
	}
	return nil
}

// IsRevoked reports whether the digest is on the list and not yet expired
func (r *Repository) IsRevoked(ctx context.Context, digest string, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BlacklistedToken{}).
		Where("token = ? AND expires_at > ?", digest, now).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("IsTokenRevoked: %w", err)
	}
	return count > 0, nil
}

// PurgeExpired deletes entries whose expiry has passed and returns how many went
func (r *Repository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.BlacklistedToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("PurgeExpiredTokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
