// Package watchlist manages the ordered list of brokers a user follows.
package watchlist

import (
	"context"

	"broker-calls/apperr"
	"broker-calls/database"

	"go.uber.org/zap"
)

// Store is the persistence the watchlist service needs
type Store interface {
	GetWatchlist(ctx context.Context, userID int64) ([]string, error)
	SetWatchlist(ctx context.Context, userID int64, list []string) error
}

// Service reads and replaces watchlists
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a new watchlist service
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Get returns the user's watchlist, never nil
func (s *Service) Get(ctx context.Context, userID int64) ([]string, error) {
	list, err := s.store.GetWatchlist(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("Failed to load watchlist", err)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

// Set replaces the user's watchlist with list, keeping its order
func (s *Service) Set(ctx context.Context, userID int64, list []string) error {
	if list == nil {
		return apperr.Validation("Invalid watchlist format")
	}
	if err := s.store.SetWatchlist(ctx, userID, list); err != nil {
		if database.IsNotFound(err) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal("Failed to update watchlist", err)
	}
	s.logger.Debug("watchlist updated", zap.Int64("user_id", userID), zap.Int("size", len(list)))
	return nil
}
