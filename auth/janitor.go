package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically removes expired entries from the revocation list
type Janitor struct {
	revocations *Revocations
	interval    time.Duration
	logger      *zap.Logger
}

// NewJanitor creates a janitor that purges every interval
func NewJanitor(revocations *Revocations, interval time.Duration, logger *zap.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		revocations: revocations,
		interval:    interval,
		logger:      logger,
	}
}

// Run purges on every tick until ctx is cancelled
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("token janitor started", zap.Duration("interval", j.interval))

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("token janitor stopped")
			return
		case <-ticker.C:
			j.PurgeOnce(ctx)
		}
	}
}

// PurgeOnce runs a single purge and returns how many entries were removed
func (j *Janitor) PurgeOnce(ctx context.Context) int64 {
	n, err := j.revocations.Purge(ctx)
	if err != nil {
		j.logger.Error("failed to purge revoked tokens", zap.Error(err))
		return 0
	}
	if n > 0 {
		j.logger.Info("purged expired revoked tokens", zap.Int64("count", n))
	}
	return n
}
