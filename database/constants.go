package database

import "time"

// Connection pool settings
const (
	MaxOpenConns    = 25
	MaxIdleConns    = 10
	ConnMaxLifetime = 5 * time.Minute
	ConnMaxIdleTime = 2 * time.Minute
)

// Query limits
const (
	// RecentCallsLimit caps the recentCalls list on broker stats
	RecentCallsLimit = 10

	// PerformanceHistoryDays is the look-back window for the performance chart
	PerformanceHistoryDays = 180
)
