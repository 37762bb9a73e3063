package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"broker-calls/calls"
	models "broker-calls/database/models_pkg"
	"broker-calls/helpers"
	"broker-calls/market"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PriceTrackerLeaseKey is the Redis key guarding reconciliation runs
const PriceTrackerLeaseKey = "price-tracker:lease"

// TrackedCallStore is the persistence the price tracker needs
type TrackedCallStore interface {
	ListByStatus(ctx context.Context, status string) ([]models.Call, error)
	Save(ctx context.Context, call *models.Call) error
}

// QuoteSource fetches a live quote
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (*market.Quote, error)
}

// RunSummary describes one reconciliation run
type RunSummary struct {
	Checked     int
	TargetHit   int
	StopLossHit int
	Unchanged   int
	Failed      int
	Skipped     bool
}

// PriceTracker reconciles approved calls against live prices on a cron schedule
type PriceTracker struct {
	calls    TrackedCallStore
	quotes   QuoteSource
	lease    Lease
	schedule cron.Schedule
	logger   *zap.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewPriceTracker creates a tracker running on a standard 5-field cron spec
func NewPriceTracker(store TrackedCallStore, quotes QuoteSource, lease Lease, spec string, logger *zap.Logger) (*PriceTracker, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid price tracker schedule %q: %w", spec, err)
	}
	if lease == nil {
		lease = NewLocalLease()
	}
	return &PriceTracker{
		calls:    store,
		quotes:   quotes,
		lease:    lease,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
		after:    time.After,
		done:     make(chan struct{}),
	}, nil
}

// NextRun returns the first scheduled run strictly after from
func (pt *PriceTracker) NextRun(from time.Time) time.Time {
	return pt.schedule.Next(from)
}

// Start runs the schedule loop until ctx is cancelled or Stop is called
func (pt *PriceTracker) Start(ctx context.Context) {
	pt.logger.Info("price tracker started")

	for {
		now := pt.now()
		next := pt.NextRun(now)
		pt.logger.Debug("next price reconciliation scheduled", zap.Time("at", next))

		select {
		case <-pt.after(next.Sub(now)):
			pt.RunOnce(ctx)
		case <-ctx.Done():
			pt.logger.Info("price tracker stopped")
			return
		case <-pt.done:
			pt.logger.Info("price tracker stopped")
			return
		}
	}
}

// Stop stops the schedule loop
func (pt *PriceTracker) Stop() {
	pt.stopOnce.Do(func() { close(pt.done) })
}

// RunOnce reconciles every approved call once. A failure on one call is logged
// and the rest are still processed.
func (pt *PriceTracker) RunOnce(ctx context.Context) RunSummary {
	var summary RunSummary

	release, ok := pt.lease.Acquire(ctx)
	if !ok {
		pt.logger.Warn("price reconciliation already running, skipping")
		summary.Skipped = true
		return summary
	}
	defer release()

	started := pt.now()
	approved, err := pt.calls.ListByStatus(ctx, models.StatusApproved)
	if err != nil {
		pt.logger.Error("failed to load approved calls", zap.Error(err))
		return summary
	}

	for i := range approved {
		if ctx.Err() != nil {
			pt.logger.Warn("price reconciliation interrupted", zap.Int("remaining", len(approved)-i))
			break
		}
		pt.reconcile(ctx, &approved[i], &summary)
	}

	pt.logger.Info("price reconciliation finished",
		zap.Int("checked", summary.Checked),
		zap.Int("target_hit", summary.TargetHit),
		zap.Int("stop_loss_hit", summary.StopLossHit),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("failed", summary.Failed),
		zap.Duration("took", pt.now().Sub(started)),
	)
	return summary
}

func (pt *PriceTracker) reconcile(ctx context.Context, call *models.Call, summary *RunSummary) {
	summary.Checked++
	log := pt.logger.With(zap.Int64("call_id", call.ID), zap.String("stock", call.Stock))

	quote, err := pt.quotes.Quote(ctx, call.Stock)
	if err != nil {
		log.Warn("failed to fetch quote", zap.Error(err))
		summary.Failed++
		return
	}

	status, changed := calls.Reconcile(call, quote)
	call.CurrentPrice = calls.RoundPrice(quote.RegularMarketPrice)
	call.Creator = nil
	if changed {
		call.Status = status
		call.OutcomeHistory = append(call.OutcomeHistory, models.OutcomeEntry{
			Date:   helpers.Timestamp(pt.now()),
			Status: status,
		})
	}

	if err := pt.calls.Save(ctx, call); err != nil {
		log.Error("failed to save call", zap.Error(err))
		summary.Failed++
		return
	}

	switch {
	case !changed:
		summary.Unchanged++
	case status == models.StatusTargetHit:
		summary.TargetHit++
		log.Info("target hit", zap.Float64("day_high", quote.RegularMarketDayHigh), zap.Float64("target", call.Target))
	case status == models.StatusStopLossHit:
		summary.StopLossHit++
		log.Info("stop loss hit", zap.Float64("day_low", quote.RegularMarketDayLow), zap.Float64("stop_loss", call.StopLoss))
	}
}
