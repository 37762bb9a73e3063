// Package calls implements the call lifecycle: submission, moderation,
// public listings, broker statistics and the performance chart.
package calls

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"broker-calls/apperr"
	"broker-calls/database"
	models "broker-calls/database/models_pkg"
	"broker-calls/helpers"
	"broker-calls/market"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Store is the persistence the call service needs
type Store interface {
	Create(ctx context.Context, call *models.Call) error
	FindByID(ctx context.Context, id int64) (*models.Call, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*models.Call, error)
	Save(ctx context.Context, call *models.Call) error
	ListByStatus(ctx context.Context, status string) ([]models.Call, error)
	ListExcludingStatus(ctx context.Context, status, broker string) ([]models.Call, error)
	ListByCreator(ctx context.Context, creatorID int64) ([]models.Call, error)
	ListByBroker(ctx context.Context, broker string) ([]models.Call, error)
}

// Notifier is told when an admin moves a call
type Notifier interface {
	NotifyCallStatus(ctx context.Context, call *models.Call) error
}

// HistorySource provides daily closes for the performance chart
type HistorySource interface {
	History(ctx context.Context, symbol string, from, to time.Time) ([]market.DailyClose, error)
}

// CreateInput carries a call submission. Status is deliberately absent and
// Attachments only ever hold files this server stored for the request.
type CreateInput struct {
	Stock          string
	Broker         string
	Action         string
	Type           string
	Target         float64
	StopLoss       float64
	CurrentPrice   float64
	EntryDate      string
	ExpiryDate     string
	Rationale      string
	RiskReward     string
	Tags           []string
	PriceHistory   []float64
	OutcomeHistory []models.OutcomeEntry
	News           []models.NewsItem
	Comments       []models.Comment
	Attachments    []models.Attachment
}

// InputFromFields decodes a submission from raw request fields. Array fields
// that fail to parse become empty; status and attachments fields are ignored.
func InputFromFields(raw RawFields) CreateInput {
	in := CreateInput{
		Stock:        raw.String("stock"),
		Broker:       raw.String("broker"),
		Action:       strings.ToUpper(raw.String("action")),
		Type:         raw.String("type"),
		Target:       raw.Float("target"),
		StopLoss:     raw.Float("stopLoss"),
		CurrentPrice: raw.Float("currentPrice"),
		EntryDate:    raw.String("entryDate"),
		ExpiryDate:   raw.String("expiryDate"),
		Rationale:    raw.String("rationale"),
		RiskReward:   raw.String("riskReward"),
	}
	in.Tags, _ = ParseOrDefault(raw["tags"], []string{})
	in.PriceHistory, _ = ParseOrDefault(raw["priceHistory"], []float64{})
	in.OutcomeHistory, _ = ParseOrDefault(raw["outcomeHistory"], []models.OutcomeEntry{})
	in.News, _ = ParseOrDefault(raw["news"], []models.NewsItem{})
	in.Comments, _ = ParseOrDefault(raw["comments"], []models.Comment{})
	return in
}

// Validate returns one entry per missing or malformed field
func (in CreateInput) Validate() []apperr.FieldError {
	var fields []apperr.FieldError
	missing := func(field string) {
		fields = append(fields, apperr.FieldError{Field: field, Message: field + " is required"})
	}

	if in.Stock == "" {
		missing("stock")
	}
	if in.Broker == "" {
		missing("broker")
	}
	switch in.Action {
	case "":
		missing("action")
	case models.ActionBuy, models.ActionSell:
	default:
		fields = append(fields, apperr.FieldError{Field: "action", Message: "action must be BUY or SELL"})
	}
	switch in.Type {
	case "", models.TypeEquity, models.TypeDerivative:
	default:
		fields = append(fields, apperr.FieldError{Field: "type", Message: "type must be Equity or Derivative"})
	}
	if in.Target == 0 {
		missing("target")
	}
	if in.StopLoss == 0 {
		missing("stopLoss")
	}
	if in.EntryDate == "" {
		missing("entryDate")
	}
	if in.ExpiryDate == "" {
		missing("expiryDate")
	}
	if in.CurrentPrice == 0 {
		missing("currentPrice")
	}
	return fields
}

// RecentCall is the compact call shape on the broker page
type RecentCall struct {
	Stock  string `json:"stock"`
	Action string `json:"action"`
	Status string `json:"status"`
	Date   string `json:"date"`
	Type   string `json:"type"`
}

// BrokerStats summarises a broker's calls
type BrokerStats struct {
	Name        string       `json:"name"`
	Logo        string       `json:"logo"`
	TotalCalls  int          `json:"totalCalls"`
	RecentCalls []RecentCall `json:"recentCalls"`
}

// Service handles the call lifecycle
type Service struct {
	store    Store
	notifier Notifier
	history  HistorySource
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new call service
func NewService(store Store, notifier Notifier, history HistorySource, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		history:  history,
		logger:   logger,
		now:      time.Now,
	}
}

// Create stores a new call for the creator. It always starts pending verification.
func (s *Service) Create(ctx context.Context, creator *models.User, in CreateInput) (*models.Call, error) {
	if fields := in.Validate(); len(fields) > 0 {
		return nil, apperr.Validation("Validation failed", fields...)
	}

	callType := in.Type
	if callType == "" {
		callType = models.TypeEquity
	}

	call := &models.Call{
		Stock:          in.Stock,
		Broker:         in.Broker,
		CreatorID:      creator.ID,
		Action:         in.Action,
		Type:           callType,
		Status:         models.StatusPendingVerification,
		Target:         in.Target,
		StopLoss:       in.StopLoss,
		EntryDate:      in.EntryDate,
		ExpiryDate:     in.ExpiryDate,
		CurrentPrice:   in.CurrentPrice,
		Rationale:      in.Rationale,
		RiskReward:     in.RiskReward,
		Tags:           pq.StringArray(nonNil(in.Tags)),
		PriceHistory:   nonNil(in.PriceHistory),
		OutcomeHistory: nonNil(in.OutcomeHistory),
		News:           nonNil(in.News),
		Comments:       nonNil(in.Comments),
		Attachments:    nonNil(in.Attachments),
	}

	if err := s.store.Create(ctx, call); err != nil {
		return nil, apperr.Internal("Failed to create call", err)
	}

	s.logger.Info("call submitted",
		zap.Int64("call_id", call.ID),
		zap.Int64("creator_id", creator.ID),
		zap.String("stock", call.Stock),
	)
	return call, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Approve moves a pending call to APPROVED and notifies its creator
func (s *Service) Approve(ctx context.Context, id int64) (*models.Call, error) {
	return s.moderate(ctx, id, models.StatusApproved)
}

// Reject moves a pending call to REJECTED and notifies its creator
func (s *Service) Reject(ctx context.Context, id int64) (*models.Call, error) {
	return s.moderate(ctx, id, models.StatusRejected)
}

// moderate applies an admin decision. The status write and the notification
// are separate writes; repeating a decision creates another notification.
func (s *Service) moderate(ctx context.Context, id int64, status string) (*models.Call, error) {
	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("Call not found")
		}
		return nil, apperr.Internal("Failed to load call", err)
	}

	if !CanTransition(current.Status, status) {
		return nil, apperr.Conflict(fmt.Sprintf("Cannot move a call from %s to %s", current.Status, status))
	}

	call, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("Call not found")
		}
		return nil, apperr.Internal("Failed to update call", err)
	}

	if err := s.notifier.NotifyCallStatus(ctx, call); err != nil {
		return nil, apperr.Internal("Failed to notify call creator", err)
	}

	s.logger.Info("call moderated", zap.Int64("call_id", id), zap.String("status", status))
	return call, nil
}

func views(list []models.Call) []models.CallView {
	out := make([]models.CallView, len(list))
	for i := range list {
		out[i] = list[i].View()
	}
	return out
}

// ListPending returns the moderation queue with creators joined
func (s *Service) ListPending(ctx context.Context) ([]models.CallView, error) {
	list, err := s.store.ListByStatus(ctx, models.StatusPendingVerification)
	if err != nil {
		return nil, apperr.Internal("Failed to list pending calls", err)
	}
	return views(list), nil
}

// ListPublic returns every moderated call, optionally for one broker
func (s *Service) ListPublic(ctx context.Context, broker string) ([]models.CallView, error) {
	list, err := s.store.ListExcludingStatus(ctx, models.StatusPendingVerification, strings.TrimSpace(broker))
	if err != nil {
		return nil, apperr.Internal("Failed to list calls", err)
	}
	return views(list), nil
}

// ListMine returns the user's own calls, newest first
func (s *Service) ListMine(ctx context.Context, userID int64) ([]models.Call, error) {
	list, err := s.store.ListByCreator(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to list calls", err)
	}
	return list, nil
}

// BrokerStats summarises a broker's calls. Unknown brokers are NotFound.
func (s *Service) BrokerStats(ctx context.Context, name string) (*BrokerStats, error) {
	list, err := s.store.ListByBroker(ctx, name)
	if err != nil {
		return nil, apperr.Internal("Failed to load broker calls", err)
	}
	if len(list) == 0 {
		return nil, apperr.NotFound("No calls found for this broker")
	}

	sort.SliceStable(list, func(i, j int) bool {
		return helpers.NewestFirst(list[i].EntryDate, list[j].EntryDate)
	})

	n := len(list)
	if n > database.RecentCallsLimit {
		n = database.RecentCallsLimit
	}
	recent := make([]RecentCall, 0, n)
	for _, c := range list[:n] {
		recent = append(recent, RecentCall{
			Stock:  c.Stock,
			Action: c.Action,
			Status: c.Status,
			Date:   c.EntryDate,
			Type:   c.Type,
		})
	}

	return &BrokerStats{
		Name:        name,
		Logo:        BrokerLogo(name),
		TotalCalls:  len(list),
		RecentCalls: recent,
	}, nil
}

// Performance returns roughly six months of daily closes for the call's stock
func (s *Service) Performance(ctx context.Context, id int64) ([]market.DailyClose, error) {
	call, err := s.store.FindByID(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("Call not found")
		}
		return nil, apperr.Internal("Failed to load call", err)
	}

	to := s.now()
	from := to.AddDate(0, 0, -database.PerformanceHistoryDays)
	points, err := s.history.History(ctx, call.Stock, from, to)
	if err != nil {
		s.logger.Warn("failed to fetch price history",
			zap.Int64("call_id", id),
			zap.String("stock", call.Stock),
			zap.Error(err),
		)
		return nil, apperr.Upstream("Failed to fetch live data", err)
	}
	return points, nil
}
