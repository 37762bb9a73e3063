package calls

import (
	models "broker-calls/database/models_pkg"
	"broker-calls/market"

	"github.com/shopspring/decimal"
)

// transitions lists the forward moves out of each status. Every status may
// also move to itself.
var transitions = map[string][]string{
	models.StatusPendingVerification: {models.StatusApproved, models.StatusRejected},
	models.StatusApproved:            {models.StatusTargetHit, models.StatusStopLossHit, models.StatusActive},
	models.StatusActive:              {models.StatusTargetHit, models.StatusStopLossHit},
	models.StatusRejected:            {},
	models.StatusTargetHit:           {},
	models.StatusStopLossHit:         {},
}

// ValidStatus reports whether s is a known call status
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a call may move from one status to another
func CanTransition(from, to string) bool {
	if !ValidStatus(from) || !ValidStatus(to) {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Reconcile decides the outcome of an approved call against a live quote.
// A day high at or above target wins over a day low at or below stop-loss.
// The call's action is not consulted.
func Reconcile(call *models.Call, quote *market.Quote) (string, bool) {
	high := decimal.NewFromFloat(quote.RegularMarketDayHigh)
	low := decimal.NewFromFloat(quote.RegularMarketDayLow)
	target := decimal.NewFromFloat(call.Target)
	stopLoss := decimal.NewFromFloat(call.StopLoss)

	switch {
	case high.GreaterThanOrEqual(target):
		return models.StatusTargetHit, true
	case low.LessThanOrEqual(stopLoss):
		return models.StatusStopLossHit, true
	default:
		return call.Status, false
	}
}

// RoundPrice rounds to the two decimals the price columns keep
func RoundPrice(p float64) float64 {
	f, _ := decimal.NewFromFloat(p).Round(2).Float64()
	return f
}
