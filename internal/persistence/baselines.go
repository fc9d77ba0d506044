package persistence

import (
	"context"
	"time"
)

// HistoryBaselines serves velocity baselines from the trend history log.
type HistoryBaselines struct {
	Trends   TrendRepository
	Lookback time.Duration
	Now      func() time.Time
}

// Baseline returns the mean magnitude recorded for the market and topic over
// the lookback window. Zero means no history.
func (h HistoryBaselines) Baseline(ctx context.Context, market, topic string) (float64, error) {
	lookback := h.Lookback
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	return h.Trends.Baseline(ctx, market, topic, now().Add(-lookback))
}
