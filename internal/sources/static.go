package sources

import (
	"context"

	"trendpulse/internal/core"
)

// StaticAdapter serves a fixed set of items. Used for offline runs and tests.
type StaticAdapter struct {
	name    string
	items   []core.TrendItem
	err     error
	healthy bool
}

// NewStaticAdapter creates an adapter that always returns items.
func NewStaticAdapter(name string, items []core.TrendItem) *StaticAdapter {
	return &StaticAdapter{name: name, items: items, healthy: true}
}

// NewFailingAdapter creates an adapter whose Fetch always returns err.
func NewFailingAdapter(name string, err error) *StaticAdapter {
	return &StaticAdapter{name: name, err: err}
}

// Name returns the adapter name.
func (s *StaticAdapter) Name() string { return s.name }

// Fetch returns a copy of the configured items.
func (s *StaticAdapter) Fetch(ctx context.Context, markets, keywords []string) ([]core.TrendItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]core.TrendItem, 0, len(s.items))
	for _, item := range s.items {
		if item.Market != "" && len(markets) > 0 && !containsFold(markets, item.Market) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// HealthCheck returns the configured health.
func (s *StaticAdapter) HealthCheck(ctx context.Context) bool { return s.healthy }
