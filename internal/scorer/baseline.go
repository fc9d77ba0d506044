package scorer

import (
	"context"
	"strings"
)

// BaselineProvider returns the rolling magnitude baseline for a market and
// topic. Zero means no baseline is known yet.
type BaselineProvider interface {
	Baseline(ctx context.Context, market, topic string) (float64, error)
}

// StaticBaselines is an in-memory provider keyed by "MARKET|topic".
type StaticBaselines map[string]float64

// BaselineKey builds the lookup key for a market and topic.
func BaselineKey(market, topic string) string {
	return strings.ToUpper(market) + "|" + topic
}

// Baseline implements BaselineProvider.
func (s StaticBaselines) Baseline(ctx context.Context, market, topic string) (float64, error) {
	return s[BaselineKey(market, topic)], nil
}

// ChainBaselines asks each provider in turn and returns the first positive
// baseline. Provider errors are skipped unless every provider fails.
type ChainBaselines []BaselineProvider

// Baseline implements BaselineProvider.
func (c ChainBaselines) Baseline(ctx context.Context, market, topic string) (float64, error) {
	var firstErr error
	failed := 0
	for _, p := range c {
		if p == nil {
			failed++
			continue
		}
		value, err := p.Baseline(ctx, market, topic)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed++
			continue
		}
		if value > 0 {
			return value, nil
		}
	}
	if failed == len(c) && firstErr != nil {
		return 0, firstErr
	}
	return 0, nil
}
