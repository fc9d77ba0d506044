package pipeline

import (
	"context"

	"trendpulse/internal/cleaner"
	"trendpulse/internal/core"
	"trendpulse/internal/scorer"
	"trendpulse/internal/sources"
)

// TrendCollector gathers raw items from the configured source adapters
type TrendCollector interface {
	// Collect fetches from every adapter; failing adapters are reported in
	// the result, only cancellation fails the call
	Collect(ctx context.Context, markets, keywords []string) (*sources.CollectResult, error)

	// Adapters returns the adapter names in collection order
	Adapters() []string

	// Health returns per-adapter last success and last error
	Health() []sources.AdapterHealth
}

// TrendCleaner filters low-quality items and merges near-duplicates
type TrendCleaner interface {
	Clean(items []core.TrendItem) ([]core.CanonicalTrend, cleaner.Stats)
}

// TrendEnricher attaches entities, language and inferred market to one trend.
// core.ErrEnrichmentDegraded is returned alongside a usable result.
type TrendEnricher interface {
	Enrich(ctx context.Context, trend core.CanonicalTrend) (core.CanonicalTrend, error)
}

// TrendClassifier assigns topic and subtopic
type TrendClassifier interface {
	Apply(trend core.CanonicalTrend) core.CanonicalTrend
}

// TrendScorer computes the Comms Relevance Score for one trend
type TrendScorer interface {
	// MaxMarketRaw returns the batch normalizer for market impact
	MaxMarketRaw(trends []core.CanonicalTrend) float64

	// Score computes one breakdown against the batch normalizer
	Score(ctx context.Context, trend core.CanonicalTrend, maxRaw float64) core.ScoreBreakdown
}

// TrendSummarizer writes the comms-ready text for a scored trend
type TrendSummarizer interface {
	Summarize(trend core.CanonicalTrend, b core.ScoreBreakdown) core.TrendSummary
}

// Locker is a cross-process run lock (Redis SETNX in production)
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// BaselineUpdater folds a run's observed magnitude into the velocity baseline
type BaselineUpdater interface {
	Update(ctx context.Context, market, topic string, magnitude float64) (float64, error)
}

// EventPublisher emits committed results to downstream consumers
type EventPublisher interface {
	PublishRecords(ctx context.Context, runID string, records []core.TrendRecord) error
	PublishRun(ctx context.Context, run *core.RunSummary) error
	PublishCards(ctx context.Context, cards []core.PitchCard) error
}

// Alerter sends comms notifications for records and cards that need attention
type Alerter interface {
	NotifyTrends(ctx context.Context, records []core.TrendRecord) error
	NotifyCards(ctx context.Context, cards []core.PitchCard) error
}

// ErrorReporter forwards run failures to error tracking
type ErrorReporter interface {
	CaptureRun(ctx context.Context, run *core.RunSummary, err error)
	CaptureError(ctx context.Context, err error, tags map[string]string)
}

var (
	_ TrendScorer    = (*scorer.Scorer)(nil)
	_ TrendCollector = (*sources.Collector)(nil)
)
