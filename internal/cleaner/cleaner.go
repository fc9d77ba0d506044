package cleaner

import (
	"log/slog"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
	"trendpulse/internal/logger"
)

// Stats reports what a Clean call kept, dropped and merged.
type Stats struct {
	Input   int
	Skipped int
	Merged  int
	Output  int
	Reasons map[string]int
}

// Cleaner filters low-quality items and merges near-duplicates.
type Cleaner struct {
	threshold   float64
	titleWeight float64
	priority    map[string]int
	log         *slog.Logger
}

// New creates a cleaner from dedup calibration and source priorities.
func New(dedup config.Dedup, priority map[string]int) *Cleaner {
	if priority == nil {
		priority = map[string]int{}
	}
	return &Cleaner{
		threshold:   dedup.Threshold,
		titleWeight: dedup.TitleWeight,
		priority:    priority,
		log:         logger.With("cleaner"),
	}
}

// Threshold returns the merge threshold in use.
func (c *Cleaner) Threshold() float64 { return c.threshold }

// Clean drops items failing the quality check and merges the rest into
// canonical trends. Items are never modified.
func (c *Cleaner) Clean(items []core.TrendItem) ([]core.CanonicalTrend, Stats) {
	stats := Stats{Input: len(items), Reasons: make(map[string]int)}

	wrapped := make([]core.CanonicalTrend, 0, len(items))
	for _, item := range items {
		if reason := QualityCheck(item); reason != "" {
			stats.Skipped++
			stats.Reasons[reason]++
			continue
		}
		wrapped = append(wrapped, c.wrap(item.WithID()))
	}

	trends, merged := c.Merge(wrapped)
	stats.Merged = merged
	stats.Output = len(trends)

	c.log.Info("Cleaning completed",
		"input", stats.Input,
		"skipped", stats.Skipped,
		"merged", stats.Merged,
		"canonical", stats.Output,
	)
	return trends, stats
}
