package persistence

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult reports what a retention pass removed
type CleanupResult struct {
	Cutoff  time.Time `json:"cutoff"`
	Trends  int64     `json:"trends"`
	Signals int64     `json:"signals"`
}

// Cleanup deletes trend records, history and signals older than the
// retention period.
func Cleanup(ctx context.Context, db Database, retention time.Duration, now time.Time) (*CleanupResult, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	result := &CleanupResult{Cutoff: now.Add(-retention).UTC()}

	trends, err := db.Trends().DeleteOlderThan(ctx, result.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to clean trends: %w", err)
	}
	result.Trends = trends

	signals, err := db.Signals().DeleteOlderThan(ctx, result.Cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to clean signals: %w", err)
	}
	result.Signals = signals
	return result, nil
}
