// Package observability reports run failures and panics to Sentry.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
)

// Tracker implements error tracking via Sentry. A nil Tracker is a no-op.
type Tracker struct {
	hub *sentry.Hub
}

// New creates a tracker, or returns nil when no DSN is configured.
func New(cfg config.Observability, environment string) (*Tracker, error) {
	if cfg.SentryDSN == "" {
		return nil, nil
	}
	return NewWithOptions(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: environment,
		Release:     "trendpulse",
	})
}

// NewWithOptions creates a tracker with its own hub.
func NewWithOptions(opts sentry.ClientOptions) (*Tracker, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to init sentry: %w", err)
	}
	return &Tracker{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// CaptureError sends an error to Sentry
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) {
	if t == nil || err == nil {
		return
	}
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	hub.CaptureException(err)
}

// CaptureRun reports a failed run with its counters attached.
func (t *Tracker) CaptureRun(ctx context.Context, run *core.RunSummary, err error) {
	if t == nil || run == nil || run.Status == core.RunSuccess {
		return
	}
	if err == nil {
		err = fmt.Errorf("run %s finished with status %s", run.RunID, run.Status)
	}
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("run_id", run.RunID)
		scope.SetTag("status", string(run.Status))
		scope.SetContext("run", sentry.Context{
			"collected": run.Collected,
			"processed": run.Processed,
			"failed":    run.Failed,
			"written":   run.Written,
			"reasons":   run.Reasons,
		})
	})
	hub.CaptureException(err)
}

// AddBreadcrumb records a pipeline stage transition
func (t *Tracker) AddBreadcrumb(message, category string, data map[string]interface{}) {
	if t == nil {
		return
	}
	t.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Message:  message,
		Category: category,
		Level:    sentry.LevelInfo,
		Data:     data,
	}, nil)
}

// Recover reports a recovered panic value.
func (t *Tracker) Recover(recovered any) {
	if t == nil || recovered == nil {
		return
	}
	t.hub.Recover(recovered)
}

// Flush waits for pending events to be sent
func (t *Tracker) Flush(timeout time.Duration) bool {
	if t == nil {
		return true
	}
	return t.hub.Flush(timeout)
}
