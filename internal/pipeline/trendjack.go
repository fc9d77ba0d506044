package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"trendpulse/internal/core"
	"trendpulse/internal/logger"
	"trendpulse/internal/metrics"
	"trendpulse/internal/persistence"
	"trendpulse/internal/pitch"
	"trendpulse/internal/sources"
)

// StyleSource fetches fresh style signals for the given markets
type StyleSource interface {
	Fetch(ctx context.Context, markets []string) ([]core.StyleSignal, error)
}

// BundleSource loads exported artist spikes and style signals
type BundleSource interface {
	Load(ctx context.Context) (*sources.SignalBundle, error)
}

// CardGenerator correlates signals into pitch cards
type CardGenerator interface {
	Generate(spikes []core.ArtistSpike, styles []core.StyleSignal, markets []string, now time.Time) ([]core.PitchCard, pitch.Stats)
}

// TrendJackConfig holds refresh settings
type TrendJackConfig struct {
	Markets []string
	Window  time.Duration
}

// RefreshResult reports what a refresh stored
type RefreshResult struct {
	Spikes      int              `json:"spikes"`
	Styles      int              `json:"styles"`
	Cards       []core.PitchCard `json:"cards"`
	Stats       pitch.Stats      `json:"stats"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// TrendJack refreshes the stored pitch cards from artist and style signals
type TrendJack struct {
	styles    StyleSource  // optional
	bundle    BundleSource // optional
	generator CardGenerator
	db        persistence.Database
	hooks     Hooks
	config    TrendJackConfig
	log       *slog.Logger
	now       func() time.Time

	running atomic.Bool
}

// NewTrendJack creates a refresher. styles and bundle may be nil; signals
// already in the store are always used.
func NewTrendJack(styles StyleSource, bundle BundleSource, generator CardGenerator, db persistence.Database, cfg TrendJackConfig, hooks Hooks) (*TrendJack, error) {
	if generator == nil || db == nil {
		return nil, fmt.Errorf("%w: trend-jack needs a generator and a database", core.ErrConfigurationInvalid)
	}
	if cfg.Window <= 0 {
		cfg.Window = 48 * time.Hour
	}
	return &TrendJack{
		styles:    styles,
		bundle:    bundle,
		generator: generator,
		db:        db,
		hooks:     hooks,
		config:    cfg,
		log:       logger.With("trendjack"),
		now:       time.Now,
	}, nil
}

// Refresh loads signals, generates cards and replaces the stored set.
// Unavailable signal sources are logged and skipped.
func (t *TrendJack) Refresh(ctx context.Context) (*RefreshResult, error) {
	if !t.running.CompareAndSwap(false, true) {
		return nil, core.ErrRunInProgress
	}
	defer t.running.Store(false)

	now := t.now().UTC()

	if err := t.ingest(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	since := now.Add(-t.config.Window)
	spikes, err := t.db.Signals().ArtistSpikes(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load artist spikes: %w", err)
	}
	styles, err := t.db.Signals().StyleSignals(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load style signals: %w", err)
	}

	cards, stats := t.generator.Generate(spikes, styles, t.config.Markets, now)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.db.PitchCards().ReplaceAll(ctx, cards); err != nil {
		return nil, fmt.Errorf("failed to store pitch cards: %w", err)
	}

	t.afterReplace(ctx, cards)
	t.log.Info("Pitch cards refreshed",
		"spikes", len(spikes),
		"styles", len(styles),
		"cards", stats.Cards,
		"paired", stats.Paired,
		"single_kind", stats.SingleKind,
	)
	return &RefreshResult{
		Spikes:      len(spikes),
		Styles:      len(styles),
		Cards:       cards,
		Stats:       stats,
		GeneratedAt: now,
	}, nil
}

// ingest pulls fresh signals from the configured sources into the store.
func (t *TrendJack) ingest(ctx context.Context) error {
	var spikes []core.ArtistSpike
	var styles []core.StyleSignal

	if t.styles != nil {
		fetched, err := t.styles.Fetch(ctx, t.config.Markets)
		metrics.RecordSourceFetch("style_feed", err)
		if err != nil {
			t.log.Warn("Style feed unavailable", "error", err)
		} else {
			styles = append(styles, fetched...)
		}
	}
	if t.bundle != nil {
		bundle, err := t.bundle.Load(ctx)
		metrics.RecordSourceFetch("signals_file", err)
		if err != nil {
			t.log.Warn("Signal file unavailable", "error", err)
		} else {
			spikes = append(spikes, bundle.ArtistSpikes...)
			styles = append(styles, bundle.StyleSignals...)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(spikes) > 0 {
		if err := t.db.Signals().SaveArtistSpikes(ctx, spikes); err != nil {
			return fmt.Errorf("failed to save artist spikes: %w", err)
		}
	}
	if len(styles) > 0 {
		if err := t.db.Signals().SaveStyleSignals(ctx, styles); err != nil {
			return fmt.Errorf("failed to save style signals: %w", err)
		}
	}
	return nil
}

func (t *TrendJack) afterReplace(ctx context.Context, cards []core.PitchCard) {
	ctx = context.WithoutCancel(ctx)
	if t.hooks.Events != nil {
		if err := t.hooks.Events.PublishCards(ctx, cards); err != nil {
			t.log.Warn("Failed to publish pitch cards", "error", err)
		}
	}
	if t.hooks.Alerts != nil {
		if err := t.hooks.Alerts.NotifyCards(ctx, cards); err != nil {
			t.log.Warn("Failed to announce pitch cards", "error", err)
		}
	}
	metrics.RecordPitchCards(cards)
}
