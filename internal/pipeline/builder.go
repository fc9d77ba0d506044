package pipeline

import (
	"context"
	"fmt"

	"trendpulse/internal/cache"
	"trendpulse/internal/classifier"
	"trendpulse/internal/cleaner"
	"trendpulse/internal/config"
	"trendpulse/internal/enricher"
	"trendpulse/internal/llm"
	"trendpulse/internal/logger"
	"trendpulse/internal/persistence"
	"trendpulse/internal/pitch"
	"trendpulse/internal/scorer"
	"trendpulse/internal/sources"
	"trendpulse/internal/summarize"
)

// Builder helps construct a fully configured Pipeline and TrendJack
type Builder struct {
	cfg       *config.Config
	db        persistence.Database
	registry  *sources.Registry
	adapters  []sources.Adapter
	extractor enricher.EntityExtractor
	cache     *cache.Client
	hooks     Hooks
}

// NewBuilder creates a builder over a loaded configuration and database
func NewBuilder(cfg *config.Config, db persistence.Database) *Builder {
	return &Builder{
		cfg:      cfg,
		db:       db,
		registry: sources.NewRegistry(),
	}
}

// WithRegistry replaces the adapter registry used to resolve sources.enabled
func (b *Builder) WithRegistry(registry *sources.Registry) *Builder {
	b.registry = registry
	return b
}

// WithAdapters uses the given adapters instead of resolving sources.enabled
func (b *Builder) WithAdapters(adapters ...sources.Adapter) *Builder {
	b.adapters = adapters
	return b
}

// WithExtractor sets the NLP entity extractor
func (b *Builder) WithExtractor(extractor enricher.EntityExtractor) *Builder {
	b.extractor = extractor
	return b
}

// WithCache enables Redis baselines and the cross-process run lock
func (b *Builder) WithCache(client *cache.Client) *Builder {
	b.cache = client
	return b
}

// WithEvents sets the event publisher
func (b *Builder) WithEvents(events EventPublisher) *Builder {
	b.hooks.Events = events
	return b
}

// WithAlerts sets the notification sender
func (b *Builder) WithAlerts(alerts Alerter) *Builder {
	b.hooks.Alerts = alerts
	return b
}

// WithErrorReporter sets the error tracker
func (b *Builder) WithErrorReporter(reporter ErrorReporter) *Builder {
	b.hooks.Errors = reporter
	return b
}

// Scorer builds the scorer with the configured baseline chain
func (b *Builder) Scorer() *scorer.Scorer {
	history := persistence.HistoryBaselines{Trends: b.db.Trends()}
	var baselines scorer.BaselineProvider = history
	if b.cache != nil {
		baselines = scorer.ChainBaselines{b.cache.Baselines(), history}
	}
	return scorer.New(b.cfg.Scoring, b.cfg.Taxonomy, baselines)
}

// Build constructs a fully configured Pipeline
func (b *Builder) Build(ctx context.Context) (*Pipeline, error) {
	if b.cfg == nil || b.db == nil {
		return nil, fmt.Errorf("configuration and database are required")
	}

	collector, err := b.Collector()
	if err != nil {
		return nil, err
	}

	extractor := b.extractor
	if extractor == nil && b.cfg.Enrichment.Gemini.APIKey != "" {
		client, err := llm.NewClient(ctx, b.cfg.Enrichment.Gemini.APIKey, b.cfg.Enrichment.Gemini.Model)
		if err != nil {
			// Seed lists still work without the model
			logger.Warn("Gemini unavailable, entity extraction limited to seed lists", "error", err)
		} else {
			extractor = enricher.NewGeminiExtractor(client, config.Duration(b.cfg.Enrichment.Gemini.Timeout, 0))
		}
	}

	hooks := b.hooks
	if b.cache != nil {
		hooks.Lock = b.cache.RunLock("pipeline")
		hooks.Baselines = b.cache.Baselines()
	}

	stages := Stages{
		Collector:  collector,
		Cleaner:    cleaner.New(b.cfg.Dedup, b.cfg.Sources.Priority),
		Enricher:   enricher.New(b.cfg.Enrichment, extractor),
		Classifier: classifier.New(b.cfg.Taxonomy),
		Scorer:     b.Scorer(),
		Summarizer: summarize.New(b.cfg.Taxonomy),
	}
	cfg := Config{
		Markets:  b.cfg.Pipeline.Markets,
		Keywords: b.cfg.Pipeline.Keywords,
		Timeout:  config.Duration(b.cfg.Pipeline.RunTimeout, 0),
	}
	return New(stages, b.db, cfg, hooks)
}

// Collector resolves the configured adapters into a collector
func (b *Builder) Collector() (*sources.Collector, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	adapters := b.adapters
	if adapters == nil {
		resolved, err := b.registry.Resolve(b.cfg)
		if err != nil {
			return nil, err
		}
		adapters = resolved
	}
	return sources.NewCollector(adapters, config.Duration(b.cfg.Sources.Timeout, 0)), nil
}

// BuildTrendJack constructs the pitch card refresher
func (b *Builder) BuildTrendJack() (*TrendJack, error) {
	if b.cfg == nil || b.db == nil {
		return nil, fmt.Errorf("configuration and database are required")
	}

	var styles StyleSource
	if len(b.cfg.Sources.StyleFeeds) > 0 {
		styles = sources.NewStyleFeed(b.cfg.Sources.StyleFeeds, b.cfg.Enrichment.Seeds["artist"], b.cfg.Sources.RSS.RateLimit)
	}
	var bundle BundleSource
	if b.cfg.Sources.SignalsFile != "" {
		bundle = sources.NewSignalFile(b.cfg.Sources.SignalsFile)
	}

	settings := pitch.SettingsFrom(b.cfg.Pitch)
	cfg := TrendJackConfig{
		Markets: b.cfg.Pitch.Markets,
		Window:  settings.Window,
	}
	return NewTrendJack(styles, bundle, pitch.New(settings), b.db, cfg, b.hooks)
}
