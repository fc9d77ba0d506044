package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"trendpulse/internal/cache"
	"trendpulse/internal/config"
	"trendpulse/internal/health"
	"trendpulse/internal/logger"
	"trendpulse/internal/messaging"
	"trendpulse/internal/observability"
	"trendpulse/internal/persistence"
	"trendpulse/internal/pipeline"
	"trendpulse/internal/scorer"
	"trendpulse/internal/store"
	"trendpulse/internal/validator"
)

// app holds the wired collaborators shared by commands
type app struct {
	cfg      *config.Config
	db       persistence.Database
	cache    *cache.Client
	events   *messaging.KafkaPublisher
	notifier *messaging.Notifier
	tracker  *observability.Tracker
}

// loadApp loads configuration, configures logging and opens the database.
// Redis, Kafka, webhooks and Sentry are wired only when configured.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.Configure(level, cfg.Logging.Format)
	if cfg.App.ConfigFile != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", cfg.App.ConfigFile)
	}

	db, err := store.Open(cfg.Database, cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		events:   messaging.NewKafkaPublisher(cfg.Kafka),
		notifier: messaging.NewNotifier(cfg.Messaging),
	}

	if cfg.Redis.URL != "" {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			// Baselines fall back to stored history and runs are not locked
			logger.Warn("Redis unavailable, continuing without cache", "error", err)
		} else {
			a.cache = client
		}
	}

	tracker, err := observability.New(cfg.Observability, cfg.App.Environment)
	if err != nil {
		logger.Warn("Sentry unavailable, errors will only be logged", "error", err)
	}
	a.tracker = tracker

	return a, nil
}

// Close releases every connection the app opened
func (a *app) Close() {
	if a.tracker != nil {
		a.tracker.Flush(2 * time.Second)
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			logger.Warn("Failed to close Kafka writers", "error", err)
		}
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if err := a.db.Close(); err != nil {
		logger.Warn("Failed to close database", "error", err)
	}
}

// builder returns a pipeline builder with every configured hook attached
func (a *app) builder() *pipeline.Builder {
	b := pipeline.NewBuilder(a.cfg, a.db)
	if a.cache != nil {
		b = b.WithCache(a.cache)
	}
	if a.events != nil {
		b = b.WithEvents(a.events)
	}
	if a.notifier.Enabled() {
		b = b.WithAlerts(a.notifier)
	}
	if a.tracker != nil {
		b = b.WithErrorReporter(a.tracker)
	}
	return b
}

func (a *app) validator() *validator.Validator {
	return validator.New(scorer.BandsFrom(a.cfg.Scoring.Thresholds), config.Duration(a.cfg.Validation.Staleness, 24*time.Hour))
}

func (a *app) monitor() *health.Monitor {
	return health.NewMonitor(a.db, nil)
}

// sqlDB returns the SQL handle behind either driver
func (a *app) sqlDB() (*persistence.SQLDB, bool) {
	switch db := a.db.(type) {
	case *store.Store:
		return db.SQLDB, true
	case *persistence.SQLDB:
		return db, true
	}
	return nil, false
}
