// Package persistence provides database abstraction interfaces for storing
// trend records, signals, pitch cards and pipeline runs
package persistence

import (
	"context"
	"errors"
	"time"

	"trendpulse/internal/core"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// Modules tracked for freshness.
const (
	ModuleTrends       = "trends"
	ModuleArtistSpikes = "artist_spikes"
	ModuleStyleSignals = "style_signals"
	ModulePitchCards   = "pitch_cards"
)

// TrendFilter narrows trend queries. Zero values match everything.
type TrendFilter struct {
	Market    string
	Topic     string
	RiskLevel core.RiskLevel
	Action    core.Action
	MinScore  float64
	Limit     int
}

// TrendStats aggregates current records.
type TrendStats struct {
	Total      int            `json:"total"`
	ByPriority map[string]int `json:"by_priority"`
	ByRisk     map[string]int `json:"by_risk"`
	ByAction   map[string]int `json:"by_action"`
	ByMarket   map[string]int `json:"by_market"`
	ByTopic    map[string]int `json:"by_topic"`
}

// TrendRepository handles trend record persistence operations
type TrendRepository interface {
	// Upsert inserts or updates the record for its fingerprint. The record's
	// ID and CreatedAt are filled from the stored row.
	Upsert(ctx context.Context, record *core.TrendRecord) error

	// Query returns records matching the filter, highest score first
	Query(ctx context.Context, filter TrendFilter) ([]core.TrendRecord, error)

	// GetByID retrieves one record or ErrNotFound
	GetByID(ctx context.Context, id string) (*core.TrendRecord, error)

	// AppendHistory appends a snapshot to the fingerprint's history log
	AppendHistory(ctx context.Context, fingerprint string, snapshot core.TrendSnapshot) error

	// History returns snapshots for a fingerprint, oldest first
	History(ctx context.Context, fingerprint string, limit int) ([]core.TrendSnapshot, error)

	// Baseline returns the mean magnitude for a market and topic since a time
	Baseline(ctx context.Context, market, topic string, since time.Time) (float64, error)

	// Stats aggregates the current records
	Stats(ctx context.Context) (*TrendStats, error)

	// DeleteOlderThan removes records and history not updated since cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SignalRepository handles artist spike and style signal persistence
type SignalRepository interface {
	SaveArtistSpikes(ctx context.Context, spikes []core.ArtistSpike) error
	SaveStyleSignals(ctx context.Context, signals []core.StyleSignal) error
	ArtistSpikes(ctx context.Context, since time.Time) ([]core.ArtistSpike, error)
	StyleSignals(ctx context.Context, since time.Time) ([]core.StyleSignal, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PitchCardRepository handles pitch card persistence
type PitchCardRepository interface {
	// ReplaceAll discards every stored card and stores the given ones
	ReplaceAll(ctx context.Context, cards []core.PitchCard) error

	// List returns cards, optionally for one market, highest confidence first
	List(ctx context.Context, market string) ([]core.PitchCard, error)
}

// RunRepository handles pipeline run metadata
type RunRepository interface {
	Save(ctx context.Context, run *core.RunSummary) error
	Latest(ctx context.Context) (*core.RunSummary, error)
	List(ctx context.Context, limit int) ([]core.RunSummary, error)
}

// Database represents the main database interface that aggregates all repositories
type Database interface {
	// Trends returns the trend record repository
	Trends() TrendRepository

	// Signals returns the signal repository
	Signals() SignalRepository

	// PitchCards returns the pitch card repository
	PitchCards() PitchCardRepository

	// Runs returns the pipeline run repository
	Runs() RunRepository

	// LastUpdated returns the newest write time for a module, zero if empty
	LastUpdated(ctx context.Context, module string) (time.Time, error)

	// Close closes the database connection
	Close() error

	// Ping verifies the database connection
	Ping(ctx context.Context) error

	// BeginTx starts a new transaction
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	Trends() TrendRepository
	Signals() SignalRepository
	PitchCards() PitchCardRepository
	Runs() RunRepository
}
