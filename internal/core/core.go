package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// EntityKind classifies an extracted named entity.
type EntityKind string

const (
	EntityArtist       EntityKind = "artist"
	EntityCreator      EntityKind = "creator"
	EntityBrand        EntityKind = "brand"
	EntityPlace        EntityKind = "place"
	EntityOrganization EntityKind = "organization"
	EntityEvent        EntityKind = "event"
	EntityPerson       EntityKind = "person"
)

// Entity is a named entity attached to a trend.
type Entity struct {
	Name string     `json:"name"` // Display name as configured or extracted
	Kind EntityKind `json:"kind"` // Entity type
}

// Key returns the case-insensitive identity of the entity.
func (e Entity) Key() string {
	return strings.ToLower(strings.TrimSpace(e.Name))
}

// TrendItem is a raw signal as returned by a source adapter.
type TrendItem struct {
	ID         string            `json:"id"`                 // Deterministic hash of source, market, title, observed_at and url
	Source     string            `json:"source"`             // Adapter name (e.g., "rss", "google_trends")
	Market     string            `json:"market"`             // ISO country code (NG, KE, ZA, ...)
	Title      string            `json:"title"`              // Raw title or search term
	Text       string            `json:"text,omitempty"`     // Raw description/body
	ObservedAt time.Time         `json:"observed_at"`        // When the source observed the signal
	Magnitude  float64           `json:"magnitude"`          // Source-specific volume metric
	URL        string            `json:"url,omitempty"`      // Optional link to the source
	Entities   []Entity          `json:"entities,omitempty"` // Entities supplied by the adapter, if any
	Metadata   map[string]string `json:"metadata,omitempty"` // Source-specific metadata bag
}

// ComputeItemID returns the deterministic identifier for an item.
func ComputeItemID(source, market, title string, observedAt time.Time, url string) string {
	key := strings.Join([]string{
		source,
		strings.ToUpper(market),
		title,
		observedAt.UTC().Format(time.RFC3339Nano),
		url,
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:24]
}

// WithID returns a copy of the item with its ID computed if missing.
func (i TrendItem) WithID() TrendItem {
	if i.ID == "" {
		i.ID = ComputeItemID(i.Source, i.Market, i.Title, i.ObservedAt, i.URL)
	}
	return i
}

// Validate checks the fields every adapter must provide.
func (i TrendItem) Validate() error {
	switch {
	case strings.TrimSpace(i.Source) == "":
		return fmt.Errorf("item missing source")
	case strings.TrimSpace(i.Title) == "":
		return fmt.Errorf("item missing title")
	case i.ObservedAt.IsZero():
		return fmt.Errorf("item missing timestamp")
	}
	return nil
}

// CanonicalTrend is one real-world trend merged across sources.
// It exclusively owns its contributing items.
type CanonicalTrend struct {
	Title           string      `json:"title"`            // Display title of the canonical item
	NormalizedTitle string      `json:"normalized_title"` // Lowercased, punctuation and stopword free
	Market          string      `json:"market"`
	Sources         []string    `json:"sources"`          // Sorted set of contributing source names
	CanonicalSource string      `json:"canonical_source"` // Source of the canonical item
	Items           []TrendItem `json:"items"`            // Canonical item first
	Text            string      `json:"text,omitempty"`   // Cleaned item titles and bodies, links removed
	Entities        []Entity    `json:"entities"`
	Language        string      `json:"language"`
	Topic           string      `json:"topic"`
	Subtopic        string      `json:"subtopic,omitempty"`
	FirstObserved   time.Time   `json:"first_observed"`
	LastObserved    time.Time   `json:"last_observed"`
	Magnitude       float64     `json:"magnitude"` // Max across contributing items
	URL             string      `json:"url,omitempty"`
}

// HasEntityKind reports whether any entity has one of the given kinds.
func (c CanonicalTrend) HasEntityKind(kinds ...EntityKind) bool {
	for _, e := range c.Entities {
		for _, k := range kinds {
			if e.Kind == k {
				return true
			}
		}
	}
	return false
}

// EntityNames returns entity names of the given kind, or all names when kind is empty.
func (c CanonicalTrend) EntityNames(kind EntityKind) []string {
	var names []string
	for _, e := range c.Entities {
		if kind == "" || e.Kind == kind {
			names = append(names, e.Name)
		}
	}
	return names
}

// Fingerprint returns the stable identity of the trend.
func (c CanonicalTrend) Fingerprint() string {
	return Fingerprint(c.Market, c.NormalizedTitle, c.Topic)
}

// Fingerprint hashes (market, normalized title, topic) into a stable key.
func Fingerprint(market, normalizedTitle, topic string) string {
	key := strings.ToUpper(market) + "|" + normalizedTitle + "|" + topic
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:32]
}

// Truncate cuts s to at most n runes without splitting a character.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n || utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// MergeEntities unions entity lists, deduplicated by case-insensitive name and
// sorted by kind then name.
func MergeEntities(lists ...[]Entity) []Entity {
	seen := make(map[string]Entity)
	for _, list := range lists {
		for _, e := range list {
			k := e.Key()
			if k == "" {
				continue
			}
			if existing, ok := seen[k]; ok && existing.Kind != "" {
				continue
			}
			seen[k] = e
		}
	}
	out := make([]Entity, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// RiskLevel is the derived risk band of a trend.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether the level is one of the three known bands.
func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// Action is the recommended comms response.
type Action string

const (
	ActionMonitor  Action = "MONITOR"
	ActionEngage   Action = "ENGAGE"
	ActionPartner  Action = "PARTNER"
	ActionAvoid    Action = "AVOID"
	ActionEscalate Action = "ESCALATE"
)

// Level is a generic high/medium/low rating used for priority and confidence.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Weights are the configured sub-score weights.
type Weights struct {
	Velocity         float64 `json:"velocity" mapstructure:"velocity"`
	Reach            float64 `json:"reach" mapstructure:"reach"`
	MarketImpact     float64 `json:"market_impact" mapstructure:"market_impact"`
	SpotifyAdjacency float64 `json:"spotify_adjacency" mapstructure:"spotify_adjacency"`
	Risk             float64 `json:"risk" mapstructure:"risk"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Velocity + w.Reach + w.MarketImpact + w.SpotifyAdjacency + w.Risk
}

// ScoreBreakdown explains how a trend's Comms Relevance Score was computed.
type ScoreBreakdown struct {
	Velocity         float64   `json:"velocity"`
	Reach            float64   `json:"reach"`
	MarketImpact     float64   `json:"market_impact"`
	SpotifyAdjacency float64   `json:"spotify_adjacency"`
	Risk             float64   `json:"risk"`
	VelocityReason   string    `json:"velocity_reason"`
	ReachReason      string    `json:"reach_reason"`
	MarketReason     string    `json:"market_reason"`
	AdjacencyReason  string    `json:"adjacency_reason"`
	RiskReason       string    `json:"risk_reason"`
	Weights          Weights   `json:"weights"`
	Total            float64   `json:"total"`
	RiskLevel        RiskLevel `json:"risk_level"`
	RiskKeywords     []string  `json:"risk_keywords,omitempty"`
	Action           Action    `json:"action"`
	Priority         Level     `json:"priority"`
	Confidence       Level     `json:"confidence"`
	BaselineMissing  bool      `json:"baseline_missing"` // Velocity fell back to the neutral midpoint
}

// TrendSummary holds the comms-ready text generated for a trend.
type TrendSummary struct {
	WhatsHappening string   `json:"whats_happening"`
	WhyItMatters   []string `json:"why_it_matters"`
	IfGoesWrong    string   `json:"if_goes_wrong"`
	NextStep       string   `json:"next_step"`
	TopicDisplay   string   `json:"topic_display"`
}

// TrendRecord is the persisted unit of the pipeline.
type TrendRecord struct {
	ID          string         `json:"id"`          // Stable id derived from the fingerprint
	Fingerprint string         `json:"fingerprint"` // market + normalized title + topic
	RunID       string         `json:"run_id"`      // Run that last wrote this record
	Trend       CanonicalTrend `json:"trend"`
	Breakdown   ScoreBreakdown `json:"breakdown"`
	Summary     TrendSummary   `json:"summary"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Snapshot returns the history entry for this record.
func (r TrendRecord) Snapshot() TrendSnapshot {
	return TrendSnapshot{
		Fingerprint: r.Fingerprint,
		Market:      r.Trend.Market,
		Topic:       r.Trend.Topic,
		RunID:       r.RunID,
		RecordedAt:  r.UpdatedAt,
		Total:       r.Breakdown.Total,
		RiskScore:   r.Breakdown.Risk,
		RiskLevel:   r.Breakdown.RiskLevel,
		Action:      r.Breakdown.Action,
		Magnitude:   r.Trend.Magnitude,
	}
}

// TrendSnapshot is one append-only history entry for a fingerprint.
type TrendSnapshot struct {
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	Market      string    `json:"market" db:"market"`
	Topic       string    `json:"topic" db:"topic"`
	RunID       string    `json:"run_id" db:"run_id"`
	RecordedAt  time.Time `json:"recorded_at" db:"recorded_at"`
	Total       float64   `json:"total" db:"total_score"`
	RiskScore   float64   `json:"risk_score" db:"risk_score"`
	RiskLevel   RiskLevel `json:"risk_level" db:"risk_level"`
	Action      Action    `json:"action" db:"action"`
	Magnitude   float64   `json:"magnitude" db:"magnitude"`
}

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunSuccess   RunStatus = "success"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
	RunRejected  RunStatus = "rejected"
)

// RunSummary reports what a pipeline run did.
type RunSummary struct {
	RunID        string            `json:"run_id"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	Status       RunStatus         `json:"status"`
	Collected    int               `json:"collected"` // Raw items returned by adapters
	Processed    int               `json:"processed"` // Canonical trends scored and summarised
	Skipped      int               `json:"skipped"`   // Items dropped by validation or filters
	Failed       int               `json:"failed"`    // Items that failed inside a stage
	Merged       int               `json:"merged"`    // Items folded into another canonical trend
	Written      int               `json:"written"`   // Records committed
	Reasons      map[string]int    `json:"reasons,omitempty"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// AddReason increments a skip/failure reason counter.
func (s *RunSummary) AddReason(reason string, n int) {
	if n == 0 {
		return
	}
	if s.Reasons == nil {
		s.Reasons = make(map[string]int)
	}
	s.Reasons[reason] += n
}

// Duration returns how long the run took.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
