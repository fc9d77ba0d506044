package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// ArtistSpike is a search-interest spike for an artist in one market.
type ArtistSpike struct {
	ID            string    `json:"id" db:"id"`
	ArtistName    string    `json:"artist_name" db:"artist_name"`
	Market        string    `json:"market" db:"market"`
	SpikeScore    float64   `json:"spike_score" db:"spike_score"` // 0-100
	TimeWindow    string    `json:"time_window" db:"time_window"` // "24h" or "7d"
	Sparkline     []float64 `json:"sparkline" db:"-"`             // Ordered samples over the window
	WhySpiking    []string  `json:"why_spiking" db:"-"`
	RelatedTopics []string  `json:"related_topics" db:"-"`
	Confidence    Level     `json:"confidence" db:"confidence"`
	Ambiguous     bool      `json:"ambiguous" db:"ambiguous"` // Artist name is also a common word
	RiskNotes     []string  `json:"risk_notes" db:"-"`
	CollectedAt   time.Time `json:"collected_at" db:"collected_at"`
}

// StyleSignal is a fashion/streetwear signal relevant to one or more markets.
type StyleSignal struct {
	ID          string    `json:"id" db:"id"`
	Headline    string    `json:"headline" db:"headline"`
	Source      string    `json:"source" db:"source"`
	SourceURL   string    `json:"source_url" db:"source_url"`
	Summary     string    `json:"summary" db:"summary"`
	Markets     []string  `json:"markets" db:"-"`
	Magnitude   float64   `json:"magnitude" db:"magnitude"` // 0-100 significance
	Sparkline   []float64 `json:"sparkline" db:"-"`
	SpotifyTags []string  `json:"spotify_tags" db:"-"` // artist_collab, tour_merch, youth_culture, ...
	Entities    []string  `json:"entities" db:"-"`
	RiskLevel   RiskLevel `json:"risk_level" db:"risk_level"`
	RiskNotes   []string  `json:"risk_notes" db:"-"`
	PublishedAt time.Time `json:"published_at" db:"published_at"`
	CollectedAt time.Time `json:"collected_at" db:"collected_at"`
}

// RelevantTo reports whether the signal applies to the market.
func (s StyleSignal) RelevantTo(market string) bool {
	for _, m := range s.Markets {
		if strings.EqualFold(m, market) {
			return true
		}
	}
	return false
}

// ObservedAt returns the freshest timestamp of the signal.
func (s StyleSignal) ObservedAt() time.Time {
	if s.PublishedAt.After(s.CollectedAt) {
		return s.PublishedAt
	}
	return s.CollectedAt
}

// CardConfidence is the confidence rating of a pitch card.
type CardConfidence string

const (
	ConfidenceHigh   CardConfidence = "High"
	ConfidenceMedium CardConfidence = "Medium"
	ConfidenceLow    CardConfidence = "Low"
)

// Rank orders confidences so they can be capped and compared.
func (c CardConfidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	default:
		return 1
	}
}

// PitchCard is a trend-jack opportunity synthesized from correlated signals.
// It references its signals by id and never owns them.
type PitchCard struct {
	ID          string         `json:"id"`
	Market      string         `json:"market"`
	Hook        string         `json:"hook"`
	WhyNow      []string       `json:"why_now"`
	Angle       string         `json:"angle"`
	NextSteps   []string       `json:"next_steps"`
	Risks       []string       `json:"risks"`
	Confidence  CardConfidence `json:"confidence"`
	SignalIDs   []string       `json:"signal_ids"`
	GeneratedAt time.Time      `json:"generated_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// PitchCardID derives the card id from market, signal ids and the UTC date.
func PitchCardID(market string, signalIDs []string, at time.Time) string {
	ids := append([]string(nil), signalIDs...)
	sort.Strings(ids)
	key := market + ":" + strings.Join(ids, ":") + ":" + at.UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}
