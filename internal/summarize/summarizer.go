// Package summarize renders comms-ready text for scored trends.
package summarize

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
	"trendpulse/internal/markets"
)

var nextSteps = map[core.Action]string{
	core.ActionMonitor:  "Keep watching; revisit on the next refresh and flag if velocity keeps climbing.",
	core.ActionEngage:   "Draft a light-touch social response for approval within the day.",
	core.ActionPartner:  "Reach out to the artist team about a playlist or content partnership.",
	core.ActionAvoid:    "Stay out of the conversation; no brand or editorial activity on this topic.",
	core.ActionEscalate: "Escalate to the regional comms lead now for a same-day decision.",
}

var riskOpeners = map[core.RiskLevel]string{
	core.RiskLow:    "Low risk, but",
	core.RiskMedium: "Moderate risk:",
	core.RiskHigh:   "High risk:",
}

const defaultRiskPhrase = "a misread moment can draw criticism toward the brand"

// Summarizer renders templated summaries. It is deterministic and never
// touches the network or the clock.
type Summarizer struct {
	topics map[string]config.TopicConfig
}

// New creates a summarizer for a taxonomy.
func New(taxonomy config.Taxonomy) *Summarizer {
	s := &Summarizer{topics: make(map[string]config.TopicConfig)}
	for _, t := range taxonomy.Topics {
		s.topics[t.Key] = t
	}
	return s
}

// TopicDisplay returns the human name of a topic key.
func (s *Summarizer) TopicDisplay(key string) string {
	if t, ok := s.topics[key]; ok && t.Name != "" {
		return t.Name
	}
	if key == "" {
		return "Uncategorized"
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}

// Summarize builds the summary for a trend and its breakdown.
func (s *Summarizer) Summarize(trend core.CanonicalTrend, b core.ScoreBreakdown) core.TrendSummary {
	topic := s.TopicDisplay(trend.Topic)
	return core.TrendSummary{
		WhatsHappening: s.whatsHappening(trend, topic),
		WhyItMatters:   s.whyItMatters(trend, b),
		IfGoesWrong:    s.ifGoesWrong(trend, b),
		NextStep:       nextStep(b.Action),
		TopicDisplay:   topic,
	}
}

func (s *Summarizer) whatsHappening(trend core.CanonicalTrend, topic string) string {
	sources := len(trend.Sources)
	if sources == 0 {
		sources = 1
	}
	text := fmt.Sprintf("%q is trending in %s (%s), seen across %s.",
		trend.Title, markets.Name(trend.Market), topic, english.Plural(sources, "source", ""))

	if artists := trend.EntityNames(core.EntityArtist); len(artists) > 0 {
		text += fmt.Sprintf(" It involves %s.", english.OxfordWordSeries(artists, "and"))
	}
	if trend.Magnitude > 0 {
		text += fmt.Sprintf(" Peak volume is about %s.", humanize.Comma(int64(math.Round(trend.Magnitude))))
	}
	return text
}

func (s *Summarizer) whyItMatters(trend core.CanonicalTrend, b core.ScoreBreakdown) []string {
	first := fmt.Sprintf("Comms relevance %.0f/100 (%s priority), driven mostly by %s.",
		b.Total, levelOr(b.Priority, core.LevelLow), strongestFactor(b))

	var second string
	switch {
	case b.SpotifyAdjacency >= 70:
		second = fmt.Sprintf("Strong audio-culture link: %s.", b.AdjacencyReason)
	case b.SpotifyAdjacency >= 40:
		second = fmt.Sprintf("Some audio-culture overlap: %s.", b.AdjacencyReason)
	case b.RiskLevel == core.RiskHigh:
		second = "Little connection to music or audio, and the conversation is sensitive."
	default:
		second = fmt.Sprintf("Little direct link to audio yet; useful context for %s.", markets.Name(trend.Market))
	}
	return []string{first, second}
}

func (s *Summarizer) ifGoesWrong(trend core.CanonicalTrend, b core.ScoreBreakdown) string {
	phrase := defaultRiskPhrase
	if t, ok := s.topics[trend.Topic]; ok && t.RiskPhrase != "" {
		phrase = t.RiskPhrase
	}
	opener, ok := riskOpeners[b.RiskLevel]
	if !ok {
		opener = riskOpeners[core.RiskLow]
	}
	text := fmt.Sprintf("%s %s.", opener, phrase)
	if len(b.RiskKeywords) > 0 {
		text += fmt.Sprintf(" Watch for %s.", english.OxfordWordSeries(b.RiskKeywords, "and"))
	}
	return text
}

func nextStep(action core.Action) string {
	if step, ok := nextSteps[action]; ok {
		return step
	}
	return nextSteps[core.ActionMonitor]
}

func strongestFactor(b core.ScoreBreakdown) string {
	factors := []struct {
		name  string
		value float64
	}{
		{"velocity", b.Weights.Velocity * b.Velocity},
		{"reach", b.Weights.Reach * b.Reach},
		{"market impact", b.Weights.MarketImpact * b.MarketImpact},
		{"Spotify adjacency", b.Weights.SpotifyAdjacency * b.SpotifyAdjacency},
		{"risk", b.Weights.Risk * b.Risk},
	}
	best := factors[0]
	for _, f := range factors[1:] {
		if f.value > best.value {
			best = f
		}
	}
	return best.name
}

func levelOr(l, fallback core.Level) core.Level {
	if l == "" {
		return fallback
	}
	return l
}
