// Package scorer computes the Comms Relevance Score and derived decisions.
package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
	"trendpulse/internal/logger"
)

const neutralVelocity = 50.0

type term struct {
	word   string
	weight float64
	re     *regexp.Regexp
}

// Scored pairs a trend with its breakdown.
type Scored struct {
	Trend     core.CanonicalTrend
	Breakdown core.ScoreBreakdown
}

// Scorer computes five weighted sub-scores per trend.
type Scorer struct {
	weights       core.Weights
	reachCeiling  float64
	marketWeights map[string]float64
	defaultWeight float64
	adjacency     []term
	artistBonus   float64
	risk          []term
	riskBlend     float64
	topicRisk     map[string]float64
	bands         Bands
	policy        Policy
	baselines     BaselineProvider
	log           *slog.Logger
}

// New builds a scorer from validated configuration. baselines may be nil.
func New(cfg config.Scoring, taxonomy config.Taxonomy, baselines BaselineProvider) *Scorer {
	s := &Scorer{
		weights:       cfg.Weights,
		reachCeiling:  cfg.ReachCeiling,
		marketWeights: make(map[string]float64),
		defaultWeight: cfg.DefaultMarketWeight,
		adjacency:     compileTerms(cfg.AdjacencyVocabulary),
		artistBonus:   cfg.ArtistBonus,
		risk:          compileTerms(cfg.RiskVocabulary),
		riskBlend:     cfg.TopicRiskBlend,
		topicRisk:     make(map[string]float64),
		bands:         BandsFrom(cfg.Thresholds),
		policy:        PolicyFrom(cfg.Thresholds),
		baselines:     baselines,
		log:           logger.With("scorer"),
	}
	if s.reachCeiling <= 0 {
		s.reachCeiling = 1e6
	}
	if s.defaultWeight <= 0 {
		s.defaultWeight = 1
	}
	for market, w := range cfg.MarketWeights {
		s.marketWeights[strings.ToUpper(market)] = w
	}
	for _, topic := range taxonomy.Topics {
		s.topicRisk[topic.Key] = topic.RiskBase
	}
	return s
}

// compileTerms matches a vocabulary word with common English suffixes.
func compileTerms(vocab map[string]float64) []term {
	words := make([]string, 0, len(vocab))
	for w := range vocab {
		words = append(words, w)
	}
	sort.Strings(words)

	terms := make([]term, 0, len(words))
	for _, w := range words {
		lw := strings.ToLower(strings.TrimSpace(w))
		if lw == "" {
			continue
		}
		terms = append(terms, term{
			word:   lw,
			weight: vocab[w],
			re:     regexp.MustCompile(`\b` + regexp.QuoteMeta(lw) + `(s|es|ers|ing|ed)?\b`),
		})
	}
	return terms
}

func matchTerms(terms []term, text string) (float64, []string) {
	var sum float64
	var matched []string
	for _, t := range terms {
		if t.re.MatchString(text) {
			sum += t.weight
			matched = append(matched, t.word)
		}
	}
	return sum, matched
}

// Bands returns the configured risk bands.
func (s *Scorer) Bands() Bands { return s.bands }

// Policy returns the configured decision policy.
func (s *Scorer) Policy() Policy { return s.policy }

// MarketWeight returns the configured weight for a market.
func (s *Scorer) MarketWeight(market string) float64 {
	if w, ok := s.marketWeights[strings.ToUpper(market)]; ok {
		return w
	}
	return s.defaultWeight
}

func (s *Scorer) marketRaw(trend core.CanonicalTrend) float64 {
	return s.MarketWeight(trend.Market) * math.Log1p(math.Max(trend.Magnitude, 0))
}

// MaxMarketRaw returns the largest market-weighted magnitude in the batch.
func (s *Scorer) MaxMarketRaw(trends []core.CanonicalTrend) float64 {
	maxRaw := 0.0
	for _, trend := range trends {
		maxRaw = math.Max(maxRaw, s.marketRaw(trend))
	}
	return maxRaw
}

// SortScored orders by total descending, ties broken by fingerprint.
func SortScored(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Breakdown.Total != scored[j].Breakdown.Total {
			return scored[i].Breakdown.Total > scored[j].Breakdown.Total
		}
		return scored[i].Trend.Fingerprint() < scored[j].Trend.Fingerprint()
	})
}

// Score computes a single breakdown. maxRaw is the largest market-weighted
// magnitude in the run; pass zero to score the trend on its own.
func (s *Scorer) Score(ctx context.Context, trend core.CanonicalTrend, maxRaw float64) core.ScoreBreakdown {
	b := core.ScoreBreakdown{Weights: s.weights}
	text := scoringText(trend)

	b.Velocity, b.VelocityReason, b.BaselineMissing = s.velocity(ctx, trend)
	b.Reach, b.ReachReason = s.reach(trend.Magnitude)
	b.MarketImpact, b.MarketReason = s.marketImpact(trend, maxRaw)
	b.SpotifyAdjacency, b.AdjacencyReason = s.spotifyAdjacency(trend, text)
	b.Risk, b.RiskKeywords, b.RiskReason = s.riskScore(trend, text)

	b.Total = clip(s.weights.Velocity*b.Velocity +
		s.weights.Reach*b.Reach +
		s.weights.MarketImpact*b.MarketImpact +
		s.weights.SpotifyAdjacency*b.SpotifyAdjacency +
		s.weights.Risk*b.Risk)
	b.Total = round2(b.Total)

	b.RiskLevel = s.bands.Level(b.Risk)
	hasArtist := trend.HasEntityKind(core.EntityArtist, core.EntityCreator)
	b.Action = s.policy.DecideAction(b.RiskLevel, b.Total, b.SpotifyAdjacency, hasArtist)
	b.Priority = s.policy.Priority(b.Total)
	b.Confidence = ConfidenceFor(len(trend.Sources), len(trend.Entities), !b.BaselineMissing, trend.Market != "")
	return b
}

func (s *Scorer) velocity(ctx context.Context, trend core.CanonicalTrend) (float64, string, bool) {
	var baseline float64
	if s.baselines != nil {
		var err error
		baseline, err = s.baselines.Baseline(ctx, trend.Market, trend.Topic)
		if err != nil {
			s.log.Warn("Baseline lookup failed", "market", trend.Market, "topic", trend.Topic, "error", err)
			baseline = 0
		}
	}
	if baseline <= 0 {
		s.log.Warn("Velocity baseline missing, using neutral score",
			"market", trend.Market, "topic", trend.Topic, "reason", core.ErrScoringUndefined.Error())
		return neutralVelocity, "no baseline yet for this market and topic", true
	}

	growth := (trend.Magnitude - baseline) / baseline
	score := round2(clip(neutralVelocity + 50*growth))
	return score, fmt.Sprintf("%+.0f%% vs baseline of %s", growth*100, humanize.Comma(int64(math.Round(baseline)))), false
}

func (s *Scorer) reach(magnitude float64) (float64, string) {
	m := math.Max(magnitude, 0)
	score := round2(clip(100 * math.Log10(1+m) / math.Log10(1+s.reachCeiling)))
	return score, fmt.Sprintf("magnitude %s on a log scale", humanize.Comma(int64(math.Round(m))))
}

func (s *Scorer) marketImpact(trend core.CanonicalTrend, maxRaw float64) (float64, string) {
	raw := s.marketRaw(trend)
	if maxRaw < raw {
		maxRaw = raw
	}
	if maxRaw <= 0 {
		return 0, "no measurable magnitude"
	}
	market := trend.Market
	if market == "" {
		market = "unknown market"
	}
	return round2(clip(100 * raw / maxRaw)), fmt.Sprintf("%s weight %.1f, relative to this run's strongest signal", market, s.MarketWeight(trend.Market))
}

func (s *Scorer) spotifyAdjacency(trend core.CanonicalTrend, text string) (float64, string) {
	sum, matched := matchTerms(s.adjacency, text)

	artists := 0
	for _, e := range trend.Entities {
		if e.Kind == core.EntityArtist || e.Kind == core.EntityCreator {
			artists++
		}
	}
	sum += float64(artists) * s.artistBonus

	if len(matched) == 0 && artists == 0 {
		return 0, "no audio-culture signals"
	}
	reason := "matched " + strings.Join(matched, ", ")
	if len(matched) == 0 {
		reason = "no audio vocabulary"
	}
	if artists > 0 {
		reason += fmt.Sprintf("; %d artist or creator %s", artists, plural(artists, "entity", "entities"))
	}
	return round2(clip(sum)), reason
}

func (s *Scorer) riskScore(trend core.CanonicalTrend, text string) (float64, []string, string) {
	sum, matched := matchTerms(s.risk, text)
	base := s.topicRisk[trend.Topic]
	score := round2(clip((1-s.riskBlend)*clip(sum) + s.riskBlend*base))

	if len(matched) == 0 {
		return score, nil, fmt.Sprintf("no risk terms; topic base risk %.0f", base)
	}
	return score, matched, fmt.Sprintf("risk terms %s; topic base risk %.0f", strings.Join(matched, ", "), base)
}

func scoringText(trend core.CanonicalTrend) string {
	parts := []string{trend.Title, trend.Text}
	for _, e := range trend.Entities {
		parts = append(parts, e.Name)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func clip(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
