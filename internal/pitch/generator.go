// Package pitch correlates artist spikes and style signals into pitch cards.
package pitch

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
	"trendpulse/internal/logger"
)

const (
	spikeCardTTL = 24 * time.Hour
	styleCardTTL = 48 * time.Hour
	hookKeyLen   = 50
)

// Settings are the generator thresholds.
type Settings struct {
	Window            time.Duration
	MinSpikeScore     float64
	SpikeSignificance float64
	StyleSignificance float64
	CardsPerMarket    int
}

// SettingsFrom reads settings from configuration.
func SettingsFrom(cfg config.Pitch) Settings {
	s := Settings{
		Window:            config.Duration(cfg.Window, 48*time.Hour),
		MinSpikeScore:     cfg.MinSpikeScore,
		SpikeSignificance: cfg.SpikeSignificance,
		StyleSignificance: cfg.StyleSignificance,
		CardsPerMarket:    cfg.CardsPerMarket,
	}
	if s.CardsPerMarket <= 0 {
		s.CardsPerMarket = 6
	}
	return s
}

// Stats summarises one generation pass.
type Stats struct {
	Cards        int
	Paired       int
	SingleKind   int // cards capped because one signal kind was missing
	ByConfidence map[core.CardConfidence]int
}

// Generator builds pitch cards. It holds no state between calls.
type Generator struct {
	settings Settings
	log      *slog.Logger
}

// New creates a generator.
func New(settings Settings) *Generator {
	return &Generator{settings: settings, log: logger.With("pitch")}
}

// Generate builds cards for each market from signals observed within the
// window before now. Signals are referenced by id, never copied into cards.
func (g *Generator) Generate(spikes []core.ArtistSpike, styles []core.StyleSignal, markets []string, now time.Time) ([]core.PitchCard, Stats) {
	stats := Stats{ByConfidence: make(map[core.CardConfidence]int)}
	var cards []core.PitchCard
	for _, market := range markets {
		market = strings.ToUpper(market)
		marketCards := g.marketCards(market, spikes, styles, now, &stats)
		cards = append(cards, marketCards...)
	}
	for _, c := range cards {
		stats.ByConfidence[c.Confidence]++
	}
	stats.Cards = len(cards)
	g.log.Info("Pitch cards generated", "cards", stats.Cards, "paired", stats.Paired, "single_kind", stats.SingleKind)
	return cards, stats
}

func (g *Generator) inWindow(t, now time.Time) bool {
	return !t.IsZero() && !t.Before(now.Add(-g.settings.Window)) && !t.After(now.Add(time.Hour))
}

func (g *Generator) marketCards(market string, spikes []core.ArtistSpike, styles []core.StyleSignal, now time.Time, stats *Stats) []core.PitchCard {
	var candidates []core.ArtistSpike
	for _, s := range spikes {
		if strings.EqualFold(s.Market, market) && s.SpikeScore >= g.settings.MinSpikeScore && g.inWindow(s.CollectedAt, now) {
			candidates = append(candidates, s)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].SpikeScore != candidates[j].SpikeScore {
			return candidates[i].SpikeScore > candidates[j].SpikeScore
		}
		return candidates[i].ID < candidates[j].ID
	})

	var marketStyles []core.StyleSignal
	for _, s := range styles {
		if s.RelevantTo(market) && g.inWindow(s.ObservedAt(), now) {
			marketStyles = append(marketStyles, s)
		}
	}
	sort.Slice(marketStyles, func(i, j int) bool {
		if marketStyles[i].Magnitude != marketStyles[j].Magnitude {
			return marketStyles[i].Magnitude > marketStyles[j].Magnitude
		}
		return marketStyles[i].ID < marketStyles[j].ID
	})

	used := make(map[string]bool)
	var cards []core.PitchCard

	for _, spike := range candidates {
		style, overlap := bestStyle(spike, marketStyles, used)
		if style != nil {
			used[style.ID] = true
			stats.Paired++
		} else {
			stats.SingleKind++
			g.log.Debug("No style signal to pair", "market", market, "artist", spike.ArtistName,
				"reason", core.ErrCorrelationInsufficient.Error())
		}
		cards = append(cards, g.spikeCard(market, spike, style, overlap, now))
	}

	for _, style := range marketStyles {
		if used[style.ID] || len(style.SpotifyTags) == 0 || style.RiskLevel == core.RiskHigh {
			continue
		}
		stats.SingleKind++
		cards = append(cards, g.styleCard(market, style, candidates, now))
	}

	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Confidence.Rank() > cards[j].Confidence.Rank()
	})

	seen := make(map[string]bool)
	var unique []core.PitchCard
	for _, c := range cards {
		key := core.Truncate(strings.ToLower(c.Hook), hookKeyLen)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, c)
		if len(unique) == g.settings.CardsPerMarket {
			break
		}
	}
	return unique
}

// bestStyle prefers the strongest unused style signal with explicit overlap,
// falling back to the strongest unused one.
func bestStyle(spike core.ArtistSpike, styles []core.StyleSignal, used map[string]bool) (*core.StyleSignal, bool) {
	var fallback *core.StyleSignal
	for i := range styles {
		s := &styles[i]
		if used[s.ID] || s.RiskLevel == core.RiskHigh {
			continue
		}
		if overlaps(spike, *s) {
			return s, true
		}
		if fallback == nil {
			fallback = s
		}
	}
	return fallback, false
}

// overlaps reports an explicit entity link between the two signals.
func overlaps(spike core.ArtistSpike, style core.StyleSignal) bool {
	artist := strings.ToLower(strings.TrimSpace(spike.ArtistName))
	if artist == "" {
		return false
	}
	for _, e := range style.Entities {
		if strings.EqualFold(strings.TrimSpace(e), artist) {
			return true
		}
	}
	headline := strings.ToLower(style.Headline + " " + style.Summary)
	if strings.Contains(headline, artist) {
		return true
	}
	for _, topic := range spike.RelatedTopics {
		topic = strings.ToLower(strings.TrimSpace(topic))
		if topic == "" {
			continue
		}
		if strings.Contains(headline, topic) || hasTag(style.SpotifyTags, topic) {
			return true
		}
	}
	return false
}

func (g *Generator) confidence(spike *core.ArtistSpike, style *core.StyleSignal, overlap bool) core.CardConfidence {
	spikeSignificant := spike != nil && spike.SpikeScore >= g.settings.SpikeSignificance
	styleSignificant := style != nil && style.Magnitude >= g.settings.StyleSignificance

	switch {
	case spike != nil && style != nil:
		if spikeSignificant && styleSignificant && overlap {
			return core.ConfidenceHigh
		}
		return core.ConfidenceMedium
	case spikeSignificant || styleSignificant:
		return core.ConfidenceMedium
	default:
		return core.ConfidenceLow
	}
}

func (g *Generator) spikeCard(market string, spike core.ArtistSpike, style *core.StyleSignal, overlap bool, now time.Time) core.PitchCard {
	var hook string
	switch {
	case spike.SpikeScore >= 70:
		hook = fmt.Sprintf("%s search interest surging in %s", spike.ArtistName, market)
	case spike.SpikeScore >= 50:
		hook = fmt.Sprintf("%s trending in %s searches", spike.ArtistName, market)
	default:
		hook = fmt.Sprintf("Rising interest in %s in %s", spike.ArtistName, market)
	}

	var whyNow []string
	for i, reason := range spike.WhySpiking {
		if i == 2 {
			break
		}
		whyNow = append(whyNow, reason)
	}
	if len(whyNow) == 0 {
		whyNow = append(whyNow, fmt.Sprintf("Search spike score %.0f/100 over %s", spike.SpikeScore, windowOr(spike.TimeWindow)))
	}

	topics := strings.ToLower(strings.Join(spike.RelatedTopics, " "))
	angle := fmt.Sprintf(angleRecord, spike.ArtistName)
	switch {
	case style != nil && overlap:
		angle = fmt.Sprintf(angleStyleArtist, spike.ArtistName, style.Source)
	case strings.Contains(topics, "album") || strings.Contains(topics, "single"):
		angle = fmt.Sprintf(anglePlaylist, spike.ArtistName)
	case strings.Contains(topics, "tour") || strings.Contains(topics, "concert"):
		angle = fmt.Sprintf(angleLive, spike.ArtistName)
	}

	steps := []string{fmt.Sprintf(stepArtistTeam, spike.ArtistName), stepStreamCheck}

	ids := []string{spike.ID}
	risks := append([]string(nil), spike.RiskNotes...)
	text := spike.ArtistName + " " + strings.Join(spike.RelatedTopics, " ") + " " + strings.Join(spike.WhySpiking, " ")
	if style != nil {
		ids = append(ids, style.ID)
		whyNow = append(whyNow, fmt.Sprintf("Style coverage: %s (%s)", style.Headline, style.Source))
		steps = append(steps, stepPartnerships)
		risks = append(risks, style.RiskNotes...)
		text += " " + style.Headline
		if style.RiskLevel == core.RiskMedium {
			risks = append(risks, riskHighVisibility)
		}
	} else {
		steps = append(steps, stepArtistRel)
	}

	if spike.Ambiguous {
		risks = append(risks, riskAmbiguous)
	}
	if spike.Confidence == core.LevelLow || now.Sub(spike.CollectedAt) > g.settings.Window/2 {
		risks = append(risks, riskStale)
	}
	if containsAny(text, politicalTerms) {
		risks = append(risks, riskPolitical)
	}
	if containsAny(text, competitorTerms) {
		risks = append(risks, riskCompetitor)
	}
	if spike.SpikeScore >= 70 {
		risks = append(risks, riskHighVisibility)
	}

	return core.PitchCard{
		ID:          core.PitchCardID(market, ids, now),
		Market:      market,
		Hook:        hook,
		WhyNow:      whyNow,
		Angle:       angle,
		NextSteps:   steps,
		Risks:       dedupe(risks, riskBrandSafety),
		Confidence:  g.confidence(&spike, style, overlap),
		SignalIDs:   ids,
		GeneratedAt: now,
		ExpiresAt:   now.Add(spikeCardTTL),
	}
}

func (g *Generator) styleCard(market string, style core.StyleSignal, spikes []core.ArtistSpike, now time.Time) core.PitchCard {
	headline := style.Headline
	if cut := core.Truncate(headline, 60); cut != headline {
		headline = strings.TrimSpace(cut) + "..."
	}

	whyNow := []string{"Source: " + style.Source}
	for _, tag := range style.SpotifyTags {
		if d, ok := tagDescriptions[tag]; ok && len(whyNow) < 3 {
			whyNow = append(whyNow, d)
		}
	}
	for _, spike := range spikes {
		if overlaps(spike, style) {
			whyNow = append(whyNow, "Related artist trending: "+spike.ArtistName)
			break
		}
	}

	angle := angleSpotlight
	switch {
	case hasTag(style.SpotifyTags, "artist_collab"):
		angle = anglePartnership
	case hasTag(style.SpotifyTags, "tour_merch"):
		angle = angleMerch
	case hasTag(style.SpotifyTags, "youth_culture"):
		angle = angleCreator
	}

	risks := append([]string(nil), style.RiskNotes...)
	if style.RiskLevel == core.RiskMedium {
		risks = append(risks, riskHighVisibility)
	}
	if containsAny(style.Headline+" "+style.Summary, politicalTerms) {
		risks = append(risks, riskPolitical)
	}
	if containsAny(style.Headline, competitorTerms) {
		risks = append(risks, riskCompetitor)
	}

	return core.PitchCard{
		ID:          core.PitchCardID(market, []string{style.ID}, now),
		Market:      market,
		Hook:        "Style moment: " + headline,
		WhyNow:      whyNow,
		Angle:       angle,
		NextSteps:   []string{stepPartnerships, stepCreators, stepMerchBrief},
		Risks:       dedupe(risks, riskBrandSafety),
		Confidence:  g.confidence(nil, &style, false),
		SignalIDs:   []string{style.ID},
		GeneratedAt: now,
		ExpiresAt:   now.Add(styleCardTTL),
	}
}

// dedupe removes repeated bullets preserving order; an empty result gets
// the fallback bullet.
func dedupe(items []string, fallback string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	if len(out) == 0 {
		out = []string{fallback}
	}
	return out
}

func windowOr(w string) string {
	if w == "" {
		return "24h"
	}
	return w
}
