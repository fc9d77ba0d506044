// Package enricher attaches entities, language and market to canonical trends.
package enricher

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
	"trendpulse/internal/markets"
)

// EntityExtractor is an optional NLP capability for named entities.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]core.Entity, error)
}

type seedPattern struct {
	entity core.Entity
	re     *regexp.Regexp
}

// Enricher attaches entities, language and inferred market. It never
// changes titles or text.
type Enricher struct {
	seeds        []seedPattern
	extractor    EntityExtractor
	fallbackLang string
}

// New creates an enricher. extractor may be nil, in which case only seed
// lists are used.
func New(cfg config.Enrichment, extractor EntityExtractor) *Enricher {
	kinds := make([]string, 0, len(cfg.Seeds))
	for kind := range cfg.Seeds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	var seeds []seedPattern
	for _, kind := range kinds {
		for _, name := range cfg.Seeds[kind] {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			seeds = append(seeds, seedPattern{
				entity: core.Entity{Name: name, Kind: core.EntityKind(strings.ToLower(kind))},
				re:     regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`),
			})
		}
	}

	fallback := cfg.FallbackLanguage
	if fallback == "" {
		fallback = "en"
	}
	return &Enricher{
		seeds:        seeds,
		extractor:    extractor,
		fallbackLang: fallback,
	}
}

// SeedEntities returns the configured entities found in text.
func (e *Enricher) SeedEntities(text string) []core.Entity {
	var found []core.Entity
	for _, seed := range e.seeds {
		if seed.re.MatchString(text) {
			found = append(found, seed.entity)
		}
	}
	return found
}

// Enrich returns a copy of the trend with entities, language and market
// filled in. A failing extractor yields ErrEnrichmentDegraded alongside a
// seed-only result.
func (e *Enricher) Enrich(ctx context.Context, trend core.CanonicalTrend) (core.CanonicalTrend, error) {
	text := trendText(trend)

	lists := [][]core.Entity{trend.Entities, e.SeedEntities(text)}
	for _, item := range trend.Items {
		lists = append(lists, item.Entities)
	}

	var degraded error
	if e.extractor != nil {
		extracted, err := e.extractor.Extract(ctx, text)
		if err != nil {
			degraded = fmt.Errorf("%w: %v", core.ErrEnrichmentDegraded, err)
		} else {
			lists = append(lists, extracted)
		}
	}

	trend.Entities = core.MergeEntities(lists...)
	trend.Language = DetectLanguage(text, e.fallbackLang)
	if trend.Market == "" {
		trend.Market = markets.Infer(text)
	}
	return trend, degraded
}

func trendText(trend core.CanonicalTrend) string {
	if trend.Text == "" {
		return trend.Title
	}
	return trend.Title + " " + trend.Text
}
