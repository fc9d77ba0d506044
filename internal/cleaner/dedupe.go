package cleaner

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"trendpulse/internal/core"
)

// Similarity blends title-token Jaccard with an overlap term: entity Jaccard
// when both trends carry entities, otherwise the title-token overlap
// coefficient.
func Similarity(a, b core.CanonicalTrend, titleWeight float64) float64 {
	ta := tokenSet(strings.Fields(a.NormalizedTitle))
	tb := tokenSet(strings.Fields(b.NormalizedTitle))
	titleJ := jaccard(ta, tb)

	var overlap float64
	if len(a.Entities) > 0 && len(b.Entities) > 0 {
		overlap = jaccard(entitySet(a.Entities), entitySet(b.Entities))
	} else {
		overlap = overlapCoefficient(ta, tb)
	}
	return titleWeight*titleJ + (1-titleWeight)*overlap
}

// Merge collapses near-duplicate trends within each market. Pairs at or above
// the threshold are linked and each connected component becomes one trend;
// passes repeat until nothing merges. It returns the merged trends sorted by
// a stable key and the number of trends folded into others.
func (c *Cleaner) Merge(trends []core.CanonicalTrend) ([]core.CanonicalTrend, int) {
	current := append([]core.CanonicalTrend(nil), trends...)
	sortTrends(current)
	folded := 0

	for {
		g := simple.NewUndirectedGraph()
		for i := range current {
			g.AddNode(simple.Node(int64(i)))
		}

		linked := false
		for i := 0; i < len(current); i++ {
			for j := i + 1; j < len(current); j++ {
				if current[i].Market != current[j].Market {
					continue
				}
				if Similarity(current[i], current[j], c.titleWeight) >= c.threshold {
					g.SetEdge(simple.Edge{F: simple.Node(int64(i)), T: simple.Node(int64(j))})
					linked = true
				}
			}
		}
		if !linked {
			return current, folded
		}

		components := topo.ConnectedComponents(g)
		next := make([]core.CanonicalTrend, 0, len(components))
		for _, component := range components {
			if len(component) == 1 {
				next = append(next, current[component[0].ID()])
				continue
			}
			ids := make([]int, len(component))
			for k, node := range component {
				ids[k] = int(node.ID())
			}
			sort.Ints(ids)
			group := make([]core.CanonicalTrend, len(ids))
			for k, id := range ids {
				group[k] = current[id]
			}
			next = append(next, c.combine(group))
			folded += len(group) - 1
		}
		sortTrends(next)
		current = next
	}
}

// combine folds a group of trends into one, led by the canonical item.
func (c *Cleaner) combine(group []core.CanonicalTrend) core.CanonicalTrend {
	var items []core.TrendItem
	entityLists := make([][]core.Entity, 0, len(group))
	for _, t := range group {
		items = append(items, t.Items...)
		entityLists = append(entityLists, t.Entities)
	}
	c.sortItems(items)
	return c.fromItems(items, core.MergeEntities(entityLists...))
}

// wrap turns a single item into a one-member canonical trend.
func (c *Cleaner) wrap(item core.TrendItem) core.CanonicalTrend {
	return c.fromItems([]core.TrendItem{item}, core.MergeEntities(item.Entities))
}

// fromItems builds a canonical trend from items already in canonical order.
func (c *Cleaner) fromItems(items []core.TrendItem, entities []core.Entity) core.CanonicalTrend {
	lead := items[0]
	trend := core.CanonicalTrend{
		Title:           strings.TrimSpace(StripHTML(lead.Title)),
		NormalizedTitle: Normalize(lead.Title),
		Market:          lead.Market,
		CanonicalSource: lead.Source,
		Items:           items,
		Entities:        entities,
		FirstObserved:   lead.ObservedAt,
		LastObserved:    lead.ObservedAt,
		Magnitude:       lead.Magnitude,
		URL:             CleanURL(lead.URL),
	}

	sources := make(map[string]bool)
	for _, item := range items {
		sources[item.Source] = true
		if item.ObservedAt.Before(trend.FirstObserved) {
			trend.FirstObserved = item.ObservedAt
		}
		if item.ObservedAt.After(trend.LastObserved) {
			trend.LastObserved = item.ObservedAt
		}
		if item.Magnitude > trend.Magnitude {
			trend.Magnitude = item.Magnitude
		}
		if trend.URL == "" && item.URL != "" {
			trend.URL = CleanURL(item.URL)
		}
	}
	for source := range sources {
		trend.Sources = append(trend.Sources, source)
	}
	sort.Strings(trend.Sources)
	trend.Text = bodyOf(trend.Title, items)
	return trend
}

// bodyOf joins the cleaned titles and bodies of items, skipping the display
// title and repeated passages.
func bodyOf(title string, items []core.TrendItem) string {
	seen := map[string]bool{title: true}
	var parts []string
	for _, item := range items {
		for _, part := range []string{BodyText(item.Title), BodyText(item.Text)} {
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// sortItems orders items canonical-first: highest source priority, then
// earliest observation, then source name, then id.
func (c *Cleaner) sortItems(items []core.TrendItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if pa, pb := c.priority[a.Source], c.priority[b.Source]; pa != pb {
			return pa > pb
		}
		if !a.ObservedAt.Equal(b.ObservedAt) {
			return a.ObservedAt.Before(b.ObservedAt)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.ID < b.ID
	})
}

func sortTrends(trends []core.CanonicalTrend) {
	sort.SliceStable(trends, func(i, j int) bool {
		a, b := trends[i], trends[j]
		if a.Market != b.Market {
			return a.Market < b.Market
		}
		if a.NormalizedTitle != b.NormalizedTitle {
			return a.NormalizedTitle < b.NormalizedTitle
		}
		return leadID(a) < leadID(b)
	})
}

func leadID(t core.CanonicalTrend) string {
	if len(t.Items) == 0 {
		return ""
	}
	return t.Items[0].ID
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func entitySet(entities []core.Entity) map[string]bool {
	set := make(map[string]bool, len(entities))
	for _, e := range entities {
		if k := e.Key(); k != "" {
			set[k] = true
		}
	}
	return set
}

func intersection(a, b map[string]bool) int {
	n := 0
	for k := range a {
		if b[k] {
			n++
		}
	}
	return n
}

func jaccard(a, b map[string]bool) float64 {
	inter := intersection(a, b)
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func overlapCoefficient(a, b map[string]bool) float64 {
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	if smaller == 0 {
		return 0
	}
	return float64(intersection(a, b)) / float64(smaller)
}
