// Package classifier assigns taxonomy topics to canonical trends.
package classifier

import (
	"regexp"
	"sort"
	"strings"

	"trendpulse/internal/cleaner"
	"trendpulse/internal/config"
	"trendpulse/internal/core"
)

// DefaultUncategorized is used when the taxonomy does not name one.
const DefaultUncategorized = "uncategorized"

type keyword struct {
	term   string
	weight float64
	re     *regexp.Regexp
}

type group struct {
	key      string
	priority int
	keywords []keyword
}

type topic struct {
	group
	subtopics []group
}

// Result is the outcome of classifying one trend.
type Result struct {
	Topic    string
	Subtopic string
	Score    float64
	Matched  []string
}

// Classifier matches trends against a compiled taxonomy.
type Classifier struct {
	topics        []topic
	uncategorized string
}

// New compiles the taxonomy. Keywords match case-insensitively at the start
// of a word, so "stream" also matches "streaming".
func New(taxonomy config.Taxonomy) *Classifier {
	order := make(map[string]int)
	for i, key := range taxonomy.TopicOrder() {
		order[key] = i
	}

	c := &Classifier{uncategorized: taxonomy.Uncategorized}
	if c.uncategorized == "" {
		c.uncategorized = DefaultUncategorized
	}

	for _, tc := range taxonomy.Topics {
		t := topic{group: compileGroup(tc.Key, order[tc.Key], tc.Keywords, tc.KeywordWeights)}
		for i, sub := range tc.Subtopics {
			t.subtopics = append(t.subtopics, compileGroup(sub.Key, i, sub.Keywords, nil))
		}
		c.topics = append(c.topics, t)
	}
	return c
}

func compileGroup(key string, priority int, terms []string, weights map[string]float64) group {
	g := group{key: key, priority: priority}
	seen := make(map[string]bool)
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true

		weight := 1.0
		if w, ok := weights[term]; ok && w > 0 {
			weight = w
		}
		g.keywords = append(g.keywords, keyword{
			term:   term,
			weight: weight,
			re:     regexp.MustCompile(`\b` + regexp.QuoteMeta(term)),
		})
	}
	return g
}

// Uncategorized returns the topic assigned when nothing matches.
func (c *Classifier) Uncategorized() string { return c.uncategorized }

// Classify picks the best topic and subtopic for a trend.
func (c *Classifier) Classify(trend core.CanonicalTrend) Result {
	text := classificationText(trend)

	best, bestScore, bestMatched := -1, 0.0, []string(nil)
	for i, t := range c.topics {
		score, matched := t.score(text)
		if score == 0 {
			continue
		}
		if best < 0 || beats(t.group, score, c.topics[best].group, bestScore) {
			best, bestScore, bestMatched = i, score, matched
		}
	}
	if best < 0 {
		return Result{Topic: c.uncategorized}
	}

	winner := c.topics[best]
	result := Result{Topic: winner.key, Score: bestScore, Matched: bestMatched}

	sub, subScore := -1, 0.0
	for i, s := range winner.subtopics {
		score, _ := s.score(text)
		if score == 0 {
			continue
		}
		if sub < 0 || beats(s, score, winner.subtopics[sub], subScore) {
			sub, subScore = i, score
		}
	}
	if sub >= 0 {
		result.Subtopic = winner.subtopics[sub].key
	}
	return result
}

// Apply returns a copy of the trend with topic and subtopic set.
func (c *Classifier) Apply(trend core.CanonicalTrend) core.CanonicalTrend {
	r := c.Classify(trend)
	trend.Topic = r.Topic
	trend.Subtopic = r.Subtopic
	return trend
}

func (g group) score(text string) (float64, []string) {
	var total float64
	var matched []string
	for _, kw := range g.keywords {
		if kw.re.MatchString(text) {
			total += kw.weight
			matched = append(matched, kw.term)
		}
	}
	sort.Strings(matched)
	return total, matched
}

// beats orders candidates by score, then priority, then key.
func beats(a group, aScore float64, b group, bScore float64) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.key < b.key
}

func classificationText(trend core.CanonicalTrend) string {
	normalized := trend.NormalizedTitle
	if normalized == "" {
		normalized = cleaner.Normalize(trend.Title)
	}
	parts := []string{normalized}
	for _, e := range trend.Entities {
		parts = append(parts, strings.ToLower(e.Name))
	}
	return strings.Join(parts, " ")
}
