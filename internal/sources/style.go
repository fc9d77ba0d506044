package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"trendpulse/internal/cleaner"
	"trendpulse/internal/config"
	"trendpulse/internal/core"
	"trendpulse/internal/logger"
	"trendpulse/internal/markets"
)

// spotifyTagPatterns flag why a style story matters to an audio brand.
var spotifyTagPatterns = map[string][]*regexp.Regexp{
	"artist_collab": {
		regexp.MustCompile(`(?i)\b(collab|collaboration|featuring|ft\.|feat\.)`),
		regexp.MustCompile(`(?i)\b(artist|musician|rapper|singer|dj)\b.*\b(fashion|style|brand)\b`),
	},
	"tour_merch": {
		regexp.MustCompile(`(?i)\b(tour|concert|merch|merchandise|drop)\b`),
		regexp.MustCompile(`(?i)\b(capsule|collection|limited)\b`),
	},
	"youth_culture": {
		regexp.MustCompile(`(?i)\b(gen.?z|youth|young|teen|student)\b`),
		regexp.MustCompile(`(?i)\b(viral|trend|tiktok|challenge)\b`),
	},
	"music_fashion": {
		regexp.MustCompile(`(?i)\b(album|music|video)\b.*\b(fashion|outfit|style)\b`),
		regexp.MustCompile(`(?i)\b(fashion week|runway)\b.*\b(music|artist)\b`),
	},
	"streetwear": {
		regexp.MustCompile(`(?i)\b(streetwear|street style|sneaker|hypebeast)\b`),
		regexp.MustCompile(`(?i)\b(supreme|off.?white|nike|adidas|jordan)\b`),
	},
	"african_designer": {
		regexp.MustCompile(`(?i)\b(african designer|lagos fashion|africa fashion)\b`),
		regexp.MustCompile(`(?i)\b(maxhosa|thebe magugu|kenneth ize|orange culture)\b`),
	},
}

var (
	styleHighRisk   = []string{"controversy", "scandal", "appropriation", "racist", "offensive", "boycott", "cancelled", "backlash"}
	styleMediumRisk = []string{"criticism", "debate", "controversial", "divisive", "provocative"}
)

// StyleFeed aggregates fashion and streetwear feeds into style signals.
type StyleFeed struct {
	feeds   []config.FeedConfig
	artists []string
	parser  *gofeed.Parser
	limiter *rate.Limiter
	maxAge  time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// NewStyleFeed creates a style feed. Feed market "AFRICA" marks an
// Africa-focused outlet relevant to the core markets by default.
func NewStyleFeed(feeds []config.FeedConfig, artists []string, rps float64) *StyleFeed {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: 30 * time.Second}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &StyleFeed{
		feeds:   feeds,
		artists: artists,
		parser:  parser,
		limiter: rate.NewLimiter(limit, 1),
		maxAge:  7 * 24 * time.Hour,
		now:     time.Now,
		log:     logger.With("source.style"),
	}
}

// Name identifies the feed in health reports.
func (s *StyleFeed) Name() string { return "style_feed" }

// Fetch returns style signals relevant to any of the given markets, newest
// first. Signals with no detected market are kept only when markets is empty.
func (s *StyleFeed) Fetch(ctx context.Context, targetMarkets []string) ([]core.StyleSignal, error) {
	var signals []core.StyleSignal
	failed := 0
	for _, feed := range s.feeds {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		parsed, err := s.parser.ParseURLWithContext(feed.URL, ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("Failed to fetch style feed", "feed", feed.Name, "error", err)
			failed++
			continue
		}
		signals = append(signals, s.fromFeed(feed, parsed)...)
	}
	if failed > 0 && failed == len(s.feeds) {
		return nil, fmt.Errorf("%w: all %d style feeds failed", core.ErrSourceUnavailable, failed)
	}

	filtered := signals[:0]
	for _, sig := range signals {
		if len(targetMarkets) == 0 || relevantToAny(sig, targetMarkets) {
			filtered = append(filtered, sig)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].PublishedAt.After(filtered[j].PublishedAt)
	})
	return filtered, nil
}

func (s *StyleFeed) fromFeed(feed config.FeedConfig, parsed *gofeed.Feed) []core.StyleSignal {
	now := s.now().UTC()
	cutoff := now.Add(-s.maxAge)

	var out []core.StyleSignal
	for i, entry := range parsed.Items {
		if i >= 20 {
			break
		}
		published := now
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}
		if published.Before(cutoff) {
			continue
		}
		out = append(out, s.BuildSignal(feed, entry.Title, entry.Link, entry.Description, published))
	}
	return out
}

// BuildSignal derives a style signal from a single story.
func (s *StyleFeed) BuildSignal(feed config.FeedConfig, headline, link, description string, published time.Time) core.StyleSignal {
	summary := truncateWords(cleaner.CleanText(description), 200)
	text := headline + " " + summary

	relevant := markets.Relevant(text)
	if len(relevant) == 0 {
		switch region := strings.ToUpper(feed.Market); region {
		case "":
		case "AFRICA":
			relevant = append([]string(nil), markets.Core...)
		default:
			relevant = []string{region}
		}
	}

	tags := detectSpotifyTags(text)
	risk, notes := styleRisk(text)

	magnitude := 20 + 15*float64(len(tags))
	if len(relevant) > 0 {
		magnitude += 20
	}

	return core.StyleSignal{
		ID:          signalID(link, headline),
		Headline:    strings.TrimSpace(headline),
		Source:      feed.Name,
		SourceURL:   link,
		Summary:     summary,
		Markets:     relevant,
		Magnitude:   math.Min(magnitude, 100),
		SpotifyTags: tags,
		Entities:    matchNames(text, s.artists),
		RiskLevel:   risk,
		RiskNotes:   notes,
		PublishedAt: published,
		CollectedAt: s.now().UTC(),
	}
}

// HealthCheck reports whether the first feed can be parsed.
func (s *StyleFeed) HealthCheck(ctx context.Context) bool {
	if len(s.feeds) == 0 {
		return false
	}
	_, err := s.parser.ParseURLWithContext(s.feeds[0].URL, ctx)
	return err == nil
}

func detectSpotifyTags(text string) []string {
	var tags []string
	for tag, patterns := range spotifyTagPatterns {
		for _, re := range patterns {
			if re.MatchString(text) {
				tags = append(tags, tag)
				break
			}
		}
	}
	sort.Strings(tags)
	return tags
}

func styleRisk(text string) (core.RiskLevel, []string) {
	lower := strings.ToLower(text)
	for _, kw := range styleHighRisk {
		if strings.Contains(lower, kw) {
			return core.RiskHigh, []string{fmt.Sprintf("Coverage mentions %q; check sentiment before engaging", kw)}
		}
	}
	for _, kw := range styleMediumRisk {
		if strings.Contains(lower, kw) {
			return core.RiskMedium, []string{fmt.Sprintf("Story framed around %s; expect mixed reactions", kw)}
		}
	}
	return core.RiskLow, nil
}

func relevantToAny(sig core.StyleSignal, targets []string) bool {
	for _, m := range targets {
		if sig.RelevantTo(m) {
			return true
		}
	}
	return false
}

func matchNames(text string, names []string) []string {
	var found []string
	for _, name := range names {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		if re.MatchString(text) {
			found = append(found, name)
		}
	}
	return found
}

func signalID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

func truncateWords(s string, max int) string {
	cut := core.Truncate(s, max)
	if cut == s {
		return s
	}
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
