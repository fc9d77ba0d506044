package sources

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
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

// RSSAdapter turns news feed entries into trend items.
type RSSAdapter struct {
	feeds    []config.FeedConfig
	parser   *gofeed.Parser
	limiter  *rate.Limiter
	maxItems int
	now      func() time.Time
	log      *slog.Logger
}

// NewRSSAdapter creates an RSS adapter with a shared rate limit across feeds.
func NewRSSAdapter(cfg config.RSSConfig) *RSSAdapter {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: 30 * time.Second}
	if cfg.UserAgent != "" {
		parser.UserAgent = cfg.UserAgent
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 50
	}

	return &RSSAdapter{
		feeds:    cfg.Feeds,
		parser:   parser,
		limiter:  rate.NewLimiter(limit, burst),
		maxItems: maxItems,
		now:      time.Now,
		log:      logger.With("source.rss"),
	}
}

// Name returns the adapter name.
func (r *RSSAdapter) Name() string { return "rss" }

// Fetch reads every configured feed. A single broken feed is logged and
// skipped; the adapter fails only when every feed fails.
func (r *RSSAdapter) Fetch(ctx context.Context, targetMarkets, keywords []string) ([]core.TrendItem, error) {
	if len(r.feeds) == 0 {
		return nil, fmt.Errorf("no rss feeds configured")
	}

	var items []core.TrendItem
	var failures []string
	for _, feed := range r.feeds {
		if feed.Market != "" && len(targetMarkets) > 0 && !containsFold(targetMarkets, feed.Market) {
			continue
		}
		feedItems, err := r.fetchFeed(ctx, feed, targetMarkets, keywords)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Warn("Failed to fetch feed", "feed", feed.Name, "error", err)
			failures = append(failures, feed.Name)
			continue
		}
		items = append(items, feedItems...)
	}

	if len(items) == 0 && len(failures) > 0 {
		return nil, fmt.Errorf("all feeds failed: %s", strings.Join(failures, ", "))
	}
	return items, nil
}

func (r *RSSAdapter) fetchFeed(ctx context.Context, feed config.FeedConfig, targetMarkets, keywords []string) ([]core.TrendItem, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	parsed, err := r.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", feed.Name, err)
	}

	now := r.now()
	entries := parsed.Items
	if len(entries) > r.maxItems {
		entries = entries[:r.maxItems]
	}

	items := make([]core.TrendItem, 0, len(entries))
	for rank, entry := range entries {
		description := cleaner.CleanText(entry.Description)
		if !matchesKeywords(entry.Title+" "+description, keywords) {
			continue
		}

		observed := now
		if entry.PublishedParsed != nil {
			observed = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			observed = entry.UpdatedParsed.UTC()
		}

		market := strings.ToUpper(feed.Market)
		if market == "" {
			market = markets.Detect(entry.Title+" "+description, targetMarkets)
		}

		items = append(items, core.TrendItem{
			Source:     r.Name(),
			Market:     market,
			Title:      strings.TrimSpace(entry.Title),
			Text:       description,
			ObservedAt: observed,
			Magnitude:  recencyWeightedRank(rank, len(entries), now.Sub(observed)),
			URL:        entry.Link,
			Metadata: map[string]string{
				"feed_name": feed.Name,
				"feed_url":  feed.URL,
				"type":      "news_article",
			},
		})
	}
	return items, nil
}

// HealthCheck reports whether the first feed can be parsed.
func (r *RSSAdapter) HealthCheck(ctx context.Context) bool {
	if len(r.feeds) == 0 {
		return false
	}
	_, err := r.parser.ParseURLWithContext(r.feeds[0].URL, ctx)
	return err == nil
}

// recencyWeightedRank gives earlier feed positions more weight and halves the
// weight for every day of age.
func recencyWeightedRank(rank, total int, age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	position := float64(total-rank) * 1000
	return math.Round(position * math.Pow(0.5, age.Hours()/24))
}

func matchesKeywords(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
