package render

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"trendpulse/internal/core"
	"trendpulse/internal/markets"
	"trendpulse/internal/summarize"
)

// Markdown renders a digest and the current pitch cards as markdown.
func Markdown(d summarize.Digest, cards []core.PitchCard) string {
	var b strings.Builder
	dateStr := d.GeneratedAt.UTC().Format("2006-01-02")

	// Digest Title
	fmt.Fprintf(&b, "# TrendPulse Digest - %s\n\n", dateStr)

	if d.Total == 0 {
		b.WriteString("No trends recorded for this digest.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%s trends across %s. %d risks, %d opportunities, %d on the watchlist.\n\n",
		humanize.Comma(int64(d.Total)), pluralMarkets(len(d.ByMarket)),
		len(d.Risks), len(d.Opportunities), len(d.Watchlist))

	section(&b, "Risks", d.Risks)
	section(&b, "Opportunities", d.Opportunities)
	section(&b, "Watchlist", d.Watchlist)

	if len(cards) > 0 {
		b.WriteString("## Trend-jack pitch cards\n\n")
		for _, c := range cards {
			fmt.Fprintf(&b, "### %s\n\n", c.Hook)
			fmt.Fprintf(&b, "*%s · %s confidence*\n\n", markets.Name(c.Market), c.Confidence)
			if c.Angle != "" {
				fmt.Fprintf(&b, "%s\n\n", c.Angle)
			}
			bullets(&b, "Why now", c.WhyNow)
			bullets(&b, "Next steps", c.NextSteps)
			bullets(&b, "Risks", c.Risks)
		}
	}

	b.WriteString("## Breakdown\n\n")
	table(&b, "Market", d.ByMarket, markets.Name)
	table(&b, "Topic", d.ByTopic, nil)
	return b.String()
}

func section(b *strings.Builder, title string, records []core.TrendRecord) {
	if len(records) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for i, r := range records {
		fmt.Fprintf(b, "### %d. %s\n\n", i+1, r.Trend.Title)
		fmt.Fprintf(b, "**%s** · %s · %s · score %.0f · %s risk\n\n",
			r.Breakdown.Action, markets.Name(r.Trend.Market), topicLabel(r), r.Breakdown.Total, r.Breakdown.RiskLevel)
		if r.Summary.WhatsHappening != "" {
			fmt.Fprintf(b, "%s\n\n", r.Summary.WhatsHappening)
		}
		bullets(b, "Why it matters", r.Summary.WhyItMatters)
		if r.Summary.IfGoesWrong != "" {
			fmt.Fprintf(b, "**If it goes wrong:** %s\n\n", r.Summary.IfGoesWrong)
		}
		if r.Summary.NextStep != "" {
			fmt.Fprintf(b, "**Next step:** %s\n\n", r.Summary.NextStep)
		}
		if r.Trend.URL != "" {
			fmt.Fprintf(b, "[Source](%s)\n\n", r.Trend.URL)
		}
		b.WriteString("---\n\n")
	}
}

func topicLabel(r core.TrendRecord) string {
	if r.Summary.TopicDisplay != "" {
		return r.Summary.TopicDisplay
	}
	return r.Trend.Topic
}

func bullets(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func table(b *strings.Builder, label string, counts map[string]int, display func(string) string) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	fmt.Fprintf(b, "| %s | Trends |\n|---|---|\n", label)
	for _, k := range keys {
		name := k
		if display != nil {
			name = display(k)
		}
		fmt.Fprintf(b, "| %s | %d |\n", name, counts[k])
	}
	b.WriteString("\n")
}

func pluralMarkets(n int) string {
	if n == 1 {
		return "1 market"
	}
	return fmt.Sprintf("%d markets", n)
}

// RenderMarkdownDigest writes the digest markdown to outputDir as
// digest_YYYY-MM-DD.md and returns the file path.
func RenderMarkdownDigest(d summarize.Digest, cards []core.PitchCard, outputDir string) (string, error) {
	filename := fmt.Sprintf("digest_%s.md", d.GeneratedAt.UTC().Format("2006-01-02"))
	return WriteDigestToFile(Markdown(d, cards), outputDir, filename)
}

// WriteDigestToFile writes the provided content to a file in the specified directory
func WriteDigestToFile(content, outputDir, filename string) (string, error) {
	if outputDir == "" {
		outputDir = "digests" // Default output directory
	}

	err := os.MkdirAll(outputDir, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, filename)

	err = os.WriteFile(filePath, []byte(content), 0644)
	if err != nil {
		return "", fmt.Errorf("failed to write digest file %s: %w", filePath, err)
	}

	return filePath, nil
}
