package cleaner

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"trendpulse/internal/core"
)

// Skip reasons reported in run summaries.
const (
	ReasonTitleTooShort = "title_too_short"
	ReasonSpam          = "spam"
)

const minTitleLength = 3

var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bclick here\b`),
	regexp.MustCompile(`(?i)\bbuy now\b`),
	regexp.MustCompile(`(?i)\blimited offer\b`),
	regexp.MustCompile(`(?i)\bact fast\b`),
	regexp.MustCompile(`(?i)\b\d{4,}\s*followers\b`),
}

// QualityCheck returns a skip reason when the item should be dropped, or
// the empty string when it passes.
func QualityCheck(item core.TrendItem) string {
	title := strings.TrimSpace(StripHTML(item.Title))
	if utf8.RuneCountInString(title) < minTitleLength {
		return ReasonTitleTooShort
	}
	text := title + " " + CleanText(item.Text)
	for _, re := range spamPatterns {
		if re.MatchString(text) {
			return ReasonSpam
		}
	}
	return ""
}
