package enricher

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const minLanguageTextLength = 20

var (
	frenchMarkers     = []string{"le", "la", "les", "de", "du", "des", "est", "sont", "avec", "pour"}
	portugueseMarkers = []string{"não", "que", "para", "com", "uma", "são", "está"}
	swahiliMarkers    = []string{"na", "kwa", "wa", "ya", "ni", "kutoka", "kwamba"}
)

// DetectLanguage guesses an ISO 639-1 code from marker words. Text shorter
// than 20 characters returns fallback.
func DetectLanguage(text, fallback string) string {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minLanguageTextLength {
		return fallback
	}

	for _, r := range text {
		if unicode.Is(unicode.Arabic, r) {
			return "ar"
		}
	}

	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		words[w] = true
	}

	switch {
	case countMarkers(words, frenchMarkers) >= 3:
		return "fr"
	case countMarkers(words, portugueseMarkers) >= 2:
		return "pt"
	case countMarkers(words, swahiliMarkers) >= 2:
		return "sw"
	default:
		return "en"
	}
}

func countMarkers(words map[string]bool, markers []string) int {
	n := 0
	for _, m := range markers {
		if words[m] {
			n++
		}
	}
	return n
}
