// Package markets maps free text to the African markets it refers to.
package markets

import (
	"regexp"
	"sort"
	"strings"
)

// Keywords lists place names and demonyms per market code.
var Keywords = map[string][]string{
	"ZA": {"south africa", "south african", "johannesburg", "cape town", "pretoria", "durban", "soweto", "mzansi"},
	"NG": {"nigeria", "nigerian", "lagos", "abuja", "naija"},
	"KE": {"kenya", "kenyan", "nairobi", "mombasa"},
	"GH": {"ghana", "ghanaian", "accra", "kumasi"},
	"TZ": {"tanzania", "tanzanian", "dar es salaam", "dodoma", "bongo"},
	"UG": {"uganda", "ugandan", "kampala"},
	"AO": {"angola", "angolan", "luanda", "kuduro"},
	"CI": {"ivory coast", "côte d'ivoire", "cote d'ivoire", "abidjan", "ivorian"},
	"SN": {"senegal", "senegalese", "dakar"},
	"EG": {"egypt", "egyptian", "cairo", "alexandria"},
	"MA": {"morocco", "moroccan", "rabat", "casablanca", "marrakech"},
}

var names = map[string]string{
	"ZA": "South Africa",
	"NG": "Nigeria",
	"KE": "Kenya",
	"GH": "Ghana",
	"TZ": "Tanzania",
	"UG": "Uganda",
	"AO": "Angola",
	"CI": "Côte d'Ivoire",
	"SN": "Senegal",
	"EG": "Egypt",
	"MA": "Morocco",
}

// Name returns the display name of a market code, or the code itself.
func Name(code string) string {
	if n, ok := names[strings.ToUpper(code)]; ok {
		return n
	}
	if code == "" {
		return "an unattributed market"
	}
	return code
}

// Core is the default market set used when content is pan-African.
var Core = []string{"NG", "KE", "GH", "ZA"}

var (
	patterns = compile()
	africaRe = regexp.MustCompile(`(?i)\bafrica(n)?\b`)
)

func compile() map[string][]*regexp.Regexp {
	out := make(map[string][]*regexp.Regexp, len(Keywords))
	for market, kws := range Keywords {
		for _, kw := range kws {
			out[market] = append(out[market], regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
		}
	}
	return out
}

// Scores counts keyword hits per market.
func Scores(text string) map[string]int {
	scores := make(map[string]int)
	for market, res := range patterns {
		for _, re := range res {
			if re.MatchString(text) {
				scores[market]++
			}
		}
	}
	return scores
}

// Infer returns the market with the most keyword hits, ties broken
// alphabetically. Empty when nothing matches.
func Infer(text string) string {
	scores := Scores(text)
	best, bestScore := "", 0
	for _, market := range sortedKeys(scores) {
		if scores[market] > bestScore {
			best, bestScore = market, scores[market]
		}
	}
	return best
}

// Detect returns the first candidate market mentioned in text.
func Detect(text string, candidates []string) string {
	for _, market := range candidates {
		for _, re := range patterns[strings.ToUpper(market)] {
			if re.MatchString(text) {
				return strings.ToUpper(market)
			}
		}
	}
	return ""
}

// Relevant returns every market mentioned in text, sorted. Text that only
// says "africa" or "african" is relevant to the core markets.
func Relevant(text string) []string {
	markets := sortedKeys(Scores(text))
	if len(markets) == 0 && africaRe.MatchString(text) {
		return append([]string(nil), Core...)
	}
	return markets
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
