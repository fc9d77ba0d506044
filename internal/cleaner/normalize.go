// Package cleaner normalizes, filters and deduplicates raw trend items.
package cleaner

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var (
	urlPattern   = regexp.MustCompile(`https?://\S+|www\.\S+`)
	spacePattern = regexp.MustCompile(`\s+`)
	tagPattern   = regexp.MustCompile(`<[^>]+>`)
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "with": true,
	"by": true, "from": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "as": true, "it": true, "its": true, "this": true, "that": true,
	"after": true, "over": true, "into": true, "his": true, "her": true, "their": true,
}

var trackingParams = map[string]bool{
	"fbclid": true, "gclid": true, "igshid": true, "mc_cid": true, "mc_eid": true, "ref": true,
}

var boilerplatePattern = regexp.MustCompile(`(?i)read more|continue reading|click to subscribe|subscribe to our newsletter|the post appeared first on|follow us on|all rights reserved`)

// StripHTML returns the text content of an HTML fragment.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return tagPattern.ReplaceAllString(s, " ")
	}
	return doc.Text()
}

// Normalize lowercases a title and strips HTML, URLs, punctuation and
// stopwords.
func Normalize(title string) string {
	return strings.Join(Tokens(title), " ")
}

// Tokens returns the normalized tokens of a title in order.
func Tokens(title string) []string {
	text := strings.ToLower(StripHTML(title))
	text = urlPattern.ReplaceAllString(text, " ")
	text = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return ' '
	}, text)

	var tokens []string
	for _, tok := range strings.Fields(text) {
		if !stopwords[tok] {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// CleanText strips HTML, boilerplate phrases and tracking parameters from
// links embedded in body text.
func CleanText(text string) string {
	text = StripHTML(text)
	text = urlPattern.ReplaceAllStringFunc(text, CleanURL)
	text = boilerplatePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

// BodyText cleans text and drops the links left in it, keeping only the
// words a reader would see.
func BodyText(text string) string {
	text = urlPattern.ReplaceAllString(CleanText(text), " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

// CleanURL removes tracking query parameters. Unparseable input is returned
// unchanged.
func CleanURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	changed := false
	for key := range q {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			q.Del(key)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}
