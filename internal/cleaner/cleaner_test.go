package cleaner

import (
	"math"
	"reflect"
	"testing"
	"time"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestCleaner() *Cleaner {
	return New(config.Dedup{Threshold: 0.5, TitleWeight: 0.5}, map[string]int{
		"google_trends": 90,
		"news_rss":      80,
		"reddit":        40,
	})
}

func item(source, market, title string, offset time.Duration, magnitude float64) core.TrendItem {
	return core.TrendItem{
		Source:     source,
		Market:     market,
		Title:      title,
		ObservedAt: base.Add(offset),
		Magnitude:  magnitude,
	}.WithID()
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Burna Boy drops new single":                "burna boy drops new single",
		"<b>The</b> Amapiano wave, in Soweto!":      "amapiano wave soweto",
		"Watch: https://x.example/v?id=1 Tems live": "watch tems live",
		"  Davido's   tour   is   on  ":             "davido s tour",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanURLAndText(t *testing.T) {
	got := CleanURL("https://news.example/a?utm_source=x&id=7&fbclid=abc")
	if got != "https://news.example/a?id=7" {
		t.Errorf("CleanURL() = %q", got)
	}
	if CleanURL("https://news.example/a") != "https://news.example/a" {
		t.Error("Expected URL without query to be unchanged")
	}

	text := CleanText("<p>Tems announces tour.</p> Read more at https://n.example/x?utm_medium=rss")
	if text != "Tems announces tour. at https://n.example/x" {
		t.Errorf("CleanText() = %q", text)
	}
}

func TestQualityCheck(t *testing.T) {
	tests := []struct {
		title string
		text  string
		want  string
	}{
		{"ok", "", ReasonTitleTooShort},
		{"Buy now: Tems merch", "", ReasonSpam},
		{"Grow your page", "Get 10000 followers today", ReasonSpam},
		{"Tems announces tour", "", ""},
	}
	for _, tt := range tests {
		got := QualityCheck(core.TrendItem{Title: tt.title, Text: tt.text})
		if got != tt.want {
			t.Errorf("QualityCheck(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestSimilarityScenario(t *testing.T) {
	c := newTestCleaner()
	a := c.wrap(item("news_rss", "NG", "Burna Boy drops new single", 0, 100))
	b := c.wrap(item("reddit", "NG", "Burna Boy releases surprise single", time.Hour, 50))

	got := Similarity(a, b, 0.5)
	want := 0.5*3.0/7.0 + 0.5*3.0/5.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity() = %f, want %f", got, want)
	}
	if got < c.Threshold() {
		t.Errorf("Expected similarity %f above threshold %f", got, c.Threshold())
	}
}

func TestSimilarityUsesEntitiesWhenPresent(t *testing.T) {
	c := newTestCleaner()
	a := c.wrap(item("news_rss", "NG", "Burna Boy drops new single", 0, 1))
	b := c.wrap(item("reddit", "NG", "Burna Boy releases surprise single", 0, 1))
	a.Entities = []core.Entity{{Name: "Burna Boy", Kind: core.EntityArtist}}
	b.Entities = []core.Entity{{Name: "burna boy", Kind: core.EntityArtist}}

	got := Similarity(a, b, 0.5)
	want := 0.5*3.0/7.0 + 0.5*1.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity() = %f, want %f", got, want)
	}
}

func TestCleanMergesScenarioOne(t *testing.T) {
	c := newTestCleaner()
	trends, stats := c.Clean([]core.TrendItem{
		item("reddit", "NG", "Burna Boy releases surprise single", 0, 50),
		item("news_rss", "NG", "Burna Boy drops new single", time.Hour, 900),
	})

	if len(trends) != 1 {
		t.Fatalf("Expected 1 canonical trend, got %d", len(trends))
	}
	trend := trends[0]
	if !reflect.DeepEqual(trend.Sources, []string{"news_rss", "reddit"}) {
		t.Errorf("Expected both sources, got %v", trend.Sources)
	}
	if trend.CanonicalSource != "news_rss" || trend.Title != "Burna Boy drops new single" {
		t.Errorf("Expected higher-priority source to lead, got %s %q", trend.CanonicalSource, trend.Title)
	}
	if trend.Magnitude != 900 {
		t.Errorf("Expected max magnitude 900, got %v", trend.Magnitude)
	}
	if !trend.FirstObserved.Equal(base) || !trend.LastObserved.Equal(base.Add(time.Hour)) {
		t.Errorf("Unexpected observation window %v - %v", trend.FirstObserved, trend.LastObserved)
	}
	if stats.Merged != 1 || stats.Output != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestMergeRespectsMarkets(t *testing.T) {
	c := newTestCleaner()
	trends, _ := c.Clean([]core.TrendItem{
		item("news_rss", "NG", "Burna Boy drops new single", 0, 1),
		item("reddit", "KE", "Burna Boy drops new single", 0, 1),
	})
	if len(trends) != 2 {
		t.Errorf("Expected items in different markets to stay apart, got %d", len(trends))
	}
}

func TestMergeIsTransitive(t *testing.T) {
	c := newTestCleaner()
	a := c.wrap(item("news_rss", "NG", "Wizkid Lagos concert", 0, 1))
	b := c.wrap(item("reddit", "NG", "Lagos concert tickets", 0, 1))
	cc := c.wrap(item("google_trends", "NG", "Concert tickets sold out", 0, 1))

	if Similarity(a, cc, 0.5) >= c.Threshold() {
		t.Fatal("Fixture expects the outer pair to be dissimilar")
	}

	orders := [][]core.CanonicalTrend{
		{a, b, cc}, {a, cc, b}, {b, a, cc},
		{b, cc, a}, {cc, a, b}, {cc, b, a},
	}
	var first []core.CanonicalTrend
	for _, order := range orders {
		merged, folded := c.Merge(order)
		if len(merged) != 1 || folded != 2 {
			t.Fatalf("Expected one group of three, got %d trends (%d folded)", len(merged), folded)
		}
		if merged[0].CanonicalSource != "google_trends" {
			t.Errorf("Expected google_trends to lead, got %s", merged[0].CanonicalSource)
		}
		if len(merged[0].Items) != 3 {
			t.Errorf("Expected 3 items owned by the trend, got %d", len(merged[0].Items))
		}
		if first == nil {
			first = merged
		} else if !reflect.DeepEqual(merged, first) {
			t.Errorf("Expected the same merge for every input order, got %+v", merged)
		}
	}
}

func TestMergeIdempotentAndOrderIndependent(t *testing.T) {
	c := newTestCleaner()
	items := []core.TrendItem{
		item("news_rss", "NG", "Burna Boy drops new single", 0, 10),
		item("reddit", "NG", "Burna Boy releases surprise single", time.Minute, 20),
		item("google_trends", "KE", "Sauti Sol reunion tour", 0, 30),
		item("reddit", "KE", "Nairobi traffic update", 0, 5),
		item("news_rss", "ZA", "Amapiano night in Soweto", 0, 15),
	}

	forward, _ := c.Clean(items)
	reversed := make([]core.TrendItem, len(items))
	for i := range items {
		reversed[len(items)-1-i] = items[i]
	}
	backward, _ := c.Clean(reversed)

	if !reflect.DeepEqual(forward, backward) {
		t.Errorf("Expected order-independent output\nforward:  %+v\nbackward: %+v", forward, backward)
	}

	again, folded := c.Merge(forward)
	if folded != 0 || !reflect.DeepEqual(again, forward) {
		t.Error("Expected merging an already merged set to be a no-op")
	}
}

func TestCleanDoesNotMutateItems(t *testing.T) {
	c := newTestCleaner()
	in := item("news_rss", "NG", "<b>Tems</b> announces tour", 0, 1)
	in.URL = "https://n.example/a?utm_source=x"
	original := in

	trends, _ := c.Clean([]core.TrendItem{in})
	if !reflect.DeepEqual(trends[0].Items[0], original) {
		t.Error("Expected item to be carried unchanged")
	}
	if trends[0].Title != "Tems announces tour" || trends[0].URL != "https://n.example/a" {
		t.Errorf("Expected cleaned display fields, got %q %q", trends[0].Title, trends[0].URL)
	}
}

func TestCleanBuildsBodyText(t *testing.T) {
	c := newTestCleaner()
	in := item("news_rss", "NG", "Burna Boy drops new single", 0, 1)
	in.Text = `<p>Fans react to the <a href="https://n.example/politics/election-protest?utm_source=x">new single</a>.</p> https://n.example/x?utm_source=y Read more`
	other := item("reddit", "NG", "<i>Burna Boy</i> releases surprise single", time.Minute, 1)

	trends, _ := c.Clean([]core.TrendItem{in, other})
	if len(trends) != 1 {
		t.Fatalf("Expected 1 canonical trend, got %d", len(trends))
	}
	want := "Fans react to the new single. Burna Boy releases surprise single"
	if trends[0].Text != want {
		t.Errorf("Text = %q, want %q", trends[0].Text, want)
	}
	if trends[0].Items[0].Text != in.Text {
		t.Error("Expected raw item text to be kept")
	}
}

func TestBodyText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Plain words", "Plain words"},
		{`<a href="https://x.example/election">Tour dates</a> Read more`, "Tour dates"},
		{"See www.example.com/a?utm_source=x now", "See now"},
	}
	for _, tt := range tests {
		if got := BodyText(tt.in); got != tt.want {
			t.Errorf("BodyText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanReportsSkips(t *testing.T) {
	c := newTestCleaner()
	_, stats := c.Clean([]core.TrendItem{
		item("reddit", "NG", "hi", 0, 1),
		item("reddit", "NG", "Click here for free data", 0, 1),
		item("reddit", "NG", "Tems announces tour", 0, 1),
	})
	if stats.Skipped != 2 || stats.Reasons[ReasonSpam] != 1 || stats.Reasons[ReasonTitleTooShort] != 1 {
		t.Errorf("Unexpected skip stats %+v", stats)
	}
}
