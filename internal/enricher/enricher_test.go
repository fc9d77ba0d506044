package enricher

import (
	"context"
	"errors"
	"testing"
	"time"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
	"trendpulse/internal/llm"
)

type stubExtractor struct {
	entities []core.Entity
	err      error
	calls    int
}

func (s *stubExtractor) Extract(ctx context.Context, text string) ([]core.Entity, error) {
	s.calls++
	return s.entities, s.err
}

func testEnrichment() config.Enrichment {
	return config.Enrichment{
		FallbackLanguage: "en",
		Seeds: map[string][]string{
			"artist": {"Burna Boy", "Tems"},
			"brand":  {"Spotify"},
		},
	}
}

func trend(market, title, text string) core.CanonicalTrend {
	item := core.TrendItem{Source: "rss", Market: market, Title: title, Text: text, ObservedAt: time.Now()}
	return core.CanonicalTrend{Title: title, Market: market, Items: []core.TrendItem{item}, Text: text}
}

func TestEnrichSeedEntities(t *testing.T) {
	e := New(testEnrichment(), nil)
	in := trend("NG", "Burna Boy tops Spotify chart", "The Lagos star")

	out, err := e.Enrich(context.Background(), in)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if len(out.Entities) != 2 {
		t.Fatalf("Expected 2 entities, got %+v", out.Entities)
	}
	if out.Entities[0].Kind != core.EntityArtist || out.Entities[1].Name != "Spotify" {
		t.Errorf("Expected sorted artist then brand, got %+v", out.Entities)
	}
	if out.Title != in.Title || out.Items[0].Text != in.Items[0].Text {
		t.Error("Expected text to be untouched")
	}
}

func TestEnrichSeedRequiresWordBoundary(t *testing.T) {
	e := New(testEnrichment(), nil)
	out, _ := e.Enrich(context.Background(), trend("NG", "Temsula opens new gallery in Abuja", ""))
	if len(out.Entities) != 0 {
		t.Errorf("Expected no partial-word matches, got %+v", out.Entities)
	}
}

func TestEnrichInfersMarketOnlyWhenMissing(t *testing.T) {
	e := New(testEnrichment(), nil)

	out, _ := e.Enrich(context.Background(), trend("", "Nairobi fans flood the stadium", ""))
	if out.Market != "KE" {
		t.Errorf("Expected inferred KE, got %q", out.Market)
	}

	kept, _ := e.Enrich(context.Background(), trend("GH", "Nairobi fans flood the stadium", ""))
	if kept.Market != "GH" {
		t.Errorf("Expected existing market to be kept, got %q", kept.Market)
	}
}

func TestEnrichDegradedExtractor(t *testing.T) {
	stub := &stubExtractor{err: errors.New("quota exceeded")}
	e := New(testEnrichment(), stub)

	for _, in := range []core.CanonicalTrend{
		trend("NG", "Tems announces world tour", ""),
		trend("NG", "Tems drops new single", ""),
	} {
		out, err := e.Enrich(context.Background(), in)
		if !errors.Is(err, core.ErrEnrichmentDegraded) {
			t.Errorf("Expected ErrEnrichmentDegraded, got %v", err)
		}
		if len(out.Entities) != 1 || out.Entities[0].Name != "Tems" {
			t.Errorf("Expected seed-only entities, got %+v", out.Entities)
		}
		if out.Language != "en" {
			t.Errorf("Expected language despite degraded extraction, got %q", out.Language)
		}
	}
	if stub.calls != 2 {
		t.Errorf("Expected the extractor to be tried for each trend, got %d calls", stub.calls)
	}
}

func TestEnrichReadsCleanedText(t *testing.T) {
	e := New(testEnrichment(), nil)
	in := trend("", "Fans react to the new single", "")
	in.Items[0].Text = `<a href="https://n.example/nairobi/burna-boy">link</a>`

	out, _ := e.Enrich(context.Background(), in)
	if len(out.Entities) != 0 || out.Market != "" {
		t.Errorf("Expected raw item markup to be ignored, got %+v market %q", out.Entities, out.Market)
	}

	in.Text = "Burna Boy lands in Nairobi"
	out, _ = e.Enrich(context.Background(), in)
	if len(out.Entities) != 1 || out.Market != "KE" {
		t.Errorf("Expected entity and market from cleaned text, got %+v market %q", out.Entities, out.Market)
	}
}

func TestEnrichMergesExtractorEntities(t *testing.T) {
	stub := &stubExtractor{entities: []core.Entity{
		{Name: "tems", Kind: core.EntityArtist},
		{Name: "Afro Nation", Kind: core.EntityEvent},
	}}
	e := New(testEnrichment(), stub)

	out, err := e.Enrich(context.Background(), trend("NG", "Tems headlines Afro Nation", ""))
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if len(out.Entities) != 2 {
		t.Errorf("Expected deduplicated entities, got %+v", out.Entities)
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"short", "xx"},
		{"Le concert de la star est complet pour ce soir", "fr"},
		{"O show não vai acontecer para os fãs", "pt"},
		{"Msanii kutoka Kenya ni maarufu kwa nyimbo", "sw"},
		{"حفل موسيقي كبير في القاهرة الليلة", "ar"},
		{"Burna Boy announces a stadium tour", "en"},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.text, "xx"); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

type stubGenerator struct {
	response string
	err      error
}

func (s stubGenerator) Generate(ctx context.Context, prompt string, options llm.GenerationOptions) (string, error) {
	return s.response, s.err
}

func TestGeminiExtractorParsesResponse(t *testing.T) {
	g := &GeminiExtractor{client: stubGenerator{
		response: `[{"name":"Wizkid","kind":"artist"},{"name":" ","kind":"brand"}]`,
	}}
	entities, err := g.Extract(context.Background(), "Wizkid sells out")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(entities) != 1 || entities[0].Kind != core.EntityArtist {
		t.Errorf("Unexpected entities %+v", entities)
	}

	bad := &GeminiExtractor{client: stubGenerator{response: "not json"}}
	if _, err := bad.Extract(context.Background(), "x"); err == nil {
		t.Error("Expected parse error")
	}
}
