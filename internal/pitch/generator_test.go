package pitch

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"trendpulse/internal/core"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testGenerator() *Generator {
	return New(Settings{
		Window:            48 * time.Hour,
		MinSpikeScore:     30,
		SpikeSignificance: 60,
		StyleSignificance: 50,
		CardsPerMarket:    6,
	})
}

func spike(id, artist, market string, score float64, age time.Duration) core.ArtistSpike {
	return core.ArtistSpike{
		ID:          id,
		ArtistName:  artist,
		Market:      market,
		SpikeScore:  score,
		TimeWindow:  "24h",
		Confidence:  core.LevelHigh,
		CollectedAt: now.Add(-age),
	}
}

func style(id, headline string, magnitude float64, age time.Duration, markets ...string) core.StyleSignal {
	return core.StyleSignal{
		ID:          id,
		Headline:    headline,
		Source:      "OkayAfrica",
		Markets:     markets,
		Magnitude:   magnitude,
		SpotifyTags: []string{"music_fashion"},
		RiskLevel:   core.RiskLow,
		PublishedAt: now.Add(-age),
	}
}

func TestSpikeWithoutStyleIsCappedAtMedium(t *testing.T) {
	g := testGenerator()
	spikes := []core.ArtistSpike{spike("s1", "Sauti Sol", "KE", 95, time.Hour)}
	styles := []core.StyleSignal{style("st1", "Nairobi runway recap", 90, 72*time.Hour, "KE")}

	cards, stats := g.Generate(spikes, styles, []string{"KE"}, now)
	if len(cards) != 1 {
		t.Fatalf("Expected 1 card, got %d", len(cards))
	}
	card := cards[0]
	if card.Confidence.Rank() > core.ConfidenceMedium.Rank() {
		t.Errorf("Expected at most Medium, got %s", card.Confidence)
	}
	if len(card.SignalIDs) != 1 || card.SignalIDs[0] != "s1" {
		t.Errorf("Expected only the spike to be referenced, got %v", card.SignalIDs)
	}
	if stats.SingleKind != 1 || stats.Paired != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if !card.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("Expected 24h expiry, got %v", card.ExpiresAt)
	}
}

func TestPairedOverlapIsHigh(t *testing.T) {
	g := testGenerator()
	spikes := []core.ArtistSpike{spike("s1", "Tems", "NG", 80, time.Hour)}
	st := style("st1", "Tems x Lagos designer capsule", 70, 2*time.Hour, "NG")
	st.Entities = []string{"Tems"}

	cards, stats := g.Generate(spikes, []core.StyleSignal{st}, []string{"NG"}, now)
	if len(cards) != 1 || cards[0].Confidence != core.ConfidenceHigh {
		t.Fatalf("Expected one High card, got %+v", cards)
	}
	if stats.Paired != 1 || len(cards[0].SignalIDs) != 2 {
		t.Errorf("Expected paired card, got %+v", cards[0].SignalIDs)
	}
	if cards[0].ID != core.PitchCardID("NG", []string{"st1", "s1"}, now) {
		t.Error("Expected id derived from market, signals and date")
	}
}

func TestPairedWithoutOverlapIsMedium(t *testing.T) {
	g := testGenerator()
	spikes := []core.ArtistSpike{spike("s1", "Tems", "NG", 80, time.Hour)}
	styles := []core.StyleSignal{style("st1", "Lagos fashion week opens", 70, time.Hour, "NG")}

	cards, _ := g.Generate(spikes, styles, []string{"NG"}, now)
	if len(cards) != 1 || cards[0].Confidence != core.ConfidenceMedium {
		t.Fatalf("Expected one Medium card, got %+v", cards)
	}
}

func TestWeakSingleKindIsLow(t *testing.T) {
	g := testGenerator()
	spikes := []core.ArtistSpike{
		spike("s1", "Minor Act", "GH", 35, time.Hour),
		spike("s2", "Too Small", "GH", 20, time.Hour),
	}
	cards, _ := g.Generate(spikes, nil, []string{"GH"}, now)
	if len(cards) != 1 || cards[0].Confidence != core.ConfidenceLow {
		t.Fatalf("Expected one Low card for the qualifying spike, got %+v", cards)
	}
}

func TestStyleOnlyCards(t *testing.T) {
	g := testGenerator()
	risky := style("st2", "Streetwear brand caught in protest row", 90, time.Hour, "ZA")
	risky.RiskLevel = core.RiskHigh
	untagged := style("st3", "Generic mall opening", 90, time.Hour, "ZA")
	untagged.SpotifyTags = nil
	good := style("st1", "Soweto sneaker culture drop", 55, time.Hour, "ZA")
	good.SpotifyTags = []string{"streetwear", "youth_culture"}

	cards, _ := g.Generate(nil, []core.StyleSignal{risky, untagged, good}, []string{"ZA"}, now)
	if len(cards) != 1 {
		t.Fatalf("Expected only the tagged low-risk signal, got %d cards", len(cards))
	}
	card := cards[0]
	if card.Confidence != core.ConfidenceMedium || card.Angle != angleCreator {
		t.Errorf("Unexpected style card %+v", card)
	}
	if !card.ExpiresAt.Equal(now.Add(48 * time.Hour)) {
		t.Errorf("Expected 48h expiry, got %v", card.ExpiresAt)
	}
}

func TestStyleHookTruncatesWholeCharacters(t *testing.T) {
	g := testGenerator()
	prefix := strings.Repeat("a", 59)
	st := style("st1", prefix+"é défilé à Dakar, la semaine de la mode continue", 80, time.Hour, "SN")

	cards, _ := g.Generate(nil, []core.StyleSignal{st}, []string{"SN"}, now)
	if len(cards) != 1 {
		t.Fatalf("Expected 1 card, got %d", len(cards))
	}
	hook := cards[0].Hook
	if !utf8.ValidString(hook) {
		t.Fatalf("Expected valid UTF-8 hook, got %q", hook)
	}
	if want := "Style moment: " + prefix + "é..."; hook != want {
		t.Errorf("Hook = %q, want %q", hook, want)
	}
}

func TestRisksAreDeduplicated(t *testing.T) {
	g := testGenerator()
	s := spike("s1", "Wizkid", "NG", 75, 30*time.Hour)
	s.Ambiguous = true
	s.RiskNotes = []string{riskAmbiguous, "Recent label dispute"}
	s.WhySpiking = []string{"Election-week performance announced"}

	cards, _ := g.Generate([]core.ArtistSpike{s}, nil, []string{"NG"}, now)
	risks := cards[0].Risks
	want := []string{riskAmbiguous, "Recent label dispute", riskStale, riskPolitical, riskHighVisibility}
	if strings.Join(risks, "|") != strings.Join(want, "|") {
		t.Errorf("Risks = %v\nwant %v", risks, want)
	}
}

func TestCardsPerMarketAndHookDedup(t *testing.T) {
	g := testGenerator()
	var spikes []core.ArtistSpike
	for i := 0; i < 10; i++ {
		spikes = append(spikes, spike(fmt.Sprintf("s%d", i), fmt.Sprintf("Artist %d", i), "NG", 40, time.Hour))
	}
	spikes = append(spikes, spike("dup", "Artist 1", "NG", 40, time.Hour))

	cards, _ := g.Generate(spikes, nil, []string{"NG", "KE"}, now)
	if len(cards) != 6 {
		t.Fatalf("Expected cap of 6 cards, got %d", len(cards))
	}
	seen := map[string]bool{}
	for _, c := range cards {
		if seen[c.Hook] {
			t.Errorf("Duplicate hook %q", c.Hook)
		}
		seen[c.Hook] = true
		if c.Market != "NG" {
			t.Errorf("Unexpected market %s", c.Market)
		}
	}
}
