package scorer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"trendpulse/internal/cleaner"
	"trendpulse/internal/config"
	"trendpulse/internal/core"
)

func newTestScorer(baselines BaselineProvider) *Scorer {
	cfg := config.Default()
	return New(cfg.Scoring, cfg.Taxonomy, baselines)
}

func canonical(market, topic, title string, magnitude float64, entities ...core.Entity) core.CanonicalTrend {
	return core.CanonicalTrend{
		Title:           title,
		NormalizedTitle: title,
		Market:          market,
		Topic:           topic,
		Sources:         []string{"news_rss"},
		Magnitude:       magnitude,
		Entities:        entities,
	}
}

func TestRiskLevelBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  core.RiskLevel
	}{
		{0, core.RiskLow},
		{33.99, core.RiskLow},
		{34, core.RiskMedium},
		{66, core.RiskMedium},
		{66.01, core.RiskHigh},
		{100, core.RiskHigh},
	}
	for _, tt := range tests {
		if got := RiskLevelFor(tt.score); got != tt.want {
			t.Errorf("RiskLevelFor(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestDecideActionTable(t *testing.T) {
	tests := []struct {
		name      string
		level     core.RiskLevel
		total     float64
		adjacency float64
		artist    bool
		want      core.Action
	}{
		{"high risk high adjacency", core.RiskHigh, 50, 80, false, core.ActionEscalate},
		{"high risk low adjacency", core.RiskHigh, 50, 10, false, core.ActionAvoid},
		{"high risk mid adjacency", core.RiskHigh, 90, 55, true, core.ActionAvoid},
		{"high risk just below escalation", core.RiskHigh, 50, 69.9, false, core.ActionAvoid},
		{"tour with artist", core.RiskLow, 72, 85, true, core.ActionPartner},
		{"tour without artist", core.RiskLow, 72, 85, false, core.ActionEngage},
		{"medium risk engage", core.RiskMedium, 60, 70, false, core.ActionEngage},
		{"below engage threshold", core.RiskLow, 59.9, 90, true, core.ActionMonitor},
		{"low adjacency", core.RiskLow, 95, 20, true, core.ActionMonitor},
		{"unknown level", core.RiskLevel("bogus"), 95, 95, true, core.ActionMonitor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecideAction(tt.level, tt.total, tt.adjacency, tt.artist); got != tt.want {
				t.Errorf("DecideAction() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecideActionIsTotal(t *testing.T) {
	valid := map[core.Action]bool{
		core.ActionMonitor: true, core.ActionEngage: true, core.ActionPartner: true,
		core.ActionAvoid: true, core.ActionEscalate: true,
	}
	levels := []core.RiskLevel{core.RiskLow, core.RiskMedium, core.RiskHigh, ""}
	for _, level := range levels {
		for total := 0.0; total <= 100; total += 5 {
			for adjacency := 0.0; adjacency <= 100; adjacency += 5 {
				for _, artist := range []bool{true, false} {
					if a := DecideAction(level, total, adjacency, artist); !valid[a] {
						t.Fatalf("DecideAction(%s, %v, %v, %v) = %q", level, total, adjacency, artist, a)
					}
				}
			}
		}
	}
}

func TestPriorityAndConfidence(t *testing.T) {
	if PriorityFor(75) != core.LevelHigh || PriorityFor(50) != core.LevelMedium || PriorityFor(49.9) != core.LevelLow {
		t.Error("Unexpected priority bands")
	}
	if got := ConfidenceFor(3, 2, true, true); got != core.LevelHigh {
		t.Errorf("Expected high confidence, got %s", got)
	}
	if got := ConfidenceFor(1, 0, false, true); got != core.LevelLow {
		t.Errorf("Expected low confidence, got %s", got)
	}
	if got := ConfidenceFor(2, 1, false, false); got != core.LevelMedium {
		t.Errorf("Expected medium confidence, got %s", got)
	}
}

func TestScoreRiskyTrendIsAvoided(t *testing.T) {
	s := newTestScorer(nil)
	trend := canonical("NG", "current_affairs", "Protest and unrest spread across Lagos", 5000)

	b := s.Score(context.Background(), trend, 0)
	if math.Abs(b.Risk-80) > 1e-9 {
		t.Errorf("Expected risk 80, got %v", b.Risk)
	}
	if b.SpotifyAdjacency != 0 {
		t.Errorf("Expected no adjacency, got %v", b.SpotifyAdjacency)
	}
	if b.RiskLevel != core.RiskHigh || b.Action != core.ActionAvoid {
		t.Errorf("Expected high/AVOID, got %s/%s", b.RiskLevel, b.Action)
	}
	if len(b.RiskKeywords) != 2 {
		t.Errorf("Expected protest and unrest, got %v", b.RiskKeywords)
	}
}

func TestScoreIgnoresMarkupInBody(t *testing.T) {
	s := newTestScorer(nil)
	c := cleaner.New(config.Dedup{Threshold: 0.5, TitleWeight: 0.5}, nil)
	plain := core.TrendItem{Source: "news_rss", Market: "NG", Title: "Burna Boy drops new single", ObservedAt: time.Now()}
	marked := plain
	marked.Text = `<a href="https://n.example/politics/election-protest?utm_source=x">Burna Boy drops new single</a> Read more`

	score := func(item core.TrendItem) core.ScoreBreakdown {
		trends, _ := c.Clean([]core.TrendItem{item.WithID()})
		trend := trends[0]
		trend.Topic = "music_audio"
		return s.Score(context.Background(), trend, 0)
	}
	want, got := score(plain), score(marked)
	if got.Risk != want.Risk || len(got.RiskKeywords) != 0 {
		t.Errorf("Expected markup to leave risk at %v, got %v %v", want.Risk, got.Risk, got.RiskKeywords)
	}
	if got.RiskLevel != core.RiskLow {
		t.Errorf("Expected low risk, got %s", got.RiskLevel)
	}
}

func TestScoreArtistTour(t *testing.T) {
	baselines := StaticBaselines{BaselineKey("NG", "music_audio"): 100000}
	s := newTestScorer(baselines)
	artist := core.Entity{Name: "Burna Boy", Kind: core.EntityArtist}

	with := s.Score(context.Background(), canonical("NG", "music_audio", "Burna Boy announces stadium tour on Spotify", 200000, artist), 0)
	if with.Velocity != 100 || with.BaselineMissing {
		t.Errorf("Expected velocity 100 from doubled baseline, got %v", with.Velocity)
	}
	if with.RiskLevel != core.RiskLow || with.Total < 60 {
		t.Fatalf("Expected low risk above engage threshold, got %s %v", with.RiskLevel, with.Total)
	}
	if with.Action != core.ActionPartner {
		t.Errorf("Expected PARTNER, got %s", with.Action)
	}

	without := s.Score(context.Background(), canonical("NG", "music_audio", "Burna Boy announces stadium tour on Spotify", 200000), 0)
	if without.Action != core.ActionEngage {
		t.Errorf("Expected ENGAGE without an artist entity, got %s", without.Action)
	}
}

func TestScoreMissingBaselineIsNeutral(t *testing.T) {
	s := newTestScorer(StaticBaselines{})
	b := s.Score(context.Background(), canonical("KE", "culture", "Nairobi meme", 10), 0)
	if b.Velocity != 50 || !b.BaselineMissing {
		t.Errorf("Expected neutral velocity, got %v (missing=%v)", b.Velocity, b.BaselineMissing)
	}
}

type failingBaselines struct{}

func (failingBaselines) Baseline(ctx context.Context, market, topic string) (float64, error) {
	return 0, errors.New("redis down")
}

func TestChainBaselines(t *testing.T) {
	chain := ChainBaselines{failingBaselines{}, StaticBaselines{"NG|culture": 40}}
	v, err := chain.Baseline(context.Background(), "ng", "culture")
	if err != nil || v != 40 {
		t.Errorf("Expected fallback baseline 40, got %v (%v)", v, err)
	}

	if _, err := (ChainBaselines{failingBaselines{}}).Baseline(context.Background(), "NG", "culture"); err == nil {
		t.Error("Expected error when every provider fails")
	}

	s := newTestScorer(failingBaselines{})
	if b := s.Score(context.Background(), canonical("NG", "culture", "x", 10), 0); !b.BaselineMissing {
		t.Error("Expected provider failure to fall back to neutral velocity")
	}
}

func TestBatchNormalizationAndOrdering(t *testing.T) {
	s := newTestScorer(nil)
	trends := []core.CanonicalTrend{
		canonical("GH", "culture", "Accra meme", 10),
		canonical("NG", "music_audio", "Afrobeats playlist takeover", 100000),
		canonical("KE", "culture", "Nairobi meme", 10),
	}

	maxRaw := s.MaxMarketRaw(trends)
	scored := make([]Scored, 0, len(trends))
	for _, trend := range trends {
		scored = append(scored, Scored{Trend: trend, Breakdown: s.Score(context.Background(), trend, maxRaw)})
	}
	SortScored(scored)

	if scored[0].Trend.Market != "NG" || scored[0].Breakdown.MarketImpact != 100 {
		t.Errorf("Expected NG to lead with market impact 100, got %s %v", scored[0].Trend.Market, scored[0].Breakdown.MarketImpact)
	}
	for i := 1; i < len(scored); i++ {
		if scored[i].Breakdown.Total > scored[i-1].Breakdown.Total {
			t.Errorf("Expected descending totals at %d", i)
		}
	}
	for _, sc := range scored {
		if sc.Breakdown.Total < 0 || sc.Breakdown.Total > 100 {
			t.Errorf("Total out of range: %v", sc.Breakdown.Total)
		}
	}
}

func TestTotalStaysInRangeForAnyWeights(t *testing.T) {
	weightSets := []core.Weights{
		{Velocity: 1},
		{Risk: 1},
		{Velocity: 0.2, Reach: 0.2, MarketImpact: 0.2, SpotifyAdjacency: 0.2, Risk: 0.2},
		{Velocity: 0.05, Reach: 0.05, MarketImpact: 0.05, SpotifyAdjacency: 0.8, Risk: 0.05},
	}
	for _, w := range weightSets {
		cfg := config.Default()
		cfg.Scoring.Weights = w
		s := New(cfg.Scoring, cfg.Taxonomy, StaticBaselines{"NG|music_audio": 1})
		b := s.Score(context.Background(), canonical("NG", "music_audio", "Spotify war riot protest tour album", 1e9,
			core.Entity{Name: "A", Kind: core.EntityArtist}, core.Entity{Name: "B", Kind: core.EntityCreator}), 0)
		if b.Total < 0 || b.Total > 100 {
			t.Errorf("Weights %+v produced total %v", w, b.Total)
		}
	}
}
