package core

import (
	"testing"
	"time"
	"unicode/utf8"
)

func TestComputeItemIDDeterministic(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	a := ComputeItemID("rss", "ng", "Burna Boy drops new single", at, "https://example.com/a")
	b := ComputeItemID("rss", "NG", "Burna Boy drops new single", at.In(time.FixedZone("WAT", 3600)), "https://example.com/a")
	if a != b {
		t.Errorf("Expected identical ids for equivalent inputs, got %s and %s", a, b)
	}

	c := ComputeItemID("reddit", "NG", "Burna Boy drops new single", at, "https://example.com/a")
	if a == c {
		t.Error("Expected different ids for different sources")
	}
}

func TestTrendItemValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		item    TrendItem
		wantErr bool
	}{
		{"valid", TrendItem{Source: "rss", Title: "Tems tour", ObservedAt: now}, false},
		{"missing source", TrendItem{Title: "Tems tour", ObservedAt: now}, true},
		{"missing title", TrendItem{Source: "rss", Title: "  ", ObservedAt: now}, true},
		{"missing timestamp", TrendItem{Source: "rss", Title: "Tems tour"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFingerprintStable(t *testing.T) {
	trend := CanonicalTrend{Market: "ng", NormalizedTitle: "burna boy drops single", Topic: "music_audio"}
	fp := trend.Fingerprint()

	if len(fp) != 32 {
		t.Fatalf("Expected 32-char fingerprint, got %d", len(fp))
	}
	if fp != Fingerprint("NG", "burna boy drops single", "music_audio") {
		t.Error("Expected fingerprint to ignore market case")
	}
	if fp == Fingerprint("NG", "burna boy drops single", "culture") {
		t.Error("Expected topic to change the fingerprint")
	}
}

func TestMergeEntities(t *testing.T) {
	merged := MergeEntities(
		[]Entity{{Name: "Burna Boy", Kind: EntityArtist}, {Name: "Lagos", Kind: EntityPlace}},
		[]Entity{{Name: "burna boy", Kind: EntityArtist}, {Name: "Spotify", Kind: EntityBrand}},
	)

	if len(merged) != 3 {
		t.Fatalf("Expected 3 entities, got %d: %+v", len(merged), merged)
	}
	if merged[0].Kind != EntityArtist || merged[1].Kind != EntityBrand || merged[2].Kind != EntityPlace {
		t.Errorf("Expected entities sorted by kind, got %+v", merged)
	}
}

func TestCanonicalTrendEntityHelpers(t *testing.T) {
	trend := CanonicalTrend{Entities: []Entity{
		{Name: "Tems", Kind: EntityArtist},
		{Name: "Nairobi", Kind: EntityPlace},
	}}

	if !trend.HasEntityKind(EntityArtist, EntityCreator) {
		t.Error("Expected artist entity to be detected")
	}
	if trend.HasEntityKind(EntityBrand) {
		t.Error("Did not expect a brand entity")
	}
	if names := trend.EntityNames(EntityPlace); len(names) != 1 || names[0] != "Nairobi" {
		t.Errorf("Expected [Nairobi], got %v", names)
	}
	if names := trend.EntityNames(""); len(names) != 2 {
		t.Errorf("Expected all entity names, got %v", names)
	}
}

func TestRiskLevelValid(t *testing.T) {
	for _, lvl := range []RiskLevel{RiskLow, RiskMedium, RiskHigh} {
		if !lvl.Valid() {
			t.Errorf("Expected %q to be valid", lvl)
		}
	}
	if RiskLevel("critical").Valid() {
		t.Error("Expected unknown risk level to be invalid")
	}
}

func TestWeightsSum(t *testing.T) {
	w := Weights{Velocity: 0.25, Reach: 0.2, MarketImpact: 0.2, SpotifyAdjacency: 0.2, Risk: 0.15}
	if got := w.Sum(); got < 0.999999 || got > 1.000001 {
		t.Errorf("Expected weights to sum to 1.0, got %f", got)
	}
}

func TestRecordSnapshot(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := TrendRecord{
		Fingerprint: "fp",
		RunID:       "run-1",
		Trend:       CanonicalTrend{Magnitude: 1200},
		Breakdown:   ScoreBreakdown{Total: 72.5, Risk: 10, RiskLevel: RiskLow, Action: ActionPartner},
		UpdatedAt:   now,
	}

	snap := rec.Snapshot()
	if snap.Fingerprint != "fp" || snap.RunID != "run-1" || !snap.RecordedAt.Equal(now) {
		t.Errorf("Unexpected snapshot identity: %+v", snap)
	}
	if snap.Total != 72.5 || snap.Action != ActionPartner || snap.Magnitude != 1200 {
		t.Errorf("Unexpected snapshot values: %+v", snap)
	}
}

func TestPitchCardID(t *testing.T) {
	day := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	a := PitchCardID("KE", []string{"spike-2", "style-1"}, day)
	b := PitchCardID("KE", []string{"style-1", "spike-2"}, day.Add(3*time.Hour))

	if len(a) != 16 {
		t.Fatalf("Expected 16-char card id, got %q", a)
	}
	if a != b {
		t.Error("Expected card id to ignore signal order and time of day")
	}
	if a == PitchCardID("KE", []string{"spike-2", "style-1"}, day.AddDate(0, 0, 1)) {
		t.Error("Expected card id to change with the date")
	}
}

func TestCardConfidenceRank(t *testing.T) {
	if !(ConfidenceHigh.Rank() > ConfidenceMedium.Rank() && ConfidenceMedium.Rank() > ConfidenceLow.Rank()) {
		t.Error("Expected High > Medium > Low")
	}
}

func TestRunSummaryReasons(t *testing.T) {
	var s RunSummary
	s.AddReason("spam", 2)
	s.AddReason("spam", 1)
	s.AddReason("empty", 0)

	if s.Reasons["spam"] != 3 {
		t.Errorf("Expected spam=3, got %d", s.Reasons["spam"])
	}
	if _, ok := s.Reasons["empty"]; ok {
		t.Error("Expected zero counts to be ignored")
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Tems tour", 20, "Tems tour"},
		{"Tems tour", 4, "Tems"},
		{"défilé", 2, "dé"},
		{"défilé", 6, "défilé"},
		{"أغنية جديدة", 5, "أغنية"},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		got := Truncate(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("Truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
		}
	}
}
