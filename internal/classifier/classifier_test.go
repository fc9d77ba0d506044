package classifier

import (
	"reflect"
	"testing"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
)

func tieTaxonomy(priority ...string) config.Taxonomy {
	return config.Taxonomy{
		Priority: priority,
		Topics: []config.TopicConfig{
			{Key: "zeta", Keywords: []string{"concert"}},
			{Key: "alpha", Keywords: []string{"tickets"}},
		},
	}
}

func TestClassifyDefaultTaxonomy(t *testing.T) {
	c := New(config.Taxonomy{Topics: config.DefaultTopics()})

	tests := []struct {
		title    string
		topic    string
		subtopic string
	}{
		{"Burna Boy announces amapiano album", "music_audio", "genres"},
		{"Nollywood film breaks box office record", "culture", "tv_film"},
		{"Quiet afternoon at the bakery", "uncategorized", ""},
	}
	for _, tt := range tests {
		got := c.Classify(core.CanonicalTrend{Title: tt.title})
		if got.Topic != tt.topic || got.Subtopic != tt.subtopic {
			t.Errorf("Classify(%q) = %s/%s, want %s/%s", tt.title, got.Topic, got.Subtopic, tt.topic, tt.subtopic)
		}
	}
}

func TestClassifyMatchesWordPrefixes(t *testing.T) {
	c := New(config.Taxonomy{Topics: []config.TopicConfig{
		{Key: "music", Keywords: []string{"stream"}},
	}})

	if got := c.Classify(core.CanonicalTrend{Title: "Record streaming numbers"}); got.Topic != "music" {
		t.Errorf("Expected prefix match, got %s", got.Topic)
	}
	if got := c.Classify(core.CanonicalTrend{Title: "Livestream tonight"}); got.Topic != DefaultUncategorized {
		t.Errorf("Expected no mid-word match, got %s", got.Topic)
	}
}

func TestClassifyUsesWeightsAndEntities(t *testing.T) {
	c := New(config.Taxonomy{Topics: []config.TopicConfig{
		{Key: "culture", Keywords: []string{"fans", "viral"}},
		{Key: "brand", Keywords: []string{"spotify"}, KeywordWeights: map[string]float64{"spotify": 3}},
	}})

	trend := core.CanonicalTrend{
		Title:    "Fans go viral over new campaign",
		Entities: []core.Entity{{Name: "Spotify", Kind: core.EntityBrand}},
	}
	got := c.Classify(trend)
	if got.Topic != "brand" || got.Score != 3 {
		t.Errorf("Expected weighted brand match, got %+v", got)
	}
}

func TestClassifyTieBreaks(t *testing.T) {
	trend := core.CanonicalTrend{Title: "Concert tickets sold out"}

	if got := New(tieTaxonomy()).Classify(trend); got.Topic != "zeta" {
		t.Errorf("Expected configured topic order to win, got %s", got.Topic)
	}
	if got := New(tieTaxonomy("alpha")).Classify(trend); got.Topic != "alpha" {
		t.Errorf("Expected explicit priority to win, got %s", got.Topic)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := New(config.Taxonomy{Topics: config.DefaultTopics()})
	trend := core.CanonicalTrend{Title: "Sauti Sol concert sparks protest over ticket prices"}

	first := c.Classify(trend)
	for i := 0; i < 20; i++ {
		if got := c.Classify(trend); !reflect.DeepEqual(got, first) {
			t.Fatalf("Run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestApplyUsesConfiguredUncategorized(t *testing.T) {
	c := New(config.Taxonomy{Uncategorized: "other", Topics: []config.TopicConfig{
		{Key: "music", Keywords: []string{"song"}},
	}})
	tests := []struct {
		title string
		want  string
	}{
		{"New song", "music"},
		{"Another song", "music"},
		{"Weather report", "other"},
	}
	for _, tt := range tests {
		if got := c.Apply(core.CanonicalTrend{Title: tt.title}).Topic; got != tt.want {
			t.Errorf("Apply(%q).Topic = %s, want %s", tt.title, got, tt.want)
		}
	}
}
