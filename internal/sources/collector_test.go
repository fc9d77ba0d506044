package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
)

type slowAdapter struct{ delay time.Duration }

func (s slowAdapter) Name() string { return "slow" }
func (s slowAdapter) Fetch(ctx context.Context, markets, keywords []string) ([]core.TrendItem, error) {
	time.Sleep(s.delay)
	return []core.TrendItem{{Source: "slow", Title: "late", ObservedAt: time.Now()}}, nil
}
func (s slowAdapter) HealthCheck(ctx context.Context) bool { return true }

type panicAdapter struct{}

func (panicAdapter) Name() string { return "panicky" }
func (panicAdapter) Fetch(ctx context.Context, markets, keywords []string) ([]core.TrendItem, error) {
	panic("boom")
}
func (panicAdapter) HealthCheck(ctx context.Context) bool { return false }

func sampleItems(source string) []core.TrendItem {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return []core.TrendItem{
		{Source: source, Market: "ng", Title: "Burna Boy drops new single", ObservedAt: at, Magnitude: 500},
		{Source: source, Market: "KE", Title: "Nairobi festival lineup", ObservedAt: at, Magnitude: 200},
	}
}

func TestCollectToleratesFailingAdapter(t *testing.T) {
	c := NewCollector([]Adapter{
		NewStaticAdapter("news", sampleItems("news")),
		NewFailingAdapter("broken", errors.New("503")),
	}, time.Second)

	result, err := c.Collect(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("Expected 2 items from the healthy adapter, got %d", len(result.Items))
	}
	if !errors.Is(result.SourceErrors["broken"], core.ErrSourceUnavailable) {
		t.Errorf("Expected ErrSourceUnavailable for broken adapter, got %v", result.SourceErrors["broken"])
	}

	for _, item := range result.Items {
		if item.ID == "" {
			t.Error("Expected item ids to be computed")
		}
	}
	if result.Items[0].Market != "NG" {
		t.Errorf("Expected market normalized to NG, got %s", result.Items[0].Market)
	}

	health := c.Health()
	if len(health) != 2 || health[0].Name != "broken" || health[0].Healthy {
		t.Errorf("Expected broken adapter to be unhealthy first, got %+v", health)
	}
	if !health[1].Healthy || health[1].ItemsLastRun != 2 {
		t.Errorf("Expected news adapter healthy with 2 items, got %+v", health[1])
	}
}

func TestCollectTimeoutAndPanic(t *testing.T) {
	c := NewCollector([]Adapter{
		slowAdapter{delay: 200 * time.Millisecond},
		panicAdapter{},
		NewStaticAdapter("news", sampleItems("news")),
	}, 50*time.Millisecond)

	result, err := c.Collect(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(result.Items) != 2 {
		t.Errorf("Expected only the static items, got %d", len(result.Items))
	}
	if _, ok := result.SourceErrors["slow"]; !ok {
		t.Error("Expected timeout to be recorded for slow adapter")
	}
	if _, ok := result.SourceErrors["panicky"]; !ok {
		t.Error("Expected panic to be recorded")
	}
}

func TestCollectSkipsInvalidItems(t *testing.T) {
	items := append(sampleItems("news"), core.TrendItem{Source: "news", Title: "no timestamp"})
	c := NewCollector([]Adapter{NewStaticAdapter("news", items)}, time.Second)

	result, err := c.Collect(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if result.Skipped != 1 || result.Reasons["missing_fields"] != 1 {
		t.Errorf("Expected 1 skipped item, got %d (%v)", result.Skipped, result.Reasons)
	}
}

func TestCollectOrderIndependentOfAdapterOrder(t *testing.T) {
	a := NewStaticAdapter("alpha", sampleItems("alpha"))
	b := NewStaticAdapter("beta", sampleItems("beta"))

	r1, _ := NewCollector([]Adapter{a, b}, time.Second).Collect(context.Background(), nil, nil)
	r2, _ := NewCollector([]Adapter{b, a}, time.Second).Collect(context.Background(), nil, nil)

	if len(r1.Items) != len(r2.Items) {
		t.Fatalf("Expected equal item counts, got %d and %d", len(r1.Items), len(r2.Items))
	}
	for i := range r1.Items {
		if r1.Items[i].ID != r2.Items[i].ID {
			t.Errorf("Item %d differs: %s vs %s", i, r1.Items[i].ID, r2.Items[i].ID)
		}
	}
}

func TestCollectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCollector([]Adapter{NewStaticAdapter("news", sampleItems("news"))}, time.Second)
	if _, err := c.Collect(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRegistryResolve(t *testing.T) {
	cfg := config.Default()
	reg := NewRegistry()
	reg.Register("static", func(cfg *config.Config) (Adapter, error) {
		return NewStaticAdapter("static", nil), nil
	})

	cfg.Sources.Enabled = []string{"static", "static"}
	adapters, err := reg.Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(adapters) != 1 {
		t.Errorf("Expected duplicate names to collapse, got %d adapters", len(adapters))
	}

	cfg.Sources.Enabled = []string{"static", "tiktok"}
	if _, err := reg.Resolve(cfg); !errors.Is(err, core.ErrConfigurationInvalid) {
		t.Errorf("Expected ErrConfigurationInvalid for unknown source, got %v", err)
	}

	cfg.Sources.Enabled = []string{"file"}
	cfg.Sources.File.Path = ""
	if _, err := reg.Resolve(cfg); err == nil {
		t.Error("Expected file source without path to fail")
	}
}

func TestCheckHealth(t *testing.T) {
	c := NewCollector([]Adapter{
		NewStaticAdapter("news", nil),
		panicAdapter{},
	}, time.Second)

	health := c.CheckHealth(context.Background())
	if !health["news"] || health["panicky"] {
		t.Errorf("Unexpected health: %v", health)
	}
}
