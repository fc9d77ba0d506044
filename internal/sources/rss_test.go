package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Pulse</title><link>https://pulse.example</link>
<item><title>Burna Boy drops new single in Lagos</title><link>https://pulse.example/a</link>
<description>&lt;p&gt;The &lt;b&gt;Afrobeats&lt;/b&gt; star is back.&lt;/p&gt;</description>
<pubDate>Sat, 01 Mar 2025 08:00:00 GMT</pubDate></item>
<item><title>Fuel prices climb again</title><link>https://pulse.example/b</link>
<description>Markets react.</description>
<pubDate>Sat, 01 Mar 2025 06:00:00 GMT</pubDate></item>
</channel></rss>`

func newFeedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRSSAdapterFetch(t *testing.T) {
	srv := newFeedServer(t, rssFixture)
	adapter := NewRSSAdapter(config.RSSConfig{
		Feeds: []config.FeedConfig{{Name: "pulse", URL: srv.URL + "/feed"}},
	})
	adapter.now = func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }

	items, err := adapter.Fetch(context.Background(), []string{"NG", "KE"}, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Market != "NG" {
		t.Errorf("Expected market detected as NG, got %q", first.Market)
	}
	if first.Text != "The Afrobeats star is back." {
		t.Errorf("Expected HTML stripped description, got %q", first.Text)
	}
	if first.Magnitude <= items[1].Magnitude {
		t.Errorf("Expected first entry to outrank second: %v vs %v", first.Magnitude, items[1].Magnitude)
	}
	if items[1].Market != "" {
		t.Errorf("Expected no market for generic story, got %q", items[1].Market)
	}
}

func TestRSSAdapterKeywordFilter(t *testing.T) {
	srv := newFeedServer(t, rssFixture)
	adapter := NewRSSAdapter(config.RSSConfig{
		Feeds: []config.FeedConfig{{Name: "pulse", URL: srv.URL + "/feed", Market: "NG"}},
	})

	items, err := adapter.Fetch(context.Background(), nil, []string{"afrobeats"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 1 || !strings.Contains(items[0].Title, "Burna Boy") {
		t.Errorf("Expected only the afrobeats story, got %+v", items)
	}
	if items[0].Market != "NG" {
		t.Errorf("Expected feed market NG, got %q", items[0].Market)
	}
}

func TestRSSAdapterAllFeedsFail(t *testing.T) {
	srv := newFeedServer(t, rssFixture)
	adapter := NewRSSAdapter(config.RSSConfig{
		Feeds: []config.FeedConfig{{Name: "down", URL: srv.URL + "/broken"}},
	})
	if _, err := adapter.Fetch(context.Background(), nil, nil); err == nil {
		t.Error("Expected error when every feed fails")
	}
}

func TestRecencyWeightedRank(t *testing.T) {
	fresh := recencyWeightedRank(0, 10, 0)
	dayOld := recencyWeightedRank(0, 10, 24*time.Hour)
	if fresh != 10000 || dayOld != 5000 {
		t.Errorf("Expected 10000 and 5000, got %v and %v", fresh, dayOld)
	}
}

func TestFileAdapter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	body := `{"items":[
		{"source":"google_trends","market":"NG","title":"Tems world tour","observed_at":"2025-03-01T09:00:00Z","magnitude":1200},
		{"market":"ZA","title":"Amapiano festival","observed_at":"2025-03-01T09:00:00Z"}
	]}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	adapter := NewFileAdapter(path)
	items, err := adapter.Fetch(context.Background(), []string{"NG"}, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 1 || items[0].Source != "google_trends" {
		t.Errorf("Expected NG item only, got %+v", items)
	}

	all, _ := adapter.Fetch(context.Background(), nil, nil)
	if len(all) != 2 || all[1].Source != "file" {
		t.Errorf("Expected default source name, got %+v", all)
	}
	if !adapter.HealthCheck(context.Background()) {
		t.Error("Expected readable file to be healthy")
	}
	if NewFileAdapter(filepath.Join(t.TempDir(), "missing.json")).HealthCheck(context.Background()) {
		t.Error("Expected missing file to be unhealthy")
	}
}

func TestDecodeItemsArray(t *testing.T) {
	items, err := decodeItems([]byte(`[{"source":"x","title":"t","observed_at":"2025-03-01T00:00:00Z"}]`))
	if err != nil || len(items) != 1 {
		t.Fatalf("decodeItems() = %v, %v", items, err)
	}
	if empty, err := decodeItems([]byte("  ")); err != nil || empty != nil {
		t.Errorf("Expected nil for empty input, got %v, %v", empty, err)
	}
}

func TestSignalFileLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.json")
	body := `{
		"artist_spikes":[{"artist_name":"Sauti Sol","market":"ke","spike_score":72,"collected_at":"2025-03-01T09:00:00Z"}],
		"style_signals":[{"headline":"Nairobi streetwear drop","source_url":"https://x.example/s","markets":["ke"],"magnitude":55}]
	}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	bundle, err := NewSignalFile(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if bundle.ArtistSpikes[0].Market != "KE" || bundle.ArtistSpikes[0].ID == "" {
		t.Errorf("Expected normalized spike, got %+v", bundle.ArtistSpikes[0])
	}
	if bundle.StyleSignals[0].Markets[0] != "KE" || bundle.StyleSignals[0].ID == "" {
		t.Errorf("Expected normalized style signal, got %+v", bundle.StyleSignals[0])
	}

	_, err = NewSignalFile(filepath.Join(t.TempDir(), "nope.json")).Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), core.ErrSourceUnavailable.Error()) {
		t.Errorf("Expected ErrSourceUnavailable, got %v", err)
	}
}
