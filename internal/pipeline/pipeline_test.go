package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"trendpulse/internal/classifier"
	"trendpulse/internal/cleaner"
	"trendpulse/internal/config"
	"trendpulse/internal/core"
	"trendpulse/internal/enricher"
	"trendpulse/internal/persistence"
	"trendpulse/internal/pitch"
	"trendpulse/internal/scorer"
	"trendpulse/internal/sources"
	"trendpulse/internal/store"
	"trendpulse/internal/summarize"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testItems(observed time.Time) []core.TrendItem {
	return []core.TrendItem{
		{Source: "news_rss", Market: "NG", Title: "Burna Boy announces Lagos stadium concert for December", ObservedAt: observed, Magnitude: 120000},
		{Source: "news_rss", Market: "KE", Title: "Nairobi matatu fare hike sparks online protest", ObservedAt: observed, Magnitude: 45000},
		{Source: "news_rss", Market: "NG", Title: "Tems wins Grammy for best African music performance", ObservedAt: observed, Magnitude: 300000},
	}
}

func testStages(cfg *config.Config, db persistence.Database, adapters ...sources.Adapter) Stages {
	return Stages{
		Collector:  sources.NewCollector(adapters, time.Second),
		Cleaner:    cleaner.New(cfg.Dedup, cfg.Sources.Priority),
		Enricher:   enricher.New(cfg.Enrichment, nil),
		Classifier: classifier.New(cfg.Taxonomy),
		Scorer:     scorer.New(cfg.Scoring, cfg.Taxonomy, persistence.HistoryBaselines{Trends: db.Trends()}),
		Summarizer: summarize.New(cfg.Taxonomy),
	}
}

func newTestPipeline(t *testing.T, db persistence.Database, stages Stages, hooks Hooks) *Pipeline {
	t.Helper()
	p, err := New(stages, db, Config{Markets: []string{"NG", "KE"}}, hooks)
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}
	return p
}

func TestNewRequiresStages(t *testing.T) {
	db := newTestStore(t)
	if _, err := New(Stages{}, db, Config{}, Hooks{}); !errors.Is(err, core.ErrConfigurationInvalid) {
		t.Errorf("Expected ErrConfigurationInvalid, got %v", err)
	}
}

func TestRunPersistsRecordsAndHistory(t *testing.T) {
	cfg := config.Default()
	db := newTestStore(t)
	adapter := sources.NewStaticAdapter("news_rss", testItems(time.Now().Add(-time.Hour)))
	p := newTestPipeline(t, db, testStages(cfg, db, adapter), Hooks{})
	ctx := context.Background()

	run, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Status != core.RunSuccess {
		t.Fatalf("Expected success, got %s (%s)", run.Status, run.Error)
	}
	if run.Collected != 3 {
		t.Errorf("Expected 3 collected, got %d", run.Collected)
	}
	if run.Processed == 0 || run.Written != run.Processed {
		t.Errorf("Expected written == processed > 0, got processed=%d written=%d", run.Processed, run.Written)
	}

	records, err := db.Trends().Query(ctx, persistence.TrendFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(records) != run.Written {
		t.Fatalf("Expected %d stored records, got %d", run.Written, len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].Breakdown.Total > records[i-1].Breakdown.Total {
			t.Errorf("Records not ordered by score at %d", i)
		}
	}
	first := records[0]
	if first.RunID != run.RunID {
		t.Errorf("Expected run id %s, got %s", run.RunID, first.RunID)
	}
	if first.Summary.WhatsHappening == "" {
		t.Error("Expected a summary on the stored record")
	}

	latest, err := db.Runs().Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.RunID != run.RunID || latest.Status != core.RunSuccess {
		t.Errorf("Unexpected latest run: %+v", latest)
	}

	second, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	again, err := db.Trends().GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.RunID != second.RunID {
		t.Errorf("Expected record to be rewritten by second run")
	}
	if !again.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", first.CreatedAt, again.CreatedAt)
	}

	history, err := db.Trends().History(ctx, first.Fingerprint, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("Expected 2 history snapshots, got %d", len(history))
	}
}

func TestRunToleratesFailingSource(t *testing.T) {
	cfg := config.Default()
	db := newTestStore(t)
	good := sources.NewStaticAdapter("news_rss", testItems(time.Now()))
	bad := sources.NewFailingAdapter("google_trends", errors.New("quota exceeded"))
	p := newTestPipeline(t, db, testStages(cfg, db, good, bad), Hooks{})

	run, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Status != core.RunSuccess {
		t.Errorf("Expected success, got %s", run.Status)
	}
	if _, ok := run.SourceErrors["google_trends"]; !ok {
		t.Errorf("Expected google_trends in source errors, got %v", run.SourceErrors)
	}
	if run.Written == 0 {
		t.Error("Expected records from the healthy source")
	}

	health := p.SourceHealth()
	if len(health) != 2 {
		t.Fatalf("Expected health for 2 adapters, got %+v", health)
	}
	if !health[0].Failing() || health[0].Name != "google_trends" {
		t.Errorf("Expected google_trends to be failing, got %+v", health[0])
	}
	if health[1].Failing() || health[1].LastSuccess.IsZero() || health[1].ItemsLastRun == 0 {
		t.Errorf("Expected news_rss to be healthy, got %+v", health[1])
	}
}

type blockingCollector struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingCollector) Collect(ctx context.Context, markets, keywords []string) (*sources.CollectResult, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &sources.CollectResult{}, nil
}

func (b *blockingCollector) Adapters() []string { return nil }

func (b *blockingCollector) Health() []sources.AdapterHealth { return nil }

func TestRunRejectsConcurrentTrigger(t *testing.T) {
	cfg := config.Default()
	db := newTestStore(t)
	collector := &blockingCollector{started: make(chan struct{}), release: make(chan struct{})}
	stages := testStages(cfg, db)
	stages.Collector = collector
	p := newTestPipeline(t, db, stages, Hooks{})

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background())
		done <- err
	}()
	<-collector.started

	run, err := p.Run(context.Background())
	if !errors.Is(err, core.ErrRunInProgress) {
		t.Fatalf("Expected ErrRunInProgress, got %v", err)
	}
	if run.Status != core.RunRejected {
		t.Errorf("Expected rejected status, got %s", run.Status)
	}

	close(collector.release)
	if err := <-done; err != nil {
		t.Errorf("First run failed: %v", err)
	}
	if p.Running() {
		t.Error("Expected pipeline to be idle after the run")
	}
}

type cancellingSummarizer struct {
	TrendSummarizer
	cancel context.CancelFunc
}

func (c cancellingSummarizer) Summarize(trend core.CanonicalTrend, b core.ScoreBreakdown) core.TrendSummary {
	c.cancel()
	return c.TrendSummarizer.Summarize(trend, b)
}

func TestRunCancelledBeforeCommitRollsBack(t *testing.T) {
	cfg := config.Default()
	db := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stages := testStages(cfg, db, sources.NewStaticAdapter("news_rss", testItems(time.Now())))
	stages.Summarizer = cancellingSummarizer{TrendSummarizer: stages.Summarizer, cancel: cancel}
	p := newTestPipeline(t, db, stages, Hooks{})

	run, err := p.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if run.Status != core.RunCancelled {
		t.Errorf("Expected cancelled status, got %s", run.Status)
	}

	records, err := db.Trends().Query(context.Background(), persistence.TrendFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records after cancellation, got %d", len(records))
	}

	latest, err := db.Runs().Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.Status != core.RunCancelled || latest.Written != 0 {
		t.Errorf("Unexpected saved run: %+v", latest)
	}
}

type panickingClassifier struct {
	TrendClassifier
}

func (p panickingClassifier) Apply(trend core.CanonicalTrend) core.CanonicalTrend {
	if strings.Contains(trend.Title, "matatu") {
		panic("classifier exploded")
	}
	return p.TrendClassifier.Apply(trend)
}

func TestRunIsolatesItemPanics(t *testing.T) {
	cfg := config.Default()
	db := newTestStore(t)
	stages := testStages(cfg, db, sources.NewStaticAdapter("news_rss", testItems(time.Now())))
	stages.Classifier = panickingClassifier{stages.Classifier}
	p := newTestPipeline(t, db, stages, Hooks{})

	run, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Failed != 1 {
		t.Errorf("Expected 1 failed trend, got %d", run.Failed)
	}
	if run.Reasons["classify_failed"] != 1 {
		t.Errorf("Expected classify_failed reason, got %v", run.Reasons)
	}
	if run.Written != 2 {
		t.Errorf("Expected 2 written, got %d", run.Written)
	}
}

type fakeLock struct {
	acquire  bool
	released bool
}

func (l *fakeLock) Acquire(ctx context.Context) (bool, error) { return l.acquire, nil }

func (l *fakeLock) Release(ctx context.Context) error {
	l.released = true
	return nil
}

func TestRunRespectsDistributedLock(t *testing.T) {
	cfg := config.Default()
	db := newTestStore(t)
	lock := &fakeLock{}
	p := newTestPipeline(t, db, testStages(cfg, db), Hooks{Lock: lock})

	run, err := p.Run(context.Background())
	if !errors.Is(err, core.ErrRunInProgress) {
		t.Fatalf("Expected ErrRunInProgress, got %v", err)
	}
	if run.Status != core.RunRejected {
		t.Errorf("Expected rejected, got %s", run.Status)
	}

	lock.acquire = true
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !lock.released {
		t.Error("Expected lock to be released")
	}
}

type recorder struct {
	mu        sync.Mutex
	baselines []string
	records   int
	runs      []core.RunStatus
	cards     int
	alerts    int
}

func (r *recorder) Update(ctx context.Context, market, topic string, magnitude float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baselines = append(r.baselines, market+"|"+topic)
	return magnitude, nil
}

func (r *recorder) PublishRecords(ctx context.Context, runID string, records []core.TrendRecord) error {
	r.records += len(records)
	return nil
}

func (r *recorder) PublishRun(ctx context.Context, run *core.RunSummary) error {
	r.runs = append(r.runs, run.Status)
	return nil
}

func (r *recorder) PublishCards(ctx context.Context, cards []core.PitchCard) error {
	r.cards += len(cards)
	return nil
}

func (r *recorder) NotifyTrends(ctx context.Context, records []core.TrendRecord) error {
	r.alerts++
	return nil
}

func (r *recorder) NotifyCards(ctx context.Context, cards []core.PitchCard) error {
	r.alerts++
	return nil
}

func TestRunInvokesHooksAfterCommit(t *testing.T) {
	cfg := config.Default()
	db := newTestStore(t)
	rec := &recorder{}
	hooks := Hooks{Baselines: rec, Events: rec, Alerts: rec}
	p := newTestPipeline(t, db, testStages(cfg, db, sources.NewStaticAdapter("news_rss", testItems(time.Now()))), hooks)

	run, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.records != run.Written {
		t.Errorf("Expected %d published records, got %d", run.Written, rec.records)
	}
	if len(rec.runs) != 1 || rec.runs[0] != core.RunSuccess {
		t.Errorf("Expected one success run event, got %v", rec.runs)
	}
	if rec.alerts != 1 {
		t.Errorf("Expected one notification call, got %d", rec.alerts)
	}
	if len(rec.baselines) == 0 {
		t.Error("Expected baseline updates")
	}
}

func TestObservedMagnitudes(t *testing.T) {
	record := func(market, topic string, magnitude float64) core.TrendRecord {
		return core.TrendRecord{Trend: core.CanonicalTrend{Market: market, Topic: topic, Magnitude: magnitude}}
	}
	got := observedMagnitudes([]core.TrendRecord{
		record("NG", "music", 100),
		record("KE", "music", 10),
		record("NG", "music", 300),
		record("", "music", 999),
	})
	if len(got) != 2 {
		t.Fatalf("Expected 2 observations, got %d", len(got))
	}
	if got[0].market != "KE" || got[0].magnitude != 10 {
		t.Errorf("Unexpected first observation: %+v", got[0])
	}
	if got[1].market != "NG" || got[1].magnitude != 200 {
		t.Errorf("Expected NG mean 200, got %+v", got[1])
	}
}

type staticBundle struct {
	bundle *sources.SignalBundle
	err    error
}

func (s staticBundle) Load(ctx context.Context) (*sources.SignalBundle, error) {
	return s.bundle, s.err
}

type failingStyles struct{}

func (failingStyles) Fetch(ctx context.Context, markets []string) ([]core.StyleSignal, error) {
	return nil, core.ErrSourceUnavailable
}

func TestTrendJackRefreshReplacesCards(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	observed := time.Now().UTC().Add(-time.Hour)

	bundle := &sources.SignalBundle{
		ArtistSpikes: []core.ArtistSpike{{
			ID: "spike-1", ArtistName: "Sauti Sol", Market: "KE", SpikeScore: 85,
			TimeWindow: "24h", Confidence: core.LevelHigh, CollectedAt: observed,
		}},
		StyleSignals: []core.StyleSignal{{
			ID: "style-1", Headline: "Sauti Sol drops tour merch capsule in Nairobi", Source: "OkayAfrica",
			Markets: []string{"KE"}, Magnitude: 80, SpotifyTags: []string{"tour_merch"},
			Entities: []string{"Sauti Sol"}, RiskLevel: core.RiskLow,
			PublishedAt: observed, CollectedAt: observed,
		}},
	}

	if err := db.PitchCards().ReplaceAll(ctx, []core.PitchCard{{
		ID: "stale", Market: "NG", Hook: "old card", Confidence: core.ConfidenceLow,
		GeneratedAt: observed, ExpiresAt: observed,
	}}); err != nil {
		t.Fatalf("Seeding cards failed: %v", err)
	}

	rec := &recorder{}
	generator := pitch.New(pitch.SettingsFrom(config.Default().Pitch))
	tj, err := NewTrendJack(failingStyles{}, staticBundle{bundle: bundle}, generator, db,
		TrendJackConfig{Markets: []string{"KE"}}, Hooks{Events: rec, Alerts: rec})
	if err != nil {
		t.Fatalf("NewTrendJack failed: %v", err)
	}

	result, err := tj.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if result.Spikes != 1 || result.Styles != 1 {
		t.Errorf("Expected 1 spike and 1 style, got %d and %d", result.Spikes, result.Styles)
	}
	if len(result.Cards) == 0 {
		t.Fatal("Expected at least one card")
	}

	stored, err := db.PitchCards().List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(stored) != len(result.Cards) {
		t.Errorf("Expected %d stored cards, got %d", len(result.Cards), len(stored))
	}
	for _, c := range stored {
		if c.ID == "stale" {
			t.Error("Expected stale card to be replaced")
		}
	}
	if rec.cards != len(result.Cards) {
		t.Errorf("Expected %d published cards, got %d", len(result.Cards), rec.cards)
	}
}

func TestTrendJackRejectsConcurrentRefresh(t *testing.T) {
	db := newTestStore(t)
	tj, err := NewTrendJack(nil, nil, pitch.New(pitch.SettingsFrom(config.Default().Pitch)), db, TrendJackConfig{}, Hooks{})
	if err != nil {
		t.Fatalf("NewTrendJack failed: %v", err)
	}
	tj.running.Store(true)
	if _, err := tj.Refresh(context.Background()); !errors.Is(err, core.ErrRunInProgress) {
		t.Errorf("Expected ErrRunInProgress, got %v", err)
	}
}

func TestStartRunsInBackground(t *testing.T) {
	cfg := config.Default()
	db := newTestStore(t)
	collector := &blockingCollector{started: make(chan struct{}), release: make(chan struct{})}
	stages := testStages(cfg, db)
	stages.Collector = collector
	p := newTestPipeline(t, db, stages, Hooks{})

	runID, done, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-collector.started
	if !p.Running() {
		t.Error("Expected pipeline to report a run in progress")
	}
	if _, _, err := p.Start(context.Background()); !errors.Is(err, core.ErrRunInProgress) {
		t.Errorf("Expected ErrRunInProgress from second Start, got %v", err)
	}

	close(collector.release)
	result := <-done
	if result.Err != nil {
		t.Fatalf("Background run failed: %v", result.Err)
	}
	if result.Run.RunID != runID {
		t.Errorf("Expected run id %s, got %s", runID, result.Run.RunID)
	}
}
