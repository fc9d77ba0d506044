package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
	"trendpulse/internal/pipeline"
	"trendpulse/internal/scorer"
	"trendpulse/internal/sources"
	"trendpulse/internal/store"
	"trendpulse/internal/validator"
)

type countingJob struct {
	*BaseJob
	runs  int32
	runFn func(ctx context.Context) error
}

func newCountingJob(name string, interval time.Duration) *countingJob {
	return &countingJob{BaseJob: NewBaseJob(name, interval)}
}

func (c *countingJob) Run(ctx context.Context) error {
	atomic.AddInt32(&c.runs, 1)
	if c.runFn != nil {
		return c.runFn(ctx)
	}
	return nil
}

func (c *countingJob) count() int { return int(atomic.LoadInt32(&c.runs)) }

func TestScheduler_StartStop(t *testing.T) {
	s := New()
	job := newCountingJob("tick", 50*time.Millisecond)
	require.NoError(t, s.Register(job))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	time.Sleep(130 * time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.GreaterOrEqual(t, job.count(), 2, "job should run on start and on at least one tick")
}

func TestScheduler_CannotStartTwice(t *testing.T) {
	s := New(WithRunOnStart(false))
	require.NoError(t, s.Register(newCountingJob("tick", time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	assert.Error(t, s.Stop())
}

func TestScheduler_RegisterRules(t *testing.T) {
	s := New(WithRunOnStart(false))
	require.NoError(t, s.Register(newCountingJob("a", time.Hour)))
	assert.Error(t, s.Register(newCountingJob("a", time.Hour)), "duplicate names are rejected")

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Error(t, s.Register(newCountingJob("b", time.Hour)), "registration after start is rejected")
	assert.Equal(t, []string{"a"}, s.Jobs())
}

func TestScheduler_DisabledJobDoesNotRun(t *testing.T) {
	s := New()
	enabled := newCountingJob("enabled", time.Hour)
	disabled := newCountingJob("disabled", time.Hour)
	disabled.SetEnabled(false)
	zero := newCountingJob("zero", 0)

	require.NoError(t, s.Register(enabled))
	require.NoError(t, s.Register(disabled))
	require.NoError(t, s.Register(zero))
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Equal(t, 1, enabled.count())
	assert.Equal(t, 0, disabled.count())
	assert.Equal(t, 0, zero.count())
	assert.False(t, zero.Enabled())
}

func TestScheduler_RunNowRecordsHealth(t *testing.T) {
	s := New()
	ok := newCountingJob("ok", time.Hour)
	failing := newCountingJob("failing", time.Hour)
	failing.runFn = func(ctx context.Context) error { return errors.New("boom") }
	panicking := newCountingJob("panicking", time.Hour)
	panicking.runFn = func(ctx context.Context) error { panic("kaboom") }

	for _, job := range []Job{ok, failing, panicking} {
		require.NoError(t, s.Register(job))
	}

	ctx := context.Background()
	require.NoError(t, s.RunNow(ctx, "ok"))
	assert.EqualError(t, s.RunNow(ctx, "failing"), "boom")
	assert.ErrorContains(t, s.RunNow(ctx, "panicking"), "kaboom")
	assert.ErrorIs(t, s.RunNow(ctx, "missing"), ErrUnknownJob)

	health := s.Health()
	require.Len(t, health, 3)
	byName := map[string]JobHealth{}
	for _, h := range health {
		byName[h.Name] = h
	}
	assert.Equal(t, int64(1), byName["ok"].RunCount)
	assert.Equal(t, int64(0), byName["ok"].ErrorCount)
	assert.Empty(t, byName["ok"].LastError)
	assert.Equal(t, int64(1), byName["failing"].ErrorCount)
	assert.Equal(t, "boom", byName["failing"].LastError)
	assert.Equal(t, int64(1), byName["panicking"].ErrorCount)
	assert.False(t, byName["panicking"].IsRunning)
	assert.Equal(t, "failing", health[0].Name, "health is sorted by name")
}

func TestScheduler_RunNowRejectsBusyJob(t *testing.T) {
	s := New()
	started := make(chan struct{})
	release := make(chan struct{})
	slow := newCountingJob("slow", time.Hour)
	slow.runFn = func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}
	require.NoError(t, s.Register(slow))

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-started

	assert.ErrorIs(t, s.RunNow(context.Background(), "slow"), ErrJobBusy)
	assert.True(t, slow.Health().IsRunning)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, slow.Health().IsRunning)
}

func TestJobs_AgainstStore(t *testing.T) {
	cfg := config.Default()
	db, err := store.NewStore(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	items := []core.TrendItem{
		{Source: "news_rss", Market: "NG", Title: "Asake sells out Lagos arena in minutes", ObservedAt: time.Now(), Magnitude: 90000},
		{Source: "news_rss", Market: "ZA", Title: "Amapiano dance challenge spreads across Soweto schools", ObservedAt: time.Now(), Magnitude: 40000},
	}
	p, err := pipeline.NewBuilder(cfg, db).
		WithAdapters(sources.NewStaticAdapter("news_rss", items)).
		Build(ctx)
	require.NoError(t, err)

	tj, err := pipeline.NewBuilder(cfg, db).BuildTrendJack()
	require.NoError(t, err)

	s := New()
	require.NoError(t, s.Register(PipelineJob(p, time.Hour)))
	require.NoError(t, s.Register(TrendJackJob(tj, time.Hour)))
	require.NoError(t, s.Register(ValidateJob(validator.New(scorer.BandsFrom(cfg.Scoring.Thresholds), 24*time.Hour), db.Trends(), time.Hour)))
	require.NoError(t, s.Register(CleanupJob(db, 30*24*time.Hour, time.Hour)))

	require.NoError(t, s.RunNow(ctx, JobPipeline))
	latest, err := db.Runs().Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.RunSuccess, latest.Status)
	assert.Equal(t, 2, latest.Written)

	require.NoError(t, s.RunNow(ctx, JobTrendJack))
	require.NoError(t, s.RunNow(ctx, JobValidate))
	require.NoError(t, s.RunNow(ctx, JobCleanup))

	stats, err := db.Trends().Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total, "fresh records survive cleanup")

	for _, h := range s.Health() {
		assert.Equal(t, int64(1), h.RunCount, h.Name)
		assert.Empty(t, h.LastError, h.Name)
	}
}
