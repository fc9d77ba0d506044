package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"trendpulse/internal/core"
	"trendpulse/internal/logger"
	"trendpulse/internal/metrics"
	"trendpulse/internal/persistence"
	"trendpulse/internal/scorer"
	"trendpulse/internal/sources"
)

// Stages holds the processing stages of a run, in execution order
type Stages struct {
	Collector  TrendCollector
	Cleaner    TrendCleaner
	Enricher   TrendEnricher
	Classifier TrendClassifier
	Scorer     TrendScorer
	Summarizer TrendSummarizer
}

// Hooks are optional collaborators invoked around a run. Nil hooks are skipped.
type Hooks struct {
	Lock      Locker
	Baselines BaselineUpdater
	Events    EventPublisher
	Alerts    Alerter
	Errors    ErrorReporter
}

// Config holds run-level settings
type Config struct {
	Markets  []string
	Keywords []string
	Timeout  time.Duration // Zero means no deadline beyond the caller's
}

// Pipeline orchestrates one trend run end to end. Only one run may be active
// per Pipeline; a second trigger is rejected with core.ErrRunInProgress.
type Pipeline struct {
	stages Stages
	hooks  Hooks
	db     persistence.Database
	config Config
	log    *slog.Logger
	now    func() time.Time

	running atomic.Bool
}

// New creates a pipeline over the given stages and database
func New(stages Stages, db persistence.Database, cfg Config, hooks Hooks) (*Pipeline, error) {
	switch {
	case stages.Collector == nil, stages.Cleaner == nil, stages.Enricher == nil,
		stages.Classifier == nil, stages.Scorer == nil, stages.Summarizer == nil:
		return nil, fmt.Errorf("%w: every pipeline stage is required", core.ErrConfigurationInvalid)
	case db == nil:
		return nil, fmt.Errorf("%w: database is required", core.ErrConfigurationInvalid)
	}
	return &Pipeline{
		stages: stages,
		hooks:  hooks,
		db:     db,
		config: cfg,
		log:    logger.With("pipeline"),
		now:    time.Now,
	}, nil
}

// Running reports whether a run is in progress
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// SourceHealth reports the outcome of each adapter's most recent fetch
func (p *Pipeline) SourceHealth() []sources.AdapterHealth {
	return p.stages.Collector.Health()
}

// Result is the outcome of a background run
type Result struct {
	Run *core.RunSummary
	Err error
}

// Run executes Collect, Clean, Enrich, Classify, Score and Summarise, then
// commits every record and the run summary in one transaction. Cancellation
// before commit rolls the whole batch back. The returned summary is never nil.
func (p *Pipeline) Run(ctx context.Context) (*core.RunSummary, error) {
	run := p.newRun()
	if !p.running.CompareAndSwap(false, true) {
		return p.reject(run), core.ErrRunInProgress
	}
	defer p.running.Store(false)
	return p.execute(ctx, run)
}

// Start claims the run slot and executes the run in the background. It
// returns core.ErrRunInProgress without starting anything when a run is
// active. The channel receives exactly one Result.
func (p *Pipeline) Start(ctx context.Context) (string, <-chan Result, error) {
	run := p.newRun()
	if !p.running.CompareAndSwap(false, true) {
		p.reject(run)
		return "", nil, core.ErrRunInProgress
	}
	done := make(chan Result, 1)
	go func() {
		defer p.running.Store(false)
		summary, err := p.execute(ctx, run)
		done <- Result{Run: summary, Err: err}
	}()
	return run.RunID, done, nil
}

func (p *Pipeline) newRun() *core.RunSummary {
	return &core.RunSummary{RunID: uuid.NewString(), StartedAt: p.now().UTC()}
}

func (p *Pipeline) execute(ctx context.Context, run *core.RunSummary) (*core.RunSummary, error) {
	if p.hooks.Lock != nil {
		acquired, err := p.hooks.Lock.Acquire(ctx)
		if err != nil {
			return p.fail(ctx, run, fmt.Errorf("run lock: %w", err)), err
		}
		if !acquired {
			return p.reject(run), core.ErrRunInProgress
		}
		defer func() {
			if err := p.hooks.Lock.Release(context.WithoutCancel(ctx)); err != nil {
				p.log.Warn("Failed to release run lock", "error", err)
			}
		}()
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	p.log.Info("Run started", "run_id", run.RunID, "markets", p.config.Markets)

	records, err := p.process(ctx, run)
	if err == nil {
		err = p.commit(ctx, run, records)
	}
	if err != nil {
		return p.fail(ctx, run, err), err
	}

	p.afterCommit(ctx, run, records)
	p.log.Info("Run completed",
		"run_id", run.RunID,
		"collected", run.Collected,
		"processed", run.Processed,
		"skipped", run.Skipped,
		"failed", run.Failed,
		"merged", run.Merged,
		"written", run.Written,
		"duration", run.Duration(),
	)
	return run, nil
}

func (p *Pipeline) reject(run *core.RunSummary) *core.RunSummary {
	run.Status = core.RunRejected
	run.FinishedAt = run.StartedAt
	run.Error = core.ErrRunInProgress.Error()
	metrics.RecordRun(run)
	p.log.Warn("Run rejected", "run_id", run.RunID, "error", core.ErrRunInProgress)
	return run
}

// fail finalizes a run that did not commit. The summary is still persisted so
// operators can see what happened.
func (p *Pipeline) fail(ctx context.Context, run *core.RunSummary, err error) *core.RunSummary {
	run.FinishedAt = p.now().UTC()
	run.Status = core.RunFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		run.Status = core.RunCancelled
	}
	run.Written = 0
	run.Error = err.Error()

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if saveErr := p.db.Runs().Save(saveCtx, run); saveErr != nil {
		p.log.Warn("Failed to save run summary", "run_id", run.RunID, "error", saveErr)
	}

	metrics.RecordRun(run)
	if p.hooks.Errors != nil {
		p.hooks.Errors.CaptureRun(saveCtx, run, err)
	}
	if p.hooks.Events != nil {
		if pubErr := p.hooks.Events.PublishRun(saveCtx, run); pubErr != nil {
			p.log.Warn("Failed to publish run event", "run_id", run.RunID, "error", pubErr)
		}
	}
	logger.Error("Run failed", err, "run_id", run.RunID, "status", run.Status)
	return run
}

// process runs every stage before persistence and returns the records to write
func (p *Pipeline) process(ctx context.Context, run *core.RunSummary) ([]core.TrendRecord, error) {
	collected, err := p.stages.Collector.Collect(ctx, p.config.Markets, p.config.Keywords)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	run.Collected = len(collected.Items) + collected.Skipped
	run.Skipped += collected.Skipped
	for reason, n := range collected.Reasons {
		run.AddReason(reason, n)
	}
	for _, name := range p.stages.Collector.Adapters() {
		err := collected.SourceErrors[name]
		metrics.RecordSourceFetch(name, err)
		if err != nil {
			if run.SourceErrors == nil {
				run.SourceErrors = make(map[string]string)
			}
			run.SourceErrors[name] = err.Error()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trends, cleaned := p.stages.Cleaner.Clean(collected.Items)
	run.Skipped += cleaned.Skipped
	run.Merged = cleaned.Merged
	for reason, n := range cleaned.Reasons {
		run.AddReason(reason, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trends = p.enrich(ctx, run, trends)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trends = p.eachTrend(run, "classify", trends, func(t core.CanonicalTrend) (core.CanonicalTrend, error) {
		return p.stages.Classifier.Apply(t), nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scored := p.score(ctx, run, trends)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	records := make([]core.TrendRecord, 0, len(scored))
	for _, s := range scored {
		summary, err := isolate(func() (core.TrendSummary, error) {
			return p.stages.Summarizer.Summarize(s.Trend, s.Breakdown), nil
		})
		if err != nil {
			p.stageFailed(run, "summarize", s.Trend, err)
			continue
		}
		records = append(records, core.TrendRecord{
			Fingerprint: s.Trend.Fingerprint(),
			RunID:       run.RunID,
			Trend:       s.Trend,
			Breakdown:   s.Breakdown,
			Summary:     summary,
			UpdatedAt:   now,
		})
	}
	run.Processed = len(records)
	return records, nil
}

func (p *Pipeline) enrich(ctx context.Context, run *core.RunSummary, trends []core.CanonicalTrend) []core.CanonicalTrend {
	degraded := 0
	out := p.eachTrend(run, "enrich", trends, func(t core.CanonicalTrend) (core.CanonicalTrend, error) {
		enriched, err := p.stages.Enricher.Enrich(ctx, t)
		if errors.Is(err, core.ErrEnrichmentDegraded) {
			degraded++
			return enriched, nil
		}
		return enriched, err
	})
	if degraded > 0 {
		p.log.Warn("Entity extraction degraded, using seed lists only", "run_id", run.RunID, "trends", degraded)
	}
	return out
}

func (p *Pipeline) score(ctx context.Context, run *core.RunSummary, trends []core.CanonicalTrend) []scorer.Scored {
	maxRaw := p.stages.Scorer.MaxMarketRaw(trends)
	scored := make([]scorer.Scored, 0, len(trends))
	for _, t := range trends {
		b, err := isolate(func() (core.ScoreBreakdown, error) {
			return p.stages.Scorer.Score(ctx, t, maxRaw), nil
		})
		if err != nil {
			p.stageFailed(run, "score", t, err)
			continue
		}
		scored = append(scored, scorer.Scored{Trend: t, Breakdown: b})
	}
	scorer.SortScored(scored)
	return scored
}

// commit writes every record, its history snapshot and the run summary in
// one transaction.
func (p *Pipeline) commit(ctx context.Context, run *core.RunSummary, records []core.TrendRecord) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				p.log.Warn("Rollback failed", "run_id", run.RunID, "error", rbErr)
			}
		}
	}()

	for i := range records {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = tx.Trends().Upsert(ctx, &records[i]); err != nil {
			return fmt.Errorf("upsert %s: %w", records[i].Fingerprint, err)
		}
		if err = tx.Trends().AppendHistory(ctx, records[i].Fingerprint, records[i].Snapshot()); err != nil {
			return fmt.Errorf("append history %s: %w", records[i].Fingerprint, err)
		}
	}

	run.Written = len(records)
	run.Status = core.RunSuccess
	run.FinishedAt = p.now().UTC()
	if err = tx.Runs().Save(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// afterCommit runs the best-effort side effects of a committed run. Failures
// are logged and never change the run outcome.
func (p *Pipeline) afterCommit(ctx context.Context, run *core.RunSummary, records []core.TrendRecord) {
	ctx = context.WithoutCancel(ctx)

	if p.hooks.Baselines != nil {
		for _, obs := range observedMagnitudes(records) {
			if _, err := p.hooks.Baselines.Update(ctx, obs.market, obs.topic, obs.magnitude); err != nil {
				p.log.Warn("Failed to update baseline", "market", obs.market, "topic", obs.topic, "error", err)
				break
			}
		}
	}

	if p.hooks.Events != nil {
		if err := p.hooks.Events.PublishRecords(ctx, run.RunID, records); err != nil {
			p.log.Warn("Failed to publish records", "run_id", run.RunID, "error", err)
		}
		if err := p.hooks.Events.PublishRun(ctx, run); err != nil {
			p.log.Warn("Failed to publish run event", "run_id", run.RunID, "error", err)
		}
	}

	if p.hooks.Alerts != nil {
		if err := p.hooks.Alerts.NotifyTrends(ctx, records); err != nil {
			p.log.Warn("Failed to send trend alerts", "run_id", run.RunID, "error", err)
			if p.hooks.Errors != nil {
				p.hooks.Errors.CaptureError(ctx, err, map[string]string{"stage": "notify", "run_id": run.RunID})
			}
		}
	}

	metrics.RecordRun(run)
	metrics.RecordTrends(records)
}

type observation struct {
	market    string
	topic     string
	magnitude float64
}

// observedMagnitudes averages magnitudes per market and topic, sorted by key.
func observedMagnitudes(records []core.TrendRecord) []observation {
	type acc struct {
		sum float64
		n   int
	}
	byKey := make(map[[2]string]*acc)
	for _, r := range records {
		key := [2]string{r.Trend.Market, r.Trend.Topic}
		if key[0] == "" {
			continue
		}
		a, ok := byKey[key]
		if !ok {
			a = &acc{}
			byKey[key] = a
		}
		a.sum += r.Trend.Magnitude
		a.n++
	}

	out := make([]observation, 0, len(byKey))
	for key, a := range byKey {
		out = append(out, observation{market: key[0], topic: key[1], magnitude: a.sum / float64(a.n)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].market != out[j].market {
			return out[i].market < out[j].market
		}
		return out[i].topic < out[j].topic
	})
	return out
}

func (p *Pipeline) stageFailed(run *core.RunSummary, stage string, trend core.CanonicalTrend, err error) {
	run.Failed++
	run.AddReason(stage+"_failed", 1)
	p.log.Warn("Trend failed in stage", "run_id", run.RunID, "stage", stage, "title", trend.Title, "error", err)
}

// eachTrend applies fn to every trend, dropping and counting the ones that
// fail or panic.
func (p *Pipeline) eachTrend(run *core.RunSummary, stage string, trends []core.CanonicalTrend, fn func(core.CanonicalTrend) (core.CanonicalTrend, error)) []core.CanonicalTrend {
	out := make([]core.CanonicalTrend, 0, len(trends))
	for _, t := range trends {
		result, err := isolate(func() (core.CanonicalTrend, error) { return fn(t) })
		if err != nil {
			p.stageFailed(run, stage, t, err)
			continue
		}
		out = append(out, result)
	}
	return out
}

// isolate converts a panic in fn into an error.
func isolate[T any](fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
