package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"trendpulse/internal/logger"
	"trendpulse/internal/metrics"
)

var (
	// ErrUnknownJob is returned by RunNow for an unregistered name
	ErrUnknownJob = errors.New("unknown job")

	// ErrJobBusy is returned by RunNow while the job is already executing
	ErrJobBusy = errors.New("job already running")
)

// healthJob is a Job with BaseJob bookkeeping
type healthJob interface {
	Job
	Health() JobHealth
	begin() bool
	RecordRun(duration time.Duration)
	RecordError(err error, duration time.Duration)
}

// Scheduler manages and coordinates periodic jobs
type Scheduler struct {
	jobs            []healthJob
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex
	log             *slog.Logger
	started         bool
	runOnStart      bool
	shutdownTimeout time.Duration
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRunOnStart controls whether each job runs immediately on Start
func WithRunOnStart(run bool) Option {
	return func(s *Scheduler) { s.runOnStart = run }
}

// WithShutdownTimeout bounds how long Stop waits for running jobs
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.shutdownTimeout = d }
}

// New creates a scheduler
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		log:             logger.With("scheduler"),
		runOnStart:      true,
		shutdownTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job. Jobs must embed *BaseJob (directly or via NewJob).
func (s *Scheduler) Register(job Job) error {
	hj, ok := job.(healthJob)
	if !ok {
		return fmt.Errorf("job %s does not embed BaseJob", job.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("cannot register job %s after scheduler has started", job.Name())
	}
	for _, existing := range s.jobs {
		if existing.Name() == job.Name() {
			return fmt.Errorf("job %s already registered", job.Name())
		}
	}
	s.jobs = append(s.jobs, hj)
	s.log.Info("Job registered", "job", job.Name(), "interval", job.Interval(), "enabled", job.Enabled())
	return nil
}

// Start begins running all enabled jobs on their intervals
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	jobs := append([]healthJob(nil), s.jobs...)
	s.mu.Unlock()

	s.log.Info("Starting scheduler", "jobs", len(jobs))
	for _, job := range jobs {
		if !job.Enabled() || job.Interval() <= 0 {
			s.log.Info("Skipping disabled job", "job", job.Name())
			continue
		}
		s.wg.Add(1)
		go s.loop(s.ctx, job)
	}
	return nil
}

// Stop cancels every job loop and waits for running jobs to return
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler not started")
	}
	s.cancel()
	s.mu.Unlock()

	s.log.Info("Stopping scheduler")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var shutdownErr error
	select {
	case <-done:
		s.log.Info("All jobs stopped")
	case <-time.After(s.shutdownTimeout):
		shutdownErr = fmt.Errorf("shutdown timeout after %s", s.shutdownTimeout)
		s.log.Warn("Job shutdown timed out", "timeout", s.shutdownTimeout)
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return shutdownErr
}

// IsRunning returns whether the scheduler is started
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// RunNow executes a job synchronously, outside its schedule
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	job := s.find(name)
	if job == nil {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, job)
}

// Jobs returns the registered job names in registration order
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.Name()
	}
	return names
}

// Health returns per-job health, sorted by name
func (s *Scheduler) Health() []JobHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobHealth, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Health())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) find(name string) healthJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.Name() == name {
			return job
		}
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context, job healthJob) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval())
	defer ticker.Stop()

	if s.runOnStart {
		s.tick(ctx, job)
	}
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Job stopping", "job", job.Name())
			return
		case <-ticker.C:
			s.tick(ctx, job)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, job healthJob) {
	if err := s.execute(ctx, job); errors.Is(err, ErrJobBusy) {
		s.log.Info("Skipping tick, job still running", "job", job.Name())
	}
}

// execute runs one iteration with panic recovery and health bookkeeping
func (s *Scheduler) execute(ctx context.Context, job healthJob) (err error) {
	if !job.begin() {
		return fmt.Errorf("%w: %s", ErrJobBusy, job.Name())
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
		duration := time.Since(start)
		metrics.RecordJob(job.Name(), duration, err)
		if err != nil {
			job.RecordError(err, duration)
			logger.Error("Job execution failed", err, "job", job.Name(), "duration", duration)
			return
		}
		job.RecordRun(duration)
		s.log.Debug("Job execution completed", "job", job.Name(), "duration", duration)
	}()

	return job.Run(ctx)
}
