// Package scheduler runs the pipeline, trend-jack refresh, validation and
// cleanup on fixed intervals.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Job is one periodic task
type Job interface {
	// Name returns the unique job name
	Name() string

	// Run executes one iteration and returns
	Run(ctx context.Context) error

	// Interval returns how often the job runs
	Interval() time.Duration

	// Enabled returns whether the job is scheduled
	Enabled() bool
}

// JobHealth contains health information for a job
type JobHealth struct {
	Name        string        `json:"name"`
	Interval    time.Duration `json:"interval"`
	LastRun     time.Time     `json:"last_run"`
	LastError   string        `json:"last_error,omitempty"`
	RunCount    int64         `json:"run_count"`
	ErrorCount  int64         `json:"error_count"`
	AvgDuration time.Duration `json:"avg_duration"`
	IsRunning   bool          `json:"is_running"`
	Enabled     bool          `json:"enabled"`
}

// BaseJob provides name, interval and health bookkeeping for jobs
type BaseJob struct {
	name     string
	interval time.Duration

	mu            sync.RWMutex
	enabled       bool
	running       bool
	lastRun       time.Time
	lastError     error
	runCount      int64
	errorCount    int64
	totalDuration time.Duration
}

// NewBaseJob creates a base job. A non-positive interval disables it.
func NewBaseJob(name string, interval time.Duration) *BaseJob {
	return &BaseJob{name: name, interval: interval, enabled: interval > 0}
}

// Name returns the job name
func (j *BaseJob) Name() string { return j.name }

// Interval returns the run interval
func (j *BaseJob) Interval() time.Duration { return j.interval }

// Enabled returns whether the job is enabled
func (j *BaseJob) Enabled() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.enabled
}

// SetEnabled updates the enabled status
func (j *BaseJob) SetEnabled(enabled bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.enabled = enabled
}

// Health returns a snapshot of the job's health
func (j *BaseJob) Health() JobHealth {
	j.mu.RLock()
	defer j.mu.RUnlock()

	h := JobHealth{
		Name:       j.name,
		Interval:   j.interval,
		LastRun:    j.lastRun,
		RunCount:   j.runCount,
		ErrorCount: j.errorCount,
		IsRunning:  j.running,
		Enabled:    j.enabled,
	}
	if j.runCount > 0 {
		h.AvgDuration = time.Duration(int64(j.totalDuration) / j.runCount)
	}
	if j.lastError != nil {
		h.LastError = j.lastError.Error()
	}
	return h
}

// begin marks the job running. It reports false if it already was.
func (j *BaseJob) begin() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return false
	}
	j.running = true
	return true
}

// RecordRun records a successful run
func (j *BaseJob) RecordRun(duration time.Duration) {
	j.record(nil, duration)
}

// RecordError records a failed run
func (j *BaseJob) RecordError(err error, duration time.Duration) {
	j.record(err, duration)
}

func (j *BaseJob) record(err error, duration time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.running = false
	j.lastRun = time.Now()
	j.runCount++
	j.totalDuration += duration
	j.lastError = err
	if err != nil {
		j.errorCount++
	}
}

// FuncJob adapts a function into a Job
type FuncJob struct {
	*BaseJob
	fn func(ctx context.Context) error
}

// NewJob creates a job that calls fn every interval
func NewJob(name string, interval time.Duration, fn func(ctx context.Context) error) *FuncJob {
	return &FuncJob{BaseJob: NewBaseJob(name, interval), fn: fn}
}

// Run calls the job function
func (f *FuncJob) Run(ctx context.Context) error {
	return f.fn(ctx)
}
