// Package metrics exposes pipeline metrics for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trendpulse/internal/core"
)

// Registry holds every trendpulse collector.
var Registry = prometheus.NewRegistry()

var (
	// Run metrics
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendpulse_runs_total",
			Help: "Total number of pipeline runs by terminal status",
		},
		[]string{"status"}, // success|failed|cancelled|rejected
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trendpulse_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	RunItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendpulse_run_items_total",
			Help: "Items handled by pipeline runs",
		},
		[]string{"outcome"}, // collected|processed|skipped|failed|merged|written
	)

	LastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trendpulse_last_run_timestamp",
			Help: "Unix timestamp of the last finished run",
		},
	)

	// Source metrics
	SourceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendpulse_source_fetches_total",
			Help: "Source adapter fetches",
		},
		[]string{"source", "status"},
	)

	// Trend metrics
	TrendsByAction = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trendpulse_trends_last_run",
			Help: "Trends scored in the last run by action and risk level",
		},
		[]string{"action", "risk_level"},
	)

	PitchCards = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trendpulse_pitch_cards",
			Help: "Current pitch cards by market and confidence",
		},
		[]string{"market", "confidence"},
	)

	ValidationViolations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trendpulse_validation_violations",
			Help: "Violations found by the last validation pass",
		},
		[]string{"severity"},
	)

	// Job metrics
	JobExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendpulse_job_executions_total",
			Help: "Scheduled job executions",
		},
		[]string{"job", "status"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trendpulse_job_duration_seconds",
			Help:    "Scheduled job duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"job"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Runs, RunDuration, RunItems, LastRun,
		SourceFetches,
		TrendsByAction, PitchCards, ValidationViolations,
		JobExecutions, JobDuration,
	)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordRun records a finished pipeline run
func RecordRun(run *core.RunSummary) {
	if run == nil {
		return
	}
	Runs.WithLabelValues(string(run.Status)).Inc()
	if run.Status == core.RunRejected {
		return
	}
	RunDuration.Observe(run.Duration().Seconds())
	RunItems.WithLabelValues("collected").Add(float64(run.Collected))
	RunItems.WithLabelValues("processed").Add(float64(run.Processed))
	RunItems.WithLabelValues("skipped").Add(float64(run.Skipped))
	RunItems.WithLabelValues("failed").Add(float64(run.Failed))
	RunItems.WithLabelValues("merged").Add(float64(run.Merged))
	RunItems.WithLabelValues("written").Add(float64(run.Written))
	LastRun.Set(float64(run.FinishedAt.Unix()))
}

// RecordSourceFetch records one adapter fetch
func RecordSourceFetch(source string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SourceFetches.WithLabelValues(source, status).Inc()
}

// RecordTrends replaces the per-action gauges with the given records
func RecordTrends(records []core.TrendRecord) {
	TrendsByAction.Reset()
	for _, r := range records {
		TrendsByAction.WithLabelValues(string(r.Breakdown.Action), string(r.Breakdown.RiskLevel)).Inc()
	}
}

// RecordPitchCards replaces the pitch card gauges
func RecordPitchCards(cards []core.PitchCard) {
	PitchCards.Reset()
	for _, c := range cards {
		PitchCards.WithLabelValues(c.Market, string(c.Confidence)).Inc()
	}
}

// RecordValidation sets the violation gauges
func RecordValidation(errors, warnings int) {
	ValidationViolations.WithLabelValues("error").Set(float64(errors))
	ValidationViolations.WithLabelValues("warning").Set(float64(warnings))
}

// RecordJob records a scheduled job execution
func RecordJob(job string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	JobExecutions.WithLabelValues(job, status).Inc()
	JobDuration.WithLabelValues(job).Observe(duration.Seconds())
}
