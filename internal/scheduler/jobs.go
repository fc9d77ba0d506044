package scheduler

import (
	"context"
	"errors"
	"time"

	"trendpulse/internal/core"
	"trendpulse/internal/logger"
	"trendpulse/internal/metrics"
	"trendpulse/internal/persistence"
	"trendpulse/internal/pipeline"
	"trendpulse/internal/validator"
)

// Job names
const (
	JobPipeline  = "pipeline"
	JobTrendJack = "trendjack"
	JobValidate  = "validate"
	JobCleanup   = "cleanup"
)

// PipelineJob runs the trend pipeline. A run already in progress is not an error.
func PipelineJob(p *pipeline.Pipeline, interval time.Duration) *FuncJob {
	return NewJob(JobPipeline, interval, func(ctx context.Context) error {
		_, err := p.Run(ctx)
		if errors.Is(err, core.ErrRunInProgress) {
			logger.Info("Pipeline run skipped, another run is active")
			return nil
		}
		return err
	})
}

// TrendJackJob refreshes pitch cards
func TrendJackJob(tj *pipeline.TrendJack, interval time.Duration) *FuncJob {
	return NewJob(JobTrendJack, interval, func(ctx context.Context) error {
		_, err := tj.Refresh(ctx)
		if errors.Is(err, core.ErrRunInProgress) {
			return nil
		}
		return err
	})
}

// ValidateJob runs the Risk Validator over stored records. Violations are
// reported through logs and metrics; only read failures fail the job.
func ValidateJob(v *validator.Validator, reader validator.RecordReader, interval time.Duration) *FuncJob {
	return NewJob(JobValidate, interval, func(ctx context.Context) error {
		report, err := v.Run(ctx, reader, time.Now().UTC())
		if err != nil {
			return err
		}
		metrics.RecordValidation(report.Errors, report.Warnings)
		if !report.Valid {
			logger.Warn("Validation found errors", "errors", report.Errors, "warnings", report.Warnings)
		}
		return nil
	})
}

// CleanupJob removes data older than the retention period
func CleanupJob(db persistence.Database, retention, interval time.Duration) *FuncJob {
	return NewJob(JobCleanup, interval, func(ctx context.Context) error {
		result, err := persistence.Cleanup(ctx, db, retention, time.Now())
		if err != nil {
			return err
		}
		logger.Info("Cleanup completed", "cutoff", result.Cutoff, "trends", result.Trends, "signals", result.Signals)
		return nil
	})
}
