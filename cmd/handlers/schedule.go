package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trendpulse/internal/config"
	"trendpulse/internal/logger"
	"trendpulse/internal/pipeline"
	"trendpulse/internal/scheduler"
)

// NewScheduleCmd creates the schedule command that runs recurring jobs
func NewScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run pipeline, pitch card, validation and cleanup jobs on their intervals",
		Long: `Run every enabled job on its configured interval until interrupted.

Intervals come from pipeline.interval, pitch.interval, validation.interval
and retention.interval. An empty or zero interval disables the job.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd.Context())
		},
	}
}

// newScheduler registers every job the configuration enables
func newScheduler(a *app, p *pipeline.Pipeline, tj *pipeline.TrendJack) (*scheduler.Scheduler, error) {
	s := scheduler.New()
	retention := time.Duration(a.cfg.Retention.Days) * 24 * time.Hour

	jobs := []scheduler.Job{
		scheduler.PipelineJob(p, config.Duration(a.cfg.Pipeline.Interval, 0)),
		scheduler.TrendJackJob(tj, config.Duration(a.cfg.Pitch.Interval, 0)),
		scheduler.ValidateJob(a.validator(), a.db.Trends(), config.Duration(a.cfg.Validation.Interval, 0)),
	}
	if retention > 0 {
		jobs = append(jobs, scheduler.CleanupJob(a.db, retention, config.Duration(a.cfg.Retention.Interval, 0)))
	}
	for _, job := range jobs {
		if err := s.Register(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func runSchedule(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.builder().Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	tj, err := a.builder().BuildTrendJack()
	if err != nil {
		return fmt.Errorf("failed to build pitch card refresher: %w", err)
	}

	s, err := newScheduler(a, p, tj)
	if err != nil {
		return err
	}
	if err := s.Start(ctx); err != nil {
		return err
	}
	logger.Info("Scheduler running, press Ctrl+C to stop", "jobs", s.Jobs())

	<-ctx.Done()
	logger.Info("Stopping scheduler")
	return s.Stop()
}
