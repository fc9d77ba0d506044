package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"trendpulse/internal/logger"
	"trendpulse/internal/scheduler"
	"trendpulse/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port     int
		host     string
		schedule bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the TrendPulse HTTP API.

The server provides:
  • Trend, pitch card and run endpoints under /api
  • Validation and module health reports
  • POST /api/runs to trigger a pipeline run
  • A rendered digest at /digest and Prometheus metrics at /metrics

Examples:
  # Start server on default port 8080
  trendpulse serve

  # Start on custom port with the job scheduler running alongside
  trendpulse serve --port 3000 --schedule`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host, schedule)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "run scheduled jobs in the same process")

	return cmd
}

func runServe(ctx context.Context, port int, host string, schedule bool) error {
	log := logger.Get()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	serverCfg := a.cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	p, err := a.builder().Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	deps := server.Deps{
		DB:             a.db,
		Runner:         p,
		Sources:        p,
		Validator:      a.validator(),
		Monitor:        a.monitor(),
		TopN:           a.cfg.Output.TopN,
		MetricsEnabled: a.cfg.Observability.MetricsEnabled,
		Version:        Version,
	}

	var sched *scheduler.Scheduler
	if schedule {
		tj, err := a.builder().BuildTrendJack()
		if err != nil {
			return fmt.Errorf("failed to build pitch card refresher: %w", err)
		}
		sched, err = newScheduler(a, p, tj)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		deps.Jobs = sched
	}

	srv := server.New(deps, serverCfg)

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		log.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var result error
	select {
	case err := <-serverErrors:
		result = fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
			result = err
		}
	}

	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Warn("Scheduler stop failed", "error", err)
		}
	}
	return result
}
