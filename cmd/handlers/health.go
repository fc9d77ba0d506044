package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"trendpulse/internal/health"
)

// NewHealthCmd creates the health command reporting module freshness
func NewHealthCmd() *cobra.Command {
	var (
		asJSON       bool
		checkSources bool
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show data freshness for each module",
		Long: `Show data freshness for each module. With --sources every configured
source adapter is checked as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd.Context(), asJSON, checkSources)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&checkSources, "sources", false, "check each source adapter")
	return cmd
}

type healthOutput struct {
	health.Report
	Sources map[string]bool `json:"sources,omitempty"`
}

func runHealth(ctx context.Context, asJSON, checkSources bool) error {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := healthOutput{Report: a.monitor().Check(ctx, time.Now())}
	if checkSources {
		collector, err := a.builder().Collector()
		if err != nil {
			return fmt.Errorf("failed to resolve sources: %w", err)
		}
		out.Sources = collector.CheckHealth(ctx)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printHealth(os.Stdout, out.Report)
	if out.Sources != nil {
		printSourceChecks(os.Stdout, out.Sources)
	}
	if a.cache != nil {
		if err := a.cache.Health(ctx); err != nil {
			os.Stdout.WriteString("  redis          " + errStyle.Render("unreachable") + "\n")
		} else {
			os.Stdout.WriteString("  redis          " + okStyle.Render("ok") + "\n")
		}
	}
	return nil
}
