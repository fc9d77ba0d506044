package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trendpulse/internal/persistence"
)

// NewRunCmd creates the run command for a single pipeline run
func NewRunCmd() *cobra.Command {
	var (
		markets []string
		top     int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trend pipeline once",
		Long: `Collect, clean, enrich, classify, score and summarise trends, then
write the records and their history in one transaction.

Examples:
  # Run for every configured market
  trendpulse run

  # Run for Nigeria and Kenya only and show the top 5 records
  trendpulse run --markets NG,KE --top 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), markets, top)
		},
	}

	cmd.Flags().StringSliceVar(&markets, "markets", nil, "market codes to run for (default from config)")
	cmd.Flags().IntVar(&top, "top", 10, "number of top records to print after the run")

	return cmd
}

func runPipeline(ctx context.Context, markets []string, top int) error {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(markets) > 0 {
		a.cfg.Pipeline.Markets = upperList(markets)
	}

	p, err := a.builder().Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	run, runErr := p.Run(ctx)
	if run != nil {
		printRunSummary(os.Stdout, run)
		printSourceHealth(os.Stdout, p.SourceHealth())
	}
	if runErr != nil {
		return fmt.Errorf("pipeline run failed: %w", runErr)
	}

	if top > 0 {
		records, err := a.db.Trends().Query(ctx, persistence.TrendFilter{Limit: top})
		if err != nil {
			return fmt.Errorf("failed to load records: %w", err)
		}
		fmt.Println()
		fmt.Println(headerStyle.Render("Top trends"))
		printTrends(os.Stdout, records)
	}
	return nil
}
