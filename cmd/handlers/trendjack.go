package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trendpulse/internal/core"
)

// NewTrendJackCmd creates the trendjack command that refreshes pitch cards
func NewTrendJackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trendjack",
		Short: "Refresh trend-jack pitch cards",
		Long: `Ingest artist spikes and style signals from the configured feeds and
signals file, pair them per market and replace the stored pitch cards.

Example:
  trendpulse trendjack`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrendJack(cmd.Context())
		},
	}
}

func runTrendJack(ctx context.Context) error {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tj, err := a.builder().BuildTrendJack()
	if err != nil {
		return fmt.Errorf("failed to build pitch card refresher: %w", err)
	}

	result, err := tj.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("pitch card refresh failed: %w", err)
	}

	fmt.Printf("%s %d spikes, %d style signals, %d cards (%d paired, %d single-kind)\n",
		headerStyle.Render("Pitch cards"), result.Spikes, result.Styles, len(result.Cards),
		result.Stats.Paired, result.Stats.SingleKind)
	for _, level := range []core.CardConfidence{core.ConfidenceHigh, core.ConfidenceMedium, core.ConfidenceLow} {
		if n := result.Stats.ByConfidence[level]; n > 0 {
			fmt.Printf("  %s %d\n", dimStyle.Render(string(level)), n)
		}
	}
	fmt.Println()
	printCards(os.Stdout, result.Cards)
	return nil
}
