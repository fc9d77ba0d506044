package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"trendpulse/internal/persistence"
	"trendpulse/internal/tui"
)

// NewBrowseCmd creates the browse command for the terminal UI
func NewBrowseCmd() *cobra.Command {
	var (
		market string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse trends and pitch cards in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd.Context(), market, limit)
		},
	}
	cmd.Flags().StringVar(&market, "market", "", "only load one market")
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum trends to load")
	return cmd
}

func runBrowse(ctx context.Context, market string, limit int) error {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	market = strings.ToUpper(strings.TrimSpace(market))
	records, err := a.db.Trends().Query(ctx, persistence.TrendFilter{Market: market, Limit: limit})
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	cards, err := a.db.PitchCards().List(ctx, market)
	if err != nil {
		return fmt.Errorf("failed to load pitch cards: %w", err)
	}
	return tui.StartTUI(records, cards)
}
