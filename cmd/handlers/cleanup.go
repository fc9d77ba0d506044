package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"trendpulse/internal/persistence"
	"trendpulse/internal/store"
)

// NewCleanupCmd creates the cleanup command for retention
func NewCleanupCmd() *cobra.Command {
	var (
		days   int
		vacuum bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete records and signals older than the retention period",
		Long: `Delete trend records, their history and stored signals not updated
within the retention period. Pitch cards and run history are kept.

Examples:
  trendpulse cleanup
  trendpulse cleanup --days 14 --vacuum`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd.Context(), days, vacuum)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "retention in days (default from config)")
	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "reclaim disk space afterwards (SQLite only)")
	return cmd
}

func runCleanup(ctx context.Context, days int, vacuum bool) error {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if days <= 0 {
		days = a.cfg.Retention.Days
	}
	result, err := persistence.Cleanup(ctx, a.db, time.Duration(days)*24*time.Hour, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("%s removed %s trend rows and %s signals older than %s\n",
		headerStyle.Render("Cleanup"), humanize.Comma(result.Trends), humanize.Comma(result.Signals),
		humanize.Time(result.Cutoff))

	if vacuum {
		s, ok := a.db.(*store.Store)
		if !ok {
			fmt.Println(dimStyle.Render("vacuum skipped: not a SQLite store"))
			return nil
		}
		if err := s.Vacuum(ctx); err != nil {
			return err
		}
		if stats, err := s.FileStats(ctx); err == nil {
			fmt.Printf("  database size %s\n", humanize.Bytes(uint64(stats.Size)))
		}
	}
	return nil
}
