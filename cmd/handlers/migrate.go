package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"trendpulse/internal/logger"
	"trendpulse/internal/persistence"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage schema migrations for the SQLite store or PostgreSQL.
The SQLite store applies pending migrations when it opens.

Subcommands:
  up       Apply all pending migrations
  status   Show migration status
  rollback Revert the last migration with its down script (use with caution!)

Examples:
  trendpulse migrate up
  trendpulse migrate status`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *persistence.Migrator) error {
				count, err := m.Up(cmd.Context())
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				if count == 0 {
					fmt.Println(dimStyle.Render("Schema is up to date"))
					return nil
				}
				fmt.Println(okStyle.Render(fmt.Sprintf("Applied %d migration(s)", count)))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *persistence.Migrator) error {
				return runMigrateStatus(cmd.Context(), m)
			})
		},
	})
	cmd.AddCommand(newMigrateRollbackCmd())

	return cmd
}

func newMigrateRollbackCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the last migration",
		Long: `Roll back the last applied migration by running its down script.

Down scripts drop the tables the migration created, so stored data is lost.
Use --force to skip the confirmation prompt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				fmt.Print("Tables created by the last migration will be dropped. Proceed? (yes/no): ")
				var response string
				if _, err := fmt.Scanln(&response); err != nil {
					return fmt.Errorf("failed to read response: %w", err)
				}
				if response != "yes" {
					fmt.Println("Rollback cancelled")
					return nil
				}
			}
			return withMigrator(cmd.Context(), func(m *persistence.Migrator) error {
				reverted, err := m.Down(cmd.Context())
				switch {
				case errors.Is(err, persistence.ErrNothingApplied):
					fmt.Println(dimStyle.Render("No applied migrations to roll back"))
					return nil
				case errors.Is(err, persistence.ErrIrreversible):
					return fmt.Errorf("cannot roll back: %w", err)
				case err != nil:
					return fmt.Errorf("rollback failed: %w", err)
				}
				logger.Warn("Migration reverted", "version", reverted.Version, "name", reverted.Name)
				fmt.Println(warnStyle.Render(fmt.Sprintf("Reverted %03d_%s", reverted.Version, reverted.Name)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")
	return cmd
}

func withMigrator(ctx context.Context, fn func(*persistence.Migrator) error) error {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sqlDB, ok := a.sqlDB()
	if !ok {
		return errors.New("database does not support migrations")
	}
	m, err := persistence.NewMigrator(sqlDB)
	if err != nil {
		return err
	}
	return fn(m)
}

func runMigrateStatus(ctx context.Context, m *persistence.Migrator) error {
	status, err := m.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	if len(status) == 0 {
		fmt.Println("No migrations found")
		return nil
	}

	fmt.Printf("%-10s %-10s %-24s %s\n", "Version", "Status", "Name", "Applied")
	pending := 0
	for _, s := range status {
		label := okStyle.Render("applied")
		applied := humanize.Time(s.AppliedAt)
		if !s.Applied {
			label = warnStyle.Render("pending")
			applied = "-"
			pending++
		}
		fmt.Printf("%-10d %-10s %-24s %s\n", s.Version, label, s.Name, applied)
	}

	fmt.Printf("\nApplied: %d | Pending: %d | Total: %d\n", len(status)-pending, pending, len(status))
	if pending > 0 {
		fmt.Println("Run 'trendpulse migrate up' to apply pending migrations")
	}
	return nil
}
