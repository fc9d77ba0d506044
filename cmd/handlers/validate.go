package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"trendpulse/internal/core"
	"trendpulse/internal/metrics"
	"trendpulse/internal/validator"
)

// NewValidateCmd creates the validate command for the Risk Validator
func NewValidateCmd() *cobra.Command {
	var (
		asJSON bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check stored records for risk and freshness problems",
		Long: `Run the Risk Validator over every stored trend record. The validator
never writes. The command exits non-zero when any error-level violation
is found; warnings alone do not fail it.

Examples:
  trendpulse validate
  trendpulse validate --json > report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), asJSON, limit)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum violations to print")

	return cmd
}

func runValidate(ctx context.Context, asJSON bool, limit int) error {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.validator().Run(ctx, a.db.Trends(), time.Now().UTC())
	if err != nil {
		return err
	}
	metrics.RecordValidation(report.Errors, report.Warnings)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printValidation(report, limit)
	}

	if !report.Valid {
		return fmt.Errorf("%w: %d errors, %d warnings", core.ErrValidationViolation, report.Errors, report.Warnings)
	}
	return nil
}

func printValidation(report *validator.Report, limit int) {
	status := okStyle.Render("valid")
	if !report.Valid {
		status = errStyle.Render("invalid")
	}
	fmt.Printf("%s %s: %d records, %d errors, %d warnings\n",
		headerStyle.Render("Validation"), status, report.Total, report.Errors, report.Warnings)

	for i, v := range report.Violations {
		if limit > 0 && i >= limit {
			fmt.Println(dimStyle.Render(fmt.Sprintf("  ... %d more", len(report.Violations)-limit)))
			break
		}
		label := warnStyle.Render("warning")
		if v.Severity == validator.SeverityError {
			label = errStyle.Render("error  ")
		}
		fmt.Printf("  %s %-16s %s %s\n", label, v.Check, v.RecordID, v.Message)
	}
}
