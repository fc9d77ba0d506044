// Package validator runs read-only QA checks over persisted trend records.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trendpulse/internal/core"
	"trendpulse/internal/logger"
	"trendpulse/internal/persistence"
	"trendpulse/internal/scorer"
)

// Severity grades a violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Check names.
const (
	CheckRiskLevel   = "risk_level"
	CheckRiskScore   = "risk_score"
	CheckConsistency = "risk_consistency"
	CheckAction      = "action"
	CheckFreshness   = "freshness"
)

// Violation is one finding. It unwraps to core.ErrValidationViolation.
type Violation struct {
	RecordID    string   `json:"record_id"`
	Fingerprint string   `json:"fingerprint"`
	Check       string   `json:"check"`
	Severity    Severity `json:"severity"`
	Value       string   `json:"value"`
	Message     string   `json:"message"`
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: record %s: %s", core.ErrValidationViolation, v.RecordID, v.Message)
}

func (v Violation) Unwrap() error { return core.ErrValidationViolation }

// Report summarises a validation pass.
type Report struct {
	CheckedAt  time.Time   `json:"checked_at"`
	Total      int         `json:"total"`
	Checks     int         `json:"checks"`
	Errors     int         `json:"errors"`
	Warnings   int         `json:"warnings"`
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

// RecordReader is the read side of the trend repository.
type RecordReader interface {
	Query(ctx context.Context, filter persistence.TrendFilter) ([]core.TrendRecord, error)
}

// Validator checks records for schema, consistency and freshness problems.
// It never writes.
type Validator struct {
	bands     scorer.Bands
	staleness time.Duration
	log       *slog.Logger
}

// New creates a validator using the scorer's risk bands.
func New(bands scorer.Bands, staleness time.Duration) *Validator {
	if staleness <= 0 {
		staleness = 24 * time.Hour
	}
	return &Validator{bands: bands, staleness: staleness, log: logger.With("validator")}
}

// Run queries every record and validates it.
func (v *Validator) Run(ctx context.Context, reader RecordReader, now time.Time) (*Report, error) {
	records, err := reader.Query(ctx, persistence.TrendFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load records for validation: %w", err)
	}
	report := v.Validate(records, now)
	v.log.Info("Validation completed",
		"records", report.Total, "errors", report.Errors, "warnings", report.Warnings, "valid", report.Valid)
	return report, nil
}

// Validate checks the given records as of now.
func (v *Validator) Validate(records []core.TrendRecord, now time.Time) *Report {
	report := &Report{CheckedAt: now, Total: len(records), Violations: []Violation{}}
	for _, r := range records {
		for _, violation := range v.check(r, now, report) {
			report.Violations = append(report.Violations, violation)
			if violation.Severity == SeverityError {
				report.Errors++
			} else {
				report.Warnings++
			}
		}
	}
	report.Valid = report.Errors == 0
	return report
}

func (v *Validator) check(r core.TrendRecord, now time.Time, report *Report) []Violation {
	var out []Violation
	add := func(check string, sev Severity, value, format string, args ...any) {
		out = append(out, Violation{
			RecordID:    r.ID,
			Fingerprint: r.Fingerprint,
			Check:       check,
			Severity:    sev,
			Value:       value,
			Message:     fmt.Sprintf(format, args...),
		})
	}

	level := r.Breakdown.RiskLevel
	score := r.Breakdown.Risk

	report.Checks++
	levelOK := level.Valid()
	if !levelOK {
		add(CheckRiskLevel, SeverityError, string(level), "invalid risk_level %q, must be low, medium or high", level)
	}

	report.Checks++
	scoreOK := score >= 0 && score <= 100
	if !scoreOK {
		add(CheckRiskScore, SeverityError, fmt.Sprintf("%.2f", score), "risk_score %.2f out of range 0-100", score)
	}

	if levelOK && scoreOK {
		report.Checks++
		if !v.bands.Contains(level, score) {
			add(CheckConsistency, SeverityError, fmt.Sprintf("%s:%.2f", level, score),
				"risk_level %q but score %.2f implies %q", level, score, v.bands.Level(score))
		}
	}

	report.Checks++
	switch r.Breakdown.Action {
	case core.ActionMonitor, core.ActionEngage, core.ActionPartner, core.ActionAvoid, core.ActionEscalate:
	default:
		add(CheckAction, SeverityError, string(r.Breakdown.Action), "unknown action %q", r.Breakdown.Action)
	}

	report.Checks++
	if age := now.Sub(r.UpdatedAt); age > v.staleness {
		add(CheckFreshness, SeverityWarning, age.Round(time.Minute).String(),
			"record last updated %s ago, older than %s", age.Round(time.Minute), v.staleness)
	}
	return out
}
