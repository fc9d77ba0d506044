package handlers

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"trendpulse/internal/core"
	"trendpulse/internal/health"
	"trendpulse/internal/sources"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1DB954"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func printRunSummary(w io.Writer, run *core.RunSummary) {
	status := okStyle.Render(string(run.Status))
	if run.Status != core.RunSuccess {
		status = errStyle.Render(string(run.Status))
	}
	fmt.Fprintf(w, "%s %s (%s)\n", headerStyle.Render("Run"), run.RunID, status)
	fmt.Fprintf(w, "  collected %s · processed %s · merged %s · skipped %s · failed %s · written %s\n",
		humanize.Comma(int64(run.Collected)), humanize.Comma(int64(run.Processed)),
		humanize.Comma(int64(run.Merged)), humanize.Comma(int64(run.Skipped)),
		humanize.Comma(int64(run.Failed)), humanize.Comma(int64(run.Written)))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  took %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	for _, reason := range sortedKeys(run.Reasons) {
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render(reason), humanize.Comma(int64(run.Reasons[reason])))
	}
	for _, source := range sortedKeys(run.SourceErrors) {
		fmt.Fprintf(w, "  %s %s\n", warnStyle.Render("source "+source+" failed:"), run.SourceErrors[source])
	}
	if run.Error != "" {
		fmt.Fprintf(w, "  %s %s\n", errStyle.Render("error:"), run.Error)
	}
}

func printTrends(w io.Writer, records []core.TrendRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No trends."))
		return
	}
	for i, r := range records {
		b := r.Breakdown
		fmt.Fprintf(w, "%2d. %5.1f  %-2s  %-9s %s  %s\n", i+1, b.Total, r.Trend.Market, b.Action, riskLabel(b.RiskLevel), r.Trend.Title)
	}
}

func printCards(w io.Writer, cards []core.PitchCard) {
	if len(cards) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No pitch cards."))
		return
	}
	for _, c := range cards {
		fmt.Fprintf(w, "%s %s [%s]\n", headerStyle.Render(c.Market), c.Hook, c.Confidence)
		if c.Angle != "" {
			fmt.Fprintf(w, "    %s\n", c.Angle)
		}
		for _, why := range c.WhyNow {
			fmt.Fprintf(w, "    • %s\n", why)
		}
	}
}

func printHealth(w io.Writer, report health.Report) {
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Module health"), healthLabel(report.Status))
	for _, m := range report.Modules {
		last := dimStyle.Render("never")
		if !m.LastUpdated.IsZero() {
			last = humanize.Time(m.LastUpdated)
		}
		fmt.Fprintf(w, "  %-14s %-10s %s\n", m.Module, healthLabel(m.Status), last)
		if m.Error != "" {
			fmt.Fprintf(w, "    %s\n", errStyle.Render(m.Error))
		}
	}
}

func printSourceChecks(w io.Writer, checks map[string]bool) {
	fmt.Fprintln(w, headerStyle.Render("Sources"))
	for _, name := range sortedKeys(checks) {
		status := okStyle.Render("reachable")
		if !checks[name] {
			status = errStyle.Render("unreachable")
		}
		fmt.Fprintf(w, "  %-14s %s\n", name, status)
	}
}

func printSourceHealth(w io.Writer, adapters []sources.AdapterHealth) {
	fmt.Fprintln(w, headerStyle.Render("Sources"))
	for _, h := range adapters {
		switch {
		case h.Failing():
			fmt.Fprintf(w, "  %-14s %s %s\n", h.Name, errStyle.Render("failing"), humanize.Time(h.LastErrorAt))
			fmt.Fprintf(w, "    %s\n", errStyle.Render(h.LastError))
		case h.LastSuccess.IsZero():
			fmt.Fprintf(w, "  %-14s %s\n", h.Name, dimStyle.Render("not run"))
		default:
			fmt.Fprintf(w, "  %-14s %s %s, %s items\n", h.Name, okStyle.Render("ok"),
				humanize.Time(h.LastSuccess), humanize.Comma(int64(h.ItemsLastRun)))
		}
	}
}

func riskLabel(level core.RiskLevel) string {
	switch level {
	case core.RiskHigh:
		return errStyle.Render("high  ")
	case core.RiskMedium:
		return warnStyle.Render("medium")
	default:
		return okStyle.Render("low   ")
	}
}

func healthLabel(s health.Status) string {
	switch s {
	case health.StatusOK:
		return okStyle.Render(string(s))
	case health.StatusDegraded:
		return warnStyle.Render(string(s))
	default:
		return errStyle.Render(string(s))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func upperList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
