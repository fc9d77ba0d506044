// Package health reports data freshness per pipeline module.
package health

import (
	"context"
	"sort"
	"time"

	"trendpulse/internal/persistence"
)

// Status is the freshness state of a module.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusStale    Status = "stale"
	StatusUnknown  Status = "unknown" // Never written
)

// Band holds the freshness limits of a module. Ages up to OK are healthy,
// up to Degraded are degraded, anything older is stale.
type Band struct {
	OK       time.Duration `json:"ok"`
	Degraded time.Duration `json:"degraded"`
}

// DefaultBands are the freshness bands for each persisted module.
var DefaultBands = map[string]Band{
	persistence.ModuleTrends:       {OK: 12 * time.Hour, Degraded: 24 * time.Hour},
	persistence.ModuleArtistSpikes: {OK: 4 * time.Hour, Degraded: 12 * time.Hour},
	persistence.ModuleStyleSignals: {OK: 12 * time.Hour, Degraded: 48 * time.Hour},
	persistence.ModulePitchCards:   {OK: 6 * time.Hour, Degraded: 24 * time.Hour},
}

// Classify maps an age onto the band.
func (b Band) Classify(age time.Duration) Status {
	switch {
	case age <= b.OK:
		return StatusOK
	case age <= b.Degraded:
		return StatusDegraded
	default:
		return StatusStale
	}
}

// Freshness reads the newest write time of a module.
type Freshness interface {
	LastUpdated(ctx context.Context, module string) (time.Time, error)
}

// ModuleHealth is the freshness of one module.
type ModuleHealth struct {
	Module      string    `json:"module"`
	Status      Status    `json:"status"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
	Age         string    `json:"age,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Report is the combined module health.
type Report struct {
	Status    Status         `json:"status"` // Worst module status
	CheckedAt time.Time      `json:"checked_at"`
	Modules   []ModuleHealth `json:"modules"`
}

// Monitor checks module freshness against bands.
type Monitor struct {
	source Freshness
	bands  map[string]Band
}

// NewMonitor creates a monitor. Nil bands use DefaultBands.
func NewMonitor(source Freshness, bands map[string]Band) *Monitor {
	if bands == nil {
		bands = DefaultBands
	}
	return &Monitor{source: source, bands: bands}
}

// Check reports each module's freshness at now. A failing read marks the
// module unknown rather than failing the whole report.
func (m *Monitor) Check(ctx context.Context, now time.Time) Report {
	modules := make([]string, 0, len(m.bands))
	for name := range m.bands {
		modules = append(modules, name)
	}
	sort.Strings(modules)

	report := Report{Status: StatusOK, CheckedAt: now.UTC()}
	for _, name := range modules {
		mh := ModuleHealth{Module: name, Status: StatusUnknown}
		last, err := m.source.LastUpdated(ctx, name)
		switch {
		case err != nil:
			mh.Error = err.Error()
		case !last.IsZero():
			age := now.Sub(last)
			if age < 0 {
				age = 0
			}
			mh.LastUpdated = last.UTC()
			mh.Age = age.Truncate(time.Second).String()
			mh.Status = m.bands[name].Classify(age)
		}
		if severity(mh.Status) > severity(report.Status) {
			report.Status = mh.Status
		}
		report.Modules = append(report.Modules, mh)
	}
	return report
}

func severity(s Status) int {
	switch s {
	case StatusOK:
		return 0
	case StatusDegraded:
		return 1
	case StatusUnknown:
		return 2
	default:
		return 3
	}
}
