package summarize

import (
	"sort"
	"time"

	"trendpulse/internal/core"
)

// Digest groups persisted records for a daily briefing.
type Digest struct {
	GeneratedAt   time.Time
	Total         int
	Top           []core.TrendRecord
	Risks         []core.TrendRecord // high risk or AVOID/ESCALATE
	Opportunities []core.TrendRecord // ENGAGE or PARTNER
	Watchlist     []core.TrendRecord // MONITOR with at least medium priority
	ByMarket      map[string]int
	ByTopic       map[string]int
	ByAction      map[core.Action]int
	ByRisk        map[core.RiskLevel]int
}

// BuildDigest selects the top records and section lists. Each section is
// capped at topN and ordered by total score descending.
func BuildDigest(records []core.TrendRecord, topN int, at time.Time) Digest {
	sorted := append([]core.TrendRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Breakdown.Total != sorted[j].Breakdown.Total {
			return sorted[i].Breakdown.Total > sorted[j].Breakdown.Total
		}
		return sorted[i].Fingerprint < sorted[j].Fingerprint
	})
	if topN <= 0 {
		topN = 10
	}

	d := Digest{
		GeneratedAt: at,
		Total:       len(sorted),
		ByMarket:    make(map[string]int),
		ByTopic:     make(map[string]int),
		ByAction:    make(map[core.Action]int),
		ByRisk:      make(map[core.RiskLevel]int),
	}

	for _, r := range sorted {
		b := r.Breakdown
		d.ByMarket[r.Trend.Market]++
		d.ByTopic[r.Trend.Topic]++
		d.ByAction[b.Action]++
		d.ByRisk[b.RiskLevel]++

		if len(d.Top) < topN {
			d.Top = append(d.Top, r)
		}
		switch {
		case b.RiskLevel == core.RiskHigh || b.Action == core.ActionAvoid || b.Action == core.ActionEscalate:
			if len(d.Risks) < topN {
				d.Risks = append(d.Risks, r)
			}
		case b.Action == core.ActionEngage || b.Action == core.ActionPartner:
			if len(d.Opportunities) < topN {
				d.Opportunities = append(d.Opportunities, r)
			}
		case b.Action == core.ActionMonitor && b.Priority != core.LevelLow:
			if len(d.Watchlist) < topN {
				d.Watchlist = append(d.Watchlist, r)
			}
		}
	}
	return d
}
