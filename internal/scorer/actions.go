package scorer

import (
	"trendpulse/internal/config"
	"trendpulse/internal/core"
)

// Bands are the risk level boundaries. A score equal to Medium is medium and
// a score equal to High is still medium.
type Bands struct {
	Medium float64
	High   float64
}

// DefaultBands are the standard risk bands.
var DefaultBands = Bands{Medium: 34, High: 66}

// BandsFrom reads bands from scoring thresholds, falling back to defaults.
func BandsFrom(t config.Thresholds) Bands {
	if t.RiskMedium <= 0 || t.RiskHigh <= t.RiskMedium {
		return DefaultBands
	}
	return Bands{Medium: t.RiskMedium, High: t.RiskHigh}
}

// Level maps a risk score to its band.
func (b Bands) Level(score float64) core.RiskLevel {
	switch {
	case score < b.Medium:
		return core.RiskLow
	case score <= b.High:
		return core.RiskMedium
	default:
		return core.RiskHigh
	}
}

// Contains reports whether score falls inside the band for level.
func (b Bands) Contains(level core.RiskLevel, score float64) bool {
	return level.Valid() && b.Level(score) == level
}

// RiskLevelFor maps a risk score to a level using the default bands.
func RiskLevelFor(score float64) core.RiskLevel {
	return DefaultBands.Level(score)
}

// Policy holds the thresholds behind action and priority decisions.
type Policy struct {
	Engage         float64
	HighAdjacency  float64
	HighPriority   float64
	MediumPriority float64
}

// DefaultPolicy is the standard decision table.
var DefaultPolicy = Policy{
	Engage:         60,
	HighAdjacency:  70,
	HighPriority:   75,
	MediumPriority: 50,
}

// PolicyFrom reads a policy from scoring thresholds.
func PolicyFrom(t config.Thresholds) Policy {
	return Policy{
		Engage:         t.Engage,
		HighAdjacency:  t.HighAdjacency,
		HighPriority:   t.HighPriority,
		MediumPriority: t.MediumPriority,
	}
}

// DecideAction maps risk, total and adjacency to exactly one action. High risk
// is escalated when adjacency is high and avoided otherwise.
func (p Policy) DecideAction(level core.RiskLevel, total, adjacency float64, hasArtist bool) core.Action {
	highAdjacency := adjacency >= p.HighAdjacency

	switch {
	case level == core.RiskHigh && highAdjacency:
		return core.ActionEscalate
	case level == core.RiskHigh:
		return core.ActionAvoid
	case highAdjacency && (level == core.RiskLow || level == core.RiskMedium) && total >= p.Engage:
		if hasArtist {
			return core.ActionPartner
		}
		return core.ActionEngage
	default:
		return core.ActionMonitor
	}
}

// DecideAction applies the default policy.
func DecideAction(level core.RiskLevel, total, adjacency float64, hasArtist bool) core.Action {
	return DefaultPolicy.DecideAction(level, total, adjacency, hasArtist)
}

// Priority maps a total score to a priority level.
func (p Policy) Priority(total float64) core.Level {
	switch {
	case total >= p.HighPriority:
		return core.LevelHigh
	case total >= p.MediumPriority:
		return core.LevelMedium
	default:
		return core.LevelLow
	}
}

// PriorityFor applies the default priority thresholds.
func PriorityFor(total float64) core.Level {
	return DefaultPolicy.Priority(total)
}

// ConfidenceFor rates how well-corroborated a trend is from its source
// count, entity count, baseline availability and market attribution.
func ConfidenceFor(sources, entities int, hasBaseline, hasMarket bool) core.Level {
	points := 0
	switch {
	case sources >= 3:
		points += 3
	case sources == 2:
		points += 2
	case sources == 1:
		points++
	}
	switch {
	case entities >= 2:
		points += 2
	case entities == 1:
		points++
	}
	if hasBaseline {
		points += 2
	}
	if hasMarket {
		points++
	}

	switch {
	case points >= 6:
		return core.LevelHigh
	case points >= 3:
		return core.LevelMedium
	default:
		return core.LevelLow
	}
}
