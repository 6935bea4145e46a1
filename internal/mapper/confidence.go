package mapper

import "math"

type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Thresholds are inclusive lower bounds for the high and medium tiers.
type Thresholds struct {
	High   float64
	Medium float64
}

var (
	DefaultMappingThresholds   = Thresholds{High: 0.85, Medium: 0.70}
	DefaultRecommendThresholds = Thresholds{High: 0.70, Medium: 0.50}
)

func (t Thresholds) Level(score float64) Level {
	switch {
	case score >= t.High:
		return LevelHigh
	case score >= t.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// DisplayScore rounds to the given number of places and clamps into [0,1].
// Tiers are always assigned on the unrounded score.
func DisplayScore(score float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(score*p) / p
	return math.Max(0, math.Min(1, r))
}
