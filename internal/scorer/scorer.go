// Package scorer turns raw match candidates into normalized risk scores and
// discrete risk levels.
package scorer

import (
	"echoframe/internal/config"
	"echoframe/internal/core"
)

// Scorer computes weighted-average risk scores and classifies them against
// the configured threshold boundaries.
type Scorer struct {
	thresholds config.Thresholds
}

// New creates a scorer with the given threshold boundaries.
func New(thresholds config.Thresholds) *Scorer {
	return &Scorer{thresholds: thresholds}
}

// Score combines a candidate's signals into one score in [0,1] and maps it to
// a risk level.
//
// The score is a weighted average over the signals that are actually present:
// sum(strength * weight) / sum(weight of present signal names). One strong
// signal on a high-weight dimension dominates, and extra weak signals cannot
// push the score above 1.0. A triggered signal whose name has no template
// weight contributes nothing.
//
// The final level is the max of the threshold-derived level and the pattern's
// base level; a critical pattern never reports below critical.
func (s *Scorer) Score(candidate core.MatchCandidate, pattern *core.RiskPattern) (float64, core.RiskLevel) {
	var weightedSum, weightTotal float64
	for _, signal := range candidate.Signals {
		weight, ok := pattern.Template[signal.Name]
		if !ok {
			continue
		}
		weightedSum += clamp01(signal.Strength) * weight
		weightTotal += weight
	}

	score := 0.0
	if weightTotal > 0 {
		score = clamp01(weightedSum / weightTotal)
	}

	level := core.MaxRiskLevel(s.Classify(score), pattern.RiskLevel)
	return score, level
}

// Classify maps a score to a risk level. Boundaries are inclusive on the
// upper side: a score exactly at a boundary takes the higher level.
func (s *Scorer) Classify(score float64) core.RiskLevel {
	switch {
	case score >= s.thresholds.High:
		return core.RiskLevelCritical
	case score >= s.thresholds.Medium:
		return core.RiskLevelHigh
	case score >= s.thresholds.Low:
		return core.RiskLevelMedium
	default:
		return core.RiskLevelLow
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
