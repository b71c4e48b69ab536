package scorer

import (
	"math"
	"testing"

	"echoframe/internal/config"
	"echoframe/internal/core"
)

func testThresholds() config.Thresholds {
	return config.Thresholds{Low: 0.3, Medium: 0.6, High: 0.8}
}

func candidate(signals ...core.Signal) core.MatchCandidate {
	return core.MatchCandidate{ArticleID: "a1", PatternID: "p1", Signals: signals}
}

func TestScoreWeightedAverage(t *testing.T) {
	s := New(testThresholds())
	pattern := &core.RiskPattern{
		RiskLevel: core.RiskLevelLow,
		Template: map[string]float64{
			"keyword_hit":       1.0,
			"permit_suspension": 0.5,
		},
	}

	score, _ := s.Score(candidate(
		core.Signal{Name: "keyword_hit", Strength: 1.0},
		core.Signal{Name: "permit_suspension", Strength: 0.6},
	), pattern)

	// (1.0*1.0 + 0.6*0.5) / (1.0 + 0.5)
	want := 1.3 / 1.5
	if math.Abs(score-want) > 1e-9 {
		t.Errorf("Score = %.4f, want %.4f", score, want)
	}
}

func TestScoreIgnoresUnweightedSignals(t *testing.T) {
	s := New(testThresholds())
	pattern := &core.RiskPattern{
		RiskLevel: core.RiskLevelLow,
		Template:  map[string]float64{"keyword_hit": 1.0},
	}

	withExtra, _ := s.Score(candidate(
		core.Signal{Name: "keyword_hit", Strength: 0.6},
		core.Signal{Name: "unlisted_signal", Strength: 1.0},
	), pattern)
	withoutExtra, _ := s.Score(candidate(
		core.Signal{Name: "keyword_hit", Strength: 0.6},
	), pattern)

	if withExtra != withoutExtra {
		t.Errorf("Signal without a template weight changed the score: %.4f vs %.4f", withExtra, withoutExtra)
	}
}

func TestScoreNoWeightedSignals(t *testing.T) {
	s := New(testThresholds())
	pattern := &core.RiskPattern{
		RiskLevel: core.RiskLevelLow,
		Template:  map[string]float64{"keyword_hit": 1.0},
	}

	score, level := s.Score(candidate(
		core.Signal{Name: "unlisted_signal", Strength: 1.0},
	), pattern)
	if score != 0 {
		t.Errorf("Score with no weighted signals = %.4f, want 0", score)
	}
	if level != core.RiskLevelLow {
		t.Errorf("Level = %v, want low", level)
	}
}

func TestScoreBounds(t *testing.T) {
	s := New(testThresholds())
	pattern := &core.RiskPattern{
		RiskLevel: core.RiskLevelLow,
		Template: map[string]float64{
			"a": 1.0,
			"b": 0.9,
			"c": 0.8,
		},
	}

	score, _ := s.Score(candidate(
		core.Signal{Name: "a", Strength: 5.0}, // Out-of-range strength gets clamped
		core.Signal{Name: "b", Strength: 1.0},
		core.Signal{Name: "c", Strength: 1.0},
	), pattern)
	if score < 0 || score > 1 {
		t.Errorf("Score %.4f out of [0,1]", score)
	}
}

func TestClassifyBoundariesInclusive(t *testing.T) {
	s := New(testThresholds())
	cases := map[float64]core.RiskLevel{
		0.0:  core.RiskLevelLow,
		0.29: core.RiskLevelLow,
		0.3:  core.RiskLevelMedium,
		0.59: core.RiskLevelMedium,
		0.6:  core.RiskLevelHigh,
		0.79: core.RiskLevelHigh,
		0.8:  core.RiskLevelCritical,
		1.0:  core.RiskLevelCritical,
	}
	for score, want := range cases {
		if got := s.Classify(score); got != want {
			t.Errorf("Classify(%.2f) = %v, want %v", score, got, want)
		}
	}
}

func TestScorePatternLevelFloor(t *testing.T) {
	s := New(testThresholds())
	pattern := &core.RiskPattern{
		RiskLevel: core.RiskLevelCritical,
		Template:  map[string]float64{"keyword_hit": 1.0},
	}

	// A weak hit on a critical pattern still reports critical.
	_, level := s.Score(candidate(
		core.Signal{Name: "keyword_hit", Strength: 0.4},
	), pattern)
	if level != core.RiskLevelCritical {
		t.Errorf("Level = %v, want critical floor from pattern", level)
	}

	// And a strong score on a low pattern escalates past the floor.
	pattern.RiskLevel = core.RiskLevelLow
	_, level = s.Score(candidate(
		core.Signal{Name: "keyword_hit", Strength: 1.0},
	), pattern)
	if level != core.RiskLevelCritical {
		t.Errorf("Level = %v, want critical from score", level)
	}
}
