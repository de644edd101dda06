package classify

import (
	"cogsense/internal/config"
	"cogsense/internal/model"
)

// Thresholds are the baseline-adjusted classification cut points.
// They are derived once per baseline change and constant otherwise.
type Thresholds struct {
	Focus   float64 `json:"focus"`
	Stress  float64 `json:"stress"`
	Fatigue float64 `json:"fatigue"`
}

// DeriveThresholds adapts the default thresholds to the user's resting
// baseline. A nil baseline yields the uncalibrated defaults.
func DeriveThresholds(cfg config.ClassifierConfig, b *model.Baseline) Thresholds {
	t := Thresholds{
		Focus:   cfg.FocusDefault,
		Stress:  cfg.StressDefault,
		Fatigue: cfg.FatigueDefault,
	}
	if b != nil {
		// A calm resting expression means on-task frames score high, so
		// the focus bar can sit lower without false positives.
		if b.Expressions[model.EmotionNeutral] > 0.7 {
			t.Focus -= 5
		}
		if b.Expressions.Negative() > 0.15 {
			// Habitually tense resting face: demand more before
			// declaring stress.
			t.Stress += 5
		}
		if b.BlinkRate > 18 {
			// A naturally fast blinker trips the fatigue blink tiers
			// more easily; raise the bar a little.
			t.Fatigue += 5
		}
	}
	t.Focus = clampf(t.Focus, cfg.FocusMin, cfg.FocusMax)
	t.Stress = clampf(t.Stress, cfg.StressMin, cfg.StressMax)
	t.Fatigue = clampf(t.Fatigue, cfg.FatigueMin, cfg.FatigueMax)
	return t
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampScore(v float64) float64 {
	return clampf(v, 0, 100)
}
