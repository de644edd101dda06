// Package smooth is the output stage: per-metric EMA with a step cap so
// the published scores move gradually even when the raw classification
// jumps. Fatigue optionally uses an asymmetric pair so drowsiness onset
// shows quickly while recovery is gradual.
package smooth

import (
	"math"

	"cogsense/internal/config"
	"cogsense/internal/model"
)

// Metric names the independently smoothed channels. Distraction is not
// one of them; it always mirrors focus.
type Metric string

const (
	MetricFocus   Metric = "focus"
	MetricStress  Metric = "stress"
	MetricFatigue Metric = "fatigue"
)

type Smoother struct {
	cfg    config.SmoothingConfig
	seeded map[Metric]bool
	scores model.SmoothedScores
}

func New(cfg config.SmoothingConfig) *Smoother {
	return &Smoother{cfg: cfg, seeded: make(map[Metric]bool, 3)}
}

// Apply folds one raw metrics frame into the smoothed scores and returns
// the new values. An unseeded metric takes the raw value directly.
func (s *Smoother) Apply(m model.CognitiveMetrics) model.SmoothedScores {
	s.scores.Focus = s.apply(MetricFocus, s.scores.Focus, float64(m.Focus), s.cfg.Alpha, s.cfg.MaxDelta)
	s.scores.Stress = s.apply(MetricStress, s.scores.Stress, float64(m.Stress), s.cfg.Alpha, s.cfg.MaxDelta)

	target := float64(m.Fatigue)
	if s.cfg.FatigueAsymmetric && s.seeded[MetricFatigue] {
		if target > s.scores.Fatigue {
			s.scores.Fatigue = s.step(s.scores.Fatigue, target, s.cfg.FatigueRiseAlpha, s.cfg.FatigueRiseMax)
		} else {
			s.scores.Fatigue = s.step(s.scores.Fatigue, target, s.cfg.FatigueFallAlpha, s.cfg.FatigueFallMax)
		}
	} else {
		s.scores.Fatigue = s.apply(MetricFatigue, s.scores.Fatigue, target, s.cfg.Alpha, s.cfg.MaxDelta)
	}
	s.seeded[MetricFatigue] = true

	// Distraction mirrors focus rather than being smoothed on its own,
	// so the pair can never drift apart.
	s.scores.Distraction = 100 - s.scores.Focus
	return s.scores
}

func (s *Smoother) apply(metric Metric, cur, target, alpha, maxDelta float64) float64 {
	if !s.seeded[metric] {
		s.seeded[metric] = true
		return math.Min(100, math.Max(0, target))
	}
	return s.step(cur, target, alpha, maxDelta)
}

func (s *Smoother) step(cur, target, alpha, maxDelta float64) float64 {
	delta := (target - cur) * alpha
	if delta > maxDelta {
		delta = maxDelta
	} else if delta < -maxDelta {
		delta = -maxDelta
	}
	v := cur + delta
	return math.Min(100, math.Max(0, v))
}

// Scores returns the current smoothed values without advancing them.
func (s *Smoother) Scores() model.SmoothedScores {
	return s.scores
}

// Levels maps the smoothed scores onto the coarse low/normal/high bands.
func (s *Smoother) Levels() model.Levels {
	lv := s.cfg.Levels
	return model.Levels{
		Focus:       band(s.scores.Focus, lv.Focus),
		Stress:      band(s.scores.Stress, lv.Stress),
		Fatigue:     band(s.scores.Fatigue, lv.Fatigue),
		Distraction: band(s.scores.Distraction, lv.Distraction),
	}
}

func band(v float64, b config.LevelBand) model.Level {
	switch {
	case v < b.LowBelow:
		return model.LevelLow
	case v >= b.HighFrom:
		return model.LevelHigh
	default:
		return model.LevelNormal
	}
}

// Reset reseeds the named metrics from the next frame; with no
// arguments it reseeds everything. Used on session gaps and
// recalibration.
func (s *Smoother) Reset(metrics ...Metric) {
	if len(metrics) == 0 {
		metrics = []Metric{MetricFocus, MetricStress, MetricFatigue}
	}
	for _, m := range metrics {
		delete(s.seeded, m)
	}
}
