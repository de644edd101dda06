package classify

import (
	"math"
	"time"

	"cogsense/internal/config"
	"cogsense/internal/model"
)

// fatigueAccumulator integrates instantaneous fatigue with asymmetric
// dynamics: it climbs toward a higher estimate quickly and decays
// slowly, so fatigue is earned fast and recovered slowly.
type fatigueAccumulator struct {
	risePerSec float64
	fallPerSec float64
	value      float64
	lastUpdate time.Time
}

func newFatigueAccumulator(cfg config.ClassifierConfig) *fatigueAccumulator {
	return &fatigueAccumulator{
		risePerSec: cfg.FatigueRisePerSec,
		fallPerSec: cfg.FatigueFallPerSec,
	}
}

// update advances the accumulator to now and returns the reported
// fatigue: the max of the instantaneous estimate and the accumulated
// value, so a sharp drowsiness spike is never understated.
func (a *fatigueAccumulator) update(instant float64, now time.Time) float64 {
	if a.lastUpdate.IsZero() {
		a.value = instant
		a.lastUpdate = now
		return a.value
	}
	dt := now.Sub(a.lastUpdate).Seconds()
	if dt < 0 {
		dt = 0
	}
	rate := a.risePerSec
	if instant < a.value {
		rate = a.fallPerSec
	}
	// Compound the per-second rate over dt so tick spacing does not
	// change the trajectory.
	frac := 1 - math.Pow(1-rate, dt)
	a.value += (instant - a.value) * frac
	a.lastUpdate = now
	return math.Max(instant, a.value)
}

func (a *fatigueAccumulator) reset() {
	a.value = 0
	a.lastUpdate = time.Time{}
}

// instantFatigue is the per-sample drowsiness estimate in [0,100],
// built from PERCLOS, sustained closure, blink-rate deviation, slow
// blinks, posture and flat affect.
func instantFatigue(s model.FacialSample, base *model.Baseline) float64 {
	eye := s.EyeState
	f := 0.0

	switch {
	case eye.Perclos >= 0.40:
		f += 35
	case eye.Perclos >= 0.25:
		f += 25
	case eye.Perclos >= 0.15:
		f += 15
	case eye.Perclos >= 0.08:
		f += 8
	}

	switch {
	case eye.ClosureMs > 3000:
		f += 25
	case eye.ClosureMs > 2000:
		f += 20
	case eye.ClosureMs > 1000:
		f += 12
	case eye.EyesClosed && eye.ClosureMs > 500:
		f += 6
	}

	// Blink-rate U-curve: both too few and too many blinks signal
	// fatigue; the 10-18/min band is neutral.
	rate := s.BlinkRate
	if rate < 10 {
		f += math.Min(15, (10-rate)*1.5)
	} else if rate > 18 {
		f += math.Min(15, (rate-18)*1.5)
	}

	f += math.Min(10, float64(eye.SlowBlinkCount)*3)

	pitchDev := s.HeadPose.Pitch
	if base != nil {
		pitchDev -= base.HeadPose.Pitch
	}
	if math.Abs(pitchDev) > 15 {
		f += 10
	} else if math.Abs(pitchDev) > 8 {
		f += 5
	}

	if s.Expressions[model.EmotionNeutral] > 0.85 &&
		s.Expressions[model.EmotionHappy] < 0.08 &&
		s.Expressions[model.EmotionSurprised] < 0.08 {
		f += 5
	}

	return clampScore(f)
}
