// Package classify turns stabilized facial samples into cognitive
// metrics: the four 0-100 scores, the debounced attention zone, a
// confidence value, one dominant state and the alert flags. The
// classifier is stateful per session; attention hysteresis and the
// fatigue accumulator persist across calls.
package classify

import (
	"math"
	"time"

	"cogsense/internal/config"
	"cogsense/internal/model"
)

type Classifier struct {
	cfg        config.ClassifierConfig
	baseline   *model.Baseline
	thresholds Thresholds
	attention  *attentionTracker
	fatigue    *fatigueAccumulator
}

func New(cfg config.ClassifierConfig, baseline *model.Baseline) *Classifier {
	return &Classifier{
		cfg:        cfg,
		baseline:   baseline,
		thresholds: DeriveThresholds(cfg, baseline),
		attention:  newAttentionTracker(cfg),
		fatigue:    newFatigueAccumulator(cfg),
	}
}

// SetBaseline installs a new frozen baseline and rederives the adaptive
// thresholds. Passing nil reverts to uncalibrated defaults.
func (c *Classifier) SetBaseline(b *model.Baseline) {
	c.baseline = b
	c.thresholds = DeriveThresholds(c.cfg, b)
}

func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Reset clears the cross-sample state (attention machine, fatigue
// accumulator) without touching the baseline.
func (c *Classifier) Reset() {
	c.attention.reset()
	c.fatigue.reset()
}

// Calculate scores one stabilized sample. All outputs are defensively
// clamped; malformed upstream values degrade the scores, they never
// corrupt state.
func (c *Classifier) Calculate(s model.FacialSample, now time.Time) model.CognitiveMetrics {
	att := c.attention.evaluate(s, c.baseline, now)
	uncertain := att.Classification == model.ZoneUncertain
	quality := clampf(s.Quality.Score, 0, 1)

	// Visual-penalty scaling: pose and gaze penalties shrink when the
	// detector itself is shaky, so bad lighting does not read as bad
	// focus. The constants are tuning values, not load-bearing.
	visual := 0.6 + 0.4*quality
	if uncertain {
		visual = 0.25
	}

	yawDev := s.HeadPose.Yaw
	pitchDev := s.HeadPose.Pitch
	if c.baseline != nil {
		yawDev -= c.baseline.HeadPose.Yaw
		pitchDev -= c.baseline.HeadPose.Pitch
	}
	poseDev := math.Max(math.Abs(yawDev), math.Abs(pitchDev))

	focus := 100.0
	posePenalized := false
	switch {
	case poseDev > 30:
		focus -= 40 * visual
		posePenalized = true
	case poseDev > 20:
		focus -= 25 * visual
		posePenalized = true
	case poseDev > 10:
		focus -= 10 * visual
		posePenalized = true
	}

	inExtended, inCenter := gazeZones(c.cfg, s.Gaze)
	gazePenalized := false
	if !inExtended {
		focus -= 30 * visual
		gazePenalized = true
	} else if !inCenter {
		focus -= 15 * visual
		gazePenalized = true
	}

	neg := s.Expressions.Negative()
	if neg > 0.4 {
		focus -= 20
	} else if s.Expressions[model.EmotionNeutral]+s.Expressions[model.EmotionHappy] < 0.3 {
		focus -= 10
	}

	rate := s.BlinkRate
	if rate < 5 || rate > 15 {
		outside := math.Max(5-rate, rate-15)
		switch {
		case outside >= 10:
			focus -= 15
		case outside >= 5:
			focus -= 10
		default:
			focus -= 5
		}
	}

	eye := s.EyeState
	switch {
	case eye.ClosureMs > 2000:
		focus -= 40
	case eye.ClosureMs > 1000:
		focus -= 25
	case eye.ClosureMs > 500:
		focus -= 12
	case eye.EyesClosed:
		focus -= 5
	}
	if eye.Perclos > 0.30 {
		focus -= 15
	} else if eye.Perclos > 0.15 {
		focus -= 8
	}

	if !s.Quality.Reliable || quality < 0.4 {
		focus -= 15
	}
	// A high neutral+sad blend is a common detector artifact for closed
	// or nearly closed eyes.
	if s.Expressions[model.EmotionNeutral] > 0.6 && s.Expressions[model.EmotionSad] > 0.25 {
		focus -= 25
	}

	focus -= attentionPenalty(c.cfg, att, quality)

	phone := s.PhoneInFrame != nil && *s.PhoneInFrame
	if phone {
		focus -= 35
	}

	rawPitch := math.Abs(s.HeadPose.Pitch)
	if rawPitch > 35 {
		focus -= 30
	} else if rawPitch > 25 {
		focus -= 15
	}

	if !posePenalized && !gazePenalized && !phone && rate >= 5 && rate <= 12 {
		focus += 5
	}
	focus = clampScore(focus)

	stress := math.Min(60, neg*100)
	switch {
	case rate >= 25:
		stress += 25
	case rate >= 20:
		stress += 15
	case rate >= 16:
		stress += 5
	}
	stress += math.Min(15, s.Expressions[model.EmotionSurprised]*30)
	stress = clampScore(stress)

	fatigue := clampScore(c.fatigue.update(instantFatigue(s, c.baseline), now))

	conf := 1.0
	if poseDev > 25 {
		conf *= 0.6
	} else if poseDev > 15 {
		conf *= 0.8
	}
	if s.Expressions.Sum() < 0.3 {
		conf *= 0.7
	}
	conf = 0.65*conf + 0.35*quality
	if !s.Quality.Reliable {
		conf *= 0.75
	}
	conf = clampf(conf, 0.2, 1.0)

	focusInt := int(math.Round(focus))
	m := model.CognitiveMetrics{
		Timestamp:   now,
		Focus:       focusInt,
		Stress:      int(math.Round(stress)),
		Fatigue:     int(math.Round(fatigue)),
		Distraction: 100 - focusInt,
		Confidence:  conf,
		Attention:   att,
	}
	m.DominantState = c.dominantState(focus, stress, fatigue)
	m.Alerts = model.Alerts{
		HighStress:          stress >= 75,
		HighFatigue:         fatigue >= 70,
		PoorPosture:         poseDev > 20 && att.Reliable,
		FrequentDistraction: focus < 30 && !uncertain,
		EyesClosed:          eye.EyesClosed && eye.ClosureMs > 500,
		Microsleep:          eye.ClosureMs > 1500,
	}
	return m
}

// dominantState picks the single state by fixed priority: drowsiness
// outranks stress, stress outranks distraction, and only then do the
// focus bands apply.
func (c *Classifier) dominantState(focus, stress, fatigue float64) model.CognitiveState {
	t := c.thresholds
	switch {
	case fatigue >= 85:
		return model.StateDrowsy
	case fatigue >= t.Fatigue:
		return model.StateTired
	case stress >= t.Stress:
		return model.StateStressed
	case focus < 35:
		return model.StateDistracted
	case focus >= 85:
		return model.StateDeepFocus
	case focus >= t.Focus:
		return model.StateFocus
	default:
		return model.StateNormal
	}
}

// gazeZones tests the gaze point against the extended and center screen
// rectangles shared by the attention rules and the focus scoring.
func gazeZones(cfg config.ClassifierConfig, g model.Point) (inExtended, inCenter bool) {
	w, h := cfg.ScreenWidth, cfg.ScreenHeight
	inExtended = g.X >= 0.1*w && g.X <= 0.9*w && g.Y >= 0.05*h && g.Y <= 0.95*h
	inCenter = g.X >= 0.2*w && g.X <= 0.8*w && g.Y >= 0.15*h && g.Y <= 0.85*h
	return inExtended, inCenter
}
