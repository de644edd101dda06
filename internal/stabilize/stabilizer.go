// Package stabilize smooths noisy per-frame facial signals and runs the
// EAR-based blink state machine. It owns the blink, slow-blink,
// microsleep and PERCLOS histories; wall-clock time is always an
// explicit argument so the whole pipeline is deterministic under test.
package stabilize

import (
	"math"
	"time"

	"cogsense/internal/config"
	"cogsense/internal/model"
)

const earEpsilon = 1e-6

type Stabilizer struct {
	cfg config.StabilizerConfig

	hasExpr bool
	expr    model.ExpressionMap
	hasPose bool
	pose    model.Pose
	hasGaze bool
	gaze    model.Point

	hasEARBase  bool
	earBaseline float64
	lastEAR     float64

	eyesClosed  bool
	closedSince time.Time
	closeThresh float64

	blinks      *eventWindow
	slowBlinks  *eventWindow
	microsleeps *eventWindow
	perclos     *frameWindow
}

func New(cfg config.StabilizerConfig) *Stabilizer {
	return &Stabilizer{
		cfg:         cfg,
		blinks:      newEventWindow(cfg.BlinkWindow),
		slowBlinks:  newEventWindow(cfg.BlinkWindow),
		microsleeps: newEventWindow(cfg.MicrosleepWindow),
		perclos:     newFrameWindow(cfg.BlinkWindow),
	}
}

// SmoothExpressions applies the expression EMA. The first sample seeds
// the state directly so there is no warm-up artifact.
func (s *Stabilizer) SmoothExpressions(m model.ExpressionMap) model.ExpressionMap {
	if !s.hasExpr {
		s.expr = m
		s.hasExpr = true
		return s.expr
	}
	a := s.cfg.ExpressionAlpha
	for i := range s.expr {
		s.expr[i] += a * (m[i] - s.expr[i])
	}
	return s.expr
}

func (s *Stabilizer) SmoothPose(p model.Pose) model.Pose {
	if !s.hasPose {
		s.pose = p
		s.hasPose = true
		return s.pose
	}
	a := s.cfg.PoseAlpha
	s.pose.Yaw += a * (p.Yaw - s.pose.Yaw)
	s.pose.Pitch += a * (p.Pitch - s.pose.Pitch)
	s.pose.Roll += a * (p.Roll - s.pose.Roll)
	return s.pose
}

func (s *Stabilizer) SmoothGaze(p model.Point) model.Point {
	if !s.hasGaze {
		s.gaze = p
		s.hasGaze = true
		return s.gaze
	}
	a := s.cfg.GazeAlpha
	s.gaze.X += a * (p.X - s.gaze.X)
	s.gaze.Y += a * (p.Y - s.gaze.Y)
	return s.gaze
}

// UpdateBlink advances the eye-closure state machine with this frame's
// landmarks and reports whether the eyes are currently closed.
func (s *Stabilizer) UpdateBlink(eyes model.EyeLandmarks, now time.Time) bool {
	earAvg := (earOf(eyes.Left) + earOf(eyes.Right)) / 2
	s.lastEAR = earAvg

	if !s.hasEARBase {
		s.earBaseline = earAvg
		s.hasEARBase = true
	}

	closeThresh := math.Max(s.cfg.EARFloor, s.earBaseline*s.cfg.CloseRatio)

	if !s.eyesClosed {
		if earAvg < closeThresh {
			s.eyesClosed = true
			s.closedSince = now
			s.closeThresh = closeThresh
		} else {
			// Baseline tracks lighting and camera drift, but only
			// while the eyes are open.
			s.earBaseline += s.cfg.EARBaselineAlpha * (earAvg - s.earBaseline)
		}
	} else if earAvg > s.closeThresh+s.cfg.ReopenDelta {
		s.classifyClosure(now.Sub(s.closedSince), now)
		s.eyesClosed = false
	}

	s.perclos.Add(now, earAvg < s.earBaseline*s.cfg.P70Ratio)
	return s.eyesClosed
}

func (s *Stabilizer) classifyClosure(dur time.Duration, now time.Time) {
	switch {
	case dur >= s.cfg.MicrosleepMin:
		s.microsleeps.Add(now)
	case dur > s.cfg.BlinkMax:
		s.slowBlinks.Add(now)
	case dur >= s.cfg.BlinkMin:
		s.blinks.Add(now)
	}
	// Anything shorter than BlinkMin is detector noise.
}

// BlinkRate is blinks per minute over the trailing blink window.
func (s *Stabilizer) BlinkRate(now time.Time) int {
	return s.blinks.Count(now)
}

func (s *Stabilizer) EyeState(now time.Time) model.EyeState {
	var closureMs int64
	if s.eyesClosed {
		closureMs = now.Sub(s.closedSince).Milliseconds()
	}
	return model.EyeState{
		EARAvg:          s.lastEAR,
		EyesClosed:      s.eyesClosed,
		ClosureMs:       closureMs,
		Perclos:         s.perclos.Fraction(now, s.cfg.PerclosMinFrames),
		SlowBlinkCount:  s.slowBlinks.Count(now),
		MicrosleepCount: s.microsleeps.Count(now),
	}
}

// Process smooths the sample in place and fills in the stabilizer-owned
// fields (blink rate, eye state).
func (s *Stabilizer) Process(sample *model.FacialSample, now time.Time) {
	sample.Expressions = s.SmoothExpressions(sample.Expressions)
	sample.HeadPose = s.SmoothPose(sample.HeadPose)
	sample.Gaze = s.SmoothGaze(sample.Gaze)
	s.UpdateBlink(sample.Eyes, now)
	sample.BlinkRate = float64(s.BlinkRate(now))
	sample.EyeState = s.EyeState(now)
}

// Reset discards all smoothing state, histories and the closure timer.
// Callers invoke it after an extended detection gap; the next sample
// behaves exactly like the first sample of a fresh stabilizer.
func (s *Stabilizer) Reset() {
	s.hasExpr = false
	s.expr = model.ExpressionMap{}
	s.hasPose = false
	s.pose = model.Pose{}
	s.hasGaze = false
	s.gaze = model.Point{}
	s.hasEARBase = false
	s.earBaseline = 0
	s.lastEAR = 0
	s.eyesClosed = false
	s.closedSince = time.Time{}
	s.closeThresh = 0
	s.blinks.Reset()
	s.slowBlinks.Reset()
	s.microsleeps.Reset()
	s.perclos.Reset()
}

// earOf computes the eye aspect ratio over the 6 boundary landmarks:
// (|p1-p5| + |p2-p4|) / (2*|p0-p3|).
func earOf(eye [6]model.Point) float64 {
	v1 := dist(eye[1], eye[5])
	v2 := dist(eye[2], eye[4])
	h := dist(eye[0], eye[3])
	if h < earEpsilon {
		h = earEpsilon
	}
	return (v1 + v2) / (2 * h)
}

func dist(a, b model.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
