// Package session wires the pipeline stages together per user session:
// stabilize, calibrate, classify, smooth. A Session is single-goroutine;
// the Manager in this package provides the concurrent front door.
package session

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cogsense/internal/calibrate"
	"cogsense/internal/classify"
	"cogsense/internal/config"
	"cogsense/internal/model"
	"cogsense/internal/smooth"
	"cogsense/internal/stabilize"
)

type Session struct {
	ID string

	cfg    *config.Config
	logger *slog.Logger

	stabilizer *stabilize.Stabilizer
	calibrator *calibrate.Calibrator
	classifier *classify.Classifier
	smoother   *smooth.Smoother

	startedAt  time.Time
	lastSample time.Time
	lastSeen   time.Time

	samples       int
	sumFocus      float64
	sumStress     float64
	sumFatigue    float64
	sumConfidence float64
	stateCounts   map[model.CognitiveState]int
	lastState     model.CognitiveState
	interruptions int
	focusPeriods  int
	inFocusRun    bool
	nudges        int
}

func NewSession(cfg *config.Config, logger *slog.Logger, now time.Time) *Session {
	return &Session{
		ID:          uuid.NewString(),
		cfg:         cfg,
		logger:      logger,
		stabilizer:  stabilize.New(cfg.Stabilizer),
		calibrator:  calibrate.New(cfg.Calibration, now),
		classifier:  classify.New(cfg.Classifier, nil),
		smoother:    smooth.New(cfg.Smoothing),
		startedAt:   now,
		stateCounts: make(map[model.CognitiveState]int),
	}
}

// Process runs one sample through the full pipeline. Samples whose
// timestamp does not advance past the previous one are dropped; a gap
// longer than the configured reset gap clears the transient state so
// stale histories do not leak across an absence.
func (s *Session) Process(sample model.FacialSample, now time.Time) (model.Output, bool) {
	ts := sample.Timestamp
	if ts.IsZero() {
		ts = now
	}
	if !s.lastSample.IsZero() && !ts.After(s.lastSample) {
		return model.Output{}, false
	}
	if !s.lastSeen.IsZero() && now.Sub(s.lastSeen) > s.cfg.Session.ResetGap {
		if s.logger != nil {
			s.logger.Info("session gap, resetting transient state",
				"session_id", s.ID,
				"gap", now.Sub(s.lastSeen).String(),
			)
		}
		s.resetTransient()
	}
	s.lastSample = ts
	s.lastSeen = now

	s.stabilizer.Process(&sample, ts)
	s.advanceCalibration(sample, now)

	m := s.classifier.Calculate(sample, ts)
	smoothed := s.smoother.Apply(m)
	s.accumulate(m)

	return model.Output{
		SessionID:   s.ID,
		Timestamp:   ts,
		Metrics:     m,
		Smoothed:    smoothed,
		Levels:      s.smoother.Levels(),
		Calibration: s.CalibrationStatus(now),
	}, true
}

// advanceCalibration feeds the calibrator and applies the stopping
// rule: finish at the target count, or at the timeout once the minimum
// count is reached. Past twice the timeout it finishes with whatever is
// there rather than calibrating forever.
func (s *Session) advanceCalibration(sample model.FacialSample, now time.Time) {
	cal := s.calibrator
	if cal.Done() {
		return
	}
	if sample.Quality.Reliable && sample.Quality.Score >= s.cfg.Classifier.MinQuality {
		cal.AddSample(sample)
	}
	elapsed := now.Sub(s.startedAt)
	cc := s.cfg.Calibration
	switch {
	case cal.Samples() >= cc.TargetSamples:
	case elapsed >= cc.Timeout && cal.Samples() >= cc.MinSamples:
	case elapsed >= 2*cc.Timeout:
	default:
		return
	}
	cal.Finish(now)
	b := cal.Baseline()
	s.classifier.SetBaseline(b)
	if s.logger != nil {
		s.logger.Info("calibration finished",
			"session_id", s.ID,
			"samples", cal.Samples(),
			"baseline", b != nil,
		)
	}
}

func (s *Session) accumulate(m model.CognitiveMetrics) {
	s.samples++
	s.sumFocus += float64(m.Focus)
	s.sumStress += float64(m.Stress)
	s.sumFatigue += float64(m.Fatigue)
	s.sumConfidence += m.Confidence
	s.stateCounts[m.DominantState]++

	if m.DominantState == model.StateDistracted && s.lastState != model.StateDistracted {
		s.interruptions++
	}
	focused := m.DominantState == model.StateFocus || m.DominantState == model.StateDeepFocus
	if focused && !s.inFocusRun {
		s.focusPeriods++
	}
	s.inFocusRun = focused
	s.lastState = m.DominantState
}

// RecordNudges counts delivered nudges into the summary.
func (s *Session) RecordNudges(n int) {
	s.nudges += n
}

// Recalibrate discards the baseline and starts a fresh calibration
// window. Transient pipeline state restarts with it.
func (s *Session) Recalibrate(now time.Time) {
	s.calibrator = calibrate.New(s.cfg.Calibration, now)
	s.classifier.SetBaseline(nil)
	s.startedAt = now
	s.resetTransient()
}

func (s *Session) resetTransient() {
	s.stabilizer.Reset()
	s.classifier.Reset()
	s.smoother.Reset()
	s.inFocusRun = false
	s.lastState = ""
}

func (s *Session) CalibrationStatus(now time.Time) model.CalibrationStatus {
	p := s.calibrator.GetProgress(now)
	return model.CalibrationStatus{
		Active:           !s.calibrator.Done(),
		Progress:         p.Progress,
		SecondsRemaining: p.SecondsRemaining,
		Samples:          p.Samples,
		Message:          p.Message,
	}
}

func (s *Session) Baseline() *model.Baseline {
	return s.calibrator.Baseline()
}

func (s *Session) Thresholds() classify.Thresholds {
	return s.classifier.Thresholds()
}

// Summary snapshots the running aggregates. It can be taken at any
// point; EndedAt is the supplied time, not a terminal marker.
func (s *Session) Summary(now time.Time) model.SessionSummary {
	sum := model.SessionSummary{
		SessionID:     s.ID,
		StartedAt:     s.startedAt,
		EndedAt:       now,
		Samples:       s.samples,
		Interruptions: s.interruptions,
		FocusPeriods:  s.focusPeriods,
		Nudges:        s.nudges,
		StateShare:    make(map[model.CognitiveState]float64, len(s.stateCounts)),
	}
	if s.samples > 0 {
		n := float64(s.samples)
		sum.AvgFocus = s.sumFocus / n
		sum.AvgStress = s.sumStress / n
		sum.AvgFatigue = s.sumFatigue / n
		sum.AvgConfidence = s.sumConfidence / n
		for state, count := range s.stateCounts {
			sum.StateShare[state] = float64(count) / n
		}
	}
	return sum
}
