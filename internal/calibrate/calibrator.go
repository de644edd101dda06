// Package calibrate accumulates an early window of samples into a
// per-user Baseline. The stopping rule belongs to the caller; the
// calibrator only reports progress and builds the frozen baseline.
package calibrate

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"cogsense/internal/config"
	"cogsense/internal/model"
)

// LowDetectionsMessage is surfaced when the timeout elapses before the
// target sample count was reached.
const LowDetectionsMessage = "low detections, improve lighting"

type Progress struct {
	Progress         float64       `json:"progress"`
	SecondsRemaining float64       `json:"seconds_remaining"`
	TimeElapsed      time.Duration `json:"time_elapsed"`
	Samples          int           `json:"samples"`
	Message          string        `json:"message,omitempty"`
}

type Calibrator struct {
	cfg       config.CalibrationConfig
	startedAt time.Time
	finished  bool
	baseline  *model.Baseline

	gazeX, gazeY      []float64
	yaw, pitch, roll  []float64
	blink             []float64
	expr              [model.EmotionCount][]float64
}

func New(cfg config.CalibrationConfig, now time.Time) *Calibrator {
	return &Calibrator{cfg: cfg, startedAt: now}
}

// AddSample records one stabilized sample. It is a no-op once the
// calibrator has finished.
func (c *Calibrator) AddSample(s model.FacialSample) {
	if c.finished {
		return
	}
	c.gazeX = append(c.gazeX, s.Gaze.X)
	c.gazeY = append(c.gazeY, s.Gaze.Y)
	c.yaw = append(c.yaw, s.HeadPose.Yaw)
	c.pitch = append(c.pitch, s.HeadPose.Pitch)
	c.roll = append(c.roll, s.HeadPose.Roll)
	c.blink = append(c.blink, s.BlinkRate)
	for i := range c.expr {
		c.expr[i] = append(c.expr[i], s.Expressions[i])
	}
}

func (c *Calibrator) Samples() int {
	return len(c.gazeX)
}

func (c *Calibrator) Done() bool {
	return c.finished
}

// Progress is a pure query; the caller drives its own polling cadence.
func (c *Calibrator) GetProgress(now time.Time) Progress {
	elapsed := now.Sub(c.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	sampleFrac := float64(c.Samples()) / float64(c.cfg.TargetSamples)
	timeFrac := float64(elapsed) / float64(c.cfg.Timeout)
	progress := sampleFrac
	if timeFrac > progress {
		progress = timeFrac
	}
	if c.finished || progress > 1 {
		progress = 1
	}
	remaining := (c.cfg.Timeout - elapsed).Seconds()
	if remaining < 0 || c.finished {
		remaining = 0
	}
	p := Progress{
		Progress:         progress,
		SecondsRemaining: remaining,
		TimeElapsed:      elapsed,
		Samples:          c.Samples(),
	}
	if elapsed >= c.cfg.Timeout && c.Samples() < c.cfg.TargetSamples {
		p.Message = LowDetectionsMessage
	}
	return p
}

// Finish freezes the calibrator and builds the baseline. Finishing with
// zero samples leaves the baseline nil.
func (c *Calibrator) Finish(now time.Time) {
	if c.finished {
		return
	}
	c.finished = true
	n := c.Samples()
	if n == 0 {
		return
	}
	b := &model.Baseline{
		Gaze: model.Point{X: stat.Mean(c.gazeX, nil), Y: stat.Mean(c.gazeY, nil)},
		HeadPose: model.Pose{
			Yaw:   stat.Mean(c.yaw, nil),
			Pitch: stat.Mean(c.pitch, nil),
			Roll:  stat.Mean(c.roll, nil),
		},
		BlinkRate:  stat.Mean(c.blink, nil),
		Samples:    n,
		StartedAt:  c.startedAt,
		FinishedAt: now,
	}
	for i := range c.expr {
		b.Expressions[i] = stat.Mean(c.expr[i], nil)
	}
	c.baseline = b
}

// Baseline returns the frozen baseline, or nil when not finished or
// finished without samples.
func (c *Calibrator) Baseline() *model.Baseline {
	if !c.finished {
		return nil
	}
	return c.baseline
}
