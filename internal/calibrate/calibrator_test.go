package calibrate

import (
	"testing"
	"time"

	"cogsense/internal/config"
	"cogsense/internal/model"
)

func sampleAt(x, y, yaw float64) model.FacialSample {
	s := model.FacialSample{
		Gaze:      model.Point{X: x, Y: y},
		HeadPose:  model.Pose{Yaw: yaw},
		BlinkRate: 12,
	}
	s.Expressions[model.EmotionNeutral] = 0.8
	return s
}

func TestBaselineAverages(t *testing.T) {
	start := time.Unix(1000, 0)
	c := New(config.DefaultConfig().Calibration, start)
	c.AddSample(sampleAt(100, 200, 2))
	c.AddSample(sampleAt(300, 400, 4))
	c.Finish(start.Add(5 * time.Second))

	b := c.Baseline()
	if b == nil {
		t.Fatalf("expected baseline")
	}
	if b.Gaze.X != 200 || b.Gaze.Y != 300 {
		t.Fatalf("gaze mean = %+v, want (200,300)", b.Gaze)
	}
	if b.HeadPose.Yaw != 3 {
		t.Fatalf("yaw mean = %f, want 3", b.HeadPose.Yaw)
	}
	if b.BlinkRate != 12 {
		t.Fatalf("blink mean = %f, want 12", b.BlinkRate)
	}
	if b.Expressions[model.EmotionNeutral] != 0.8 {
		t.Fatalf("neutral mean = %f, want 0.8", b.Expressions[model.EmotionNeutral])
	}
	if b.Samples != 2 {
		t.Fatalf("samples = %d, want 2", b.Samples)
	}
}

func TestAddAfterFinishIsNoop(t *testing.T) {
	start := time.Unix(1000, 0)
	c := New(config.DefaultConfig().Calibration, start)
	c.AddSample(sampleAt(100, 100, 0))
	c.Finish(start.Add(time.Second))
	c.AddSample(sampleAt(900, 900, 45))
	if c.Samples() != 1 {
		t.Fatalf("samples after finish = %d, want 1", c.Samples())
	}
	if c.Baseline().Gaze.X != 100 {
		t.Fatalf("baseline mutated after finish")
	}
}

func TestFinishWithZeroSamples(t *testing.T) {
	start := time.Unix(1000, 0)
	c := New(config.DefaultConfig().Calibration, start)
	if c.Baseline() != nil {
		t.Fatalf("baseline before finish must be nil")
	}
	c.Finish(start.Add(time.Second))
	if c.Baseline() != nil {
		t.Fatalf("baseline with zero samples must be nil")
	}
}

func TestProgressAndLowDetections(t *testing.T) {
	cfg := config.DefaultConfig().Calibration
	start := time.Unix(1000, 0)
	c := New(cfg, start)
	for i := 0; i < 5; i++ {
		c.AddSample(sampleAt(100, 100, 0))
	}

	p := c.GetProgress(start.Add(3 * time.Second))
	if p.Progress != 0.25 {
		t.Fatalf("progress = %f, want 0.25 (5/20 samples)", p.Progress)
	}
	if p.Message != "" {
		t.Fatalf("unexpected degraded message before timeout: %q", p.Message)
	}
	if p.SecondsRemaining != 27 {
		t.Fatalf("seconds remaining = %f, want 27", p.SecondsRemaining)
	}

	p = c.GetProgress(start.Add(cfg.Timeout + time.Second))
	if p.Progress != 1 {
		t.Fatalf("progress after timeout = %f, want 1", p.Progress)
	}
	if p.Message != LowDetectionsMessage {
		t.Fatalf("expected low detections message, got %q", p.Message)
	}
	if p.SecondsRemaining != 0 {
		t.Fatalf("seconds remaining after timeout = %f, want 0", p.SecondsRemaining)
	}
}
