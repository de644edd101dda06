package classify

import (
	"testing"
	"time"

	"cogsense/internal/config"
	"cogsense/internal/model"
)

func classifierCfg() config.ClassifierConfig {
	return config.DefaultConfig().Classifier
}

// goodSample is a centered, calm, reliable frame.
func goodSample() model.FacialSample {
	s := model.FacialSample{
		Gaze:      model.Point{X: 960, Y: 540},
		HeadPose:  model.Pose{},
		BlinkRate: 10,
		Quality:   model.Quality{Reliable: true, Score: 0.9},
	}
	s.Expressions[model.EmotionNeutral] = 0.8
	return s
}

func feed(c *Classifier, s model.FacialSample, from time.Time, n int) (model.CognitiveMetrics, time.Time) {
	var m model.CognitiveMetrics
	ts := from
	for i := 0; i < n; i++ {
		m = c.Calculate(s, ts)
		ts = ts.Add(200 * time.Millisecond)
	}
	return m, ts
}

func TestScoreInvariants(t *testing.T) {
	c := New(classifierCfg(), nil)
	phone := true
	samples := []model.FacialSample{
		goodSample(),
		{}, // zero everything
		{
			Gaze:         model.Point{X: -5000, Y: 99999},
			HeadPose:     model.Pose{Yaw: 180, Pitch: -180, Roll: 90},
			BlinkRate:    400,
			Quality:      model.Quality{Reliable: false, Score: 7},
			PhoneInFrame: &phone,
			Expressions:  model.ExpressionMap{5, 5, 5, 5, 5, 5, 5},
			EyeState:     model.EyeState{EyesClosed: true, ClosureMs: 999999, Perclos: 3},
		},
	}
	ts := time.Unix(1000, 0)
	for _, s := range samples {
		for i := 0; i < 10; i++ {
			m := c.Calculate(s, ts)
			ts = ts.Add(200 * time.Millisecond)
			for name, v := range map[string]int{"focus": m.Focus, "stress": m.Stress, "fatigue": m.Fatigue, "distraction": m.Distraction} {
				if v < 0 || v > 100 {
					t.Fatalf("%s out of range: %d", name, v)
				}
			}
			if m.Distraction != 100-m.Focus {
				t.Fatalf("distraction = %d, want %d", m.Distraction, 100-m.Focus)
			}
			if m.Confidence < 0.2 || m.Confidence > 1.0 {
				t.Fatalf("confidence out of range: %f", m.Confidence)
			}
		}
	}
}

func TestCleanSampleScoresHigh(t *testing.T) {
	c := New(classifierCfg(), nil)
	m, _ := feed(c, goodSample(), time.Unix(1000, 0), 10)
	if m.Focus < 85 {
		t.Fatalf("clean sample focus = %d, want >= 85", m.Focus)
	}
	if m.DominantState != model.StateDeepFocus {
		t.Fatalf("dominant = %s, want deep_focus", m.DominantState)
	}
	if m.Stress > 10 || m.Fatigue > 20 {
		t.Fatalf("clean sample stress/fatigue = %d/%d", m.Stress, m.Fatigue)
	}
	if !m.Attention.OnScreen {
		t.Fatalf("expected on_screen attention, got %s", m.Attention.Classification)
	}
}

func TestPhoneInFramePenalty(t *testing.T) {
	c := New(classifierCfg(), nil)
	phone := true
	s := goodSample()
	s.PhoneInFrame = &phone
	m, _ := feed(c, s, time.Unix(1000, 0), 10)
	if m.Focus > 65 {
		t.Fatalf("focus with phone in frame = %d, want <= 65", m.Focus)
	}
	if m.Attention.Classification != model.ZonePhoneLike {
		t.Fatalf("attention = %s, want phone_like", m.Attention.Classification)
	}
	if !m.Attention.PhoneLooking {
		t.Fatalf("expected phone_looking flag")
	}
}

func TestMicrosleepAlerts(t *testing.T) {
	c := New(classifierCfg(), nil)
	s := goodSample()
	s.BlinkRate = 0
	s.EyeState = model.EyeState{EyesClosed: true, ClosureMs: 5000, Perclos: 0.8, EARAvg: 0.05, SlowBlinkCount: 4}
	m, _ := feed(c, s, time.Unix(1000, 0), 15)
	if !m.Alerts.Microsleep {
		t.Fatalf("expected microsleep alert")
	}
	if !m.Alerts.EyesClosed {
		t.Fatalf("expected eyes_closed alert")
	}
	if m.DominantState != model.StateDrowsy {
		t.Fatalf("dominant = %s, want drowsy", m.DominantState)
	}
	if !m.Alerts.HighFatigue {
		t.Fatalf("expected high fatigue alert, fatigue=%d", m.Fatigue)
	}
}

func TestStressFromNegativeExpressions(t *testing.T) {
	c := New(classifierCfg(), nil)
	s := goodSample()
	s.Expressions = model.ExpressionMap{}
	s.Expressions[model.EmotionAngry] = 0.4
	s.Expressions[model.EmotionFearful] = 0.3
	s.BlinkRate = 26
	m, _ := feed(c, s, time.Unix(1000, 0), 10)
	// neg 0.7 capped at 60, blink tier 25.
	if m.Stress < 75 {
		t.Fatalf("stress = %d, want >= 75", m.Stress)
	}
	if !m.Alerts.HighStress {
		t.Fatalf("expected high stress alert")
	}
	if m.DominantState != model.StateStressed {
		t.Fatalf("dominant = %s, want stressed", m.DominantState)
	}
}

func TestUnreliableDetectorSuppressesZoneAndAlerts(t *testing.T) {
	c := New(classifierCfg(), nil)
	s := goodSample()
	s.Quality = model.Quality{Reliable: false, Score: 0.1}
	s.HeadPose = model.Pose{Yaw: 40}
	m, _ := feed(c, s, time.Unix(1000, 0), 10)
	if m.Attention.Classification != model.ZoneUncertain {
		t.Fatalf("attention = %s, want uncertain", m.Attention.Classification)
	}
	if m.Alerts.PoorPosture {
		t.Fatalf("poor posture alert must be suppressed when unreliable")
	}
	if m.Alerts.FrequentDistraction {
		t.Fatalf("distraction alert must be suppressed when uncertain")
	}
	if m.Confidence > 0.6 {
		t.Fatalf("confidence with unreliable detector = %f", m.Confidence)
	}
}

func TestPoorPostureAlert(t *testing.T) {
	c := New(classifierCfg(), nil)
	s := goodSample()
	s.HeadPose = model.Pose{Yaw: 24}
	m, _ := feed(c, s, time.Unix(1000, 0), 10)
	if !m.Alerts.PoorPosture {
		t.Fatalf("expected poor posture alert at 24 deg yaw deviation")
	}
}

func TestBaselineShiftsPoseReference(t *testing.T) {
	// A user whose resting yaw is 24 deg should not be penalized for it.
	b := &model.Baseline{HeadPose: model.Pose{Yaw: 24}, BlinkRate: 10, Samples: 20}
	b.Expressions[model.EmotionNeutral] = 0.8
	c := New(classifierCfg(), b)
	s := goodSample()
	s.HeadPose = model.Pose{Yaw: 24}
	m, _ := feed(c, s, time.Unix(1000, 0), 10)
	if m.Alerts.PoorPosture {
		t.Fatalf("baseline-relative pose must not alert")
	}
	if m.Focus < 85 {
		t.Fatalf("focus = %d, want >= 85 with matching baseline", m.Focus)
	}
}

func TestDominantStatePriority(t *testing.T) {
	c := New(classifierCfg(), nil)
	// Both drowsy-level fatigue and stressed-level stress: fatigue wins.
	s := goodSample()
	s.EyeState = model.EyeState{EyesClosed: true, ClosureMs: 4000, Perclos: 0.9, SlowBlinkCount: 4}
	s.Expressions[model.EmotionAngry] = 0.8
	s.BlinkRate = 30
	m, _ := feed(c, s, time.Unix(1000, 0), 20)
	if m.Fatigue < 85 {
		t.Fatalf("fatigue = %d, want >= 85", m.Fatigue)
	}
	if m.DominantState != model.StateDrowsy {
		t.Fatalf("dominant = %s, want drowsy over stressed", m.DominantState)
	}
}

func TestDeriveThresholds(t *testing.T) {
	cfg := classifierCfg()

	th := DeriveThresholds(cfg, nil)
	if th.Focus != 65 || th.Stress != 65 || th.Fatigue != 60 {
		t.Fatalf("uncalibrated thresholds = %+v", th)
	}

	// 20 identical calm samples: neutral baseline 0.8 shifts the focus
	// threshold down by 5.
	b := &model.Baseline{BlinkRate: 12, Samples: 20}
	b.Expressions[model.EmotionNeutral] = 0.8
	th = DeriveThresholds(cfg, b)
	if th.Focus != 60 {
		t.Fatalf("focus threshold = %f, want 60", th.Focus)
	}

	// Clamping holds whatever the baseline says.
	b2 := &model.Baseline{BlinkRate: 200, Samples: 20}
	b2.Expressions[model.EmotionAngry] = 1
	th = DeriveThresholds(cfg, b2)
	if th.Focus < cfg.FocusMin || th.Focus > cfg.FocusMax {
		t.Fatalf("focus threshold out of clamp band: %f", th.Focus)
	}
	if th.Stress < cfg.StressMin || th.Stress > cfg.StressMax {
		t.Fatalf("stress threshold out of clamp band: %f", th.Stress)
	}
	if th.Fatigue < cfg.FatigueMin || th.Fatigue > cfg.FatigueMax {
		t.Fatalf("fatigue threshold out of clamp band: %f", th.Fatigue)
	}
}
