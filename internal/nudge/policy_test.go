package nudge

import (
	"testing"
	"time"

	"cogsense/internal/config"
	"cogsense/internal/model"
)

func policyCfg() config.NudgeConfig {
	return config.DefaultConfig().Nudge
}

func okMetrics() model.CognitiveMetrics {
	return model.CognitiveMetrics{
		Focus:     80,
		Attention: model.AttentionState{Classification: model.ZoneOnScreen, OnScreen: true},
	}
}

func TestCooldownSuppressesRepeats(t *testing.T) {
	p := NewPolicy(policyCfg())
	m := okMetrics()
	m.Alerts.Microsleep = true
	now := time.Unix(1000, 0)

	if got := p.Evaluate("s1", m, now); len(got) != 1 || got[0].Kind != KindMicrosleep {
		t.Fatalf("first frame nudges = %+v", got)
	}
	if got := p.Evaluate("s1", m, now.Add(5*time.Second)); len(got) != 0 {
		t.Fatalf("nudge repeated inside cooldown: %+v", got)
	}
	if got := p.Evaluate("s1", m, now.Add(16*time.Second)); len(got) != 1 {
		t.Fatalf("nudge missing after cooldown: %+v", got)
	}
}

func TestCooldownIsPerSessionAndKind(t *testing.T) {
	p := NewPolicy(policyCfg())
	m := okMetrics()
	m.Alerts.Microsleep = true
	now := time.Unix(1000, 0)

	p.Evaluate("s1", m, now)
	if got := p.Evaluate("s2", m, now); len(got) != 1 {
		t.Fatalf("cooldown leaked across sessions: %+v", got)
	}
	m2 := okMetrics()
	m2.Alerts.HighStress = true
	if got := p.Evaluate("s1", m2, now); len(got) != 1 || got[0].Kind != KindHighStress {
		t.Fatalf("cooldown leaked across kinds: %+v", got)
	}
}

func TestMicrosleepOutranksFatigue(t *testing.T) {
	p := NewPolicy(policyCfg())
	m := okMetrics()
	m.Alerts.Microsleep = true
	m.Alerts.HighFatigue = true
	got := p.Evaluate("s1", m, time.Unix(1000, 0))
	if len(got) != 1 || got[0].Kind != KindMicrosleep {
		t.Fatalf("expected single microsleep nudge, got %+v", got)
	}
}

func TestDistractionRequiresSustainedLowFocus(t *testing.T) {
	p := NewPolicy(policyCfg())
	m := okMetrics()
	m.Focus = 20
	now := time.Unix(1000, 0)

	// Below floor but not yet held for LowFocusHold.
	for elapsed := time.Duration(0); elapsed < 14*time.Second; elapsed += time.Second {
		if got := p.Evaluate("s1", m, now.Add(elapsed)); len(got) != 0 {
			t.Fatalf("distraction nudge fired early at %v: %+v", elapsed, got)
		}
	}
	got := p.Evaluate("s1", m, now.Add(16*time.Second))
	if len(got) != 1 || got[0].Kind != KindDistraction {
		t.Fatalf("expected distraction nudge after hold, got %+v", got)
	}

	// A recovered frame resets the hold timer.
	rec := okMetrics()
	p.Evaluate("s1", rec, now.Add(40*time.Second))
	if got := p.Evaluate("s1", m, now.Add(41*time.Second)); len(got) != 0 {
		t.Fatalf("hold timer did not reset: %+v", got)
	}
}

func TestUncertainFramesDoNotFeedDistraction(t *testing.T) {
	p := NewPolicy(policyCfg())
	m := okMetrics()
	m.Focus = 20
	m.Attention.Classification = model.ZoneUncertain
	now := time.Unix(1000, 0)
	for elapsed := time.Duration(0); elapsed < 60*time.Second; elapsed += time.Second {
		if got := p.Evaluate("s1", m, now.Add(elapsed)); len(got) != 0 {
			t.Fatalf("uncertain frames produced a distraction nudge: %+v", got)
		}
	}
}

func TestDisabledPolicyIsSilent(t *testing.T) {
	cfg := policyCfg()
	cfg.Enabled = false
	p := NewPolicy(cfg)
	m := okMetrics()
	m.Alerts.Microsleep = true
	if got := p.Evaluate("s1", m, time.Unix(1000, 0)); got != nil {
		t.Fatalf("disabled policy emitted nudges: %+v", got)
	}
}

func TestForgetClearsSessionState(t *testing.T) {
	p := NewPolicy(policyCfg())
	m := okMetrics()
	m.Alerts.Microsleep = true
	now := time.Unix(1000, 0)
	p.Evaluate("s1", m, now)
	p.Forget("s1")
	if got := p.Evaluate("s1", m, now.Add(time.Second)); len(got) != 1 {
		t.Fatalf("forgotten session still on cooldown: %+v", got)
	}
}
