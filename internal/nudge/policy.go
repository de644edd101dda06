// Package nudge decides when the pipeline's alert flags should surface
// as user-facing notifications. A per-session, per-kind cooldown keeps
// the stream quiet, and the distraction nudge additionally requires the
// low-focus condition to hold for a sustained period.
package nudge

import (
	"sync"
	"time"

	"cogsense/internal/config"
	"cogsense/internal/model"
)

const (
	KindMicrosleep  = "microsleep"
	KindHighFatigue = "high_fatigue"
	KindHighStress  = "high_stress"
	KindPosture     = "posture"
	KindDistraction = "distraction"
)

type Policy struct {
	mu       sync.Mutex
	cfg      config.NudgeConfig
	last     map[string]time.Time
	lowSince map[string]time.Time
}

func NewPolicy(cfg config.NudgeConfig) *Policy {
	return &Policy{
		cfg:      cfg,
		last:     make(map[string]time.Time),
		lowSince: make(map[string]time.Time),
	}
}

// Evaluate returns the nudges warranted by this frame, already
// debounced. Severity ordering within a frame follows the same priority
// as the dominant state: drowsiness first, distraction last.
func (p *Policy) Evaluate(sessionID string, m model.CognitiveMetrics, now time.Time) []model.Nudge {
	if !p.config().Enabled {
		return nil
	}
	var out []model.Nudge
	add := func(kind, severity, message string) {
		if !p.allow(sessionID+"|"+kind, now) {
			return
		}
		out = append(out, model.Nudge{
			Timestamp: now,
			SessionID: sessionID,
			Kind:      kind,
			Severity:  severity,
			Message:   message,
			Attention: m.Attention.Classification,
			Context: map[string]string{
				"dominant_state": string(m.DominantState),
			},
		})
	}

	if m.Alerts.Microsleep {
		add(KindMicrosleep, "critical", "prolonged eye closure detected, consider taking a break")
	} else if m.Alerts.HighFatigue {
		add(KindHighFatigue, "high", "fatigue is elevated, a short break may help")
	}
	if m.Alerts.HighStress {
		add(KindHighStress, "high", "stress indicators are elevated")
	}
	if m.Alerts.PoorPosture {
		add(KindPosture, "low", "head pose has drifted, check your posture")
	}
	if p.sustainedLowFocus(sessionID, m, now) {
		add(KindDistraction, "medium", "focus has been low for a while")
	}
	return out
}

// sustainedLowFocus tracks how long focus has stayed under the
// configured floor. Frames with an uncertain zone neither extend nor
// reset the timer.
func (p *Policy) sustainedLowFocus(sessionID string, m model.CognitiveMetrics, now time.Time) bool {
	if m.Attention.Classification == model.ZoneUncertain {
		return false
	}
	cfg := p.config()
	p.mu.Lock()
	defer p.mu.Unlock()
	if m.Focus >= cfg.LowFocus {
		delete(p.lowSince, sessionID)
		return false
	}
	since, ok := p.lowSince[sessionID]
	if !ok {
		p.lowSince[sessionID] = now
		return false
	}
	return now.Sub(since) >= cfg.LowFocusHold
}

func (p *Policy) allow(key string, now time.Time) bool {
	cooldown := p.config().Cooldown
	if cooldown <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if ts, ok := p.last[key]; ok && now.Sub(ts) < cooldown {
		return false
	}
	p.last[key] = now
	return true
}

func (p *Policy) config() config.NudgeConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// UpdateConfig swaps the policy knobs at runtime. Existing cooldown and
// hold timers carry over.
func (p *Policy) UpdateConfig(cfg config.NudgeConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
}

// Forget drops the per-session debounce state. Called when a session
// closes or resets.
func (p *Policy) Forget(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.lowSince, sessionID)
	for key := range p.last {
		if len(key) > len(sessionID) && key[:len(sessionID)] == sessionID && key[len(sessionID)] == '|' {
			delete(p.last, key)
		}
	}
}
