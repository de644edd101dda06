package classify

import (
	"math"
	"time"

	"cogsense/internal/config"
	"cogsense/internal/model"
)

// attentionTracker is the zone hysteresis state machine. A candidate
// zone must hold continuously for its per-type hold time before it
// becomes the stable classification; that debounce is what keeps the
// output from flickering on single noisy frames.
type attentionTracker struct {
	cfg config.ClassifierConfig

	stable         model.AttentionZone
	candidate      model.AttentionZone
	candidateSince time.Time
	offScreenSince time.Time
}

func newAttentionTracker(cfg config.ClassifierConfig) *attentionTracker {
	return &attentionTracker{
		cfg:       cfg,
		stable:    model.ZoneUncertain,
		candidate: model.ZoneUncertain,
	}
}

func (t *attentionTracker) evaluate(s model.FacialSample, base *model.Baseline, now time.Time) model.AttentionState {
	cand := t.candidateZone(s, base)
	if cand != t.candidate {
		t.candidate = cand
		t.candidateSince = now
	}
	if t.stable != cand && now.Sub(t.candidateSince) >= t.holdFor(cand) {
		t.stable = cand
	}

	switch t.stable {
	case model.ZoneOnScreen, model.ZoneUncertain:
		t.offScreenSince = time.Time{}
	default:
		if t.offScreenSince.IsZero() {
			t.offScreenSince = now
		}
	}

	var offMs int64
	if !t.offScreenSince.IsZero() {
		offMs = now.Sub(t.offScreenSince).Milliseconds()
	}
	return model.AttentionState{
		Classification: t.stable,
		OnScreen:       t.stable == model.ZoneOnScreen,
		OffScreenMs:    offMs,
		PhoneLooking:   t.stable == model.ZonePhoneLike,
		SideLooking:    t.stable == model.ZoneSideLike,
		QualityScore:   s.Quality.Score,
		Reliable:       s.Quality.Reliable && s.Quality.Score >= t.cfg.MinQuality,
	}
}

// candidateZone applies the geometric rules for this frame alone.
// Uncertain overrides everything: a zone decision is never fabricated
// from an unreliable detection.
func (t *attentionTracker) candidateZone(s model.FacialSample, base *model.Baseline) model.AttentionZone {
	if !s.Quality.Reliable || s.Quality.Score < t.cfg.MinQuality {
		return model.ZoneUncertain
	}

	yawDev := s.HeadPose.Yaw
	pitchDev := s.HeadPose.Pitch
	if base != nil {
		yawDev -= base.HeadPose.Yaw
		pitchDev -= base.HeadPose.Pitch
	}
	h := t.cfg.ScreenHeight

	if (s.PhoneInFrame != nil && *s.PhoneInFrame) ||
		(pitchDev > t.cfg.PhonePitchDeg && s.Gaze.Y > 0.75*h) {
		return model.ZonePhoneLike
	}
	inExtended, inCenter := gazeZones(t.cfg, s.Gaze)
	if (pitchDev < -t.cfg.LookUpPitchDeg && s.Gaze.Y < 0.12*h) || !inExtended {
		return model.ZoneOffScreen
	}
	if math.Abs(yawDev) > t.cfg.SideYawDeg || !inCenter {
		return model.ZoneSideLike
	}
	if math.Abs(yawDev) > t.cfg.YawCapDeg || math.Abs(pitchDev) > t.cfg.PitchCapDeg {
		return model.ZoneSideLike
	}
	return model.ZoneOnScreen
}

func (t *attentionTracker) holdFor(zone model.AttentionZone) time.Duration {
	switch zone {
	case model.ZoneOnScreen:
		return t.cfg.OnScreenHold
	case model.ZoneUncertain:
		return t.cfg.UncertainHold
	default:
		return t.cfg.OffScreenHold
	}
}

// attentionPenalty converts time off screen into a focus penalty:
// a grace period, then a linear ramp, a zone boost, and detector
// quality scaling, capped at PenaltyMax.
func attentionPenalty(cfg config.ClassifierConfig, att model.AttentionState, quality float64) float64 {
	if att.Classification == model.ZoneOnScreen || att.Classification == model.ZoneUncertain {
		return 0
	}
	grace := cfg.PenaltyGrace.Milliseconds()
	full := cfg.PenaltyFull.Milliseconds()
	ramp := 0.0
	if att.OffScreenMs > grace {
		ramp = float64(att.OffScreenMs-grace) / float64(full-grace)
		if ramp > 1 {
			ramp = 1
		}
	}
	p := ramp * (cfg.PenaltyMax - cfg.PhoneBoost)
	if att.PhoneLooking {
		p += cfg.PhoneBoost
	} else if att.SideLooking {
		p += cfg.SideBoost
	}
	if p > cfg.PenaltyMax {
		p = cfg.PenaltyMax
	}
	return p * quality
}

func (t *attentionTracker) reset() {
	t.stable = model.ZoneUncertain
	t.candidate = model.ZoneUncertain
	t.candidateSince = time.Time{}
	t.offScreenSince = time.Time{}
}
