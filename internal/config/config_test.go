package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cogsense.yaml")
	raw := `
log_level: debug
calibration:
  target_samples: 30
classifier:
  screen_width: 2560
  screen_height: 1440
nudge:
  enabled: false
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level: %s", cfg.LogLevel)
	}
	if cfg.Calibration.TargetSamples != 30 {
		t.Fatalf("target samples: %d", cfg.Calibration.TargetSamples)
	}
	if cfg.Classifier.ScreenWidth != 2560 || cfg.Classifier.ScreenHeight != 1440 {
		t.Fatalf("screen: %fx%f", cfg.Classifier.ScreenWidth, cfg.Classifier.ScreenHeight)
	}
	// Untouched sections fall back to defaults.
	if cfg.Stabilizer.ExpressionAlpha != 0.35 {
		t.Fatalf("stabilizer defaults not applied: %f", cfg.Stabilizer.ExpressionAlpha)
	}
	if cfg.Smoothing.MaxDelta != 5 {
		t.Fatalf("smoothing defaults not applied: %f", cfg.Smoothing.MaxDelta)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cogsense.json")
	// Durations are nanoseconds on the wire, matching encoding/json's
	// view of time.Duration.
	raw := `{"session": {"reset_gap": 8000000000}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.ResetGap != 8*time.Second {
		t.Fatalf("reset gap: %v", cfg.Session.ResetGap)
	}
}

func TestValidateRejectsBadBands(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Calibration.MinSamples = 50
	if err := Validate(cfg); err == nil {
		t.Fatalf("min_samples above target accepted")
	}

	cfg = DefaultConfig()
	cfg.Stabilizer.CloseRatio = 0.8
	if err := Validate(cfg); err == nil {
		t.Fatalf("close_ratio above p70_ratio accepted")
	}

	cfg = DefaultConfig()
	cfg.Classifier.FocusDefault = 90
	if err := Validate(cfg); err == nil {
		t.Fatalf("focus_default outside clamp band accepted")
	}
}

func TestManagerUpdateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cogsense.yaml")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	next := *m.Get()
	next.Nudge.Cooldown = 42 * time.Second
	if err := m.Update(&next); err != nil {
		t.Fatalf("update: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Nudge.Cooldown != 42*time.Second {
		t.Fatalf("cooldown not persisted: %v", reloaded.Nudge.Cooldown)
	}
}

func TestStaticManager(t *testing.T) {
	m := NewStaticManager(nil)
	if m.Get() == nil {
		t.Fatalf("static manager returned nil config")
	}
	if m.Path() != "" {
		t.Fatalf("static manager has a path")
	}
	if needs, err := m.NeedsReload(); needs || err != nil {
		t.Fatalf("static manager wants reload: %v %v", needs, err)
	}
}
