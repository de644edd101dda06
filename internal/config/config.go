package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    string            `json:"log_level" yaml:"log_level"`
	Ingest      IngestConfig      `json:"ingest" yaml:"ingest"`
	Stabilizer  StabilizerConfig  `json:"stabilizer" yaml:"stabilizer"`
	Calibration CalibrationConfig `json:"calibration" yaml:"calibration"`
	Classifier  ClassifierConfig  `json:"classifier" yaml:"classifier"`
	Smoothing   SmoothingConfig   `json:"smoothing" yaml:"smoothing"`
	Session     SessionConfig     `json:"session" yaml:"session"`
	Nudge       NudgeConfig       `json:"nudge" yaml:"nudge"`
	API         APIConfig         `json:"api" yaml:"api"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Publish     PublishConfig     `json:"publish" yaml:"publish"`
	Metrics     MetricsConfig     `json:"metrics" yaml:"metrics"`
	Alerts      AlertsConfig      `json:"alerts" yaml:"alerts"`
}

type IngestConfig struct {
	ChannelBuffer int             `json:"channel_buffer" yaml:"channel_buffer"`
	REST          RESTConfig      `json:"rest" yaml:"rest"`
	TCPStream     TCPStreamConfig `json:"tcp_stream" yaml:"tcp_stream"`
	WebSocket     WebSocketConfig `json:"websocket" yaml:"websocket"`
	MQTT          MQTTConfig      `json:"mqtt" yaml:"mqtt"`
	Kafka         KafkaConfig     `json:"kafka" yaml:"kafka"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type TCPStreamConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type WebSocketConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
	Path    string `json:"path" yaml:"path"`
}

type MQTTConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Broker   string `json:"broker" yaml:"broker"`
	Topic    string `json:"topic" yaml:"topic"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

// StabilizerConfig holds the smoothing and blink state machine knobs.
// The defaults match the values the pipeline was tuned with; all of
// them are safe to adjust per deployment.
type StabilizerConfig struct {
	ExpressionAlpha  float64       `json:"expression_alpha" yaml:"expression_alpha"`
	PoseAlpha        float64       `json:"pose_alpha" yaml:"pose_alpha"`
	GazeAlpha        float64       `json:"gaze_alpha" yaml:"gaze_alpha"`
	EARBaselineAlpha float64       `json:"ear_baseline_alpha" yaml:"ear_baseline_alpha"`
	EARFloor         float64       `json:"ear_floor" yaml:"ear_floor"`
	CloseRatio       float64       `json:"close_ratio" yaml:"close_ratio"`
	ReopenDelta      float64       `json:"reopen_delta" yaml:"reopen_delta"`
	P70Ratio         float64       `json:"p70_ratio" yaml:"p70_ratio"`
	PerclosMinFrames int           `json:"perclos_min_frames" yaml:"perclos_min_frames"`
	BlinkWindow      time.Duration `json:"blink_window" yaml:"blink_window"`
	MicrosleepWindow time.Duration `json:"microsleep_window" yaml:"microsleep_window"`
	BlinkMin         time.Duration `json:"blink_min" yaml:"blink_min"`
	BlinkMax         time.Duration `json:"blink_max" yaml:"blink_max"`
	MicrosleepMin    time.Duration `json:"microsleep_min" yaml:"microsleep_min"`
}

type CalibrationConfig struct {
	TargetSamples int           `json:"target_samples" yaml:"target_samples"`
	MinSamples    int           `json:"min_samples" yaml:"min_samples"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
}

type ClassifierConfig struct {
	ScreenWidth  float64 `json:"screen_width" yaml:"screen_width"`
	ScreenHeight float64 `json:"screen_height" yaml:"screen_height"`
	MinQuality   float64 `json:"min_quality" yaml:"min_quality"`

	// Attention zone geometry, degrees of deviation from baseline.
	YawCapDeg      float64 `json:"yaw_cap_deg" yaml:"yaw_cap_deg"`
	PitchCapDeg    float64 `json:"pitch_cap_deg" yaml:"pitch_cap_deg"`
	SideYawDeg     float64 `json:"side_yaw_deg" yaml:"side_yaw_deg"`
	PhonePitchDeg  float64 `json:"phone_pitch_deg" yaml:"phone_pitch_deg"`
	LookUpPitchDeg float64 `json:"look_up_pitch_deg" yaml:"look_up_pitch_deg"`

	// Hold times before a candidate zone becomes the stable one.
	OnScreenHold  time.Duration `json:"on_screen_hold" yaml:"on_screen_hold"`
	OffScreenHold time.Duration `json:"off_screen_hold" yaml:"off_screen_hold"`
	UncertainHold time.Duration `json:"uncertain_hold" yaml:"uncertain_hold"`

	// Off-screen penalty ramp.
	PenaltyGrace time.Duration `json:"penalty_grace" yaml:"penalty_grace"`
	PenaltyFull  time.Duration `json:"penalty_full" yaml:"penalty_full"`
	PenaltyMax   float64       `json:"penalty_max" yaml:"penalty_max"`
	PhoneBoost   float64       `json:"phone_boost" yaml:"phone_boost"`
	SideBoost    float64       `json:"side_boost" yaml:"side_boost"`

	// Adaptive threshold defaults and clamp bands.
	FocusDefault   float64 `json:"focus_default" yaml:"focus_default"`
	StressDefault  float64 `json:"stress_default" yaml:"stress_default"`
	FatigueDefault float64 `json:"fatigue_default" yaml:"fatigue_default"`
	FocusMin       float64 `json:"focus_min" yaml:"focus_min"`
	FocusMax       float64 `json:"focus_max" yaml:"focus_max"`
	StressMin      float64 `json:"stress_min" yaml:"stress_min"`
	StressMax      float64 `json:"stress_max" yaml:"stress_max"`
	FatigueMin     float64 `json:"fatigue_min" yaml:"fatigue_min"`
	FatigueMax     float64 `json:"fatigue_max" yaml:"fatigue_max"`

	// Fatigue accumulator dynamics, fraction of the gap moved per second.
	FatigueRisePerSec float64 `json:"fatigue_rise_per_sec" yaml:"fatigue_rise_per_sec"`
	FatigueFallPerSec float64 `json:"fatigue_fall_per_sec" yaml:"fatigue_fall_per_sec"`
}

type SmoothingConfig struct {
	Alpha             float64         `json:"alpha" yaml:"alpha"`
	MaxDelta          float64         `json:"max_delta" yaml:"max_delta"`
	FatigueAsymmetric bool            `json:"fatigue_asymmetric" yaml:"fatigue_asymmetric"`
	FatigueRiseAlpha  float64         `json:"fatigue_rise_alpha" yaml:"fatigue_rise_alpha"`
	FatigueRiseMax    float64         `json:"fatigue_rise_max" yaml:"fatigue_rise_max"`
	FatigueFallAlpha  float64         `json:"fatigue_fall_alpha" yaml:"fatigue_fall_alpha"`
	FatigueFallMax    float64         `json:"fatigue_fall_max" yaml:"fatigue_fall_max"`
	Levels            LevelThresholds `json:"levels" yaml:"levels"`
}

type LevelThresholds struct {
	Focus       LevelBand `json:"focus" yaml:"focus"`
	Stress      LevelBand `json:"stress" yaml:"stress"`
	Fatigue     LevelBand `json:"fatigue" yaml:"fatigue"`
	Distraction LevelBand `json:"distraction" yaml:"distraction"`
}

type LevelBand struct {
	LowBelow float64 `json:"low_below" yaml:"low_below"`
	HighFrom float64 `json:"high_from" yaml:"high_from"`
}

type SessionConfig struct {
	ResetGap    time.Duration `json:"reset_gap" yaml:"reset_gap"`
	SampleEvery time.Duration `json:"sample_every" yaml:"sample_every"`
}

type NudgeConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	Cooldown     time.Duration `json:"cooldown" yaml:"cooldown"`
	LowFocusHold time.Duration `json:"low_focus_hold" yaml:"low_focus_hold"`
	LowFocus     int           `json:"low_focus" yaml:"low_focus"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type PublishConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	Addr      string        `json:"addr" yaml:"addr"`
	Password  string        `json:"password" yaml:"password"`
	DB        int           `json:"db" yaml:"db"`
	KeyPrefix string        `json:"key_prefix" yaml:"key_prefix"`
	TTL       time.Duration `json:"ttl" yaml:"ttl"`
}

type MetricsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

type AlertsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Ingest: IngestConfig{
			ChannelBuffer: 1024,
			REST:          RESTConfig{Enabled: true, Addr: ":8080"},
			TCPStream:     TCPStreamConfig{Enabled: false, Addr: ":9000"},
			WebSocket:     WebSocketConfig{Enabled: true, Addr: ":8082", Path: "/stream"},
			MQTT:          MQTTConfig{Enabled: false, Topic: "cogsense/samples", ClientID: "cogsense"},
			Kafka:         KafkaConfig{Enabled: false},
		},
		Stabilizer: StabilizerConfig{
			ExpressionAlpha:  0.35,
			PoseAlpha:        0.25,
			GazeAlpha:        0.20,
			EARBaselineAlpha: 0.03,
			EARFloor:         0.08,
			CloseRatio:       0.65,
			ReopenDelta:      0.02,
			P70Ratio:         0.70,
			PerclosMinFrames: 5,
			BlinkWindow:      60 * time.Second,
			MicrosleepWindow: 300 * time.Second,
			BlinkMin:         60 * time.Millisecond,
			BlinkMax:         400 * time.Millisecond,
			MicrosleepMin:    1500 * time.Millisecond,
		},
		Calibration: CalibrationConfig{
			TargetSamples: 20,
			MinSamples:    8,
			Timeout:       30 * time.Second,
		},
		Classifier: ClassifierConfig{
			ScreenWidth:       1920,
			ScreenHeight:      1080,
			MinQuality:        0.3,
			YawCapDeg:         25,
			PitchCapDeg:       18,
			SideYawDeg:        25,
			PhonePitchDeg:     18,
			LookUpPitchDeg:    12,
			OnScreenHold:      450 * time.Millisecond,
			OffScreenHold:     1000 * time.Millisecond,
			UncertainHold:     300 * time.Millisecond,
			PenaltyGrace:      2 * time.Second,
			PenaltyFull:       8 * time.Second,
			PenaltyMax:        45,
			PhoneBoost:        10,
			SideBoost:         5,
			FocusDefault:      65,
			StressDefault:     65,
			FatigueDefault:    60,
			FocusMin:          50,
			FocusMax:          80,
			StressMin:         50,
			StressMax:         85,
			FatigueMin:        45,
			FatigueMax:        80,
			FatigueRisePerSec: 0.60,
			FatigueFallPerSec: 0.05,
		},
		Smoothing: SmoothingConfig{
			Alpha:             0.12,
			MaxDelta:          5,
			FatigueAsymmetric: true,
			FatigueRiseAlpha:  0.45,
			FatigueRiseMax:    18,
			FatigueFallAlpha:  0.06,
			FatigueFallMax:    3,
			Levels: LevelThresholds{
				Focus:       LevelBand{LowBelow: 45, HighFrom: 75},
				Stress:      LevelBand{LowBelow: 25, HighFrom: 60},
				Fatigue:     LevelBand{LowBelow: 25, HighFrom: 60},
				Distraction: LevelBand{LowBelow: 25, HighFrom: 55},
			},
		},
		Session: SessionConfig{
			ResetGap:    5 * time.Second,
			SampleEvery: 10 * time.Second,
		},
		Nudge: NudgeConfig{
			Enabled:      true,
			Cooldown:     15 * time.Second,
			LowFocusHold: 15 * time.Second,
			LowFocus:     30,
		},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:cogsense.db?_pragma=busy_timeout(5000)"},
		Publish: PublishConfig{Enabled: false, Addr: "localhost:6379", KeyPrefix: "cogsense:realtime:", TTL: 10 * time.Second},
		Metrics: MetricsConfig{StoreLimit: 500},
		Alerts:  AlertsConfig{StoreLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = def.Ingest.ChannelBuffer
	}
	if cfg.Metrics.StoreLimit <= 0 {
		cfg.Metrics.StoreLimit = def.Metrics.StoreLimit
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = def.Alerts.StoreLimit
	}
	s := &cfg.Stabilizer
	ds := def.Stabilizer
	if s.ExpressionAlpha <= 0 || s.ExpressionAlpha > 1 {
		s.ExpressionAlpha = ds.ExpressionAlpha
	}
	if s.PoseAlpha <= 0 || s.PoseAlpha > 1 {
		s.PoseAlpha = ds.PoseAlpha
	}
	if s.GazeAlpha <= 0 || s.GazeAlpha > 1 {
		s.GazeAlpha = ds.GazeAlpha
	}
	if s.EARBaselineAlpha <= 0 || s.EARBaselineAlpha > 1 {
		s.EARBaselineAlpha = ds.EARBaselineAlpha
	}
	if s.EARFloor <= 0 {
		s.EARFloor = ds.EARFloor
	}
	if s.CloseRatio <= 0 || s.CloseRatio >= 1 {
		s.CloseRatio = ds.CloseRatio
	}
	if s.P70Ratio <= 0 || s.P70Ratio >= 1 {
		s.P70Ratio = ds.P70Ratio
	}
	if s.PerclosMinFrames <= 0 {
		s.PerclosMinFrames = ds.PerclosMinFrames
	}
	if s.BlinkWindow <= 0 {
		s.BlinkWindow = ds.BlinkWindow
	}
	if s.MicrosleepWindow <= 0 {
		s.MicrosleepWindow = ds.MicrosleepWindow
	}
	if s.BlinkMin <= 0 {
		s.BlinkMin = ds.BlinkMin
	}
	if s.BlinkMax <= s.BlinkMin {
		s.BlinkMax = ds.BlinkMax
	}
	if s.MicrosleepMin <= s.BlinkMax {
		s.MicrosleepMin = ds.MicrosleepMin
	}
	if cfg.Calibration.TargetSamples <= 0 {
		cfg.Calibration.TargetSamples = def.Calibration.TargetSamples
	}
	if cfg.Calibration.MinSamples <= 0 {
		cfg.Calibration.MinSamples = def.Calibration.MinSamples
	}
	if cfg.Calibration.Timeout <= 0 {
		cfg.Calibration.Timeout = def.Calibration.Timeout
	}
	c := &cfg.Classifier
	dc := def.Classifier
	if c.ScreenWidth <= 0 {
		c.ScreenWidth = dc.ScreenWidth
	}
	if c.ScreenHeight <= 0 {
		c.ScreenHeight = dc.ScreenHeight
	}
	if c.MinQuality <= 0 {
		c.MinQuality = dc.MinQuality
	}
	if c.OnScreenHold <= 0 {
		c.OnScreenHold = dc.OnScreenHold
	}
	if c.OffScreenHold <= 0 {
		c.OffScreenHold = dc.OffScreenHold
	}
	if c.UncertainHold <= 0 {
		c.UncertainHold = dc.UncertainHold
	}
	if c.PenaltyFull <= c.PenaltyGrace {
		c.PenaltyGrace = dc.PenaltyGrace
		c.PenaltyFull = dc.PenaltyFull
	}
	if c.PenaltyMax <= 0 {
		c.PenaltyMax = dc.PenaltyMax
	}
	if c.FocusDefault <= 0 {
		c.FocusDefault = dc.FocusDefault
	}
	if c.StressDefault <= 0 {
		c.StressDefault = dc.StressDefault
	}
	if c.FatigueDefault <= 0 {
		c.FatigueDefault = dc.FatigueDefault
	}
	if c.FocusMin <= 0 || c.FocusMax <= c.FocusMin {
		c.FocusMin, c.FocusMax = dc.FocusMin, dc.FocusMax
	}
	if c.StressMin <= 0 || c.StressMax <= c.StressMin {
		c.StressMin, c.StressMax = dc.StressMin, dc.StressMax
	}
	if c.FatigueMin <= 0 || c.FatigueMax <= c.FatigueMin {
		c.FatigueMin, c.FatigueMax = dc.FatigueMin, dc.FatigueMax
	}
	if c.FatigueRisePerSec <= 0 || c.FatigueRisePerSec >= 1 {
		c.FatigueRisePerSec = dc.FatigueRisePerSec
	}
	if c.FatigueFallPerSec <= 0 || c.FatigueFallPerSec >= 1 {
		c.FatigueFallPerSec = dc.FatigueFallPerSec
	}
	sm := &cfg.Smoothing
	dm := def.Smoothing
	if sm.Alpha <= 0 || sm.Alpha > 1 {
		sm.Alpha = dm.Alpha
	}
	if sm.MaxDelta <= 0 {
		sm.MaxDelta = dm.MaxDelta
	}
	if sm.FatigueRiseAlpha <= 0 || sm.FatigueRiseAlpha > 1 {
		sm.FatigueRiseAlpha = dm.FatigueRiseAlpha
	}
	if sm.FatigueRiseMax <= 0 {
		sm.FatigueRiseMax = dm.FatigueRiseMax
	}
	if sm.FatigueFallAlpha <= 0 || sm.FatigueFallAlpha > 1 {
		sm.FatigueFallAlpha = dm.FatigueFallAlpha
	}
	if sm.FatigueFallMax <= 0 {
		sm.FatigueFallMax = dm.FatigueFallMax
	}
	if sm.Levels.Focus.HighFrom <= 0 {
		sm.Levels.Focus = dm.Levels.Focus
	}
	if sm.Levels.Stress.HighFrom <= 0 {
		sm.Levels.Stress = dm.Levels.Stress
	}
	if sm.Levels.Fatigue.HighFrom <= 0 {
		sm.Levels.Fatigue = dm.Levels.Fatigue
	}
	if sm.Levels.Distraction.HighFrom <= 0 {
		sm.Levels.Distraction = dm.Levels.Distraction
	}
	if cfg.Session.ResetGap <= 0 {
		cfg.Session.ResetGap = def.Session.ResetGap
	}
	if cfg.Session.SampleEvery <= 0 {
		cfg.Session.SampleEvery = def.Session.SampleEvery
	}
	if cfg.Nudge.Cooldown <= 0 {
		cfg.Nudge.Cooldown = def.Nudge.Cooldown
	}
	if cfg.Nudge.LowFocusHold <= 0 {
		cfg.Nudge.LowFocusHold = def.Nudge.LowFocusHold
	}
	if cfg.Nudge.LowFocus <= 0 {
		cfg.Nudge.LowFocus = def.Nudge.LowFocus
	}
	if cfg.Publish.KeyPrefix == "" {
		cfg.Publish.KeyPrefix = def.Publish.KeyPrefix
	}
	if cfg.Publish.TTL <= 0 {
		cfg.Publish.TTL = def.Publish.TTL
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Ingest.TCPStream.Enabled && cfg.Ingest.TCPStream.Addr == "" {
		return errors.New("ingest.tcp_stream.addr required when ingest.tcp_stream.enabled is true")
	}
	if cfg.Ingest.WebSocket.Enabled && cfg.Ingest.WebSocket.Addr == "" {
		return errors.New("ingest.websocket.addr required when ingest.websocket.enabled is true")
	}
	if cfg.Ingest.MQTT.Enabled {
		if cfg.Ingest.MQTT.Broker == "" || cfg.Ingest.MQTT.Topic == "" {
			return errors.New("ingest.mqtt requires broker and topic")
		}
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Publish.Enabled && cfg.Publish.Addr == "" {
		return errors.New("publish.addr required when publish.enabled is true")
	}
	if cfg.Calibration.MinSamples > cfg.Calibration.TargetSamples {
		return fmt.Errorf("calibration.min_samples (%d) exceeds target_samples (%d)",
			cfg.Calibration.MinSamples, cfg.Calibration.TargetSamples)
	}
	if cfg.Stabilizer.CloseRatio >= cfg.Stabilizer.P70Ratio {
		return errors.New("stabilizer.close_ratio must be below p70_ratio")
	}
	if cfg.Classifier.FocusDefault < cfg.Classifier.FocusMin || cfg.Classifier.FocusDefault > cfg.Classifier.FocusMax {
		return errors.New("classifier.focus_default outside [focus_min, focus_max]")
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps a fixed config with no backing file, for
// callers that run without one.
func NewStaticManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	applyDefaults(cfg)
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if m.path != "" {
		if err := Save(m.path, cfg); err != nil {
			return err
		}
		if info, err := os.Stat(m.path); err == nil {
			m.modTime = info.ModTime()
		}
	}
	m.cfg.Store(cfg)
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
