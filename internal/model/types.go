package model

import "time"

// Emotion is the closed set of expression channels the perception
// subsystem reports. Probabilities are independent and do not sum to 1.
type Emotion int

const (
	EmotionNeutral Emotion = iota
	EmotionHappy
	EmotionSad
	EmotionAngry
	EmotionFearful
	EmotionDisgusted
	EmotionSurprised
	EmotionCount
)

var emotionNames = [EmotionCount]string{
	"neutral", "happy", "sad", "angry", "fearful", "disgusted", "surprised",
}

func (e Emotion) String() string {
	if e < 0 || e >= EmotionCount {
		return "unknown"
	}
	return emotionNames[e]
}

func ParseEmotion(name string) (Emotion, bool) {
	for i, n := range emotionNames {
		if n == name {
			return Emotion(i), true
		}
	}
	return 0, false
}

// ExpressionMap holds one probability per emotion channel, indexed by Emotion.
type ExpressionMap [EmotionCount]float64

// Negative sums the sad/angry/fearful/disgusted channels.
func (m ExpressionMap) Negative() float64 {
	return m[EmotionSad] + m[EmotionAngry] + m[EmotionFearful] + m[EmotionDisgusted]
}

// Sum is the total probability mass across all channels.
func (m ExpressionMap) Sum() float64 {
	total := 0.0
	for _, v := range m {
		total += v
	}
	return total
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pose is head orientation in degrees.
type Pose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// Quality is the detector's confidence proxy for a frame.
type Quality struct {
	Reliable      bool    `json:"reliable"`
	Score         float64 `json:"score"`
	FaceAreaRatio float64 `json:"face_area_ratio"`
	Centeredness  float64 `json:"centeredness"`
}

// EyeLandmarks carries the 6 boundary landmarks per eye used for EAR.
// Index 0 and 3 are the horizontal corners, 1/2 the upper lid, 4/5 the lower.
type EyeLandmarks struct {
	Left  [6]Point `json:"left"`
	Right [6]Point `json:"right"`
}

// FacialSample is one per-frame observation from the perception
// subsystem, delivered at roughly 5 Hz. BlinkRate and EyeState are
// filled in by the stabilizer, not by the producer.
type FacialSample struct {
	Timestamp    time.Time     `json:"timestamp"`
	Expressions  ExpressionMap `json:"expressions"`
	Gaze         Point         `json:"gaze"`
	HeadPose     Pose          `json:"head_pose"`
	Eyes         EyeLandmarks  `json:"eyes"`
	BlinkRate    float64       `json:"blink_rate"`
	Quality      Quality       `json:"quality"`
	PhoneInFrame *bool         `json:"phone_in_frame,omitempty"`
	EyeState     EyeState      `json:"eye_state"`
}

// EyeState is recomputed every sample by the stabilizer.
type EyeState struct {
	EARAvg          float64 `json:"ear_avg"`
	EyesClosed      bool    `json:"eyes_closed"`
	ClosureMs       int64   `json:"eye_closure_duration_ms"`
	Perclos         float64 `json:"perclos"`
	SlowBlinkCount  int     `json:"slow_blink_count"`
	MicrosleepCount int     `json:"microsleep_count"`
}

// Baseline is the per-user reference built during calibration. It is
// immutable once finished; a recalibration replaces it wholesale.
type Baseline struct {
	Gaze        Point         `json:"gaze"`
	HeadPose    Pose          `json:"head_pose"`
	BlinkRate   float64       `json:"blink_rate"`
	Expressions ExpressionMap `json:"expressions"`
	Samples     int           `json:"samples"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
}

type AttentionZone string

const (
	ZoneOnScreen  AttentionZone = "on_screen"
	ZoneOffScreen AttentionZone = "off_screen"
	ZonePhoneLike AttentionZone = "phone_like"
	ZoneSideLike  AttentionZone = "side_like"
	ZoneUncertain AttentionZone = "uncertain"
)

// AttentionState is the debounced attention classification plus the
// raw signals that produced it.
type AttentionState struct {
	Classification AttentionZone `json:"classification"`
	OnScreen       bool          `json:"on_screen"`
	OffScreenMs    int64         `json:"off_screen_ms"`
	PhoneLooking   bool          `json:"phone_looking"`
	SideLooking    bool          `json:"side_looking"`
	QualityScore   float64       `json:"quality_score"`
	Reliable       bool          `json:"reliable"`
}

type CognitiveState string

const (
	StateDeepFocus  CognitiveState = "deep_focus"
	StateFocus      CognitiveState = "focus"
	StateNormal     CognitiveState = "normal"
	StateDistracted CognitiveState = "distracted"
	StateStressed   CognitiveState = "stressed"
	StateTired      CognitiveState = "tired"
	StateDrowsy     CognitiveState = "drowsy"
)

type Alerts struct {
	HighStress          bool `json:"high_stress"`
	HighFatigue         bool `json:"high_fatigue"`
	PoorPosture         bool `json:"poor_posture"`
	FrequentDistraction bool `json:"frequent_distraction"`
	EyesClosed          bool `json:"eyes_closed"`
	Microsleep          bool `json:"microsleep"`
}

// CognitiveMetrics is the classifier output for one sample. Scores are
// integers in [0,100] and Distraction is always 100-Focus.
type CognitiveMetrics struct {
	Timestamp     time.Time      `json:"timestamp"`
	Focus         int            `json:"focus"`
	Stress        int            `json:"stress"`
	Fatigue       int            `json:"fatigue"`
	Distraction   int            `json:"distraction"`
	DominantState CognitiveState `json:"dominant_state"`
	Confidence    float64        `json:"confidence"`
	Attention     AttentionState `json:"attention"`
	Alerts        Alerts         `json:"alerts"`
}

type Level string

const (
	LevelLow    Level = "low"
	LevelNormal Level = "normal"
	LevelHigh   Level = "high"
)

type SmoothedScores struct {
	Focus       float64 `json:"focus"`
	Stress      float64 `json:"stress"`
	Fatigue     float64 `json:"fatigue"`
	Distraction float64 `json:"distraction"`
}

type Levels struct {
	Focus       Level `json:"focus"`
	Stress      Level `json:"stress"`
	Fatigue     Level `json:"fatigue"`
	Distraction Level `json:"distraction"`
}

// Nudge is a notification decision. Playback is the consumer's problem.
type Nudge struct {
	Timestamp time.Time         `json:"timestamp"`
	SessionID string            `json:"session_id"`
	Kind      string            `json:"kind"`
	Severity  string            `json:"severity"`
	Message   string            `json:"message"`
	Attention AttentionZone     `json:"attention"`
	Context   map[string]string `json:"context,omitempty"`
}

// CalibrationStatus mirrors the calibrator's progress for consumers.
type CalibrationStatus struct {
	Active           bool    `json:"active"`
	Progress         float64 `json:"progress"`
	SecondsRemaining float64 `json:"seconds_remaining"`
	Samples          int     `json:"samples"`
	Message          string  `json:"message,omitempty"`
}

// Output is the per-frame envelope published to consumers: the raw
// classification plus the smoothed scores and coarse levels.
type Output struct {
	SessionID   string            `json:"session_id"`
	Timestamp   time.Time         `json:"timestamp"`
	Metrics     CognitiveMetrics  `json:"metrics"`
	Smoothed    SmoothedScores    `json:"smoothed"`
	Levels      Levels            `json:"levels"`
	Calibration CalibrationStatus `json:"calibration"`
}

// SessionSummary is the durable digest of a monitoring session.
type SessionSummary struct {
	SessionID     string                     `json:"session_id"`
	StartedAt     time.Time                  `json:"started_at"`
	EndedAt       time.Time                  `json:"ended_at"`
	Samples       int                        `json:"samples"`
	AvgFocus      float64                    `json:"avg_focus"`
	AvgStress     float64                    `json:"avg_stress"`
	AvgFatigue    float64                    `json:"avg_fatigue"`
	AvgConfidence float64                    `json:"avg_confidence"`
	StateShare    map[CognitiveState]float64 `json:"state_share"`
	Interruptions int                        `json:"interruptions"`
	FocusPeriods  int                        `json:"focus_periods"`
	Nudges        int                        `json:"nudges"`
}
