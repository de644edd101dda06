package ingest

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"cogsense/internal/model"
)

var (
	errNoEyes       = errors.New("missing or degenerate eye landmarks")
	errBadValue     = errors.New("non-finite value in sample")
	errBadTimestamp = errors.New("unparseable timestamp")
)

// flexTime accepts either an RFC3339 string or a unix epoch in
// milliseconds, which is what browser-side producers typically send.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return errBadTimestamp
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return errBadTimestamp
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

type wirePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type wireSample struct {
	SessionKey  string             `json:"session_key"`
	Timestamp   flexTime           `json:"timestamp"`
	Expressions map[string]float64 `json:"expressions"`
	Gaze        wirePoint          `json:"gaze"`
	HeadPose    struct {
		Yaw   float64 `json:"yaw"`
		Pitch float64 `json:"pitch"`
		Roll  float64 `json:"roll"`
	} `json:"head_pose"`
	Eyes struct {
		Left  []wirePoint `json:"left"`
		Right []wirePoint `json:"right"`
	} `json:"eyes"`
	Quality struct {
		Reliable      bool    `json:"reliable"`
		Score         float64 `json:"score"`
		FaceAreaRatio float64 `json:"face_area_ratio"`
		Centeredness  float64 `json:"centeredness"`
	} `json:"quality"`
	PhoneInFrame *bool `json:"phone_in_frame"`
}

// DecodeSample parses and validates one wire sample. Unknown expression
// names are ignored; probabilities are clamped to [0,1]; any non-finite
// number rejects the whole sample.
func DecodeSample(data []byte) (Envelope, error) {
	var w wireSample
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, err
	}
	return w.toEnvelope()
}

// DecodeBatch accepts either a single sample object or an array of
// them.
func DecodeBatch(data []byte) ([]Envelope, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '[' {
		var list []wireSample
		if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
			return nil, err
		}
		out := make([]Envelope, 0, len(list))
		for _, w := range list {
			env, err := w.toEnvelope()
			if err != nil {
				continue
			}
			out = append(out, env)
		}
		return out, nil
	}
	env, err := DecodeSample([]byte(trimmed))
	if err != nil {
		return nil, err
	}
	return []Envelope{env}, nil
}

func (w wireSample) toEnvelope() (Envelope, error) {
	s := model.FacialSample{
		Timestamp: w.Timestamp.Time,
		Gaze:      model.Point{X: w.Gaze.X, Y: w.Gaze.Y},
		HeadPose:  model.Pose{Yaw: w.HeadPose.Yaw, Pitch: w.HeadPose.Pitch, Roll: w.HeadPose.Roll},
		Quality: model.Quality{
			Reliable:      w.Quality.Reliable,
			Score:         clamp01(w.Quality.Score),
			FaceAreaRatio: clamp01(w.Quality.FaceAreaRatio),
			Centeredness:  clamp01(w.Quality.Centeredness),
		},
		PhoneInFrame: w.PhoneInFrame,
	}
	for name, v := range w.Expressions {
		e, ok := model.ParseEmotion(strings.ToLower(name))
		if !ok {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Envelope{}, errBadValue
		}
		s.Expressions[e] = clamp01(v)
	}
	if !finite(s.Gaze.X, s.Gaze.Y, s.HeadPose.Yaw, s.HeadPose.Pitch, s.HeadPose.Roll, s.Quality.Score) {
		return Envelope{}, errBadValue
	}
	var err error
	s.Eyes.Left, err = eyePoints(w.Eyes.Left)
	if err != nil {
		return Envelope{}, err
	}
	s.Eyes.Right, err = eyePoints(w.Eyes.Right)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Key: w.SessionKey, Sample: s}, nil
}

// eyePoints requires exactly 6 landmarks with a nonzero horizontal
// span; a sample without usable eyes cannot drive the blink machine.
func eyePoints(pts []wirePoint) ([6]model.Point, error) {
	var out [6]model.Point
	if len(pts) != 6 {
		return out, errNoEyes
	}
	for i, p := range pts {
		if !finite(p.X, p.Y) {
			return out, errBadValue
		}
		out[i] = model.Point{X: p.X, Y: p.Y}
	}
	if out[0] == out[3] {
		return out, errNoEyes
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
