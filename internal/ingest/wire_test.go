package ingest

import (
	"strings"
	"testing"
	"time"

	"cogsense/internal/model"
)

const eyesJSON = `{"left":[{"x":0,"y":0},{"x":0.3,"y":0.15},{"x":0.7,"y":0.15},{"x":1,"y":0},{"x":0.7,"y":-0.15},{"x":0.3,"y":-0.15}],
"right":[{"x":0,"y":0},{"x":0.3,"y":0.15},{"x":0.7,"y":0.15},{"x":1,"y":0},{"x":0.7,"y":-0.15},{"x":0.3,"y":-0.15}]}`

func sampleJSON(extra string) string {
	return `{"session_key":"desk-1","timestamp":"2026-08-25T10:00:00Z",
"expressions":{"neutral":0.8,"happy":0.1,"grimace":0.9},
"gaze":{"x":960,"y":540},
"head_pose":{"yaw":2,"pitch":-1,"roll":0},
"eyes":` + eyesJSON + `,
"quality":{"reliable":true,"score":0.9}` + extra + `}`
}

func TestDecodeSample(t *testing.T) {
	env, err := DecodeSample([]byte(sampleJSON("")))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if env.Key != "desk-1" {
		t.Fatalf("key: %s", env.Key)
	}
	s := env.Sample
	if s.Expressions[model.EmotionNeutral] != 0.8 || s.Expressions[model.EmotionHappy] != 0.1 {
		t.Fatalf("expressions: %+v", s.Expressions)
	}
	if s.Gaze.X != 960 || s.HeadPose.Pitch != -1 {
		t.Fatalf("gaze/pose mismatch")
	}
	if !s.Quality.Reliable || s.Quality.Score != 0.9 {
		t.Fatalf("quality: %+v", s.Quality)
	}
	if s.Eyes.Left[3].X != 1 {
		t.Fatalf("eye landmarks: %+v", s.Eyes.Left)
	}
	want := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	if !s.Timestamp.Equal(want) {
		t.Fatalf("timestamp: %v", s.Timestamp)
	}
}

func TestDecodeEpochMillisTimestamp(t *testing.T) {
	raw := strings.Replace(sampleJSON(""), `"2026-08-25T10:00:00Z"`, "1756116000000", 1)
	env, err := DecodeSample([]byte(raw))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if env.Sample.Timestamp.IsZero() {
		t.Fatalf("epoch millis timestamp not parsed")
	}
}

func TestDecodePhoneFlag(t *testing.T) {
	env, err := DecodeSample([]byte(sampleJSON(`,"phone_in_frame":true`)))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if env.Sample.PhoneInFrame == nil || !*env.Sample.PhoneInFrame {
		t.Fatalf("phone flag lost")
	}
	env, err = DecodeSample([]byte(sampleJSON("")))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if env.Sample.PhoneInFrame != nil {
		t.Fatalf("absent phone flag must stay nil")
	}
}

func TestDecodeClampsProbabilities(t *testing.T) {
	raw := strings.Replace(sampleJSON(""), `"neutral":0.8`, `"neutral":1.7`, 1)
	env, err := DecodeSample([]byte(raw))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if env.Sample.Expressions[model.EmotionNeutral] != 1 {
		t.Fatalf("probability not clamped: %f", env.Sample.Expressions[model.EmotionNeutral])
	}
}

func TestDecodeRejectsMissingEyes(t *testing.T) {
	raw := strings.Replace(sampleJSON(""), eyesJSON, `{"left":[],"right":[]}`, 1)
	if _, err := DecodeSample([]byte(raw)); err == nil {
		t.Fatalf("expected error for missing eyes")
	}
}

func TestDecodeRejectsDegenerateEyes(t *testing.T) {
	flat := `{"left":[{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0}],
"right":[{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0}]}`
	raw := strings.Replace(sampleJSON(""), eyesJSON, flat, 1)
	if _, err := DecodeSample([]byte(raw)); err == nil {
		t.Fatalf("expected error for zero-span eyes")
	}
}

func TestDecodeBatch(t *testing.T) {
	batch := "[" + sampleJSON("") + "," + sampleJSON("") + "]"
	envs, err := DecodeBatch([]byte(batch))
	if err != nil {
		t.Fatalf("batch decode error: %v", err)
	}
	if len(envs) != 2 {
		t.Fatalf("batch size: %d", len(envs))
	}
	envs, err = DecodeBatch([]byte(sampleJSON("")))
	if err != nil || len(envs) != 1 {
		t.Fatalf("single-object batch: %d, %v", len(envs), err)
	}
}

func TestDecodeBatchSkipsBadEntries(t *testing.T) {
	bad := strings.Replace(sampleJSON(""), eyesJSON, `{"left":[],"right":[]}`, 1)
	batch := "[" + sampleJSON("") + "," + bad + "]"
	envs, err := DecodeBatch([]byte(batch))
	if err != nil {
		t.Fatalf("batch decode error: %v", err)
	}
	if len(envs) != 1 {
		t.Fatalf("bad entry not skipped: %d", len(envs))
	}
}
