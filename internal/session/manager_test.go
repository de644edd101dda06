package session

import (
	"testing"
	"time"

	"cogsense/internal/alerts"
	"cogsense/internal/config"
	"cogsense/internal/metrics"
	"cogsense/internal/nudge"
)

func newTestManager(cfg *config.Config) (*Manager, *metrics.Store, *alerts.Store) {
	metricsStore := metrics.NewStore(cfg.Metrics.StoreLimit)
	nudgeStore := alerts.NewStore(cfg.Alerts.StoreLimit)
	policy := nudge.NewPolicy(cfg.Nudge)
	m := NewManager(cfg, nil, metricsStore, nudgeStore, nil, nil, policy)
	return m, metricsStore, nudgeStore
}

func TestManagerRoutesByKey(t *testing.T) {
	cfg := config.DefaultConfig()
	m, metricsStore, _ := newTestManager(cfg)
	now := time.Unix(1000, 0)

	out1, ok := m.HandleSample("desk-1", cleanSample(now), now)
	if !ok {
		t.Fatalf("sample dropped")
	}
	out2, ok := m.HandleSample("desk-2", cleanSample(now), now)
	if !ok {
		t.Fatalf("sample dropped")
	}
	if out1.SessionID == out2.SessionID {
		t.Fatalf("distinct keys shared a session")
	}
	if len(m.Sessions()) != 2 {
		t.Fatalf("live sessions = %d", len(m.Sessions()))
	}
	if _, _, found := metricsStore.Get(out1.SessionID); !found {
		t.Fatalf("metrics store missing session %s", out1.SessionID)
	}
}

func TestManagerEmitsNudges(t *testing.T) {
	cfg := config.DefaultConfig()
	m, _, nudgeStore := newTestManager(cfg)
	now := time.Unix(1000, 0)

	for i := 0; i < 10; i++ {
		now = now.Add(200 * time.Millisecond)
		m.HandleSample("desk-1", cleanSample(now), now)
	}
	for i := 0; i < 25; i++ {
		now = now.Add(200 * time.Millisecond)
		s := cleanSample(now)
		s.Eyes = eyesWithEAR(0.05)
		m.HandleSample("desk-1", s, now)
	}

	list := nudgeStore.List(0)
	if len(list) == 0 {
		t.Fatalf("no nudges recorded")
	}
	found := false
	for _, n := range list {
		if n.Kind == nudge.KindMicrosleep {
			found = true
		}
	}
	if !found {
		t.Fatalf("microsleep nudge missing: %+v", list)
	}

	sum, ok := m.Close("desk-1", now)
	if !ok {
		t.Fatalf("close failed")
	}
	if sum.Nudges == 0 {
		t.Fatalf("summary did not count nudges")
	}
}

func TestManagerCloseFinalizesSummary(t *testing.T) {
	cfg := config.DefaultConfig()
	m, _, _ := newTestManager(cfg)
	now := time.Unix(1000, 0)

	for i := 0; i < 5; i++ {
		now = now.Add(200 * time.Millisecond)
		m.HandleSample("desk-1", cleanSample(now), now)
	}
	sum, ok := m.Close("desk-1", now)
	if !ok || sum.Samples != 5 {
		t.Fatalf("summary = %+v, ok=%v", sum, ok)
	}
	if _, ok := m.Close("desk-1", now); ok {
		t.Fatalf("second close should miss")
	}
	if len(m.Sessions()) != 0 {
		t.Fatalf("session survived close")
	}
}

func TestManagerRecalibrateByID(t *testing.T) {
	cfg := config.DefaultConfig()
	m, _, _ := newTestManager(cfg)
	now := time.Unix(1000, 0)

	out, _ := m.HandleSample("desk-1", cleanSample(now), now)
	if !m.Recalibrate(out.SessionID, now) {
		t.Fatalf("recalibrate missed live session")
	}
	if m.Recalibrate("no-such-id", now) {
		t.Fatalf("recalibrate hit unknown session")
	}
}

func TestManagerCloseAll(t *testing.T) {
	cfg := config.DefaultConfig()
	m, _, _ := newTestManager(cfg)
	now := time.Unix(1000, 0)

	m.HandleSample("a", cleanSample(now), now)
	m.HandleSample("b", cleanSample(now), now)
	sums := m.CloseAll(now)
	if len(sums) != 2 {
		t.Fatalf("summaries = %d", len(sums))
	}
	if len(m.Sessions()) != 0 {
		t.Fatalf("sessions survived CloseAll")
	}
}
