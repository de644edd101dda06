package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"cogsense/internal/alerts"
	"cogsense/internal/config"
	"cogsense/internal/ingest"
	"cogsense/internal/metrics"
	"cogsense/internal/model"
	"cogsense/internal/nudge"
	"cogsense/internal/publish"
	"cogsense/internal/storage"
)

// Manager is the concurrent front door: it routes keyed samples to
// their sessions, fans results out to the metrics store, the realtime
// publisher, the nudge policy and durable storage.
type Manager struct {
	logger  *slog.Logger
	metrics *metrics.Store
	nudges  *alerts.Store
	store   storage.Store
	pub     *publish.Publisher
	policy  *nudge.Policy

	cfg     atomic.Value
	started time.Time

	mu          sync.Mutex
	sessions    map[string]*Session
	lastPersist map[string]time.Time
}

func NewManager(cfg *config.Config, logger *slog.Logger, metricsStore *metrics.Store, nudgeStore *alerts.Store, store storage.Store, pub *publish.Publisher, policy *nudge.Policy) *Manager {
	m := &Manager{
		logger:      logger,
		metrics:     metricsStore,
		nudges:      nudgeStore,
		store:       store,
		pub:         pub,
		policy:      policy,
		started:     time.Now().UTC(),
		sessions:    make(map[string]*Session),
		lastPersist: make(map[string]time.Time),
	}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) UpdateConfig(cfg *config.Config) {
	m.cfg.Store(cfg)
	if m.policy != nil {
		m.policy.UpdateConfig(cfg.Nudge)
	}
}

func (m *Manager) config() *config.Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

func (m *Manager) Started() time.Time {
	return m.started
}

// Start consumes the ingest channel until the context is cancelled,
// then closes out every live session.
func (m *Manager) Start(ctx context.Context, in <-chan ingest.Envelope) {
	go func() {
		for {
			select {
			case env := <-in:
				m.HandleSample(env.Key, env.Sample, time.Now().UTC())
			case <-ctx.Done():
				m.CloseAll(time.Now().UTC())
				return
			}
		}
	}()
}

// HandleSample processes one sample for the session keyed by key,
// creating the session on first sight.
func (m *Manager) HandleSample(key string, sample model.FacialSample, now time.Time) (model.Output, bool) {
	sess := m.session(key, now)
	out, ok := sess.Process(sample, now)
	if !ok {
		return model.Output{}, false
	}

	m.metrics.Update(sess.ID, out)

	if m.policy != nil {
		fired := m.policy.Evaluate(sess.ID, out.Metrics, now)
		if len(fired) > 0 {
			sess.RecordNudges(len(fired))
			for _, n := range fired {
				m.nudges.Add(n)
				if m.logger != nil {
					m.logger.Warn("nudge",
						"session_id", n.SessionID,
						"kind", n.Kind,
						"severity", n.Severity,
						"attention", string(n.Attention),
					)
				}
				if m.store != nil {
					_ = m.store.SaveNudge(context.Background(), n)
				}
			}
		}
	}

	if m.pub != nil {
		if err := m.pub.Publish(context.Background(), out); err != nil && m.logger != nil {
			m.logger.Warn("realtime publish failed", "error", err)
		}
	}

	m.persistSample(key, out, now)
	return out, true
}

func (m *Manager) persistSample(key string, out model.Output, now time.Time) {
	if m.store == nil {
		return
	}
	every := m.config().Session.SampleEvery
	m.mu.Lock()
	last, ok := m.lastPersist[key]
	due := !ok || now.Sub(last) >= every
	if due {
		m.lastPersist[key] = now
	}
	m.mu.Unlock()
	if due {
		_ = m.store.SaveMetricsSample(context.Background(), out)
	}
}

func (m *Manager) session(key string, now time.Time) *Session {
	if key == "" {
		key = "default"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s
	}
	s := NewSession(m.config(), m.logger, now)
	m.sessions[key] = s
	if m.logger != nil {
		m.logger.Info("session started", "session_id", s.ID, "key", key)
	}
	return s
}

// Lookup finds a live session by its ID.
func (m *Manager) Lookup(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == sessionID {
			return s, true
		}
	}
	return nil, false
}

// Sessions snapshots the live sessions.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Recalibrate restarts calibration for one session by ID.
func (m *Manager) Recalibrate(sessionID string, now time.Time) bool {
	s, ok := m.Lookup(sessionID)
	if !ok {
		return false
	}
	s.Recalibrate(now)
	if m.logger != nil {
		m.logger.Info("recalibration requested", "session_id", sessionID)
	}
	return true
}

// Close finalizes the session for key: the summary is persisted and the
// per-session debounce state is dropped.
func (m *Manager) Close(key string, now time.Time) (model.SessionSummary, bool) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
		delete(m.lastPersist, key)
	}
	m.mu.Unlock()
	if !ok {
		return model.SessionSummary{}, false
	}
	return m.finalize(s, now), true
}

// CloseAll finalizes every live session. Called on shutdown.
func (m *Manager) CloseAll(now time.Time) []model.SessionSummary {
	m.mu.Lock()
	live := m.sessions
	m.sessions = make(map[string]*Session)
	m.lastPersist = make(map[string]time.Time)
	m.mu.Unlock()

	out := make([]model.SessionSummary, 0, len(live))
	for _, s := range live {
		out = append(out, m.finalize(s, now))
	}
	return out
}

func (m *Manager) finalize(s *Session, now time.Time) model.SessionSummary {
	sum := s.Summary(now)
	if m.policy != nil {
		m.policy.Forget(s.ID)
	}
	if m.store != nil {
		_ = m.store.SaveSummary(context.Background(), sum)
	}
	if m.logger != nil {
		m.logger.Info("session closed",
			"session_id", sum.SessionID,
			"samples", sum.Samples,
			"avg_focus", sum.AvgFocus,
			"interruptions", sum.Interruptions,
		)
	}
	return sum
}

// Reset drops all live sessions without persisting summaries. Used by
// the admin clear endpoint.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.sessions = make(map[string]*Session)
	m.lastPersist = make(map[string]time.Time)
	m.mu.Unlock()
}
