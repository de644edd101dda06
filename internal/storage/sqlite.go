package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"cogsense/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:cogsense.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session_summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			samples INTEGER NOT NULL,
			avg_focus REAL NOT NULL,
			avg_stress REAL NOT NULL,
			avg_fatigue REAL NOT NULL,
			avg_confidence REAL NOT NULL,
			interruptions INTEGER NOT NULL,
			focus_periods INTEGER NOT NULL,
			nudges INTEGER NOT NULL,
			state_share_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_summaries_session ON session_summaries(session_id)`,
		`CREATE TABLE IF NOT EXISTS metrics_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			session_id TEXT NOT NULL,
			focus INTEGER NOT NULL,
			stress INTEGER NOT NULL,
			fatigue INTEGER NOT NULL,
			distraction INTEGER NOT NULL,
			dominant_state TEXT NOT NULL,
			confidence REAL NOT NULL,
			attention TEXT NOT NULL,
			smoothed_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_session_ts ON metrics_samples(session_id, ts)`,
		`CREATE TABLE IF NOT EXISTS nudges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			attention TEXT NOT NULL,
			context_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nudges_ts ON nudges(ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveSummary(ctx context.Context, sum model.SessionSummary) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_summaries (session_id, started_at, ended_at, samples, avg_focus, avg_stress, avg_fatigue, avg_confidence, interruptions, focus_periods, nudges, state_share_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.SessionID,
		sum.StartedAt.UTC(),
		sum.EndedAt.UTC(),
		sum.Samples,
		sum.AvgFocus,
		sum.AvgStress,
		sum.AvgFatigue,
		sum.AvgConfidence,
		sum.Interruptions,
		sum.FocusPeriods,
		sum.Nudges,
		encodeJSON(sum.StateShare),
	)
	return err
}

func (s *sqliteStore) SaveMetricsSample(ctx context.Context, out model.Output) error {
	if s.db == nil || out.SessionID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	m := out.Metrics
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metrics_samples (ts, session_id, focus, stress, fatigue, distraction, dominant_state, confidence, attention, smoothed_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nowUTC(),
		out.SessionID,
		m.Focus,
		m.Stress,
		m.Fatigue,
		m.Distraction,
		string(m.DominantState),
		m.Confidence,
		string(m.Attention.Classification),
		encodeJSON(out.Smoothed),
	)
	return err
}

func (s *sqliteStore) SaveNudge(ctx context.Context, n model.Nudge) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nudges (ts, session_id, kind, severity, message, attention, context_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.Timestamp.UTC(),
		n.SessionID,
		n.Kind,
		n.Severity,
		n.Message,
		string(n.Attention),
		encodeJSON(n.Context),
	)
	return err
}
