// Package alerts keeps the recent nudge history in memory for the API.
package alerts

import (
	"sync"
	"time"

	"cogsense/internal/model"
)

type Store struct {
	mu    sync.RWMutex
	buf   []model.Nudge
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit}
}

func (s *Store) Add(n model.Nudge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, n)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = n
}

func (s *Store) List(limit int) []model.Nudge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.Nudge, 0, limit)
	start := len(s.buf) - limit
	if start < 0 {
		start = 0
	}
	for i := start; i < len(s.buf); i++ {
		out = append(out, s.buf[i])
	}
	return out
}

func (s *Store) Since(ts time.Time) []model.Nudge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Nudge, 0)
	for _, n := range s.buf {
		if !n.Timestamp.Before(ts) {
			out = append(out, n)
		}
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
