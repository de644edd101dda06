package metrics

import (
	"sync"
	"time"

	"cogsense/internal/model"
)

// Store keeps the latest output frame per session for the API surface.
type Store struct {
	mu        sync.RWMutex
	bySession map[string]model.Output
	updatedAt map[string]time.Time
	limit     int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 500
	}
	return &Store{
		bySession: make(map[string]model.Output),
		updatedAt: make(map[string]time.Time),
		limit:     limit,
	}
}

func (s *Store) Update(sessionID string, out model.Output) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySession[sessionID] = out
	s.updatedAt[sessionID] = time.Now().UTC()
	if len(s.bySession) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(sessionID string) (model.Output, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.bySession[sessionID]
	if !ok {
		return model.Output{}, time.Time{}, false
	}
	return out, s.updatedAt[sessionID], true
}

func (s *Store) GetAll() map[string]model.Output {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Output, len(s.bySession))
	for id, o := range s.bySession {
		out[id] = o
	}
	return out
}

func (s *Store) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, ts := range s.updatedAt {
		if oldestID == "" || ts.Before(oldest) {
			oldestID = id
			oldest = ts
		}
	}
	if oldestID != "" {
		delete(s.bySession, oldestID)
		delete(s.updatedAt, oldestID)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySession = make(map[string]model.Output)
	s.updatedAt = make(map[string]time.Time)
}
