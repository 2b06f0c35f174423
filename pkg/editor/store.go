package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store keeps the live sessions of a server.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Put adds s.
func (st *Store) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

// Get looks a session up by id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Delete closes and removes a session. It reports whether the id was known.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		_ = s.Close()
	}
	return ok
}

// Len is the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *Store) snapshot() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}

// ReloadAssets re-runs LoadAssets on every session after a media update.
func (st *Store) ReloadAssets(ctx context.Context, log *slog.Logger) {
	for _, s := range st.snapshot() {
		if err := s.LoadAssets(ctx); err != nil {
			log.Warn("reload assets", slog.String("session", s.ID), slog.Any("error", err))
		}
	}
}

// Reap closes sessions idle for longer than ttl and returns how many were removed.
func (st *Store) Reap(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	n := 0
	for _, s := range st.snapshot() {
		if s.LastUsed().Before(cutoff) && st.Delete(s.ID) {
			n++
		}
	}
	return n
}

// CloseAll closes every session.
func (st *Store) CloseAll() {
	for _, s := range st.snapshot() {
		st.Delete(s.ID)
	}
}
