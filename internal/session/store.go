package session

import "sync"

// Store holds the current session id.
type Store interface {
	SessionID() (string, bool)
	SetSessionID(id string)
	Clear()
}

// MemoryStore keeps the session id in memory.
type MemoryStore struct {
	mu sync.RWMutex
	id string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SessionID returns the current session id and whether one is set.
func (s *MemoryStore) SessionID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.id != ""
}

// SetSessionID replaces the current session id.
func (s *MemoryStore) SetSessionID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

// Clear removes the current session id.
func (s *MemoryStore) Clear() {
	s.SetSessionID("")
}
