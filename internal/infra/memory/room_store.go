package memory

import (
	"sync"

	"live-quiz-service/internal/domain"
)

// RoomStore is the in-memory implementation of app.RoomStore. Each session
// carries its own mutex so Mutate calls on different sessions run in
// parallel while calls on the same session serialize.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry
}

type roomEntry struct {
	mu      sync.Mutex
	session *domain.LiveSession
}

func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[string]*roomEntry)}
}

// Create stores a new session. At most one session may be Waiting at any
// time; a second concurrent create loses with a conflict.
func (s *RoomStore) Create(session *domain.LiveSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.rooms {
		entry.mu.Lock()
		waiting := entry.session.Status == domain.StatusWaiting
		entry.mu.Unlock()
		if waiting {
			return domain.Conflictf("another live quiz is already waiting for players")
		}
	}
	s.rooms[session.ID] = &roomEntry{session: session}
	return nil
}

// Get returns a clone of the session, detached from concurrent mutation.
func (s *RoomStore) Get(sessionID string) (*domain.LiveSession, error) {
	s.mu.RLock()
	entry, ok := s.rooms[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NotFoundf("live quiz %s not found", sessionID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), nil
}

// Mutate applies fn to the session under its lock. fn sees the live struct
// and may apply compound invariant-checking updates; returning an error
// leaves nothing half-applied only if fn itself mutates after its checks,
// which is the calling convention throughout the app layer.
func (s *RoomStore) Mutate(sessionID string, fn func(*domain.LiveSession) error) error {
	s.mu.RLock()
	entry, ok := s.rooms[sessionID]
	s.mu.RUnlock()
	if !ok {
		return domain.NotFoundf("live quiz %s not found", sessionID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.session)
}

// Remove drops the session. Removing an absent session is a no-op.
func (s *RoomStore) Remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, sessionID)
}

// ListActive returns clones of all Waiting and InProgress sessions.
func (s *RoomStore) ListActive() []*domain.LiveSession {
	s.mu.RLock()
	entries := make([]*roomEntry, 0, len(s.rooms))
	for _, entry := range s.rooms {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	var active []*domain.LiveSession
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.session.Status == domain.StatusWaiting || entry.session.Status == domain.StatusInProgress {
			active = append(active, entry.session.Clone())
		}
		entry.mu.Unlock()
	}
	return active
}
