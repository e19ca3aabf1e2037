package redis

import (
	"context"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
)

// RoomStore decorates the in-memory room store with best-effort liveness
// markers in Redis. Live rooms stay in-process (broadcast and per-session
// locking remain local); the keys let operators see active rooms and could
// back a cross-instance pub/sub projector later.
type RoomStore struct {
	inner  *memory.RoomStore
	client *redis.Client
	ttl    time.Duration
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		inner:  memory.NewRoomStore(),
		client: client,
		ttl:    ttl,
	}
}

func (s *RoomStore) Create(session *domain.LiveSession) error {
	if err := s.inner.Create(session); err != nil {
		return err
	}
	_ = s.client.Set(context.Background(), s.key(session.ID), string(session.Status), s.ttl).Err()
	return nil
}

func (s *RoomStore) Get(sessionID string) (*domain.LiveSession, error) {
	return s.inner.Get(sessionID)
}

func (s *RoomStore) Mutate(sessionID string, fn func(*domain.LiveSession) error) error {
	var status domain.Status
	err := s.inner.Mutate(sessionID, func(session *domain.LiveSession) error {
		if err := fn(session); err != nil {
			return err
		}
		status = session.Status
		return nil
	})
	if err != nil {
		return err
	}
	_ = s.client.Set(context.Background(), s.key(sessionID), string(status), s.ttl).Err()
	return nil
}

func (s *RoomStore) Remove(sessionID string) {
	s.inner.Remove(sessionID)
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

func (s *RoomStore) ListActive() []*domain.LiveSession {
	return s.inner.ListActive()
}

func (s *RoomStore) key(sessionID string) string {
	return "live:session:" + sessionID
}
