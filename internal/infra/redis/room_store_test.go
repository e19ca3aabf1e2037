package redis

import (
	"testing"
	"time"

	"live-quiz-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRoomStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRoomStore(client, time.Minute)

	session := &domain.LiveSession{ID: "s1", AdminID: "admin", Status: domain.StatusWaiting, CurrentQuestion: -1}
	if err := store.Create(session); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("live:session:s1") {
		t.Fatalf("expected liveness key to be set")
	}

	if err := store.Mutate("s1", func(s *domain.LiveSession) error {
		s.Status = domain.StatusInProgress
		return nil
	}); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if got, _ := mr.Get("live:session:s1"); got != string(domain.StatusInProgress) {
		t.Fatalf("expected marker to track status, got %q", got)
	}

	store.Remove("s1")
	if mr.Exists("live:session:s1") {
		t.Fatalf("expected liveness key to be removed")
	}
}
