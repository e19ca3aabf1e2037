package memory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func waitingSession(id string) *domain.LiveSession {
	return &domain.LiveSession{
		ID:              id,
		AdminID:         "admin",
		Status:          domain.StatusWaiting,
		CreatedAt:       time.Now(),
		CurrentQuestion: -1,
	}
}

func TestCreateRejectsSecondWaitingSession(t *testing.T) {
	store := NewRoomStore()

	if err := store.Create(waitingSession("s1")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := store.Create(waitingSession("s2"))
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestConcurrentCreatesAdmitExactlyOne(t *testing.T) {
	store := NewRoomStore()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Create(waitingSession(string(rune('a' + i))))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if domain.KindOf(err) != domain.KindConflict {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one create to win, got %d", succeeded)
	}
}

func TestMutateSerializesPerSession(t *testing.T) {
	store := NewRoomStore()
	session := waitingSession("s1")
	if err := store.Create(session); err != nil {
		t.Fatalf("create: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Mutate("s1", func(s *domain.LiveSession) error {
				s.CurrentQuestion++
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CurrentQuestion != n-1 {
		t.Fatalf("expected %d increments, got %d", n, got.CurrentQuestion+1)
	}
}

func TestMutateMissingSession(t *testing.T) {
	store := NewRoomStore()
	err := store.Mutate("nope", func(*domain.LiveSession) error { return nil })
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetReturnsDetachedClone(t *testing.T) {
	store := NewRoomStore()
	if err := store.Create(waitingSession("s1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	snapshot, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	snapshot.Status = domain.StatusCancelled

	again, _ := store.Get("s1")
	if again.Status != domain.StatusWaiting {
		t.Fatalf("clone mutation leaked into the store")
	}
}

func TestListActiveSkipsTerminalSessions(t *testing.T) {
	store := NewRoomStore()
	session := waitingSession("s1")
	if err := store.Create(session); err != nil {
		t.Fatalf("create: %v", err)
	}

	if got := len(store.ListActive()); got != 1 {
		t.Fatalf("expected 1 active session, got %d", got)
	}

	if err := store.Mutate("s1", func(s *domain.LiveSession) error {
		s.Status = domain.StatusCancelled
		return nil
	}); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if got := len(store.ListActive()); got != 0 {
		t.Fatalf("expected no active sessions, got %d", got)
	}
}

func TestMutateErrorPropagates(t *testing.T) {
	store := NewRoomStore()
	if err := store.Create(waitingSession("s1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	if err := store.Mutate("s1", func(*domain.LiveSession) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fn error back, got %v", err)
	}
}
