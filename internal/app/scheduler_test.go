package app

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerReplacesAndCancels(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired int32
	s.After("k", 5*time.Millisecond, func() { atomic.AddInt32(&fired, 100) })
	s.After("k", 5*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Fatalf("expected replacement task to fire once, got %d", got)
	}

	s.After("c", 5*time.Millisecond, func() { atomic.AddInt32(&fired, 100) })
	s.Cancel("c")
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Fatalf("cancelled task fired: %d", got)
	}
}

func TestSchedulerStopDropsPendingTasks(t *testing.T) {
	s := NewScheduler()

	var fired int32
	s.After("k", 5*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	s.Stop()
	s.After("late", time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Fatalf("expected no task to fire after stop, got %d", got)
	}
}
