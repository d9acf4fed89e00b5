package background

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimeBudgetExpires(t *testing.T) {
	t.Parallel()

	expired := make(chan struct{})
	b := NewTimeBudget(20*time.Millisecond, func() { close(expired) })

	b.Begin(10)
	b.Tick()
	b.Tick()

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("expiration callback never fired")
	}

	if !b.Expired() {
		t.Error("Expired() = false after expiration")
	}
	if got := b.Completed(); got != 2 {
		t.Errorf("Completed() = %d, want 2", got)
	}
}

func TestTimeBudgetFinishStopsClock(t *testing.T) {
	t.Parallel()

	var expirations atomic.Int64
	b := NewTimeBudget(30*time.Millisecond, func() { expirations.Add(1) })

	b.Begin(5)
	b.Finish(true)

	time.Sleep(80 * time.Millisecond)

	if got := expirations.Load(); got != 0 {
		t.Errorf("expiration fired %d times after Finish, want 0", got)
	}
	if b.Expired() {
		t.Error("finished budget reported as expired")
	}
}

func TestTimeBudgetFinishIsIdempotent(t *testing.T) {
	t.Parallel()

	b := NewTimeBudget(time.Minute, nil)
	b.Begin(1)
	b.Finish(true)
	b.Finish(false) // no-op, must not panic
}

func TestUnlimitedBudgetNeverExpires(t *testing.T) {
	t.Parallel()

	var b Budget = Unlimited{}
	b.Begin(100)
	for i := 0; i < 100; i++ {
		b.Tick()
	}
	b.Finish(true)
}
