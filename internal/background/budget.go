package background

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sensitive-scanner/internal/logging"
	"sensitive-scanner/internal/metrics"
)

// Budget is the execution-budget contract a scan runs under. Begin is
// called once with the total unit count before work starts, Tick once
// per completed unit, and Finish exactly once when the session
// concludes. The budget signals expiration through the callback given
// at construction; the caller wires that to the session's Cancel.
type Budget interface {
	Begin(total int64)
	Tick()
	Finish(success bool)
}

// Unlimited is a Budget that never expires.
type Unlimited struct{}

func (Unlimited) Begin(int64) {}
func (Unlimited) Tick()       {}
func (Unlimited) Finish(bool) {}

// TimeBudget caps a scan's wall-clock run time. When the deadline passes
// before Finish, the expiration callback fires once.
type TimeBudget struct {
	limit    time.Duration
	onExpire func()

	mu     sync.Mutex
	cancel context.CancelFunc

	total      atomic.Int64
	completed  atomic.Int64
	finishOnce sync.Once
	expired    atomic.Bool
}

// NewTimeBudget creates a budget expiring limit after Begin. onExpire
// runs at most once, from the budget's own goroutine.
func NewTimeBudget(limit time.Duration, onExpire func()) *TimeBudget {
	return &TimeBudget{limit: limit, onExpire: onExpire}
}

// Begin starts the expiration clock.
func (b *TimeBudget) Begin(total int64) {
	b.total.Store(total)
	b.completed.Store(0)

	ctx, cancel := context.WithTimeout(context.Background(), b.limit)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		if ctx.Err() != context.DeadlineExceeded {
			return
		}
		b.expired.Store(true)
		metrics.BudgetExpirationsTotal.Inc()
		logging.Warn("Execution budget expired after %v with %d/%d units completed",
			b.limit, b.completed.Load(), b.total.Load())
		if b.onExpire != nil {
			b.onExpire()
		}
	}()
}

// Tick records one completed unit of work.
func (b *TimeBudget) Tick() {
	b.completed.Add(1)
	metrics.BudgetUnitsCompleted.Inc()
}

// Finish stops the clock. Calls after the first are no-ops.
func (b *TimeBudget) Finish(success bool) {
	b.finishOnce.Do(func() {
		b.mu.Lock()
		cancel := b.cancel
		b.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		logging.Debug("Execution budget finished (success=%v, %d/%d units)",
			success, b.completed.Load(), b.total.Load())
	})
}

// Expired reports whether the budget ran out before Finish.
func (b *TimeBudget) Expired() bool {
	return b.expired.Load()
}

// Completed returns the number of units recorded so far.
func (b *TimeBudget) Completed() int64 {
	return b.completed.Load()
}
