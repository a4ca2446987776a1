package analyzer

import (
	"sync"
	"time"
)

// IdleTimer runs fn once after a quiet period. Every Reset cancels the
// pending run and starts the wait again, so at most one run is pending.
type IdleTimer struct {
	mu    sync.Mutex
	d     time.Duration
	fn    func()
	timer *time.Timer
	gen   uint64
}

// NewIdleTimer creates a stopped timer
func NewIdleTimer(d time.Duration, fn func()) *IdleTimer {
	return &IdleTimer{d: d, fn: fn}
}

// Reset cancels any pending run and schedules a new one
func (t *IdleTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.d, func() { t.fire(gen) })
}

// Stop cancels the pending run. It reports whether a run was pending.
func (t *IdleTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	if t.timer == nil {
		return false
	}
	stopped := t.timer.Stop()
	t.timer = nil
	return stopped
}

func (t *IdleTimer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		// Superseded by a Reset or Stop that raced the expiry.
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	t.fn()
}
