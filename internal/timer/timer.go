// Package timer runs the per-question countdown.
//
// A Timer owns at most one countdown. Starting a new one cancels the previous
// one, and the expiry callback of a countdown fires at most once, never after
// the countdown was stopped or replaced.
package timer

import (
	"sync"
	"time"
)

// DefaultInterval is the length of one countdown unit.
const DefaultInterval = time.Second

// Timer is a cancellable per-question countdown.
type Timer struct {
	interval time.Duration

	mu        sync.Mutex
	gen       uint64
	stop      chan struct{}
	remaining int
}

// New creates a timer ticking every interval. A non-positive interval uses DefaultInterval.
func New(interval time.Duration) *Timer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Timer{interval: interval}
}

// Start begins a countdown of the given number of units, cancelling any
// countdown already running. onTick receives the remaining units after each
// tick; onExpire runs once when the countdown reaches zero. Both run on the
// countdown goroutine and may be nil.
func (t *Timer) Start(units int, onTick func(remaining int), onExpire func()) {
	t.mu.Lock()
	t.stopLocked()
	t.gen++
	gen := t.gen
	stop := make(chan struct{})
	t.stop = stop
	t.remaining = units
	t.mu.Unlock()

	go t.run(gen, stop, units, onTick, onExpire)
}

// Stop cancels the running countdown, if any. It is safe to call repeatedly.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopLocked()
	t.mu.Unlock()
}

// Running reports whether a countdown is in progress.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// Remaining returns the units left on the running countdown, or zero.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil {
		return 0
	}
	return t.remaining
}

func (t *Timer) stopLocked() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop = nil
	t.remaining = 0
	t.gen++
}

func (t *Timer) run(gen uint64, stop <-chan struct{}, units int, onTick func(int), onExpire func()) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for remaining := units; remaining > 0; {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		remaining--
		if !t.update(gen, remaining) {
			return
		}
		if onTick != nil {
			onTick(remaining)
		}
	}

	if !t.finish(gen) {
		return
	}
	if onExpire != nil {
		onExpire()
	}
}

func (t *Timer) update(gen uint64, remaining int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return false
	}
	t.remaining = remaining
	return true
}

// finish retires the countdown. Only the call that observes the live
// generation gets to fire the expiry.
func (t *Timer) finish(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return false
	}
	t.stop = nil
	t.remaining = 0
	t.gen++
	return true
}
