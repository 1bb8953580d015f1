package agentz

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// Timer measures one span of work on an injected clock.
// Safe for concurrent use by multiple goroutines.
type Timer struct {
	clock    clockz.Clock
	start    time.Time
	stop     time.Time
	duration time.Duration
	mu       sync.Mutex
	started  bool
	touched  bool
}

// NewTimer creates an unstarted timer reading from clock.
func NewTimer(clock clockz.Clock) *Timer {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Timer{clock: clock}
}

// Start records the start time. Calling Start again is a no-op.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return
	}
	t.start = t.clock.Now()
	t.started = true
}

// End records the stop time and marks the timer touched.
// No-op if the timer was never started or has already ended.
func (t *Timer) End() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started || t.touched {
		return
	}
	t.stop = t.clock.Now()
	t.duration = t.stop.Sub(t.start)
	t.touched = true
}

// Touch is an alias for End.
func (t *Timer) Touch() { t.End() }

// Touched reports whether the timer has been ended.
func (t *Timer) Touched() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.touched
}

// IsActive reports whether the timer is running.
func (t *Timer) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started && !t.touched
}

// StartTime returns the start time, zero if never started.
func (t *Timer) StartTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start
}

// EndTime returns the stop time, zero until touched.
func (t *Timer) EndTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop
}

// Duration returns the final duration once touched, the elapsed time while
// running, and zero if never started.
func (t *Timer) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.touched:
		return t.duration
	case t.started:
		return t.clock.Now().Sub(t.start)
	default:
		return 0
	}
}
