package agentz

import (
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestTimerLifecycle(t *testing.T) {
	clock := clockz.NewFakeClock()
	timer := NewTimer(clock)

	if timer.IsActive() {
		t.Error("Expected unstarted timer to be inactive")
	}
	if timer.Duration() != 0 {
		t.Errorf("Expected zero duration before start, got %v", timer.Duration())
	}

	timer.Start()
	start := clock.Now()
	if !timer.IsActive() {
		t.Error("Expected started timer to be active")
	}
	if !timer.StartTime().Equal(start) {
		t.Errorf("Expected start time %v, got %v", start, timer.StartTime())
	}

	clock.Advance(40 * time.Millisecond)
	if got := timer.Duration(); got != 40*time.Millisecond {
		t.Errorf("Expected provisional duration 40ms, got %v", got)
	}

	timer.End()
	if !timer.Touched() {
		t.Error("Expected timer to be touched after End")
	}
	if timer.IsActive() {
		t.Error("Expected ended timer to be inactive")
	}

	clock.Advance(time.Second)
	if got := timer.Duration(); got != 40*time.Millisecond {
		t.Errorf("Expected final duration 40ms after End, got %v", got)
	}
	if !timer.EndTime().Equal(start.Add(40 * time.Millisecond)) {
		t.Errorf("Unexpected end time %v", timer.EndTime())
	}
}

func TestTimerSecondStartIsNoop(t *testing.T) {
	clock := clockz.NewFakeClock()
	timer := NewTimer(clock)

	timer.Start()
	first := timer.StartTime()
	clock.Advance(10 * time.Millisecond)
	timer.Start()

	if !timer.StartTime().Equal(first) {
		t.Errorf("Expected second Start to keep %v, got %v", first, timer.StartTime())
	}
}

func TestTimerEndIdempotent(t *testing.T) {
	clock := clockz.NewFakeClock()
	timer := NewTimer(clock)

	timer.Start()
	clock.Advance(5 * time.Millisecond)
	timer.End()
	clock.Advance(5 * time.Millisecond)
	timer.Touch()

	if got := timer.Duration(); got != 5*time.Millisecond {
		t.Errorf("Expected duration to stay 5ms, got %v", got)
	}
}

func TestTimerEndWithoutStart(t *testing.T) {
	timer := NewTimer(clockz.NewFakeClock())
	timer.End()

	if timer.Touched() {
		t.Error("Expected End on unstarted timer to be a no-op")
	}
	if !timer.EndTime().IsZero() {
		t.Error("Expected zero end time")
	}
}

func TestTimerNilClockDefaultsToReal(t *testing.T) {
	timer := NewTimer(nil)
	timer.Start()
	if timer.StartTime().IsZero() {
		t.Error("Expected real clock start time")
	}
	timer.End()
	if timer.Duration() < 0 {
		t.Errorf("Expected non-negative duration, got %v", timer.Duration())
	}
}

func TestTimerConcurrentEnd(t *testing.T) {
	clock := clockz.NewFakeClock()
	timer := NewTimer(clock)
	timer.Start()
	clock.Advance(time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timer.End()
			_ = timer.Duration()
		}()
	}
	wg.Wait()

	if got := timer.Duration(); got != time.Millisecond {
		t.Errorf("Expected 1ms, got %v", got)
	}
}
