package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFiresOnce(t *testing.T) {
	var n int32
	New(10*time.Millisecond, func() { atomic.AddInt32(&n, 1) })
	time.Sleep(60 * time.Millisecond)
	if got := atomic.LoadInt32(&n); got != 1 {
		t.Errorf("expected exactly one fire, got %d", got)
	}
}

func TestStopPreventsFire(t *testing.T) {
	var n int32
	tm := New(10*time.Millisecond, func() { atomic.AddInt32(&n, 1) })
	tm.Stop()
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt32(&n); got != 0 {
		t.Errorf("expected no fire after Stop, got %d", got)
	}
	if tm.Running() {
		t.Errorf("expected Running() to be false after Stop")
	}
}

func TestPeriodicFiresMultipleTimes(t *testing.T) {
	var n int32
	tm := NewPeriodic(10*time.Millisecond, func() { atomic.AddInt32(&n, 1) })
	time.Sleep(55 * time.Millisecond)
	tm.Stop()
	if got := atomic.LoadInt32(&n); got < 3 {
		t.Errorf("expected at least 3 fires, got %d", got)
	}
}

func TestJitteredWithinBounds(t *testing.T) {
	d := 100 * time.Millisecond
	tm := &Timer{interval: d, jitter: 0.25}
	for i := 0; i < 1000; i++ {
		got := tm.next()
		if got < 75*time.Millisecond || got > 125*time.Millisecond {
			t.Fatalf("jittered interval %v out of +/-25%% bounds", got)
		}
	}
}
