// Package timer provides a cancelable timer with optional jitter and
// periodic rearming, the way every FSM in this daemon (BGP peer, IS-IS
// circuit) needs one attached to itself and cancelled on state exit.
package timer

import (
	"math/rand"
	"time"
)

// Timer wraps time.Timer with jitter and rearm support so callers don't
// each reimplement the stop-drain-reset dance by hand.
type Timer struct {
	t        *time.Timer
	interval time.Duration
	jitter   float64 // fraction, e.g. 0.25 for +/-25%
	periodic bool
	fn       func()
	running  bool
	stopCh   chan struct{}
}

// New creates a timer that fires fn once after d has elapsed.
func New(d time.Duration, fn func()) *Timer {
	return newTimer(d, 0, false, fn)
}

// NewJittered creates a one-shot timer whose actual delay is d scaled by
// a uniform random factor in [1-jitter, 1+jitter]. The BGP ConnectRetry
// timer uses this; IS-IS hellos are jittered by the isis package's own loop.
func NewJittered(d time.Duration, jitter float64, fn func()) *Timer {
	return newTimer(d, jitter, false, fn)
}

// NewPeriodic creates a timer that reschedules itself after every fire,
// until Stop is called.
func NewPeriodic(d time.Duration, fn func()) *Timer {
	return newTimer(d, 0, true, fn)
}

func newTimer(d time.Duration, jitter float64, periodic bool, fn func()) *Timer {
	tm := &Timer{
		interval: d,
		jitter:   jitter,
		periodic: periodic,
		fn:       fn,
		running:  true,
		stopCh:   make(chan struct{}),
	}
	tm.t = time.AfterFunc(tm.next(), tm.fire)
	return tm
}

func (t *Timer) next() time.Duration {
	if t.jitter == 0 {
		return t.interval
	}
	factor := 1 - t.jitter + 2*t.jitter*rand.Float64()
	return time.Duration(float64(t.interval) * factor)
}

func (t *Timer) fire() {
	select {
	case <-t.stopCh:
		return
	default:
	}
	if !t.periodic {
		t.running = false
	} else {
		t.t.Reset(t.next())
	}
	t.fn()
}

// Reset restarts the timer at its configured interval (re-jittered).
func (t *Timer) Reset() {
	t.Stop()
	t.stopCh = make(chan struct{})
	t.running = true
	t.t = time.AfterFunc(t.next(), t.fire)
}

// ResetTo restarts the timer with a new interval, replacing the configured one.
func (t *Timer) ResetTo(d time.Duration) {
	t.interval = d
	t.Reset()
}

// Stop cancels the timer. Safe to call more than once.
func (t *Timer) Stop() {
	if t.t != nil {
		t.t.Stop()
	}
	select {
	case <-t.stopCh:
	default:
		close(t.stopCh)
	}
	t.running = false
}

// Running reports whether the timer is still counting down.
func (t *Timer) Running() bool {
	return t.running
}
