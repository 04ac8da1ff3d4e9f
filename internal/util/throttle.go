package util

import (
	"sync"
	"time"
)

// Throttle wraps fn so it fires at most once per window, leading+trailing:
// a call fires immediately when quota is available, and if another call
// arrives within the window, exactly one trailing call is scheduled for
// when the window reopens.
type Throttle struct {
	mu        sync.Mutex
	window    time.Duration
	fn        func()
	lastFire  time.Time
	trailing  bool
	timer     *time.Timer
}

func NewThrottle(window time.Duration, fn func()) *Throttle {
	return &Throttle{window: window, fn: fn}
}

func (t *Throttle) Call() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(t.lastFire)
	if t.lastFire.IsZero() || elapsed >= t.window {
		t.lastFire = now
		t.mu.Unlock()
		t.fn()
		t.mu.Lock()
		return
	}

	if t.trailing {
		return
	}
	t.trailing = true
	remaining := t.window - elapsed
	t.timer = time.AfterFunc(remaining, t.fireTrailing)
}

func (t *Throttle) fireTrailing() {
	t.mu.Lock()
	t.trailing = false
	t.lastFire = time.Now()
	t.mu.Unlock()
	t.fn()
}

// Cancel drops any scheduled trailing call.
func (t *Throttle) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.trailing = false
}
