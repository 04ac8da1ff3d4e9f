package util

import (
	"sync"
	"time"
)

// Debounce wraps fn so that repeated calls within window collapse into one,
// run after the caller goes quiet for window. Flush runs a pending call
// immediately; Cancel drops it. Grounded on the teacher's debouncer timer
// re-arm pattern, generalized from batch-flush to single-callback semantics.
type Debounce struct {
	mu      sync.Mutex
	window  time.Duration
	fn      func()
	timer   *time.Timer
	pending bool
}

func NewDebounce(window time.Duration, fn func()) *Debounce {
	return &Debounce{window: window, fn: fn}
}

// Call (re)arms the debounce window.
func (d *Debounce) Call() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debounce) fire() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()
	d.fn()
}

// Flush runs the pending call immediately, if any.
func (d *Debounce) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	pending := d.pending
	d.pending = false
	d.mu.Unlock()
	if pending {
		d.fn()
	}
}

// Cancel drops any pending call without running it.
func (d *Debounce) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
}
