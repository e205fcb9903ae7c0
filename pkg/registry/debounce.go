package registry

import (
	"sync"
	"time"
)

// DefaultDebounceWindow coalesces bursts of comment snapshots (e.g. a
// batched multi-document write) into a single delivery. Tunable, not a
// load-tested optimum.
const DefaultDebounceWindow = 100 * time.Millisecond

// debouncer delivers only the most recent payload once the window elapses
// with no further pushes. Earlier superseded payloads are never surfaced.
// stop cancels any pending timer so nothing fires after teardown.
type debouncer struct {
	window time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	stopped bool
}

func newDebouncer(window time.Duration) *debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &debouncer{window: window}
}

// push schedules fire with the latest payload, restarting the window.
func (d *debouncer) push(fire func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = fire
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.emit)
}

func (d *debouncer) emit() {
	d.mu.Lock()
	fire := d.pending
	d.pending = nil
	d.timer = nil
	stopped := d.stopped
	d.mu.Unlock()

	if stopped || fire == nil {
		return
	}
	fire()
}

// stop discards any pending delivery. Safe to call repeatedly.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
