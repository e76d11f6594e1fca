package vxsip

import (
	"sync"
	"time"
)

// dialogTimer wraps a one-shot timer with the init/schedule/cancel/running
// surface the dialog engine expects. Cancellation is best effort: once the
// callback started, cancel reports false and the state machine has to
// tolerate the concurrent firing.
type dialogTimer struct {
	mu      sync.Mutex
	d       time.Duration
	t       *time.Timer
	running bool
}

func (t *dialogTimer) init(d time.Duration) {
	t.mu.Lock()
	t.d = d
	t.mu.Unlock()
}

func (t *dialogTimer) schedule(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.t = time.AfterFunc(t.d, func() {
		t.mu.Lock()
		fired := t.running
		t.running = false
		t.mu.Unlock()
		if fired {
			fn()
		}
	})
}

// cancel stops the timer, reporting false when it already fired.
func (t *dialogTimer) cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return false
	}
	t.running = false
	if t.t != nil {
		t.t.Stop()
	}
	return true
}

func (t *dialogTimer) isRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
