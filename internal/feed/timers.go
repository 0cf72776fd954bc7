package feed

import (
	"sync"
	"time"
)

// timerRegistry owns every pending timer in the feed, keyed by string.
// Centralizing them makes detach systematic: cancel(key) or cancelAll()
// guarantees nothing fires afterwards for that key.
type timerRegistry struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{timers: make(map[string]*time.Timer)}
}

// schedule arms fn to run after d, replacing any pending timer for key.
// fn runs on the timer goroutine; it must do its own locking.
func (r *timerRegistry) schedule(key string, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if t, ok := r.timers[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.mu.Lock()
		// A timer that fired after being replaced or cancelled must not run.
		if r.closed || r.timers[key] != t {
			r.mu.Unlock()
			return
		}
		delete(r.timers, key)
		r.mu.Unlock()
		fn()
	})
	r.timers[key] = t
}

func (r *timerRegistry) cancel(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[key]; ok {
		t.Stop()
		delete(r.timers, key)
	}
}

func (r *timerRegistry) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for key, t := range r.timers {
		t.Stop()
		delete(r.timers, key)
	}
}
