package feed

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerRegistryReplaceExtendsDebounce(t *testing.T) {
	r := newTimerRegistry()
	defer r.cancelAll()

	var fired atomic.Int32
	r.schedule("k", 30*time.Millisecond, func() { fired.Add(1) })
	time.Sleep(10 * time.Millisecond)
	r.schedule("k", 30*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times, want exactly 1 (replacement collapses)", got)
	}
}

func TestTimerRegistryCancel(t *testing.T) {
	r := newTimerRegistry()
	defer r.cancelAll()

	var fired atomic.Int32
	r.schedule("k", 20*time.Millisecond, func() { fired.Add(1) })
	r.cancel("k")

	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("cancelled timer fired")
	}
}

func TestTimerRegistryCancelAllBlocksNewTimers(t *testing.T) {
	r := newTimerRegistry()

	var fired atomic.Int32
	r.schedule("a", 20*time.Millisecond, func() { fired.Add(1) })
	r.cancelAll()
	r.schedule("b", 10*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("timers fired after cancelAll: %d", fired.Load())
	}
}
