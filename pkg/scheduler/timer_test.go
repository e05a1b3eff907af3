package scheduler

import (
	"sync/atomic"
	"testing"
)

func TestTimerFiresWhenDue(t *testing.T) {
	w := NewTimerWheel()
	var fired int32
	w.Set(func(any) { atomic.AddInt32(&fired, 1) }, nil, 100, 0)

	w.Exec(50) // not yet due
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("expected no fire before deadline, got %d", fired)
	}

	w.Exec(101) // just past the deadline: due
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("expected 1 fire just past deadline, got %d", fired)
	}
}

func TestTimerColdStartOnBigNegativeDelta(t *testing.T) {
	w := NewTimerWheel()
	var fireCount int32
	var lastCurr uint32
	w.Set(func(any) { atomic.AddInt32(&fireCount, 1) }, nil, 1000, 0)

	// force the entry's deadline far into the past, as after a large clock
	// jump forward (delta = nextDeadline - curr = -1500).
	w.mu.Lock()
	w.entries[0].nextDeadline = 500
	w.mu.Unlock()

	w.Exec(2000) // delta = 500-2000 = -1500: cold start, not catch-up.

	w.mu.Lock()
	lastCurr = w.entries[0].nextDeadline
	w.mu.Unlock()

	if fireCount != 1 {
		t.Fatalf("expected exactly 1 fire on cold start, got %d", fireCount)
	}
	// cold start resyncs nextDeadline to curr (2000) then advances by one
	// interval after firing.
	if lastCurr != 2000+1000 {
		t.Errorf("expected resynced deadline 3000, got %d", lastCurr)
	}
}

func TestUnsetRemovesEntry(t *testing.T) {
	w := NewTimerWheel()
	handle := w.Set(func(any) {}, nil, 100, 0)
	w.Unset(handle)

	w.mu.Lock()
	n := len(w.entries)
	w.mu.Unlock()
	if n != 0 {
		t.Errorf("expected entry removed, got %d remaining", n)
	}
}

func TestSetClampsInterval(t *testing.T) {
	w := NewTimerWheel()
	handle := w.Set(func(any) {}, nil, 999999, 0)
	if handle.entry.intervalMs != maxIntervalMillis {
		t.Errorf("expected interval clamped to %d, got %d", maxIntervalMillis, handle.entry.intervalMs)
	}
}

func TestSetZeroIntervalIsNoOp(t *testing.T) {
	w := NewTimerWheel()
	handle := w.Set(func(any) {}, nil, 0, 0)
	if handle.entry != nil {
		t.Error("expected zero-interval Set to register no timer")
	}
}
