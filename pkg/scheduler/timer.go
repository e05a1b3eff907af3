// Package scheduler implements the three cooperating periodic workers
// (allocator, play/rec, file-refresh) and the timer wheel they drive,
// grounded on umidi20_watchdog_alloc/_play_rec/_files and
// umidi20_exec_timer/_set_timer/_unset_timer in the original
// implementation.
package scheduler

import (
	"runtime"
	"sync"
)

// TimerFunc is invoked when a timer matures. arg is whatever was passed to
// Set.
type TimerFunc func(arg any)

const (
	minIntervalMillis = 1
	maxIntervalMillis = 65535
)

// timerEntry is one registered periodic callback.
type timerEntry struct {
	fn           TimerFunc
	arg          any
	intervalMs   int32
	nextDeadline uint32
	inProgress   bool
	removed      bool
}

// Timer is an opaque handle returned by TimerWheel.Set, passed to Unset to
// cancel.
type Timer struct {
	entry *timerEntry
}

// TimerWheel is an unsorted list of periodic callbacks with resync/catch-up
// semantics, grounded on umidi20_exec_timer.
type TimerWheel struct {
	mu      sync.Mutex
	entries []*timerEntry
}

// NewTimerWheel returns an empty TimerWheel.
func NewTimerWheel() *TimerWheel {
	return &TimerWheel{}
}

// Set registers fn to fire every intervalMs milliseconds, first firing on
// the next Exec call that observes curr past its deadline. intervalMs is
// clamped to [1, 65535]; the TimerIntervalOutOfRange policy in spec.md §7.
// An intervalMs of 0 is treated as an immediate Unset-equivalent: no timer
// is registered and a zero Timer is returned.
func (w *TimerWheel) Set(fn TimerFunc, arg any, intervalMs int32, curr uint32) Timer {
	if intervalMs == 0 {
		return Timer{}
	}
	if intervalMs < minIntervalMillis {
		intervalMs = minIntervalMillis
	}
	if intervalMs > maxIntervalMillis {
		intervalMs = maxIntervalMillis
	}

	e := &timerEntry{fn: fn, arg: arg, intervalMs: intervalMs, nextDeadline: curr + uint32(intervalMs)}

	w.mu.Lock()
	w.entries = append(w.entries, e)
	w.mu.Unlock()

	return Timer{entry: e}
}

// Unset removes t's entry, spinning (yielding) until any in-progress firing
// completes before the entry is dropped. A cancelled timer that is
// mid-firing completes its current invocation; no further invocations
// occur.
func (w *TimerWheel) Unset(t Timer) {
	if t.entry == nil {
		return
	}
	e := t.entry

	w.mu.Lock()
	e.removed = true
	w.mu.Unlock()

	for {
		w.mu.Lock()
		busy := e.inProgress
		w.mu.Unlock()
		if !busy {
			break
		}
		runtime.Gosched()
	}

	w.mu.Lock()
	for i, entry := range w.entries {
		if entry == e {
			w.entries = append(w.entries[:i], w.entries[i+1:]...)
			break
		}
	}
	w.mu.Unlock()
}

// Exec scans every registered timer and fires those whose deadline has
// matured, applying the cold-start/catch-up resync policy from
// umidi20_exec_timer:
//
//   - if delta < -1000ms or delta > interval, resync (cold start) to curr.
//   - else if delta < 0, step the deadline forward by interval repeatedly
//     until delta >= 0, then step back once so the handler observes a
//     slightly-early tick.
//
// Callbacks are invoked with the wheel's lock released; Exec re-scans from
// the top afterward since a callback may have mutated the timer list (added
// or removed entries).
func (w *TimerWheel) Exec(curr uint32) {
restart:
	w.mu.Lock()
	for _, e := range w.entries {
		if e.removed || e.inProgress {
			continue
		}
		delta := int32(e.nextDeadline - curr)
		if delta >= 0 && delta <= e.intervalMs {
			continue // not yet due
		}

		if delta < -1000 || delta > e.intervalMs {
			e.nextDeadline = curr // cold start
		} else {
			for delta < 0 {
				e.nextDeadline += uint32(e.intervalMs)
				delta = int32(e.nextDeadline - curr)
			}
			e.nextDeadline -= uint32(e.intervalMs)
		}

		e.inProgress = true
		fn, arg := e.fn, e.arg
		w.mu.Unlock()

		fn(arg)

		w.mu.Lock()
		e.inProgress = false
		e.nextDeadline += uint32(e.intervalMs)
		w.mu.Unlock()
		goto restart
	}
	w.mu.Unlock()
}
