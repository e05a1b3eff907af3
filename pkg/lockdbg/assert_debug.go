//go:build umidi20debug

package lockdbg

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// AssertingMutex is a sync.Mutex instrumented to remember which goroutine
// currently holds it, so AssertOwned/AssertNotOwned can panic the way
// __pthread_mutex_assert would print under MA_OWNED/MA_NOTOWNED — a
// best-effort, debug-build-only analogue, since Go has no portable "am I
// holding this lock" query. Only compiled under -tags umidi20debug: the
// per-lock goroutine-ID lookup is too costly to pay in a release build.
type AssertingMutex struct {
	mu     sync.Mutex
	holder int64 // atomic; 0 means unheld
}

// Lock acquires the mutex and records the calling goroutine as its holder.
func (m *AssertingMutex) Lock() {
	m.mu.Lock()
	atomic.StoreInt64(&m.holder, goroutineID())
}

// Unlock clears the holder and releases the mutex.
func (m *AssertingMutex) Unlock() {
	atomic.StoreInt64(&m.holder, 0)
	m.mu.Unlock()
}

// AssertOwned panics if the calling goroutine does not currently hold m.
func (m *AssertingMutex) AssertOwned() {
	if atomic.LoadInt64(&m.holder) != goroutineID() {
		panic("lockdbg: mutex not owned by calling goroutine")
	}
}

// AssertNotOwned panics if the calling goroutine currently holds m.
func (m *AssertingMutex) AssertNotOwned() {
	if atomic.LoadInt64(&m.holder) == goroutineID() {
		panic("lockdbg: mutex unexpectedly owned by calling goroutine")
	}
}

// goroutineID extracts the calling goroutine's ID by parsing the leading
// "goroutine N [...]" line of a runtime.Stack dump. There is no supported
// API for this; it exists only to serve the debug build's best-effort
// assertions and must never be used for scheduling or correctness decisions.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	line := buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(line, []byte(prefix)) {
		return -1
	}
	line = line[len(prefix):]
	end := bytes.IndexByte(line, ' ')
	if end < 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(line[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
