//go:build !umidi20debug

package lockdbg

import "sync"

// AssertingMutex is the release-build stand-in for the debug build's
// goroutine-ownership-tracking mutex: a plain sync.Mutex, with
// AssertOwned/AssertNotOwned compiled out to no-ops. Build with
// -tags umidi20debug to get the real assertions.
type AssertingMutex struct {
	mu sync.Mutex
}

func (m *AssertingMutex) Lock()   { m.mu.Lock() }
func (m *AssertingMutex) Unlock() { m.mu.Unlock() }

func (m *AssertingMutex) AssertOwned()    {}
func (m *AssertingMutex) AssertNotOwned() {}
