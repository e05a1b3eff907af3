package midi

import "sync"

// PoolTarget is the steady-state number of free cells the pool's background
// refiller maintains, matching UMIDI20_BUF_EVENTS in the original
// implementation.
const PoolTarget = 1024

// Pool is a lazily refilled free list of Events. Acquire takes a cell from
// the free list if one is available; when the list is empty it allocates a
// fresh Event directly (outside any lock held by the caller, since Go's
// allocator needs none of its own). The scheduler's allocator worker calls
// Refill periodically to keep the free list topped up to PoolTarget so that
// steady-state Acquire calls never need to allocate.
type Pool struct {
	mu   sync.Mutex
	free []*Event
}

// NewPool creates an empty Pool; call Refill once before relying on Acquire
// never allocating, or simply let the first PoolTarget Acquire calls
// allocate directly.
func NewPool() *Pool {
	return &Pool{}
}

// Acquire removes and returns one Event from the free list, resetting its
// fields to zero values. If the free list is empty, a new Event is
// allocated.
func (p *Pool) Acquire() *Event {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		return &Event{DeviceNo: DeviceNone}
	}
	ev := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	p.mu.Unlock()

	*ev = Event{DeviceNo: DeviceNone}
	return ev
}

// Release returns ev to the free list if the pool has not yet reached
// PoolTarget cells; otherwise ev is simply dropped and left for the garbage
// collector, matching the original's "the background refiller never exceeds
// target" policy applied symmetrically to release.
func (p *Pool) Release(ev *Event) {
	if ev == nil {
		return
	}
	ev.NextFragment = nil

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) >= PoolTarget {
		return
	}
	p.free = append(p.free, ev)
}

// Len reports the current number of free cells.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Refill tops the free list up to PoolTarget cells, allocating new Events
// outside the pool's lock and only taking the lock to append them. Called
// periodically (every 100ms) by the scheduler's allocator worker.
func (p *Pool) Refill() {
	for {
		p.mu.Lock()
		need := PoolTarget - len(p.free)
		p.mu.Unlock()
		if need <= 0 {
			return
		}

		fresh := make([]*Event, need)
		for i := range fresh {
			fresh[i] = &Event{DeviceNo: DeviceNone}
		}

		p.mu.Lock()
		if len(p.free) < PoolTarget {
			p.free = append(p.free, fresh...)
		}
		p.mu.Unlock()
		return
	}
}
