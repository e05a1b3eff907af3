package scheduler

import (
	"sync"
	"time"

	"github.com/justyntemme/umidi20go/pkg/backend"
	"github.com/justyntemme/umidi20go/pkg/device"
	"github.com/justyntemme/umidi20go/pkg/midi"
)

const (
	allocatorInterval   = 100 * time.Millisecond
	playRecInterval     = 1 * time.Millisecond
	fileRefreshInterval = 100 * time.Millisecond
	maxRxBytesPerTick   = 16
)

// Scheduler owns the three cooperating periodic workers described in
// spec.md §4.H: the allocator, play/rec, and file-refresh loops. Unlike the
// original implementation, which holds one recursive lock across the whole
// tick and releases it only around callback invocation, this Scheduler
// relies on each Device's own mutex plus Root's own mutex (see pkg/device)
// and never holds any lock while invoking a callback — the equivalent,
// lock-split translation spec.md §9 explicitly sanctions.
type Scheduler struct {
	Root     *device.Root
	Backends backend.Registry

	Timers *TimerWheel

	stop chan struct{}
	wg   sync.WaitGroup

	prevKind [2][device.NumDevices]backend.Kind // [0]=RX, [1]=TX: the previously-open backend kind, needed to close via the right implementation.
}

// New returns a Scheduler ready to Start.
func New(root *device.Root, backends backend.Registry) *Scheduler {
	return &Scheduler{Root: root, Backends: backends, Timers: NewTimerWheel()}
}

// Start launches all three worker goroutines.
func (s *Scheduler) Start() {
	s.stop = make(chan struct{})
	s.wg.Add(3)
	go s.runAllocator()
	go s.runPlayRec()
	go s.runFileRefresh()
}

// Stop signals all three workers to exit and waits for them to do so.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) runAllocator() {
	defer s.wg.Done()
	t := time.NewTicker(allocatorInterval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.Root.Pool.Refill()
		}
	}
}

func (s *Scheduler) runPlayRec() {
	defer s.wg.Done()
	t := time.NewTicker(playRecInterval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.tickPlayRec()
		}
	}
}

func (s *Scheduler) tickPlayRec() {
	curr := s.Root.Tick()

	for _, d := range s.Root.RX {
		s.recordFrom(d, curr)
	}

	s.Timers.Exec(curr)

	for _, d := range s.Root.TX {
		s.playTo(d, curr)
	}
}

// recordFrom reads pending bytes from d's backend pipe, feeds them through
// the parser/accumulator, and inserts completed events into d's queue.
// Grounded on umidi20_watchdog_record_sub.
func (s *Scheduler) recordFrom(d *device.Device, curr uint32) {
	if !d.IsOpen() || !d.Enabled() {
		return
	}

	var buf [maxRxBytesPerTick]byte
	n := d.Pipe.Read(buf[:])
	for i := 0; i < n; i++ {
		ev, ok := d.Accum.Feed(buf[i])
		if !ok {
			continue
		}
		ev.DeviceNo = int8(d.No)
		ev.Position = curr - d.StartPosition

		if ev.IsKeyStart() {
			d.AnyKeyStarted = true
		}

		d.ApplyEffects(ev, func(loopbackEv *midi.Event) {
			s.routeLoopback(d.No, loopbackEv)
		})

		drop := false
		if cb := d.Callback(); cb != nil {
			drop = cb(ev)
		}
		if drop {
			s.Root.Pool.Release(ev)
			continue
		}
		d.Put(ev, s.Root.Pool)
	}
}

// playTo dispatches every matured event at the head of d's output queue to
// its backend pipe. Grounded on umidi20_watchdog_play_sub.
func (s *Scheduler) playTo(d *device.Device, curr uint32) {
	// Output is gated on the backend selection only, not on EnabledByUser:
	// Root.Stop disables the device and then queues its panic-off messages,
	// which still have to reach the backend. Put drops new events for a
	// device the user has disabled.
	if !d.IsOpen() || !d.EnabledByConfig {
		return
	}

	for {
		ev := d.Queue.Head()
		if ev == nil {
			return
		}
		delta := int32(ev.Position - (curr - d.StartPosition))
		if delta >= 0 {
			return // not yet due
		}

		drop := false
		if cb := d.Callback(); cb != nil {
			drop = cb(ev)
		}
		if drop {
			d.Queue.DequeueHead()
			s.Root.Pool.Release(ev)
			continue
		}

		if ev.IsKeyStart() {
			d.AnyKeyStarted = true
		}

		if !ev.IsMeta() {
			for frag := ev; frag != nil; frag = frag.NextFragment {
				payload := frag.Payload()
				written := d.Pipe.Write(payload)
				if written < len(payload) {
					// WouldBlock mid-message (or mid-sysex): leave the
					// partial event at the head and retry next tick,
					// matching spec.md §9's adopted Open Question
					// resolution.
					return
				}
			}
		}

		d.Queue.DequeueHead()
		releaseChain(ev, s.Root.Pool)
	}
}

// routeLoopback copies ev onto the TX device sharing devNo's number, letting
// a record-time loopback effect feed straight back out without passing
// through a track. Grounded on SPEC_FULL.md Supplemented Features #1.
func (s *Scheduler) routeLoopback(devNo int, ev *midi.Event) {
	tx := s.Root.TX[devNo]
	cp := s.Root.Pool.Acquire()
	cp.Cmd = ev.Cmd
	cp.Position = ev.Position
	cp.DeviceNo = int8(devNo)
	tx.Put(cp, s.Root.Pool)
}

func releaseChain(ev *midi.Event, pool *midi.Pool) {
	for e := ev; e != nil; {
		next := e.NextFragment
		pool.Release(e)
		e = next
	}
}

func (s *Scheduler) runFileRefresh() {
	defer s.wg.Done()
	t := time.NewTicker(fileRefreshInterval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.tickFileRefresh()
		}
	}
}

// tickFileRefresh closes and reopens any device whose backend selection has
// changed, marking it disabled on failure. Grounded on
// umidi20_watchdog_files.
func (s *Scheduler) tickFileRefresh() {
	for dirIdx, devices := range [2][device.NumDevices]*device.Device{s.Root.RX, s.Root.TX} {
		for _, d := range devices {
			if d == nil || !d.NeedsReopen {
				continue
			}
			s.reopen(d, dirIdx)
		}
	}
}

func (s *Scheduler) reopen(d *device.Device, dirIdx int) {
	prior := s.prevKind[dirIdx][d.No]
	if b := s.Backends.Get(prior); b != nil {
		if dirIdx == 0 {
			b.RxClose(d.No)
		} else {
			b.TxClose(d.No)
		}
	}
	d.SetPipe(nil)

	d.NeedsReopen = false

	b := s.Backends.Get(d.Kind)
	if b == nil || d.Kind == backend.Disabled {
		d.EnabledByConfig = false
		s.prevKind[dirIdx][d.No] = d.Kind
		return
	}

	var err error
	if dirIdx == 0 {
		pp, e := b.RxOpen(d.No, d.Path)
		if e == nil {
			d.SetPipe(pp)
		}
		err = e
	} else {
		pp, e := b.TxOpen(d.No, d.Path)
		if e == nil {
			d.SetPipe(pp)
		}
		err = e
	}

	if err != nil {
		d.EnabledByConfig = false
	} else {
		d.EnabledByConfig = true
	}
	s.prevKind[dirIdx][d.No] = d.Kind
}
