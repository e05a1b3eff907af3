package scheduler

import (
	"testing"
	"time"

	"github.com/justyntemme/umidi20go/pkg/backend"
	"github.com/justyntemme/umidi20go/pkg/device"
	"github.com/justyntemme/umidi20go/pkg/pipe"
)

// fakeBackend is an in-memory backend.Backend used only by tests: RxOpen and
// TxOpen just hand back freshly allocated pipes.
type fakeBackend struct {
	opened map[int]*pipe.Pipe
}

func newFakeBackend() *fakeBackend { return &fakeBackend{opened: map[int]*pipe.Pipe{}} }

func (f *fakeBackend) EnumerateInputs() ([]string, error)  { return nil, nil }
func (f *fakeBackend) EnumerateOutputs() ([]string, error) { return nil, nil }
func (f *fakeBackend) RxOpen(index int, name string) (*pipe.Pipe, error) {
	p := pipe.NewDefault()
	f.opened[index] = p
	return p, nil
}
func (f *fakeBackend) TxOpen(index int, name string) (*pipe.Pipe, error) {
	p := pipe.NewDefault()
	f.opened[index] = p
	return p, nil
}
func (f *fakeBackend) RxClose(index int) error { delete(f.opened, index); return nil }
func (f *fakeBackend) TxClose(index int) error { delete(f.opened, index); return nil }
func (f *fakeBackend) Init(clientName string) error { return nil }

func TestRecordFromParsesAndEnqueues(t *testing.T) {
	root := device.NewRoot()
	reg := backend.NewRegistry()
	fb := newFakeBackend()
	reg.Register(backend.CharDev, fb)
	s := New(root, reg)

	rx := root.RX[0]
	rx.Kind = backend.CharDev
	rx.NeedsReopen = true
	rx.EnabledByUser = true
	s.tickFileRefresh()

	if !rx.IsOpen() {
		t.Fatal("expected RX device to be open after file-refresh tick")
	}
	if !rx.EnabledByConfig {
		t.Fatal("expected RX device enabled by config after successful open")
	}

	rx.Pipe.Write([]byte{0x90, 0x3C, 0x40})

	curr := root.Tick()
	s.recordFrom(rx, curr)

	if rx.Queue.Len() != 1 {
		t.Fatalf("expected 1 event enqueued, got %d", rx.Queue.Len())
	}
}

func TestPlayToDispatchesMaturedEvent(t *testing.T) {
	root := device.NewRoot()
	reg := backend.NewRegistry()
	fb := newFakeBackend()
	reg.Register(backend.CharDev, fb)
	s := New(root, reg)

	tx := root.TX[0]
	tx.Kind = backend.CharDev
	tx.NeedsReopen = true
	tx.EnabledByUser = true
	s.tickFileRefresh()

	ev := root.Pool.Acquire()
	ev.Cmd[0] = byte(0xB) // short 3-byte
	ev.Cmd[1] = 0x90
	ev.Cmd[2] = 0x3C
	ev.Cmd[3] = 0x40
	ev.Position = 0 // already due
	tx.Queue.Insert(ev, 0)

	// an event is due once its delta is negative, so let the clock move
	// past position 0 before ticking.
	time.Sleep(2 * time.Millisecond)
	curr := root.Tick()
	s.playTo(tx, curr)

	if tx.Queue.Len() != 0 {
		t.Errorf("expected matured event dispatched and dequeued, got len %d", tx.Queue.Len())
	}

	written := make([]byte, 3)
	n := tx.Pipe.Read(written)
	if n != 3 {
		t.Fatalf("expected 3 bytes written to backend pipe, got %d", n)
	}
}

func TestRecordFromRoutesLoopbackEffectToMatchingTX(t *testing.T) {
	root := device.NewRoot()
	reg := backend.NewRegistry()
	fb := newFakeBackend()
	reg.Register(backend.CharDev, fb)
	s := New(root, reg)

	rx := root.RX[3]
	rx.Kind = backend.CharDev
	rx.NeedsReopen = true
	rx.EnabledByUser = true
	rx.Effects = device.EffectLoopback
	s.tickFileRefresh()

	tx := root.TX[3]
	tx.EnabledByUser = true
	tx.EnabledByConfig = true

	rx.Pipe.Write([]byte{0x90, 0x3C, 0x40})
	curr := root.Tick()
	s.recordFrom(rx, curr)

	if tx.Queue.Len() != 1 {
		t.Fatalf("expected loopback to enqueue 1 event on TX[3], got %d", tx.Queue.Len())
	}
}

// TestStopPanicOffDispatchesThroughPlayTo reproduces the realistic case a
// queue-content-only check can't: StartPosition has actually advanced past
// zero by the time Stop is called, so the panic-off events' positions must
// be stamped relative to it, not as a raw absolute position, or playTo will
// treat them as scheduled far in the future instead of immediately due.
func TestStopPanicOffDispatchesThroughPlayTo(t *testing.T) {
	root := device.NewRoot()
	reg := backend.NewRegistry()
	fb := newFakeBackend()
	reg.Register(backend.CharDev, fb)
	s := New(root, reg)

	tx := root.TX[0]
	tx.Kind = backend.CharDev
	tx.NeedsReopen = true
	tx.EnabledByUser = true
	s.tickFileRefresh()

	// let real time advance so StartPosition ends up a realistic nonzero
	// value, not the coincidental zero a just-constructed Root starts with.
	time.Sleep(5 * time.Millisecond)
	root.Tick()

	if err := root.Start(0, 1000, device.FlagPlay); err != nil {
		t.Fatalf("unexpected error arming playback: %v", err)
	}
	tx.AnyKeyStarted = true

	time.Sleep(2 * time.Millisecond)
	root.Stop(device.FlagPlay)

	if tx.Queue.Len() != 32 {
		t.Fatalf("expected 32 panic-off events queued, got %d", tx.Queue.Len())
	}

	time.Sleep(2 * time.Millisecond)
	curr := root.Tick()
	s.playTo(tx, curr)

	if tx.Queue.Len() != 0 {
		t.Fatalf("expected playTo to dispatch every panic-off event as immediately due, got %d left queued", tx.Queue.Len())
	}
}

func TestReopenMarksDisabledOnMissingBackend(t *testing.T) {
	root := device.NewRoot()
	reg := backend.NewRegistry() // no backends registered
	s := New(root, reg)

	rx := root.RX[0]
	rx.Kind = backend.CharDev
	rx.NeedsReopen = true

	s.tickFileRefresh()

	if rx.EnabledByConfig {
		t.Error("expected device disabled when no backend is registered for its kind")
	}
}
