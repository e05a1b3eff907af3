// Package device implements the per-endpoint Device state and the
// process-wide Root singleton that owns all sixteen RX and sixteen TX
// devices, grounded on umidi20_device/umidi20_root_device in the original
// implementation.
package device

import (
	"github.com/justyntemme/umidi20go/pkg/backend"
	"github.com/justyntemme/umidi20go/pkg/lockdbg"
	"github.com/justyntemme/umidi20go/pkg/midi"
	"github.com/justyntemme/umidi20go/pkg/pipe"
)

// Direction distinguishes a record (RX) device from a playback (TX) device.
type Direction int

const (
	RX Direction = iota
	TX
)

// Effect is a bitmask of optional per-device record-time transforms applied
// to incoming events before they reach the device's input queue, grounded
// on the effects field of umidi20_config_dev (SPEC_FULL.md Supplemented
// Features #1).
type Effect uint32

const (
	EffectLoopback Effect = 1 << iota
	EffectKeyCompletion1
	EffectKeyCompletion2
	EffectKeyCompletion3
)

// Callback inspects (and may mutate in place) an event as it crosses a
// device boundary; returning true drops the event.
type Callback func(ev *midi.Event) (drop bool)

// Device is one of the engine's thirty-two RX/TX endpoints.
type Device struct {
	mu lockdbg.AssertingMutex

	No  int
	Dir Direction

	Queue *midi.Queue
	Accum *midi.Accumulator // RX only: bytes -> events

	Kind     backend.Kind
	Path     string
	Pipe     *pipe.Pipe
	Effects  Effect

	StartPosition uint32
	EndOffset     uint32

	EnabledByUser   bool
	EnabledByConfig bool
	NeedsReopen     bool
	AnyKeyStarted   bool

	callback Callback
}

// NewDevice returns a Device of the given direction and number, with an
// empty queue and (for RX devices) a ready accumulator.
func NewDevice(no int, dir Direction, pool *midi.Pool) *Device {
	d := &Device{No: no, Dir: dir, Queue: midi.NewQueue()}
	if dir == RX {
		d.Accum = midi.NewAccumulator(pool)
	}
	return d
}

// SetCallback installs the record (RX) or play (TX) callback.
func (d *Device) SetCallback(fn Callback) {
	d.mu.Lock()
	d.callback = fn
	d.mu.Unlock()
}

// Callback returns the currently installed callback, or nil.
func (d *Device) Callback() Callback {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.callback
}

// IsOpen reports whether this device currently has a backend pipe installed.
func (d *Device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Pipe != nil
}

// SetPipe installs (or clears, with nil) the backend pipe for this device.
func (d *Device) SetPipe(p *pipe.Pipe) {
	d.mu.Lock()
	d.Pipe = p
	d.mu.Unlock()
}

// Enabled reports whether both the user and the current configuration allow
// this device to participate in the play/record loop.
func (d *Device) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.EnabledByUser && d.EnabledByConfig
}

// Put inserts ev into this device's queue if the device is enabled,
// otherwise releases it back to the pool. Grounded on umidi20_put_queue.
// Callers must not already hold d.mu: Enabled acquires it itself.
func (d *Device) Put(ev *midi.Event, pool *midi.Pool) {
	d.mu.AssertNotOwned()
	if !d.Enabled() {
		pool.Release(ev)
		return
	}
	d.Queue.Insert(ev, midi.CacheOther)
}

// DrainAndReset empties this device's queue, releasing every event
// (and any fragment chain) back to pool, and, for RX devices, resets the
// byte parser and discards any in-progress sysex fragment. Grounded on
// umidi20_device_stop's unconditional umidi20_convert_reset +
// umidi20_event_queue_drain calls.
func (d *Device) DrainAndReset(pool *midi.Pool) {
	if d.Accum != nil {
		d.Accum.Reset()
	}
	for _, ev := range d.Queue.Drain() {
		releaseChain(ev, pool)
	}
}

func releaseChain(ev *midi.Event, pool *midi.Pool) {
	for e := ev; e != nil; {
		next := e.NextFragment
		pool.Release(e)
		e = next
	}
}
