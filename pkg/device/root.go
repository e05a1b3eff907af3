package device

import (
	"errors"
	"time"

	"github.com/justyntemme/umidi20go/pkg/clock"
	"github.com/justyntemme/umidi20go/pkg/lockdbg"
	"github.com/justyntemme/umidi20go/pkg/midi"
)

// NumDevices is the fixed number of RX (and, separately, TX) devices the
// engine manages, matching UMIDI20_N_DEVICES in the original
// implementation.
const NumDevices = 16

// StartFlags selects which direction(s) a Start/Stop call affects.
type StartFlags uint8

const (
	FlagPlay StartFlags = 1 << iota
	FlagRecord
	FlagBoth = FlagPlay | FlagRecord
)

// ErrInvalidTimeWindow is returned by Start when the requested window is
// empty or exceeds the 31-bit range the engine's modular position
// arithmetic can represent.
var ErrInvalidTimeWindow = errors.New("device: invalid time window")

const maxOffset = 0x80000000

// Root is the process-wide singleton owning every RX and TX device and the
// shared event pool. Grounded on umidi20_root_device in umidi20.h.
type Root struct {
	mu lockdbg.AssertingMutex

	RX [NumDevices]*Device
	TX [NumDevices]*Device

	Pool  *midi.Pool
	Clock clock.Clock

	startTime time.Time
	currPos   uint32
}

// NewRoot constructs a Root with all thirty-two devices allocated (but
// disabled and with no backend attached) and an empty, unprimed event pool.
func NewRoot() *Root {
	r := &Root{Pool: midi.NewPool(), Clock: clock.New()}
	r.startTime = r.Clock.Now()
	for i := 0; i < NumDevices; i++ {
		r.RX[i] = NewDevice(i, RX, r.Pool)
		r.TX[i] = NewDevice(i, TX, r.Pool)
	}
	return r
}

// CurrPosition returns the engine's current position in milliseconds since
// start, as of the last Tick call. Callers must not already hold r.mu, or
// the Lock below deadlocks instead of making progress.
func (r *Root) CurrPosition() uint32 {
	r.mu.AssertNotOwned()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currPos
}

// Tick samples the clock and updates the engine's current position. Called
// once per play/rec scheduler tick (nominally every 1ms). Callers must not
// already hold r.mu.
func (r *Root) Tick() uint32 {
	r.mu.AssertNotOwned()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currPos = uint32(clock.DiffMillis(r.Clock.Now(), r.startTime))
	return r.currPos
}

// SetRecordCallback installs the record-side callback for RX device devNo.
func (r *Root) SetRecordCallback(devNo int, fn Callback) {
	r.RX[devNo].SetCallback(fn)
}

// SetPlayCallback installs the play-side callback for TX device devNo.
func (r *Root) SetPlayCallback(devNo int, fn Callback) {
	r.TX[devNo].SetCallback(fn)
}

// Start arms the time window [curr-startOffset, curr-startOffset+endOffset)
// on every device selected by flags. Grounded on umidi20_start.
func (r *Root) Start(startOffset, endOffset uint32, flags StartFlags) error {
	if endOffset <= startOffset || endOffset >= maxOffset || startOffset >= maxOffset {
		return ErrInvalidTimeWindow
	}

	curr := r.CurrPosition()
	arm := func(d *Device) {
		d.DrainAndReset(r.Pool)
		d.mu.Lock()
		d.StartPosition = curr - startOffset
		d.EndOffset = endOffset
		d.EnabledByUser = true
		d.mu.Unlock()
	}

	if flags&FlagRecord != 0 {
		for _, d := range r.RX {
			arm(d)
		}
	}
	if flags&FlagPlay != 0 {
		for _, d := range r.TX {
			arm(d)
		}
	}
	return nil
}

// Stop disarms the devices selected by flags. Stopping playback additionally
// emits "all sound off" (CC 0x78) and "hold pedal off" (CC 0x40) on every
// channel of every TX device that ever saw a note start, matching
// umidi20_device_stop's panic-off behavior.
func (r *Root) Stop(flags StartFlags) {
	if flags&FlagRecord != 0 {
		for _, d := range r.RX {
			d.DrainAndReset(r.Pool)
			d.mu.Lock()
			d.EnabledByUser = false
			d.mu.Unlock()
		}
	}
	if flags&FlagPlay != 0 {
		for _, d := range r.TX {
			d.DrainAndReset(r.Pool)
			d.mu.Lock()
			anyKey := d.AnyKeyStarted
			d.EnabledByUser = false
			d.AnyKeyStarted = false
			d.mu.Unlock()

			if anyKey {
				r.panicOff(d)
			}
		}
	}
}

// panicOff enqueues 16 "all sound off" and 16 "hold pedal off" messages (one
// pair per MIDI channel) onto d's output queue. Positions are stamped
// relative to d.StartPosition, matching the convention every other producer
// of a device queue uses (see scheduler.go's recordFrom/playTo), so playTo's
// due-check treats them as immediately due rather than scheduled far in the
// future.
func (r *Root) panicOff(d *Device) {
	d.mu.Lock()
	startPosition := d.StartPosition
	d.mu.Unlock()
	relative := r.CurrPosition() - startPosition

	for ch := uint8(0); ch < 16; ch++ {
		r.enqueueCC(d, relative, ch, 0x78, 0)
	}
	for ch := uint8(0); ch < 16; ch++ {
		r.enqueueCC(d, relative, ch, 0x40, 0)
	}
}

func (r *Root) enqueueCC(d *Device, position uint32, channel, controller, value uint8) {
	ev := r.Pool.Acquire()
	ev.Cmd[0] = byte(midi.KindShort3)
	ev.Cmd[1] = 0xB0 | (channel & 0x0F)
	ev.Cmd[2] = controller
	ev.Cmd[3] = value
	ev.Position = position
	ev.DeviceNo = int8(d.No)
	d.Queue.Insert(ev, midi.CacheOther)
}

// AllDevicesOff stops both directions on every device, matching
// umidi20_all_dev_off.
func (r *Root) AllDevicesOff() {
	r.Stop(FlagBoth)
}
