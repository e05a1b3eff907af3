// Package alsa implements the backend.Backend interface over the Linux ALSA
// sequencer, via gomidi's real-time MIDI driver.
package alsa

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/justyntemme/umidi20go/pkg/backend"
	"github.com/justyntemme/umidi20go/pkg/pipe"
)

type rxEndpoint struct {
	in   drivers.In
	stop func()
}

type txEndpoint struct {
	out  drivers.Out
	send func(midi.Message) error
	pipe *pipe.Pipe
}

// Backend binds RX indices to ALSA sequencer input ports and TX indices to
// output ports, both looked up by name at open time.
type Backend struct {
	mu sync.Mutex
	rx map[int]*rxEndpoint
	tx map[int]*txEndpoint
}

// New returns an unopened Backend.
func New() *Backend {
	return &Backend{rx: map[int]*rxEndpoint{}, tx: map[int]*txEndpoint{}}
}

// Init is a no-op: rtmididrv registers itself as the default driver on
// import and needs no client handshake.
func (b *Backend) Init(clientName string) error { return nil }

// EnumerateInputs and EnumerateOutputs list the ALSA sequencer ports
// currently visible, suffixed with "#N" on name collisions.
func (b *Backend) EnumerateInputs() ([]string, error) {
	ins := midi.InPorts()
	names := make([]string, len(ins))
	for i, p := range ins {
		names[i] = p.String()
	}
	return disambiguate(names), nil
}

func (b *Backend) EnumerateOutputs() ([]string, error) {
	outs := midi.OutPorts()
	names := make([]string, len(outs))
	for i, p := range outs {
		names[i] = p.String()
	}
	return disambiguate(names), nil
}

// disambiguate appends "#N" to every name after its first occurrence,
// matching the "#N" duplicate-name syntax used across every backend.
func disambiguate(names []string) []string {
	seen := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		count := seen[n]
		seen[n] = count + 1
		if count == 0 {
			out[i] = n
		} else {
			out[i] = fmt.Sprintf("%s#%d", n, count)
		}
	}
	return out
}

// RxOpen finds the named input port and starts listening, writing every
// incoming message's raw bytes into the returned pipe.
func (b *Backend) RxOpen(index int, name string) (*pipe.Pipe, error) {
	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("alsa: input port %q not found: %w", name, err)
	}

	p := pipe.NewDefault()
	stop, err := midi.ListenTo(in, func(msg []byte, timestampMs int32) {
		p.Write(msg)
	})
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.rx[index] = &rxEndpoint{in: in, stop: stop}
	b.mu.Unlock()
	return p, nil
}

// TxOpen finds the named output port and installs a pipe callback that
// forwards every write straight to the port.
func (b *Backend) TxOpen(index int, name string) (*pipe.Pipe, error) {
	out, err := midi.FindOutPort(name)
	if err != nil {
		return nil, fmt.Errorf("alsa: output port %q not found: %w", name, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, err
	}

	p := pipe.NewDefault()
	ep := &txEndpoint{out: out, send: send, pipe: p}
	p.SetCallback(func() {
		var buf [64]byte
		n := p.Read(buf[:])
		for n > 0 {
			ep.send(midi.Message(append([]byte(nil), buf[:n]...)))
			n = p.Read(buf[:])
		}
	})

	b.mu.Lock()
	b.tx[index] = ep
	b.mu.Unlock()
	return p, nil
}

// RxClose stops listening on the RX endpoint at index.
func (b *Backend) RxClose(index int) error {
	b.mu.Lock()
	ep, ok := b.rx[index]
	delete(b.rx, index)
	b.mu.Unlock()
	if !ok {
		return nil
	}
	ep.stop()
	return nil
}

// TxClose clears the pipe callback for the TX endpoint at index.
func (b *Backend) TxClose(index int) error {
	b.mu.Lock()
	ep, ok := b.tx[index]
	delete(b.tx, index)
	b.mu.Unlock()
	if !ok {
		return nil
	}
	ep.pipe.SetCallback(nil)
	return nil
}

var _ backend.Backend = (*Backend)(nil)
