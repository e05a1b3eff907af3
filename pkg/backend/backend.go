// Package backend defines the abstract transport interface every concrete
// MIDI backend (character device, JACK, ALSA sequencer, CoreMIDI) must
// implement, plus the table-driven dispatch the file-refresh worker uses to
// open and close devices without depending on any concrete backend package.
package backend

import "github.com/justyntemme/umidi20go/pkg/pipe"

// Kind is a closed set of transport kinds, matching the tagged variant
// described in spec.md §9 "Design Notes".
type Kind uint8

const (
	Disabled Kind = iota
	CharDev
	JACK
	CoreMIDI
	ALSA
)

// String returns the backend kind's name, used in log lines and config
// files.
func (k Kind) String() string {
	switch k {
	case Disabled:
		return "disabled"
	case CharDev:
		return "chardev"
	case JACK:
		return "jack"
	case CoreMIDI:
		return "coremidi"
	case ALSA:
		return "alsa"
	default:
		return "unknown"
	}
}

// Backend is the interface every transport driver implements. Every method
// is safe to call concurrently with itself and with the other methods
// except where noted.
type Backend interface {
	// EnumerateInputs and EnumerateOutputs list the port names currently
	// visible to this backend, suffixed with "#N" on duplicates.
	EnumerateInputs() ([]string, error)
	EnumerateOutputs() ([]string, error)

	// RxOpen installs a pipe the backend will feed with incoming raw MIDI
	// bytes read from the named input port, returning it. The pipe's
	// lifetime ends at the matching RxClose.
	RxOpen(index int, name string) (*pipe.Pipe, error)

	// TxOpen installs a pipe the backend will drain and write to the named
	// output port. Writing to the returned pipe wakes the backend's
	// transmit worker via the pipe's callback.
	TxOpen(index int, name string) (*pipe.Pipe, error)

	RxClose(index int) error
	TxClose(index int) error

	// Init prepares the backend (e.g. connecting to a JACK server) under
	// the given client name.
	Init(clientName string) error
}

// Registry maps backend kinds to their concrete implementation, used by the
// file-refresh worker (pkg/scheduler) to dispatch open/close calls without
// importing any concrete backend package directly.
type Registry map[Kind]Backend

// NewRegistry returns an empty Registry; callers register concrete backends
// with Register.
func NewRegistry() Registry {
	return make(Registry)
}

// Register installs b as the implementation for kind.
func (r Registry) Register(kind Kind, b Backend) {
	r[kind] = b
}

// Get returns the backend registered for kind, or nil if none is.
func (r Registry) Get(kind Kind) Backend {
	return r[kind]
}
