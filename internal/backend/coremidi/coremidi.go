// Package coremidi implements the backend.Backend interface as an
// always-fails stub, for non-macOS builds where no CoreMIDI implementation
// is available. Grounded on umidi20_coremidi_dummy.c, which the original
// build substitutes on every platform other than Darwin: every enumerate
// call reports no ports and every open call fails.
package coremidi

import (
	"errors"

	"github.com/justyntemme/umidi20go/pkg/backend"
	"github.com/justyntemme/umidi20go/pkg/pipe"
)

// ErrUnsupported is returned by every Backend method that would otherwise
// touch CoreMIDI.
var ErrUnsupported = errors.New("coremidi: not supported on this platform")

// Backend is a stateless stand-in; it never succeeds at anything.
type Backend struct{}

// New returns the stub backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Init(clientName string) error { return ErrUnsupported }

func (b *Backend) EnumerateInputs() ([]string, error)  { return nil, nil }
func (b *Backend) EnumerateOutputs() ([]string, error) { return nil, nil }

func (b *Backend) RxOpen(index int, name string) (*pipe.Pipe, error) { return nil, ErrUnsupported }
func (b *Backend) TxOpen(index int, name string) (*pipe.Pipe, error) { return nil, ErrUnsupported }

func (b *Backend) RxClose(index int) error { return ErrUnsupported }
func (b *Backend) TxClose(index int) error { return ErrUnsupported }

var _ backend.Backend = (*Backend)(nil)
