// Package chardev implements the backend.Backend interface over raw
// character-device file descriptors, grounded on umidi20_cdev.c's
// non-blocking read/write handling of /dev nodes.
package chardev

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/justyntemme/umidi20go/pkg/backend"
	"github.com/justyntemme/umidi20go/pkg/pipe"
)

const pollInterval = 1 * time.Millisecond
const chunkSize = 64

// Backend opens device paths directly; it never enumerates /dev on its own
// (unlike umidi20_cdev_alloc_outputs' directory scan) since path selection
// here is driven entirely by configuration.
type Backend struct {
	mu sync.Mutex
	rx map[int]*endpoint
	tx map[int]*endpoint
}

type endpoint struct {
	fd   int
	pipe *pipe.Pipe
	stop chan struct{}
	wake chan struct{}
}

// New returns an unopened Backend.
func New() *Backend {
	return &Backend{rx: map[int]*endpoint{}, tx: map[int]*endpoint{}}
}

// Init is a no-op: character devices need no client handshake.
func (b *Backend) Init(clientName string) error { return nil }

// EnumerateInputs and EnumerateOutputs report no ports: char-dev paths are
// supplied directly by configuration, not discovered.
func (b *Backend) EnumerateInputs() ([]string, error)  { return nil, nil }
func (b *Backend) EnumerateOutputs() ([]string, error) { return nil, nil }

// RxOpen opens name read-only, non-blocking, and starts a poll loop that
// feeds whatever bytes arrive into the returned pipe.
func (b *Backend) RxOpen(index int, name string) (*pipe.Pipe, error) {
	fd, err := unix.Open(name, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}

	p := pipe.NewDefault()
	ep := &endpoint{fd: fd, pipe: p, stop: make(chan struct{})}

	b.mu.Lock()
	b.rx[index] = ep
	b.mu.Unlock()

	go ep.pollRead()
	return p, nil
}

func (e *endpoint) pollRead() {
	var buf [chunkSize]byte
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-t.C:
			n, err := unix.Read(e.fd, buf[:])
			if err != nil {
				if err == unix.EAGAIN {
					continue
				}
				return
			}
			if n > 0 {
				e.pipe.Write(buf[:n])
			}
		}
	}
}

// TxOpen opens name write-only (blocking) and starts a drain loop that
// wakes on the pipe's write callback and writes whatever it finds to the
// device.
func (b *Backend) TxOpen(index int, name string) (*pipe.Pipe, error) {
	fd, err := unix.Open(name, unix.O_WRONLY, 0)
	if err != nil {
		return nil, err
	}

	p := pipe.NewDefault()
	ep := &endpoint{fd: fd, pipe: p, stop: make(chan struct{}), wake: make(chan struct{}, 1)}
	p.SetCallback(func() {
		select {
		case ep.wake <- struct{}{}:
		default:
		}
	})

	b.mu.Lock()
	b.tx[index] = ep
	b.mu.Unlock()

	go ep.drainWrite()
	return p, nil
}

func (e *endpoint) drainWrite() {
	var buf [chunkSize]byte
	for {
		select {
		case <-e.stop:
			return
		case <-e.wake:
			for {
				n := e.pipe.Read(buf[:])
				if n == 0 {
					break
				}
				unix.Write(e.fd, buf[:n])
			}
		}
	}
}

// RxClose stops the poll loop and closes the descriptor.
func (b *Backend) RxClose(index int) error {
	b.mu.Lock()
	ep, ok := b.rx[index]
	delete(b.rx, index)
	b.mu.Unlock()
	if !ok {
		return nil
	}
	close(ep.stop)
	return unix.Close(ep.fd)
}

// TxClose stops the drain loop and closes the descriptor.
func (b *Backend) TxClose(index int) error {
	b.mu.Lock()
	ep, ok := b.tx[index]
	delete(b.tx, index)
	b.mu.Unlock()
	if !ok {
		return nil
	}
	close(ep.stop)
	return unix.Close(ep.fd)
}

var _ backend.Backend = (*Backend)(nil)
