package song

import (
	"sync"
	"time"

	"github.com/justyntemme/umidi20go/pkg/device"
	"github.com/justyntemme/umidi20go/pkg/midi"
)

// tickInterval is the per-song worker's period, matching
// umidi20_watchdog_song_sub's 250ms cadence.
const tickInterval = 250 * time.Millisecond

// PrefetchHorizonMillis is the deliberate lookahead added to the play
// window's upper bound every tick, giving backends time to receive events
// before they mature. Grounded on umidi20_watchdog_song_sub's hardcoded
// +1500 term.
const PrefetchHorizonMillis = 1500

// Worker drives one Song's record-pull and playback windowing against a
// shared Root. One Worker runs per open Song.
type Worker struct {
	Song *Song
	Root *device.Root
	Pool *midi.Pool

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewWorker returns a Worker for song, not yet started.
func NewWorker(song *Song, root *device.Root, pool *midi.Pool) *Worker {
	return &Worker{Song: song, Root: root, Pool: pool}
}

// Start launches the worker's periodic goroutine.
func (w *Worker) Start() {
	w.stop = make(chan struct{})
	w.wg.Add(1)
	go w.run()
}

// Stop signals the worker to exit and waits for it to do so.
func (w *Worker) Stop() {
	close(w.stop)
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	t := time.NewTicker(tickInterval)
	defer t.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			w.Tick()
		}
	}
}

// Tick performs one record-pull-and-playback-windowing pass. Grounded on
// umidi20_watchdog_song_sub.
func (w *Worker) Tick() {
	curr := w.Root.CurrPosition()

	s := w.Song
	s.mu.Lock()
	recording := s.RecEnabled
	recordTrack := s.RecordTrack
	playing := s.PlayEnabled
	startPos := s.PlayStartPosition
	startOffset := s.PlayStartOffset
	lastOffset := s.PlayLastOffset
	endOffset := s.PlayEndOffset
	tracks := append([]*Track(nil), s.Tracks...)
	s.mu.Unlock()

	if recording && recordTrack != nil {
		w.drainRecordDevices(recordTrack)
	}

	if !playing {
		return
	}

	position := (curr - startPos) + startOffset + PrefetchHorizonMillis
	disable := false
	if position >= endOffset {
		position = endOffset
		disable = true
	}

	scratch := midi.NewQueue()
	for _, tr := range tracks {
		if tr.Mute {
			continue
		}
		tr.Queue.CopyRange(scratch, w.Pool, lastOffset, position, 0, 0xFFFF, midi.CacheOutput)
	}

	w.routeToDevices(scratch)

	s.mu.Lock()
	s.PlayLastOffset = position
	if disable {
		s.PlayEnabled = false
	}
	s.mu.Unlock()
}

// drainRecordDevices moves every queued event from each of the 16 RX devices
// into dst, in device order, an ordered insert per device's contribution.
func (w *Worker) drainRecordDevices(dst *Track) {
	for _, d := range w.Root.RX {
		for _, ev := range d.Queue.Drain() {
			dst.Queue.Insert(ev, midi.CacheInput)
		}
	}
}

// routeToDevices dequeues every event from scratch and inserts it into the
// TX device named by its DeviceNo, discarding events addressed to no device
// or to an out-of-range device number.
func (w *Worker) routeToDevices(scratch *midi.Queue) {
	for {
		ev := scratch.DequeueHead()
		if ev == nil {
			return
		}
		if ev.DeviceNo < 0 || int(ev.DeviceNo) >= device.NumDevices {
			w.Pool.Release(ev)
			continue
		}
		w.Root.TX[ev.DeviceNo].Queue.Insert(ev, midi.CacheInput)
	}
}
