package song

import (
	"errors"
	"sort"

	"github.com/justyntemme/umidi20go/pkg/lockdbg"
	"github.com/justyntemme/umidi20go/pkg/midi"
)

// DivisionType selects how a song's tick domain maps to real time.
type DivisionType uint8

const (
	PPQ DivisionType = iota
	SMPTE24
	SMPTE25
	SMPTE30Drop
	SMPTE30
)

// FileFormat is the SMF format byte: 0 (single track), 1 (simultaneous
// multi-track, conductor track first), or 2 (independent multi-track).
type FileFormat uint8

const (
	Format0 FileFormat = 0
	Format1 FileFormat = 1
	Format2 FileFormat = 2
)

// bpmFactor is UMIDI20_BPM: the PPQ "beats per minute" scale factor used in
// recompute_positions' factor term.
const bpmFactor = 60000

// ErrInvalidTimeWindow mirrors device.ErrInvalidTimeWindow for song-level
// start/stop windows.
var ErrInvalidTimeWindow = errors.New("song: invalid time window")

const maxOffset = 0x80000000

// PlayFlags selects which of a song's play/record behaviors Start/Stop
// affects.
type PlayFlags uint8

const (
	FlagPlay PlayFlags = 1 << iota
	FlagRecord
	FlagBoth = FlagPlay | FlagRecord
)

// Song is an ordered list of Tracks (the first is the conductor track) plus
// its SMF metadata and playback/record window state.
type Song struct {
	mu lockdbg.AssertingMutex

	Tracks []*Track

	FileFormat   FileFormat
	Resolution   uint16
	DivisionType DivisionType

	RecordTrack *Track // nil disables recording

	PlayEnabled bool
	RecEnabled  bool

	PlayStartPosition uint32
	PlayStartOffset   uint32
	PlayLastOffset    uint32
	PlayEndOffset     uint32

	Filename string
}

// New returns a Song with resolution defaulted to 1 if the caller passes 0,
// mirroring umidi20_song_alloc's resolution-zero guard.
func New(resolution uint16, division DivisionType, format FileFormat) *Song {
	if resolution == 0 {
		resolution = 1
	}
	return &Song{Resolution: resolution, DivisionType: division, FileFormat: format}
}

// Conductor returns the song's conductor track (index 0), or nil if the
// song has no tracks yet.
func (s *Song) Conductor() *Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Tracks) == 0 {
		return nil
	}
	return s.Tracks[0]
}

// AddTrack appends a new track to the song and returns it.
func (s *Song) AddTrack() *Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := NewTrack()
	s.Tracks = append(s.Tracks, t)
	return t
}

// RemoveTrack removes t from the song and releases its events to pool.
func (s *Song) RemoveTrack(t *Track, pool *midi.Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cand := range s.Tracks {
		if cand == t {
			s.Tracks = append(s.Tracks[:i], s.Tracks[i+1:]...)
			t.Free(pool)
			if s.RecordTrack == t {
				s.RecordTrack = nil
			}
			return
		}
	}
}

// SetRecordTrack designates t (which must already belong to the song, or be
// nil to disable recording) as the destination for incoming events.
func (s *Song) SetRecordTrack(t *Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RecordTrack = t
}

// Start arms playback and/or recording over the window
// [startOffset, endOffset) relative to curr.
func (s *Song) Start(curr, startOffset, endOffset uint32, flags PlayFlags) error {
	if endOffset <= startOffset || endOffset >= maxOffset || startOffset >= maxOffset {
		return ErrInvalidTimeWindow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if flags&FlagPlay != 0 {
		s.PlayEnabled = true
		s.PlayStartPosition = curr
		s.PlayStartOffset = startOffset
		s.PlayLastOffset = startOffset
		s.PlayEndOffset = endOffset
	}
	if flags&FlagRecord != 0 {
		s.RecEnabled = true
	}
	return nil
}

// Stop disarms the flagged behaviors. Stopping a behavior that is already
// stopped has no effect.
func (s *Song) Stop(flags PlayFlags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if flags&FlagPlay != 0 {
		s.PlayEnabled = false
	}
	if flags&FlagRecord != 0 {
		s.RecEnabled = false
	}
}

// RecomputePositions converts every track's tick-domain events into
// millisecond Position values. It first copies every tempo event from the
// conductor track into every other track so each owns a complete tempo map,
// then walks each track computing position from ticks using the
// division-specific divisor/factor, carrying the integer-division remainder
// forward, and finally strips all tempo events from non-conductor tracks.
// Grounded on umidi20_song_recompute_position.
func (s *Song) RecomputePositions(pool *midi.Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.Tracks) == 0 {
		return
	}
	conductor := s.Tracks[0]
	tempos := tempoEventsOf(conductor)

	for _, tr := range s.Tracks[1:] {
		for _, tempo := range tempos {
			cp := pool.Acquire()
			cp.Cmd = tempo.Cmd
			cp.Tick = tempo.Tick
			tr.Queue.Insert(cp, midi.CacheEdit)
		}
	}

	for _, tr := range s.Tracks {
		s.recomputeTrackPositions(tr)
	}

	for _, tr := range s.Tracks[1:] {
		stripTempoEvents(tr, pool)
	}
}

func tempoEventsOf(tr *Track) []*midi.Event {
	var out []*midi.Event
	for _, ev := range tr.Queue.All() {
		if ev.IsTempo() {
			out = append(out, ev)
		}
	}
	return out
}

func stripTempoEvents(tr *Track, pool *midi.Pool) {
	for _, ev := range tr.Queue.All() {
		if ev.IsTempo() {
			tr.Queue.Remove(ev)
			pool.Release(ev)
		}
	}
}

// divisorAndFactor returns the PPQ/SMPTE-specific divisor (ticks-per-unit)
// and factor (ms-per-unit numerator) pair used by recomputeTrackPositions,
// for an initial (tempo-less, or PPQ) state; PPQ's divisor is refined
// per-event as tempo events are encountered.
func (s *Song) divisorAndFactor() (divisor, factor float64) {
	switch s.DivisionType {
	case SMPTE24:
		return 24 * float64(s.Resolution), 1000
	case SMPTE25:
		return 25 * float64(s.Resolution), 1000
	case SMPTE30Drop:
		return 29.97 * float64(s.Resolution), 1000
	case SMPTE30:
		return 30 * float64(s.Resolution), 1000
	default: // PPQ
		return 120 * float64(s.Resolution), bpmFactor // 120 BPM default until a tempo event updates it
	}
}

func (s *Song) recomputeTrackPositions(tr *Track) {
	divisor, factor := s.divisorAndFactor()

	// tr.Queue orders by Position, which is meaningless before this pass
	// runs; walk events in tick order instead, per the original algorithm.
	events := tr.Queue.All()
	sort.SliceStable(events, func(i, j int) bool { return events[i].Tick < events[j].Tick })

	var prevTick uint32
	var positionCurr, remainder float64

	for _, ev := range events {
		deltaTicks := float64(ev.Tick - prevTick)
		prevTick = ev.Tick

		step := (deltaTicks+remainder)/divisor*factor
		positionCurr += step
		// carry the fractional ticks forward, not the fractional
		// milliseconds, matching the original's integer-division-with-
		// remainder-carry scheme.
		consumedTicks := float64(int64((deltaTicks + remainder) / divisor * divisor))
		remainder = deltaTicks + remainder - consumedTicks

		ev.Position = uint32(positionCurr)

		if s.DivisionType == PPQ && ev.IsTempo() {
			divisor = float64(ev.TempoBPM()) * float64(s.Resolution)
			remainder = 0
		}
	}

	// Positions were just assigned in tick order, which need not match the
	// queue's prior (stale) position-sorted link order; rebuild it so the
	// queue's non-decreasing-position invariant holds again.
	tr.Queue.Drain()
	for _, ev := range events {
		tr.Queue.Insert(ev, midi.CacheEdit)
	}
}

// RecomputeTicks converts every track's millisecond Position values back
// into the tick domain: forces PPQ division at resolution 500, sets
// Tick = Position for every event, and drops all tempo events. Grounded on
// umidi20_song_recompute_tick. This always-PPQ/500 behavior is preserved
// exactly from the original even though it is not explicit in spec.md's
// prose — see DESIGN.md's Open Question resolutions.
func (s *Song) RecomputeTicks(pool *midi.Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DivisionType = PPQ
	s.Resolution = 500

	for _, tr := range s.Tracks {
		for _, ev := range tr.Queue.All() {
			ev.Tick = ev.Position
		}
		stripTempoEvents(tr, pool)
	}
}

// ComputeMaxMin refreshes every track's cached summary statistics.
func (s *Song) ComputeMaxMin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tr := range s.Tracks {
		tr.ComputeMaxMin()
	}
}
