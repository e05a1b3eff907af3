// Package song implements the Song/Track data model and the per-song
// playback/record worker, grounded on umidi20_song/_track and
// umidi20_watchdog_song_sub in the original implementation.
package song

import "github.com/justyntemme/umidi20go/pkg/midi"

// bandSize mirrors UMIDI20_BAND_SIZE: the width, in semitones, of one
// "band" used to bucket a track's key range for display/analysis purposes.
const bandSize = 24

const metaTrackName = 0x03
const metaInstrumentName = 0x04
const metaEndOfTrack = 0x2F

// Track is a named ordered queue of events plus cached summary statistics.
type Track struct {
	Name       string
	Instrument string
	Queue      *midi.Queue
	Mute       bool

	PositionMax uint32
	KeyMin      uint8
	KeyMax      uint8
	BandMin     int
	BandMax     int
}

// NewTrack returns an empty, unmuted Track.
func NewTrack() *Track {
	return &Track{Queue: midi.NewQueue()}
}

// Free drains and releases every event in the track's queue back to pool.
func (t *Track) Free(pool *midi.Pool) {
	for _, ev := range t.Queue.Drain() {
		pool.Release(ev)
	}
}

// ComputeMaxMin walks the track once, recording its key range, name and
// instrument (from meta events 0x03/0x04), per-note durations (by matching
// each note-on to its corresponding note-off by key), and PositionMax.
// Grounded on umidi20_track_compute_max_min.
func (t *Track) ComputeMaxMin() {
	events := t.Queue.All()

	var lastKeyPress [128]*midi.Event
	keyMin, keyMax := uint8(0), uint8(0)
	sawKey := false
	var posMax uint32

	for _, ev := range events {
		if ev.Position > posMax {
			posMax = ev.Position
		}

		if ev.IsMeta() {
			p := ev.FullPayload()
			if len(p) >= 2 {
				switch p[1] {
				case metaTrackName:
					t.Name = metaString(p)
				case metaInstrumentName:
					t.Instrument = metaString(p)
				}
			}
			continue
		}

		if !ev.IsVoice() {
			continue
		}

		key := ev.Key()
		switch {
		case ev.IsKeyStart():
			if !sawKey || key < keyMin {
				keyMin = key
			}
			if !sawKey || key > keyMax {
				keyMax = key
			}
			sawKey = true
			lastKeyPress[key] = ev
		case ev.IsKeyEnd():
			if onEv := lastKeyPress[key]; onEv != nil {
				onEv.Duration = ev.Position - onEv.Position
				lastKeyPress[key] = nil
			}
		}
	}

	if !sawKey {
		keyMin, keyMax = 0x3C, 0x3C // degenerate case: default to middle C
	}

	t.KeyMin, t.KeyMax = keyMin, keyMax
	t.BandMin = keyToBandNumber(keyMin)
	t.BandMax = keyToBandNumber(keyMax)
	t.PositionMax = posMax
}

// keyToBandNumber mirrors UMIDI20_KEY_TO_BAND_NUMBER: a key is offset by one
// octave before being bucketed into bands of bandSize keys, so middle C (60)
// is the lowest key of band 3.
func keyToBandNumber(key uint8) int {
	return (int(key) + 12) / bandSize
}

// metaString extracts the text payload of a meta event: the SMF reader
// already consumes the event's own VLQ length prefix, so a meta event's
// Payload (and its NextFragment chain, for text longer than one fragment)
// holds [0xFF, meta-number, text...] with no length byte of its own.
func metaString(payload []byte) string {
	if len(payload) < 2 {
		return ""
	}
	return string(payload[2:])
}
