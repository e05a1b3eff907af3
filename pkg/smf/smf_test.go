package smf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/justyntemme/umidi20go/pkg/midi"
	"github.com/justyntemme/umidi20go/pkg/song"
)

func u32be(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func u16be(v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return b[:]
}

// buildTrackChunk assembles one "MTrk" chunk from a list of (deltaTick, raw
// event bytes) pairs, terminated with the mandatory end-of-track meta event.
func buildTrackChunk(events [][]byte) []byte {
	var body []byte
	for _, e := range events {
		body = append(body, e...)
	}
	body = append(body, 0x00, 0xFF, 0x2F, 0x00)

	var chunk []byte
	chunk = append(chunk, "MTrk"...)
	chunk = append(chunk, u32be(uint32(len(body)))...)
	chunk = append(chunk, body...)
	return chunk
}

// TestSMFRoundTripScenario reproduces spec scenario 4: a hand-built format-1
// file with resolution 480, a conductor track holding one tempo event
// (120 BPM) at tick 0, and a second track with a note-on at tick 0 and a
// note-off at tick 480. After Load (which always ends with
// RecomputePositions), the note-off's Position must be 500ms.
func TestSMFRoundTripScenario(t *testing.T) {
	conductorChunk := buildTrackChunk([][]byte{
		{0x00, 0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20}, // 120 BPM = 500000us = 0x07A120
	})
	track1Chunk := buildTrackChunk([][]byte{
		{0x00, 0x90, 0x3C, 0x40},       // delta 0, note-on C4 vel64
		{0x83, 0x60, 0x80, 0x3C, 0x00}, // delta 480 (VLQ: 0x83 0x60), note-off
	})

	var file []byte
	file = append(file, "MThd"...)
	file = append(file, u32be(6)...)
	file = append(file, u16be(1)...) // format 1
	file = append(file, u16be(2)...) // 2 tracks
	file = append(file, u16be(480)...)
	file = append(file, conductorChunk...)
	file = append(file, track1Chunk...)

	pool := midi.NewPool()
	s, err := Load(pool, file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(s.Tracks))
	}

	track1 := s.Tracks[1]
	events := track1.Queue.All()
	if len(events) != 2 {
		t.Fatalf("expected 2 events on track 1, got %d", len(events))
	}
	if events[1].Position != 500 {
		t.Errorf("expected note-off position 500ms, got %d", events[1].Position)
	}
}

func TestDivisionByteSMPTE25Boundary(t *testing.T) {
	file := append([]byte{}, "MThd"...)
	file = append(file, u32be(6)...)
	file = append(file, u16be(1)...)
	file = append(file, u16be(0)...)
	file = append(file, 0xE7, 0x28) // -25, resolution 40

	pool := midi.NewPool()
	s, err := Load(pool, file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.DivisionType != song.SMPTE25 {
		t.Errorf("expected SMPTE25, got %d", s.DivisionType)
	}
	if s.Resolution != 40 {
		t.Errorf("expected resolution 40, got %d", s.Resolution)
	}
}

func TestSaveLoadShortEventRoundTrip(t *testing.T) {
	pool := midi.NewPool()
	s := song.New(500, song.PPQ, song.Format1)
	tr := s.AddTrack()

	ev := pool.Acquire()
	ev.Cmd[0] = byte(midi.KindShort3)
	ev.Cmd[1] = 0x90
	ev.Cmd[2] = 0x40
	ev.Cmd[3] = 0x60
	ev.Position = 100
	ev.Tick = 100
	tr.Queue.Insert(ev, midi.CacheEdit)

	data := Save(s, pool)

	loaded, err := Load(pool, data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(loaded.Tracks))
	}
	events := loaded.Tracks[0].Queue.All()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	p := events[0].Payload()
	if p[0] != 0x90 || p[1] != 0x40 || p[2] != 0x60 {
		t.Errorf("expected note-on 0x90 0x40 0x60, got % x", p)
	}
}

func TestVLQRoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 127, 128, 16383, 16384, 2097151, 268435455}
	for _, v := range cases {
		buf := writeVLQ(nil, v)
		got, n, err := readVLQ(buf, 0)
		if err != nil {
			t.Fatalf("readVLQ(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("VLQ round trip: want %d got %d", v, got)
		}
		if n != len(buf) {
			t.Errorf("VLQ consumed %d of %d bytes", n, len(buf))
		}
	}
}

func TestRIFFWrapperAccepted(t *testing.T) {
	inner := append([]byte{}, "MThd"...)
	inner = append(inner, u32be(6)...)
	inner = append(inner, u16be(0)...)
	inner = append(inner, u16be(0)...)
	inner = append(inner, u16be(120)...)

	var file []byte
	file = append(file, "RIFF"...)
	file = append(file, u32be(uint32(len(inner)+12))...)
	file = append(file, "RMID"...)
	file = append(file, "data"...)
	file = append(file, u32be(uint32(len(inner)))...)
	file = append(file, inner...)

	pool := midi.NewPool()
	s, err := Load(pool, file)
	if err != nil {
		t.Fatalf("Load RIFF-wrapped SMF: %v", err)
	}
	if s.Resolution != 120 {
		t.Errorf("expected resolution 120, got %d", s.Resolution)
	}
}

func TestSysexRoundTrip(t *testing.T) {
	pool := midi.NewPool()
	s := song.New(500, song.PPQ, song.Format0)
	tr := s.AddTrack()

	full := append([]byte{0xF0}, 0x7E, 0x7F, 0x06, 0x01)
	full = append(full, 0xF7)
	ev := buildChain(pool, full)
	ev.Position = 0
	ev.Tick = 0
	tr.Queue.Insert(ev, midi.CacheEdit)

	data := Save(s, pool)
	loaded, err := Load(pool, data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := loaded.Tracks[0].Queue.All()
	if len(got) != 1 {
		t.Fatalf("expected 1 sysex event, got %d", len(got))
	}
	full2 := got[0].FullPayload()
	if !bytes.Equal(full2, []byte{0xF0, 0x7E, 0x7F, 0x06, 0x01, 0xF7}) {
		t.Errorf("sysex round trip mismatch: got % x", full2)
	}
}
