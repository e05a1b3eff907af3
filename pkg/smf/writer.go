package smf

import (
	"encoding/binary"

	"github.com/justyntemme/umidi20go/pkg/midi"
	"github.com/justyntemme/umidi20go/pkg/song"
)

// droppedShortStatus is the set of short-command status bytes the writer
// silently ignores, matching the original's "ignore commands" case.
var droppedShortStatus = map[byte]bool{
	0xF4: true, 0xF5: true, 0xF6: true, 0xF7: true,
	0xF9: true, 0xFD: true, 0xFE: true,
}

// Save forces song into PPQ/resolution-500 tick space (RecomputeTicks,
// discarding RecomputePositions' millisecond timeline and every tempo event,
// the conductor track's included) and serializes it as a bit-exact SMF 1.0 byte
// stream. Grounded on umidi20_save_file/umidi20_save_file_sub.
func Save(s *song.Song, pool *midi.Pool) []byte {
	s.RecomputeTicks(pool)

	var buf []byte
	buf = append(buf, "MThd"...)
	buf = appendUint32(buf, 6)
	buf = appendUint16(buf, uint16(s.FileFormat))
	buf = appendUint16(buf, uint16(len(s.Tracks)))

	switch s.DivisionType {
	case song.SMPTE24:
		buf = append(buf, 0xE8, byte(s.Resolution)) // -24 as a signed byte
	case song.SMPTE25:
		buf = append(buf, 0xE7, byte(s.Resolution)) // -25
	case song.SMPTE30Drop:
		buf = append(buf, 0xE3, byte(s.Resolution)) // -29
	case song.SMPTE30:
		buf = append(buf, 0xE2, byte(s.Resolution)) // -30
	default:
		buf = appendUint16(buf, s.Resolution)
	}

	for _, tr := range s.Tracks {
		buf = writeTrack(buf, tr)
	}
	return buf
}

func writeTrack(buf []byte, tr *song.Track) []byte {
	buf = append(buf, "MTrk"...)
	sizeOffset := len(buf)
	buf = appendUint32(buf, 0) // patched below
	trackStart := len(buf)

	var prevTick uint32
	for _, ev := range tr.Queue.All() {
		status := ev.Payload()[0]
		if droppedShortStatus[status] {
			continue
		}

		buf = writeVLQ(buf, ev.Tick-prevTick)
		prevTick = ev.Tick
		buf = writeEvent(buf, ev, status)
	}

	buf = append(buf, 0x00, 0xFF, 0x2F, 0x00) // delta 0, end of track

	trackEnd := len(buf)
	binary.BigEndian.PutUint32(buf[sizeOffset:sizeOffset+4], uint32(trackEnd-trackStart))
	return buf
}

func writeEvent(buf []byte, ev *midi.Event, status byte) []byte {
	switch status & 0xF0 {
	case 0x80, 0x90, 0xA0, 0xB0, 0xE0:
		p := ev.Payload()
		return append(buf, status, p[1]&0x7F, p[2]&0x7F)
	case 0xC0, 0xD0:
		p := ev.Payload()
		return append(buf, status, p[1]&0x7F)
	}

	switch status {
	case 0xF0:
		inner := stripSysexFraming(ev.FullPayload())
		buf = append(buf, 0xF0)
		buf = writeVLQ(buf, uint32(len(inner)))
		return append(buf, inner...)
	case 0xF1, 0xF3:
		p := ev.Payload()
		return append(buf, status, p[1]&0x7F)
	case 0xF2:
		p := ev.Payload()
		return append(buf, status, p[1]&0x7F, p[2]&0x7F)
	case 0xF8, 0xFA, 0xFB, 0xFC:
		return append(buf, status)
	case 0xFF:
		full := ev.FullPayload()
		metaNum := full[1]
		data := full[2:]
		buf = append(buf, 0xFF, metaNum)
		buf = writeVLQ(buf, uint32(len(data)))
		return append(buf, data...)
	default:
		return append(buf, 0xFE) // dummy, matching the original's fallback
	}
}

// stripSysexFraming removes the leading 0xF0 and trailing 0xF7 synthesized
// by buildChain, leaving just the inner sysex bytes the writer re-frames.
func stripSysexFraming(full []byte) []byte {
	if len(full) >= 2 && full[0] == 0xF0 && full[len(full)-1] == 0xF7 {
		return full[1 : len(full)-1]
	}
	return full
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}
