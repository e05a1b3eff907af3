package smf

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/justyntemme/umidi20go/pkg/midi"
	"github.com/justyntemme/umidi20go/pkg/song"
)

// ErrBadHeader is returned by Load when the input is neither a bare SMF
// stream nor a RIFF/RMID-wrapped one.
var ErrBadHeader = errors.New("smf: not an MThd/RIFF-RMID stream")

// buildShort constructs a single, unchained short-command event (a
// channel-voice message or one of the F1-F3/F8/FA-FC system messages) with
// the correct KindShortN framing.
func buildShort(pool *midi.Pool, data ...byte) *midi.Event {
	ev := pool.Acquire()
	ev.Cmd[0] = byte(shortKindFor(len(data)))
	copy(ev.Cmd[1:], data)
	return ev
}

func shortKindFor(n int) midi.PacketKind {
	return midi.PacketKind(8 + n)
}

// Load parses an SMF byte stream (optionally RIFF/RMID-wrapped) into a Song,
// then converts every track's tick-domain events into millisecond positions.
// Grounded on umidi20_load_file.
func Load(pool *midi.Pool, data []byte) (*song.Song, error) {
	off := 0

	chunkID, off, err := readChunkID(data, off)
	if err != nil {
		return nil, err
	}
	chunkSize, off, err := readUint32(data, off)
	if err != nil {
		return nil, err
	}
	chunkStart := off

	if bytes.Equal(chunkID, []byte("RIFF")) {
		chunkID, off, err = readChunkID(data, off)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(chunkID, []byte("RMID")) {
			return nil, ErrBadHeader
		}
		chunkID, off, err = readChunkID(data, off)
		if err != nil {
			return nil, err
		}
		if _, off2, err2 := readUint32(data, off); err2 == nil {
			off = off2
		} else {
			return nil, err2
		}
		if !bytes.Equal(chunkID, []byte("data")) {
			return nil, ErrBadHeader
		}
		chunkID, off, err = readChunkID(data, off)
		if err != nil {
			return nil, err
		}
		chunkSize, off, err = readUint32(data, off)
		if err != nil {
			return nil, err
		}
		chunkStart = off
	}

	if !bytes.Equal(chunkID, []byte("MThd")) {
		return nil, ErrBadHeader
	}

	fileFormat, off, err := readUint16(data, off)
	if err != nil {
		return nil, err
	}
	numTracks, off, err := readUint16(data, off)
	if err != nil {
		return nil, err
	}
	if off+2 > len(data) {
		return nil, ErrTruncated
	}
	divByte, resByte := data[off], data[off+1]
	off += 2

	var divType song.DivisionType
	var resolution uint16
	switch int8(divByte) {
	case -24:
		divType, resolution = song.SMPTE24, uint16(resByte)
	case -25:
		divType, resolution = song.SMPTE25, uint16(resByte)
	case -29:
		divType, resolution = song.SMPTE30Drop, uint16(resByte)
	case -30:
		divType, resolution = song.SMPTE30, uint16(resByte)
	default:
		divType = song.PPQ
		resolution = binary.BigEndian.Uint16([]byte{divByte, resByte})
	}

	s := song.New(resolution, divType, song.FileFormat(fileFormat))

	// forwards compatibility: skip any extra header bytes.
	off = chunkStart + int(chunkSize)

	tracksRead := 0
	for tracksRead < int(numTracks) {
		chunkID, off, err = readChunkID(data, off)
		if err != nil {
			break // truncated trailer: stop, keep what was read
		}
		chunkSize, off, err = readUint32(data, off)
		if err != nil {
			break
		}
		chunkStart = off

		if bytes.Equal(chunkID, []byte("MTrk")) {
			tr := s.AddTrack()
			readTrack(pool, data, chunkStart, chunkStart+int(chunkSize), tr, tracksRead != 0)
			tracksRead++
		}

		off = chunkStart + int(chunkSize)
	}

	s.RecomputePositions(pool)
	return s, nil
}

func readTrack(pool *midi.Pool, data []byte, start, end int, tr *song.Track, isNonConductor bool) {
	off := start
	var tick uint32
	var runningStatus byte
	atEnd := false

	for off < end && !atEnd {
		var delta uint32
		var err error
		delta, off, err = readVLQ(data, off)
		if err != nil {
			return
		}
		tick += delta

		if off >= end {
			return
		}
		status := data[off]
		if status&0x80 != 0 {
			off++
			runningStatus = status
		} else {
			status = runningStatus
		}

		var ev *midi.Event

		switch status >> 4 {
		case 0x8, 0x9, 0xA, 0xB, 0xE:
			if off+2 > len(data) {
				return
			}
			d1, d2 := data[off]&0x7F, data[off+1]&0x7F
			off += 2
			ev = buildShort(pool, status, d1, d2)
		case 0xC, 0xD:
			if off+1 > len(data) {
				return
			}
			d1 := data[off] & 0x7F
			off++
			ev = buildShort(pool, status, d1)
		case 0xF:
			switch status {
			case 0xF1, 0xF3:
				if off+1 > len(data) {
					return
				}
				d1 := data[off] & 0x7F
				off++
				ev = buildShort(pool, status, d1)
			case 0xF2:
				if off+2 > len(data) {
					return
				}
				d1, d2 := data[off]&0x7F, data[off+1]&0x7F
				off += 2
				ev = buildShort(pool, status, d1, d2)
			case 0xF8, 0xFA, 0xFB, 0xFC:
				ev = buildShort(pool, status)
			case 0xF0, 0xF7:
				var dataLen uint32
				dataLen, off, err = readVLQ(data, off)
				if err != nil || off+int(dataLen) > len(data) {
					return
				}
				full := make([]byte, 0, dataLen+2)
				full = append(full, 0xF0)
				full = append(full, data[off:off+int(dataLen)]...)
				full = append(full, 0xF7)
				off += int(dataLen)
				ev = buildChain(pool, full)
			case 0xFF:
				if off >= len(data) {
					return
				}
				metaNum := data[off] & 0x7F
				off++
				var dataLen uint32
				dataLen, off, err = readVLQ(data, off)
				if err != nil || off+int(dataLen) > len(data) {
					return
				}
				metaData := data[off : off+int(dataLen)]
				off += int(dataLen)

				if metaNum == 0x51 && isNonConductor {
					// discard tempo information on non-conductor tracks
				} else if metaNum == 0x2F {
					atEnd = true
				} else {
					full := make([]byte, 0, dataLen+2)
					full = append(full, 0xFF, metaNum)
					full = append(full, metaData...)
					ev = buildChain(pool, full)
				}
			default:
				// unrecognized status: no event
			}
		}

		if ev != nil {
			ev.Tick = tick
			ev.Position = tick
			tr.Queue.Insert(ev, midi.CacheInput)
		}
	}
}

func readChunkID(data []byte, off int) ([]byte, int, error) {
	if off+4 > len(data) {
		return nil, off, ErrTruncated
	}
	return data[off : off+4], off + 4, nil
}

func readUint32(data []byte, off int) (uint32, int, error) {
	if off+4 > len(data) {
		return 0, off, ErrTruncated
	}
	return binary.BigEndian.Uint32(data[off : off+4]), off + 4, nil
}

func readUint16(data []byte, off int) (uint16, int, error) {
	if off+2 > len(data) {
		return 0, off, ErrTruncated
	}
	return binary.BigEndian.Uint16(data[off : off+2]), off + 2, nil
}
