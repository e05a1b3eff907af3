package midi

// parserState is the resumable byte-stream parser's current state, matching
// the UMIDI20_ST_* enum in the original implementation exactly. A SYSEX_k
// state means k raw bytes of the fragment currently under construction have
// already been accumulated (the leading 0xF0 counts as the first such
// byte); a data byte arriving in SYSEX_6 completes a full 7-byte fragment.
type parserState uint8

const (
	stateUnknown parserState = iota
	stateOneParam
	stateTwoParam1
	stateTwoParam2
	stateSysex0
	stateSysex1
	stateSysex2
	stateSysex3
	stateSysex4
	stateSysex5
	stateSysex6
)

// Parser converts a raw MIDI byte stream into a sequence of fixed-width
// packets. It is resumable: Feed takes one byte at a time and all progress
// is kept in the Parser between calls, so the packet sequence does not
// depend on how the caller splits the stream into reads. parser_test.go
// checks that a realtime byte inserted anywhere in a stream leaves the other
// packets unchanged.
//
// A sysex fragment's accumulated bytes are the literal MIDI bytes seen,
// including the leading 0xF0 and the terminating 0xF7 where present; the
// parser does not strip framing bytes from the payload it returns.
type Parser struct {
	state        parserState
	temp         [8]byte
	tempLen      int
	firstSysex   bool // true while still building the first fragment of a chain
}

// NewParser returns a Parser ready to consume a fresh byte stream, starting
// in the Unknown state.
func NewParser() *Parser {
	return &Parser{}
}

// Reset returns the parser to its initial state, discarding any
// partially-accumulated command.
func (p *Parser) Reset() {
	p.state = stateUnknown
	p.tempLen = 0
	p.firstSysex = false
}

// Feed consumes one input byte. It returns (kind, payload, true) when the
// byte completes a packet, or (_, _, false) if the byte was consumed but no
// packet is ready yet. The returned payload slice aliases the parser's
// internal buffer and is only valid until the next call to Feed.
func (p *Parser) Feed(b byte) (PacketKind, []byte, bool) {
	switch {
	case b >= 0xF8:
		// realtime message: always a single byte, never disturbs state. It
		// is returned from temp[7], which no other packet uses, so a status
		// or sysex byte held in temp[0] survives.
		p.temp[7] = b
		return KindShort1, p.temp[7:8], true

	case b == 0xF0:
		p.state = stateSysex1
		p.temp[0] = 0xF0
		p.tempLen = 1
		p.firstSysex = true
		return 0, nil, false

	case b == 0xF1, b == 0xF3:
		p.state = stateOneParam
		p.temp[0] = b
		p.tempLen = 1
		return 0, nil, false

	case b == 0xF2:
		p.state = stateTwoParam1
		p.temp[0] = b
		p.tempLen = 1
		return 0, nil, false

	case b == 0xF4, b == 0xF5:
		p.state = stateUnknown
		return 0, nil, false

	case b == 0xF6:
		p.state = stateUnknown
		p.temp[0] = b
		return KindShort1, p.temp[:1], true

	case b == 0xF7:
		return p.finishSysex()

	case b >= 0x80 && b <= 0xBF, b >= 0xE0 && b <= 0xEF:
		p.state = stateTwoParam1
		p.temp[0] = b
		p.tempLen = 1
		return 0, nil, false

	case b >= 0xC0 && b <= 0xDF:
		p.state = stateOneParam
		p.temp[0] = b
		p.tempLen = 1
		return 0, nil, false

	default: // data byte, b < 0x80
		return p.feedDataByte(b)
	}
}

func (p *Parser) feedDataByte(b byte) (PacketKind, []byte, bool) {
	switch p.state {
	case stateOneParam:
		p.temp[1] = b
		p.state = stateUnknown
		return KindShort2, p.temp[:2], true

	case stateTwoParam1:
		p.temp[1] = b
		p.tempLen = 2
		p.state = stateTwoParam2
		return 0, nil, false

	case stateTwoParam2:
		p.temp[2] = b
		// running status: remain ready for another pair of data bytes
		// against the same status byte.
		p.state = stateTwoParam1
		return KindShort3, p.temp[:3], true

	case stateSysex0, stateSysex1, stateSysex2, stateSysex3, stateSysex4, stateSysex5:
		p.temp[p.tempLen] = b
		p.tempLen++
		p.state++
		return 0, nil, false

	case stateSysex6:
		p.temp[6] = b
		kind := KindSysexContinues
		if p.firstSysex {
			kind = KindSysexContinueTag
		}
		p.firstSysex = false
		p.tempLen = 0
		p.state = stateSysex0
		return kind, p.temp[:7], true

	default: // stateUnknown: stray data byte, ignored
		return 0, nil, false
	}
}

// finishSysex completes a sysex chain on receipt of the 0xF7 terminator. The
// terminal kind is (bytes accumulated so far) + 1, covering the terminator
// itself, matching the original's "0x1..0x7 based on k" rule.
func (p *Parser) finishSysex() (PacketKind, []byte, bool) {
	switch p.state {
	case stateSysex0, stateSysex1, stateSysex2, stateSysex3, stateSysex4, stateSysex5, stateSysex6:
		p.temp[p.tempLen] = 0xF7
		kind := PacketKind(p.tempLen + 1)
		n := p.tempLen + 1
		p.state = stateUnknown
		p.tempLen = 0
		p.firstSysex = false
		return kind, p.temp[:n], true
	default:
		p.state = stateUnknown
		return 0, nil, false
	}
}
