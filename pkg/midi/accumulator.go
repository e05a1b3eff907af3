package midi

// Accumulator wraps a Parser and assembles the packets it emits into
// complete Events, chaining sysex continuation fragments together via
// Event.NextFragment and only surfacing a finished chain once a
// non-continuing kind is produced. This mirrors umidi20_convert_to_event's
// wrapping of umidi20_convert_to_command in the original implementation.
type Accumulator struct {
	parser *Parser
	pool   *Pool

	head *Event // first fragment of the in-progress sysex chain, if any
	tail *Event // last fragment appended so far
}

// NewAccumulator returns an Accumulator that allocates Events from pool and
// parses bytes with its own Parser.
func NewAccumulator(pool *Pool) *Accumulator {
	return &Accumulator{parser: NewParser(), pool: pool}
}

// Feed consumes one raw MIDI byte. It returns the completed Event (the head
// of a, possibly single-fragment, chain) and true once a full message has
// been assembled; otherwise it returns (nil, false).
func (a *Accumulator) Feed(b byte) (*Event, bool) {
	kind, payload, ok := a.parser.Feed(b)
	if !ok {
		return nil, false
	}

	ev := a.pool.Acquire()
	ev.Cmd[0] = byte(kind)
	copy(ev.Cmd[1:], payload)

	if kind.IsSysexContinuation() {
		if kind == KindSysexContinueTag {
			// starting a new chain; free any stale in-progress chain left
			// over from an interrupted previous sysex message.
			a.discardChain()
			a.head = ev
			a.tail = ev
		} else if a.tail != nil {
			a.tail.NextFragment = ev
			a.tail = ev
		} else {
			// a bare continuation with no prior start: treat as a
			// fresh (if malformed) chain head.
			a.head = ev
			a.tail = ev
		}
		return nil, false
	}

	if a.head != nil {
		a.tail.NextFragment = ev
		finished := a.head
		a.head, a.tail = nil, nil
		return finished, true
	}
	return ev, true
}

// discardChain releases any in-progress, never-finished fragment chain back
// to the pool.
func (a *Accumulator) discardChain() {
	for e := a.head; e != nil; {
		next := e.NextFragment
		e.NextFragment = nil
		a.pool.Release(e)
		e = next
	}
	a.head, a.tail = nil, nil
}

// Reset discards any in-progress chain and returns the underlying parser to
// its initial state.
func (a *Accumulator) Reset() {
	a.discardChain()
	a.parser.Reset()
}
