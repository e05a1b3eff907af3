package smf

import "github.com/justyntemme/umidi20go/pkg/midi"

// buildChain splits full (a complete logical payload: a short command, a
// sysex blob including its 0xF0/0xF7 framing, or a meta event's
// [0xFF, meta-number, data...]) into 7-byte fragments chained the same way
// a live Parser/Accumulator chain would be, so downstream code (Track
// analysis, the scheduler's TX writer) handles loaded-from-file events
// identically to recorded ones.
func buildChain(pool *midi.Pool, full []byte) *midi.Event {
	if len(full) == 0 {
		return nil
	}
	if len(full) <= 7 {
		ev := pool.Acquire()
		ev.Cmd[0] = byte(midi.PacketKind(len(full)))
		copy(ev.Cmd[1:], full)
		return ev
	}

	var head, tail *midi.Event
	first := true
	off := 0
	for off < len(full) {
		remaining := len(full) - off
		if remaining > 7 {
			ev := pool.Acquire()
			if first {
				ev.Cmd[0] = byte(midi.KindSysexContinueTag)
			} else {
				ev.Cmd[0] = byte(midi.KindSysexContinues)
			}
			copy(ev.Cmd[1:], full[off:off+7])
			off += 7
			first = false
			if head == nil {
				head = ev
			} else {
				tail.NextFragment = ev
			}
			tail = ev
		} else {
			ev := pool.Acquire()
			ev.Cmd[0] = byte(midi.PacketKind(remaining))
			copy(ev.Cmd[1:], full[off:])
			off += remaining
			if head == nil {
				head = ev
			} else {
				tail.NextFragment = ev
			}
			tail = ev
		}
	}
	return head
}
