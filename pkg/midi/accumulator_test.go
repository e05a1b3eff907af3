package midi

import (
	"bytes"
	"testing"
)

func TestAccumulatorShortEvent(t *testing.T) {
	pool := NewPool()
	a := NewAccumulator(pool)

	var got *Event
	for _, b := range []byte{0x90, 0x3C, 0x40} {
		if ev, ok := a.Feed(b); ok {
			got = ev
		}
	}
	if got == nil {
		t.Fatal("expected a finished event")
	}
	if got.NextFragment != nil {
		t.Error("expected no fragment chain for a short event")
	}
}

func TestAccumulatorSysexChain(t *testing.T) {
	pool := NewPool()
	a := NewAccumulator(pool)

	data := []byte{0xF0}
	for i := 0; i < 20; i++ {
		data = append(data, byte(i))
	}
	data = append(data, 0xF7)

	var head *Event
	for _, b := range data {
		if ev, ok := a.Feed(b); ok {
			head = ev
		}
	}
	if head == nil {
		t.Fatal("expected a finished chain")
	}

	var reassembled []byte
	for e := head; e != nil; e = e.NextFragment {
		reassembled = append(reassembled, e.Payload()...)
	}
	if len(reassembled) != len(data) {
		t.Fatalf("expected reassembled length %d, got %d", len(data), len(reassembled))
	}
	for i := range data {
		if reassembled[i] != data[i] {
			t.Fatalf("byte %d: expected %#x, got %#x", i, data[i], reassembled[i])
		}
	}
}

func TestAccumulatorInterruptedChainDiscarded(t *testing.T) {
	pool := NewPool()
	a := NewAccumulator(pool)

	// start a sysex, then abandon it by starting a new one before it
	// terminates.
	for _, b := range []byte{0xF0, 0x01, 0x02} {
		a.Feed(b)
	}
	var got *Event
	for _, b := range []byte{0xF0, 0x03, 0xF7} {
		if ev, ok := a.Feed(b); ok {
			got = ev
		}
	}

	// the finished event carries only the second message, with none of the
	// abandoned one's bytes in it or chained onto it.
	if got == nil {
		t.Fatal("expected the second sysex to finish")
	}
	if got.NextFragment != nil || !bytes.Equal(got.Payload(), []byte{0xF0, 0x03, 0xF7}) {
		t.Errorf("expected only F0 03 F7, got % x (chained: %v)", got.Payload(), got.NextFragment != nil)
	}
}
