package alsa

import (
	"reflect"
	"testing"
)

func TestDisambiguateSuffixesDuplicates(t *testing.T) {
	got := disambiguate([]string{"USB MIDI", "USB MIDI", "Keystation", "USB MIDI"})
	want := []string{"USB MIDI", "USB MIDI#1", "Keystation", "USB MIDI#2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("disambiguate: got %v, want %v", got, want)
	}
}

func TestDisambiguateNoDuplicates(t *testing.T) {
	got := disambiguate([]string{"A", "B", "C"})
	want := []string{"A", "B", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("disambiguate: got %v, want %v", got, want)
	}
}

func TestRxOpenUnknownPortFails(t *testing.T) {
	b := New()
	if _, err := b.RxOpen(0, "no-such-port-xyz"); err == nil {
		t.Error("expected error opening a nonexistent input port")
	}
}

func TestTxOpenUnknownPortFails(t *testing.T) {
	b := New()
	if _, err := b.TxOpen(0, "no-such-port-xyz"); err == nil {
		t.Error("expected error opening a nonexistent output port")
	}
}

func TestCloseUnknownIndexIsNoop(t *testing.T) {
	b := New()
	if err := b.RxClose(9); err != nil {
		t.Errorf("RxClose on unopened index: %v", err)
	}
	if err := b.TxClose(9); err != nil {
		t.Errorf("TxClose on unopened index: %v", err)
	}
}
