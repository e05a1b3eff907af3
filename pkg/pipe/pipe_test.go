package pipe

import "testing"

func TestWriteReadRoundTrip(t *testing.T) {
	p := New(16)
	n := p.Write([]byte("hello"))
	if n != 5 {
		t.Fatalf("expected 5 bytes accepted, got %d", n)
	}

	dst := make([]byte, 5)
	got := p.Read(dst)
	if got != 5 || string(dst) != "hello" {
		t.Fatalf("expected to read back hello, got %q (%d)", dst[:got], got)
	}
}

func TestWritePartialOnFull(t *testing.T) {
	p := New(16)
	// fill to 6 free bytes.
	p.Write(make([]byte, 10))

	n := p.Write(make([]byte, 16))
	if n != 6 {
		t.Errorf("expected partial write of 6 bytes into 6 free, got %d", n)
	}
}

func TestReadEmptyReturnsZero(t *testing.T) {
	p := New(16)
	dst := make([]byte, 4)
	if n := p.Read(dst); n != 0 {
		t.Errorf("expected 0 from empty pipe, got %d", n)
	}
}

func TestWraparound(t *testing.T) {
	p := New(4)
	p.Write([]byte{1, 2, 3})
	dst := make([]byte, 2)
	p.Read(dst) // consumer now at 2, total=1

	p.Write([]byte{4, 5, 6}) // wraps around past the end of the buffer

	out := make([]byte, 4)
	n := p.Read(out)
	if n != 4 {
		t.Fatalf("expected 4 bytes, got %d", n)
	}
	want := []byte{3, 4, 5, 6}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("byte %d: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestCallbackFiresAfterWrite(t *testing.T) {
	p := New(16)
	fired := 0
	p.SetCallback(func() { fired++ })

	p.Write([]byte("x"))
	if fired != 1 {
		t.Errorf("expected callback to fire once, got %d", fired)
	}

	// a write that is fully rejected (ring already full) must not fire.
	full := New(1)
	full.Write([]byte("a"))
	calls := 0
	full.SetCallback(func() { calls++ })
	full.Write([]byte("b"))
	if calls != 0 {
		t.Errorf("expected no callback on rejected write, got %d", calls)
	}
}

func TestFreeDropsData(t *testing.T) {
	p := New(16)
	p.Write([]byte("hello"))
	p.Free()
	if p.Len() != 0 {
		t.Errorf("expected 0 length after Free, got %d", p.Len())
	}
}
