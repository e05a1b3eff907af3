package clock

import (
	"testing"
	"time"
)

func TestDiffMillis(t *testing.T) {
	c := New()
	a := c.Now()
	b := a.Add(250 * time.Millisecond)

	if got := DiffMillis(b, a); got != 250 {
		t.Errorf("expected 250ms diff, got %d", got)
	}
}

func TestDiffMillis32Wraparound(t *testing.T) {
	epoch := time.Unix(0, 0)
	later := epoch.Add(500 * time.Millisecond)

	if got := DiffMillis32(later, epoch); got != 500 {
		t.Errorf("expected 500, got %d", got)
	}

	// a slightly before b should come back negative, not a huge positive
	// number, matching the modular comparison used by the scheduler.
	if got := DiffMillis32(epoch, later); got != -500 {
		t.Errorf("expected -500, got %d", got)
	}
}
