package midi

import "testing"

func TestPoolAcquireReleaseRoundTrip(t *testing.T) {
	p := NewPool()
	ev := p.Acquire()
	ev.Position = 42
	p.Release(ev)

	if p.Len() != 1 {
		t.Fatalf("expected 1 free cell after release, got %d", p.Len())
	}

	again := p.Acquire()
	if again.Position != 0 {
		t.Errorf("expected acquired cell to be reset, got position %d", again.Position)
	}
}

func TestPoolRefillReachesTarget(t *testing.T) {
	p := NewPool()
	p.Refill()
	if p.Len() != PoolTarget {
		t.Errorf("expected %d cells after refill, got %d", PoolTarget, p.Len())
	}

	// refilling again when already at target should be a no-op.
	p.Refill()
	if p.Len() != PoolTarget {
		t.Errorf("expected refill to never exceed target, got %d", p.Len())
	}
}

func TestPoolReleaseNeverExceedsTarget(t *testing.T) {
	p := NewPool()
	p.Refill()
	p.Release(&Event{})
	if p.Len() != PoolTarget {
		t.Errorf("expected release above target to be dropped, got len %d", p.Len())
	}
}
