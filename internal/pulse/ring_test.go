package pulse

import (
	"testing"
	"time"
)

func TestRingFirstEdgeNoSample(t *testing.T) {
	var r Ring
	t0 := time.Now()
	r.Feed(t0)
	if r.Size() != 0 {
		t.Fatalf("first edge should not yield a sample, got size %d", r.Size())
	}
}

func TestRingGlitchDropped(t *testing.T) {
	var r Ring
	t0 := time.Now()
	r.Feed(t0)
	r.Feed(t0.Add(MinPulseDuration / 2))
	if r.Size() != 0 {
		t.Fatalf("glitch edge should be dropped, got size %d", r.Size())
	}
}

func TestRingGapResets(t *testing.T) {
	var r Ring
	t0 := time.Now()
	r.Feed(t0)
	r.Feed(t0.Add(200 * time.Microsecond))
	if r.Size() != 1 {
		t.Fatalf("expected 1 sample, got %d", r.Size())
	}
	r.Feed(t0.Add(200*time.Microsecond + MaxSignalDuration + time.Millisecond))
	if r.Size() != 0 {
		t.Fatalf("gap should reset ring, got size %d", r.Size())
	}
}

func TestRingCompleteAndCopy(t *testing.T) {
	var r Ring
	t0 := time.Now()
	r.Feed(t0)
	r.Feed(t0.Add(400 * time.Microsecond))
	r.Feed(t0.Add(800 * time.Microsecond))
	if r.Complete(t0.Add(810 * time.Microsecond)) {
		t.Fatal("should not be complete before the gap elapses")
	}
	if !r.Complete(t0.Add(800*time.Microsecond + MaxSignalDuration + time.Millisecond)) {
		t.Fatal("expected complete after the gap elapses")
	}
	samples := r.CopyAndClear()
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0] != 400 || samples[1] != 400 {
		t.Fatalf("unexpected samples: %v", samples)
	}
	if r.Size() != 0 {
		t.Fatal("copy should clear the ring")
	}
}

func TestRingFullDropsExtra(t *testing.T) {
	var r Ring
	t0 := time.Now()
	r.Feed(t0)
	for i := 0; i < Capacity+10; i++ {
		t0 = t0.Add(300 * time.Microsecond)
		r.Feed(t0)
	}
	if r.Size() != Capacity {
		t.Fatalf("expected ring to cap at %d, got %d", Capacity, r.Size())
	}
}
