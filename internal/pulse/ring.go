// Package pulse implements the edge-triggered pulse-capture pipeline
// described in spec.md §4.1: a bounded, interrupt-safe ring of
// unsigned pulse durations per sub-GHz module, with the noise/glitch
// and inter-frame gates applied at the producer side.
package pulse

import (
	"sync"
	"time"
)

// Capacity is the bounded size of ReceivedSamples (spec.md §3).
const Capacity = 2048

// MaxSignalDuration is the inter-edge gap above which the ring is
// cleared as a frame boundary (spec.md §3, §4.1).
const MaxSignalDuration = 100 * time.Millisecond

// MinPulseDuration is the glitch floor; edges producing a shorter
// duration are dropped (spec.md §4.1).
const MinPulseDuration = 50 * time.Microsecond

// Ring is the per-module ReceivedSamples buffer. It is written only
// by Feed (the ISR in the reference firmware; here, the radio
// backend's edge callback) and read under CopyAndClear, mirroring the
// "enter critical section, drain" idiom of the reference design
// (spec.md §9).
//
// Ring never allocates on the hot path: samples are stored in a
// fixed-size array and Feed never grows it.
type Ring struct {
	mu           sync.Mutex
	samples      [Capacity]uint32
	size         int
	lastEdge     time.Time
	haveLastEdge bool
}

// Feed records one edge at time now. It returns false if the edge was
// dropped (glitch or full ring) and true if it produced a sample or
// started a fresh capture.
func (r *Ring) Feed(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.haveLastEdge {
		r.lastEdge = now
		r.haveLastEdge = true
		return true
	}

	d := now.Sub(r.lastEdge)
	if d > MaxSignalDuration {
		// Inter-frame gap: reset and treat this edge as the first of a
		// new capture.
		r.size = 0
		r.lastEdge = now
		return true
	}
	if d < MinPulseDuration {
		// Glitch: drop without advancing lastEdge so the next edge is
		// measured from the same reference point.
		return false
	}
	r.lastEdge = now
	if r.size >= Capacity {
		// Ring full: drop additional edges until the next gap.
		return false
	}
	r.samples[r.size] = uint32(d.Microseconds())
	r.size++
	return true
}

// Reset clears the ring, as happens when a module is driven to Idle
// (spec.md §4.2).
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.size = 0
	r.haveLastEdge = false
}

// Size reports the number of buffered samples without taking a copy.
func (r *Ring) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Complete reports whether, as of now, the capture looks finished:
// the gap since the last edge exceeds MaxSignalDuration and at least
// two samples are buffered (spec.md §4.1).
func (r *Ring) Complete(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size < 2 || !r.haveLastEdge {
		return false
	}
	return now.Sub(r.lastEdge) > MaxSignalDuration
}

// CopyAndClear copies the buffered samples out and clears the ring,
// under the same critical section as Feed, which is the only
// contract consumers may rely on (spec.md §4.1, §9).
func (r *Ring) CopyAndClear() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == 0 {
		return nil
	}
	out := make([]uint32, r.size)
	copy(out, r.samples[:r.size])
	r.size = 0
	r.haveLastEdge = false
	return out
}
