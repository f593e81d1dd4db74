// Package rolling implements the vendor-specific rolling-code
// automotive decoders (spec.md §4.7): each keeps its own counter and
// either no cipher (plain learning codes), KeeLoq, AUT64, XTEA/TEA or
// AES-128, matching the original ProtoPirate per-vendor state
// machines. Every decoder satisfies protocol.Decoder so the router
// (internal/protocol) can feed them uniformly.
package rolling

import "github.com/evilcrow/subghz-gadget/internal/protocol"

// pwmState is the shared three-phase shape nearly every rolling
// decoder in this family uses: count a qualifying preamble, observe a
// single sync gap, then collect bits one high-pulse at a time until
// either the expected bit count is reached or a gap well past
// te_long signals end of frame.
type pwmState int

const (
	pwmPreamble pwmState = iota
	pwmSync
	pwmBits
)

// durationDiff returns the absolute difference between a measured
// duration and a reference value, used by decoders that need a
// tolerance wider than the shared Timing.Within band (e.g. Ford V0's
// doubled te_long preamble pulses).
func durationDiff(dur, target uint32) uint32 {
	if dur > target {
		return dur - target
	}
	return target - dur
}

// classifyBit maps a PWM high-phase duration to a bit value. When
// shortIsOne is true a short pulse encodes 1 (Subaru convention);
// otherwise a short pulse encodes 0 (Kia V0 convention). ok is false
// when the duration matches neither reference.
func classifyBit(t protocol.Timing, dur uint32, shortIsOne bool) (bit byte, ok bool) {
	switch t.ClassifyShortLong(dur) {
	case 0:
		if shortIsOne {
			return 1, true
		}
		return 0, true
	case 1:
		if shortIsOne {
			return 0, true
		}
		return 1, true
	default:
		return 0, false
	}
}
