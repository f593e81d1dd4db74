// Package protocol implements the live protocol router and the
// shared Decoder contract every pulse-level decoder (fixed-code and
// rolling-code) satisfies (spec.md §4.7, §9 design notes).
package protocol

import "github.com/evilcrow/subghz-gadget/internal/model"

// Timing is the per-decoder timing constant set named in spec.md
// §4.7: te_short, te_long, te_delta (tolerance) and the minimum bit
// count before a result may be emitted.
type Timing struct {
	TEShort    uint32 // microseconds
	TELong     uint32
	TEDelta    uint32
	MinCountBit int
}

// Within reports whether duration matches target within the
// decoder's timing tolerance.
func (t Timing) Within(duration, target uint32) bool {
	lo, hi := target, target
	if t.TEDelta > target {
		lo = 0
	} else {
		lo = target - t.TEDelta
	}
	hi = target + t.TEDelta
	return duration >= lo && duration <= hi
}

// Decoder is the homogeneous trait every pulse-level protocol
// implements (spec.md §9 design notes): registration is static, not
// runtime, via the registries each sub-package exposes.
type Decoder interface {
	Name() string
	Timing() Timing
	Reset()
	// Feed advances the decoder's state machine by one (level,
	// duration) pair and reports whether a result is now ready.
	Feed(high bool, durationUs uint32) bool
	// Result returns the most recently completed decode. Valid only
	// immediately after Feed returns true; the decoder resets itself
	// once Result has been read by the router.
	Result() model.DecodedResult
	// CanEmulate reports whether this decoder can also drive a
	// transmit/emulate pulse template for the named sub-type (used by
	// the brute-force engine's protocol-table reuse, spec.md §4.8).
	CanEmulate(subType string) bool
	// GeneratePulseData renders a DecodedResult back into a pulse
	// sequence suitable for transmission, when CanEmulate is true for
	// its SubType.
	GeneratePulseData(result model.DecodedResult) []model.Pulse
}
