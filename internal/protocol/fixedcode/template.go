// Package fixedcode implements the brute-forceable fixed-code family
// of garage/gate remotes (spec.md §4.7): binary and tristate
// protocols where a code word is transmitted verbatim, with no
// rolling counter or cipher. A single Template-driven engine decodes
// and re-encodes every member of the family; the per-protocol
// registry (registry.go) supplies each vendor's pilot pattern, symbol
// timing and bit width. The same templates back the brute-force
// engine's keyspace sweep (internal/bruteforce), which re-uses
// Template.Encode directly rather than re-deriving pulse timing.
package fixedcode

import (
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// Kind distinguishes the two symbol alphabets fixed-code remotes use.
type Kind int

const (
	Binary Kind = iota
	Tristate
)

// Symbol is one position's two-pulse waveform: a high phase followed
// by a low phase, both in microseconds.
type Symbol struct {
	High uint32
	Low  uint32
}

// Template describes one vendor's fixed-code waveform (spec.md §4.7's
// menu table: name, bit width, frequency, symbol encoding).
type Template struct {
	Name    string
	FreqHz  uint32
	Bits    int // binary: bit count; tristate: position count
	Kind    Kind
	Timing  protocol.Timing
	Pilot   []Symbol          // leading sync pattern, fixed waveform
	Stop    Symbol            // single trailing waveform
	Symbols map[byte]Symbol   // '0','1' for Binary; '0','1','F' for Tristate
	Order   []byte            // canonical symbol iteration order, used by the brute-force keyspace generator
}

func (t Template) symbolMatches(sym Symbol, high, low uint32) bool {
	return t.Timing.Within(high, sym.High) && t.Timing.Within(low, sym.Low)
}

func appendSymbol(out []model.Pulse, s Symbol) []model.Pulse {
	return append(out, model.Pulse(s.High), -model.Pulse(s.Low))
}

// Encode renders a binary code word (or, for Kind==Tristate, a base-3
// packed value produced by PackTristate) into a transmittable pulse
// sequence: pilot, then one symbol per bit/position MSB-first, then
// the stop waveform.
func (t Template) Encode(code uint64) []model.Pulse {
	out := make([]model.Pulse, 0, len(t.Pilot)*2+t.Bits*2+2)
	for _, s := range t.Pilot {
		out = appendSymbol(out, s)
	}
	switch t.Kind {
	case Binary:
		for i := t.Bits - 1; i >= 0; i-- {
			bit := byte('0')
			if (code>>uint(i))&1 == 1 {
				bit = '1'
			}
			out = appendSymbol(out, t.Symbols[bit])
		}
	case Tristate:
		digits := unpackBase3(code, t.Bits)
		for _, d := range digits {
			out = appendSymbol(out, t.Symbols[t.Order[d]])
		}
	}
	out = appendSymbol(out, t.Stop)
	return out
}

// PackTristate encodes a slice of base-3 digits (index into
// Template.Order, MSB first) into a single code word, matching
// unpackBase3's unpacking in Encode.
func PackTristate(digits []byte) uint64 {
	var v uint64
	for _, d := range digits {
		v = v*3 + uint64(d)
	}
	return v
}

func unpackBase3(code uint64, positions int) []byte {
	out := make([]byte, positions)
	for i := positions - 1; i >= 0; i-- {
		out[i] = byte(code % 3)
		code /= 3
	}
	return out
}
