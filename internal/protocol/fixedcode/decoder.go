package fixedcode

import (
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

type stage int

const (
	stagePilot stage = iota
	stageSymbolHigh
	stageSymbolLow
	stageStopHigh
	stageStopLow
)

// Decoder is the generic protocol.Decoder implementation driven by a
// Template. One Decoder instance is registered per vendor entry in
// the registry; decoding state (pilot index, accumulated code,
// current symbol's pending high half) lives on the instance, matching
// the per-protocol reset contract every other pulse-level decoder
// follows (spec.md §9 design notes).
type Decoder struct {
	tpl Template

	st       stage
	pilotIdx int
	position int
	pendHigh uint32
	code     uint64
	digits   []byte
}

func New(tpl Template) *Decoder {
	return &Decoder{tpl: tpl}
}

func (d *Decoder) Name() string           { return d.tpl.Name }
func (d *Decoder) Timing() protocol.Timing { return d.tpl.Timing }

func (d *Decoder) Reset() {
	d.st = stagePilot
	d.pilotIdx = 0
	d.position = 0
	d.pendHigh = 0
	d.code = 0
	d.digits = d.digits[:0]
}

func (d *Decoder) Feed(high bool, dur uint32) bool {
	switch d.st {
	case stagePilot:
		want := d.tpl.Pilot[d.pilotIdx/2]
		target, expectHigh := want.High, true
		// Pilot entries are stored as (high,low) pairs but fed one
		// edge at a time; track which half we're matching via pilotIdx parity.
		half := d.pilotIdx % 2
		if half == 1 {
			target, expectHigh = want.Low, false
		}
		if high != expectHigh || !d.tpl.Timing.Within(dur, target) {
			d.Reset()
			return false
		}
		d.pilotIdx++
		if d.pilotIdx == len(d.tpl.Pilot)*2 {
			d.st = stageSymbolHigh
		}
		return false

	case stageSymbolHigh:
		if !high {
			d.Reset()
			return false
		}
		d.pendHigh = dur
		d.st = stageSymbolLow
		return false

	case stageSymbolLow:
		if high {
			d.Reset()
			return false
		}
		sym, ok := d.matchSymbol(d.pendHigh, dur)
		if !ok {
			d.Reset()
			return false
		}
		d.accumulate(sym)
		d.position++
		if d.position == d.tpl.Bits {
			d.st = stageStopHigh
		} else {
			d.st = stageSymbolHigh
		}
		return false

	case stageStopHigh:
		if !high || !d.tpl.Timing.Within(dur, d.tpl.Stop.High) {
			d.Reset()
			return false
		}
		d.st = stageStopLow
		return false

	case stageStopLow:
		if high || !d.tpl.Timing.Within(dur, d.tpl.Stop.Low) {
			d.Reset()
			return false
		}
		// The accumulated code stays in place until Result reads it.
		return true
	}
	return false
}

func (d *Decoder) matchSymbol(high, low uint32) (byte, bool) {
	for sym, wave := range d.tpl.Symbols {
		if d.tpl.symbolMatches(wave, high, low) {
			return sym, true
		}
	}
	return 0, false
}

func (d *Decoder) accumulate(sym byte) {
	switch d.tpl.Kind {
	case Binary:
		bit := uint64(0)
		if sym == '1' {
			bit = 1
		}
		d.code = (d.code << 1) | bit
	case Tristate:
		var digit byte
		for i, s := range d.tpl.Order {
			if s == sym {
				digit = byte(i)
			}
		}
		d.digits = append(d.digits, digit)
	}
}

func (d *Decoder) Result() model.DecodedResult {
	code := d.code
	if d.tpl.Kind == Tristate {
		code = PackTristate(d.digits)
	}
	r := model.DecodedResult{
		Protocol:  d.tpl.Name,
		Data:      code,
		BitLength: d.tpl.Bits,
		CRCValid:  true, // fixed-code protocols carry no CRC
		SubType:   d.tpl.Name,
	}
	d.Reset()
	return r
}

func (d *Decoder) CanEmulate(subType string) bool { return subType == d.tpl.Name || subType == "" }

func (d *Decoder) GeneratePulseData(result model.DecodedResult) []model.Pulse {
	return d.tpl.Encode(result.Data)
}
