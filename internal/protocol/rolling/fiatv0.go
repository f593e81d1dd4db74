package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// FiatV0 decodes the Fiat V0 differential-Manchester key fob
// protocol: 64 data bits (32-bit counter, 32-bit serial) followed by
// 6 button bits, no CRC. Grounded on original_source's PPFiatV0.h.
type FiatV0 struct {
	st      pwmState
	headerN int
	dm      protocol.DiffManchester
	data    uint64
	bits    int
	btn     byte
	btnBits int
}

var fiatV0Timing = protocol.Timing{TEShort: 200, TELong: 400, TEDelta: 100, MinCountBit: 64}

const fiatGapTime, fiatGapDelta = 800, 200

func NewFiatV0() *FiatV0 { return &FiatV0{dm: protocol.DiffManchester{Timing: fiatV0Timing}} }

func (d *FiatV0) Name() string            { return "Fiat V0" }
func (d *FiatV0) Timing() protocol.Timing { return fiatV0Timing }

func (d *FiatV0) Reset() {
	d.st = pwmPreamble
	d.headerN = 0
	d.dm = protocol.DiffManchester{Timing: fiatV0Timing}
	d.data = 0
	d.bits = 0
	d.btn = 0
	d.btnBits = 0
}

func (d *FiatV0) Feed(high bool, dur uint32) bool {
	t := fiatV0Timing
	switch d.st {
	case pwmPreamble:
		if t.ClassifyShortLong(dur) == 0 {
			d.headerN++
			return false
		}
		if !high && d.headerN >= 140 {
			within := dur >= fiatGapTime-fiatGapDelta && dur <= fiatGapTime+fiatGapDelta
			if within {
				d.st = pwmBits
				return false
			}
		}
		d.Reset()
		return false

	case pwmBits:
		bit, emitted, valid := d.dm.Feed(dur)
		if !valid {
			if d.bits >= 64 {
				return true
			}
			d.Reset()
			return false
		}
		if !emitted {
			return false
		}
		if d.bits < 64 {
			d.data = (d.data << 1) | uint64(bit)
			d.bits++
		} else {
			d.btn = (d.btn << 1) | bit
			d.btnBits++
		}
		if d.bits >= 64 && d.btnBits >= 6 {
			return true
		}
		return false
	}
	return false
}

func (d *FiatV0) Result() model.DecodedResult {
	r := model.DecodedResult{
		Protocol:  "Fiat V0",
		Data:      d.data,
		BitLength: 64,
		CRCValid:  true,
		Serial:    uint32(d.data & 0xFFFFFFFF),
		Counter:   uint32(d.data >> 32),
		Button:    (d.btn << 1) | 1,
	}
	d.Reset()
	return r
}

func (d *FiatV0) CanEmulate(subType string) bool { return subType == "" || subType == "Fiat V0" }

func (d *FiatV0) GeneratePulseData(result model.DecodedResult) []model.Pulse {
	out := make([]model.Pulse, 0, 2*150+2*70+2)
	for i := 0; i < 150; i++ {
		out = append(out, model.Pulse(fiatV0Timing.TEShort), -model.Pulse(fiatV0Timing.TEShort))
	}
	out = append(out, -model.Pulse(fiatGapTime))

	var prev byte
	encodeBit := func(bit byte) {
		if bit != prev {
			if bit == 1 {
				out = append(out, model.Pulse(fiatV0Timing.TELong))
			} else {
				out = append(out, -model.Pulse(fiatV0Timing.TELong))
			}
		} else {
			if prev == 1 {
				out = append(out, model.Pulse(fiatV0Timing.TEShort), model.Pulse(fiatV0Timing.TEShort))
			} else {
				out = append(out, -model.Pulse(fiatV0Timing.TEShort), -model.Pulse(fiatV0Timing.TEShort))
			}
		}
		prev = bit
	}
	for i := 63; i >= 0; i-- {
		encodeBit(byte((result.Data >> uint(i)) & 1))
	}
	btnToSend := result.Button >> 1
	for i := 5; i >= 0; i-- {
		encodeBit((btnToSend >> uint(i)) & 1)
	}
	out = append(out, -2000)
	return out
}
