package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// Suzuki decodes the Suzuki key fob PWM protocol (spec.md §4.7): no
// CRC, no cipher, a 64-bit learning code transmitted verbatim.
// Grounded on original_source's PPSuzuki.h.
type Suzuki struct {
	st       pwmState
	headerN  int
	bits     int
	code     uint64
}

var suzukiTiming = protocol.Timing{TEShort: 250, TELong: 500, TEDelta: 99, MinCountBit: 64}

func NewSuzuki() *Suzuki { return &Suzuki{} }

func (d *Suzuki) Name() string            { return "Suzuki" }
func (d *Suzuki) Timing() protocol.Timing { return suzukiTiming }

func (d *Suzuki) Reset() {
	d.st = pwmPreamble
	d.headerN = 0
	d.bits = 0
	d.code = 0
}

func (d *Suzuki) Feed(high bool, dur uint32) bool {
	t := suzukiTiming
	switch d.st {
	case pwmPreamble:
		if high && t.ClassifyShortLong(dur) == 0 {
			d.headerN++
			return false
		}
		if !high {
			if d.headerN >= 20 && dur > uint32(t.TELong)*3 {
				d.st = pwmBits
				d.bits = 0
				d.code = 0
				return false
			}
			if t.ClassifyShortLong(dur) == 0 {
				return false
			}
		}
		d.Reset()
		return false

	case pwmBits:
		if high {
			bit, ok := classifyBit(t, dur, false)
			if !ok {
				if d.bits >= t.MinCountBit {
					return d.finish()
				}
				d.Reset()
				return false
			}
			d.code = (d.code << 1) | uint64(bit)
			d.bits++
			if d.bits >= t.MinCountBit {
				return d.finish()
			}
			return false
		}
		if dur > uint32(t.TELong)*4 {
			if d.bits >= t.MinCountBit {
				return d.finish()
			}
			d.Reset()
		}
		return false
	}
	return false
}

func (d *Suzuki) finish() bool { return true }

func (d *Suzuki) Result() model.DecodedResult {
	r := model.DecodedResult{
		Protocol:  "Suzuki",
		Data:      d.code,
		BitLength: 64,
		CRCValid:  true,
	}
	d.Reset()
	return r
}

func (d *Suzuki) CanEmulate(subType string) bool { return subType == "" || subType == "Suzuki" }

func (d *Suzuki) GeneratePulseData(result model.DecodedResult) []model.Pulse {
	out := make([]model.Pulse, 0, 2*20+2+2*64+1)
	for i := 0; i < 20; i++ {
		out = append(out, model.Pulse(suzukiTiming.TEShort), -model.Pulse(suzukiTiming.TEShort))
	}
	out = append(out, model.Pulse(suzukiTiming.TEShort), -model.Pulse(suzukiTiming.TELong*4))
	for i := 63; i >= 0; i-- {
		bit := (result.Data >> uint(i)) & 1
		high := model.Pulse(suzukiTiming.TEShort)
		if bit == 1 {
			high = model.Pulse(suzukiTiming.TELong)
		}
		out = append(out, high, -model.Pulse(suzukiTiming.TEShort))
	}
	out = append(out, -model.Pulse(suzukiTiming.TELong*5))
	return out
}
