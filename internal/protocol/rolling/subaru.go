package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// Subaru decodes the Subaru key fob PWM protocol: short-high=1,
// long-high=0, no CRC, with a published bit-rotation scheme to
// recover the rolling counter and serial from the 64-bit key word.
// Grounded on original_source's PPSubaru.h.
type Subaru struct {
	st      pwmState
	headerN int
	bits    int
	code    uint64
}

var subaruTiming = protocol.Timing{TEShort: 800, TELong: 1600, TEDelta: 200, MinCountBit: 64}

func NewSubaru() *Subaru { return &Subaru{} }

func (d *Subaru) Name() string            { return "Subaru" }
func (d *Subaru) Timing() protocol.Timing { return subaruTiming }

func (d *Subaru) Reset() {
	d.st = pwmPreamble
	d.headerN = 0
	d.bits = 0
	d.code = 0
}

func (d *Subaru) Feed(high bool, dur uint32) bool {
	t := subaruTiming
	switch d.st {
	case pwmPreamble:
		if t.ClassifyShortLong(dur) != 1 {
			if !high && d.headerN >= 8 && dur > 2500 {
				d.st = pwmBits
				d.bits = 0
				d.code = 0
				return false
			}
			d.Reset()
			return false
		}
		d.headerN++
		return false

	case pwmBits:
		if high {
			bit, ok := classifyBit(t, dur, true)
			if !ok {
				d.Reset()
				return false
			}
			d.code = (d.code << 1) | uint64(bit)
			d.bits++
			return false
		}
		if dur > 3000 {
			if d.bits >= 64 {
				return true
			}
			d.Reset()
		}
		return false
	}
	return false
}

func subaruKeyBytes(code uint64) [8]byte {
	var kb [8]byte
	for i := 0; i < 8; i++ {
		kb[i] = byte(code >> uint(56-8*i))
	}
	return kb
}

func subaruCounter(kb [8]byte) uint16 {
	lo := ((kb[4] >> 4) & 0x0F) | (kb[7] << 4)
	ser0, ser1, ser2 := kb[3], kb[1], kb[2]
	rot := uint((4 + lo) & 7)
	ser0 = (ser0 << rot) | (ser0 >> (8 - rot))
	ser1 = (ser1 << rot) | (ser1 >> (8 - rot))
	ser2 = (ser2 << rot) | (ser2 >> (8 - rot))
	hi := ser0 ^ ser1 ^ ser2
	return uint16(hi)<<8 | uint16(lo)
}

func (d *Subaru) Result() model.DecodedResult {
	kb := subaruKeyBytes(d.code)
	r := model.DecodedResult{
		Protocol:  "Subaru",
		Data:      d.code,
		BitLength: 64,
		CRCValid:  true,
		Serial:    uint32(kb[0])<<16 | uint32(kb[1])<<8 | uint32(kb[2]),
		Button:    (kb[5] >> 4) & 0x0F,
		Counter:   uint32(subaruCounter(kb)),
	}
	d.Reset()
	return r
}

func (d *Subaru) CanEmulate(subType string) bool { return subType == "" || subType == "Subaru" }

func (d *Subaru) GeneratePulseData(result model.DecodedResult) []model.Pulse {
	out := make([]model.Pulse, 0, 2*80+2*64+2)
	for i := 0; i < 80; i++ {
		if i < 79 {
			out = append(out, model.Pulse(subaruTiming.TELong), -model.Pulse(subaruTiming.TELong))
		} else {
			out = append(out, model.Pulse(subaruTiming.TELong), -4000)
		}
	}
	for i := 63; i >= 0; i-- {
		bit := (result.Data >> uint(i)) & 1
		high := model.Pulse(subaruTiming.TELong)
		if bit == 1 {
			high = model.Pulse(subaruTiming.TEShort)
		}
		out = append(out, high, -model.Pulse(subaruTiming.TEShort))
	}
	out[len(out)-1] = -4000 // the last bit's low phase is the end-of-frame gap
	return out
}
