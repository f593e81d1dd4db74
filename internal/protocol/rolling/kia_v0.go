package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// KiaV0 decodes the Kia V0 PWM key fob protocol: 61 bits (reserved,
// 16-bit counter, 28-bit serial, 4-bit button, 8-bit CRC), validated
// with a CRC8/poly-0x7F over bits 8-55. Grounded on original_source's
// PPKiaV0.h.
type KiaV0 struct {
	st      pwmState
	headerN int
	code    uint64
	bits    int
}

var kiaV0Timing = protocol.Timing{TEShort: 250, TELong: 500, TEDelta: 100, MinCountBit: 61}

func NewKiaV0() *KiaV0 { return &KiaV0{} }

func (d *KiaV0) Name() string            { return "Kia V0" }
func (d *KiaV0) Timing() protocol.Timing { return kiaV0Timing }

func (d *KiaV0) Reset() {
	d.st = pwmPreamble
	d.headerN = 0
	d.code = 0
	d.bits = 0
}

func (d *KiaV0) Feed(high bool, dur uint32) bool {
	t := kiaV0Timing
	switch d.st {
	case pwmPreamble:
		if t.ClassifyShortLong(dur) == 0 {
			d.headerN++
			return false
		}
		if d.headerN >= 30 && t.ClassifyShortLong(dur) == 1 {
			d.st = pwmBits
			d.code, d.bits = 0, 0
			return false
		}
		d.Reset()
		return false

	case pwmBits:
		if high {
			bit, ok := classifyBit(t, dur, false)
			if !ok {
				if d.bits >= t.MinCountBit {
					return true
				}
				d.Reset()
				return false
			}
			d.code = (d.code << 1) | uint64(bit)
			d.bits++
			if d.bits >= t.MinCountBit {
				return true
			}
			return false
		}
		if dur > uint32(t.TELong)*3 {
			if d.bits >= t.MinCountBit {
				return true
			}
			d.Reset()
		}
		return false
	}
	return false
}

func kiaCRC8Poly7F(data uint64, startBit, endBit int) byte {
	var crc byte
	for i := startBit; i >= endBit; i-- {
		bit := byte((data >> uint(i)) & 1)
		if (crc>>7)^bit == 1 {
			crc = (crc << 1) ^ 0x7F
		} else {
			crc <<= 1
		}
	}
	return crc
}

func (d *KiaV0) Result() model.DecodedResult {
	computed := kiaCRC8Poly7F(d.code, 55, 8)
	crc := byte(d.code & 0xFF)
	r := model.DecodedResult{
		Protocol:  "Kia V0",
		Data:      d.code,
		BitLength: d.bits,
		CRCValid:  computed == crc,
		Counter:   uint32((d.code >> 40) & 0xFFFF),
		Serial:    uint32((d.code >> 12) & 0x0FFFFFFF),
		Button:    byte((d.code >> 8) & 0x0F),
	}
	d.Reset()
	return r
}

func (d *KiaV0) CanEmulate(subType string) bool { return subType == "" || subType == "Kia V0" }

func (d *KiaV0) GeneratePulseData(result model.DecodedResult) []model.Pulse {
	out := make([]model.Pulse, 0, 2*32+2+2*61+1)
	for i := 0; i < 32; i++ {
		out = append(out, model.Pulse(kiaV0Timing.TEShort), -model.Pulse(kiaV0Timing.TEShort))
	}
	out = append(out, model.Pulse(kiaV0Timing.TELong), -model.Pulse(kiaV0Timing.TELong))
	for i := 60; i >= 0; i-- {
		bit := (result.Data >> uint(i)) & 1
		high := model.Pulse(kiaV0Timing.TEShort)
		if bit == 1 {
			high = model.Pulse(kiaV0Timing.TELong)
		}
		out = append(out, high, -model.Pulse(kiaV0Timing.TEShort))
	}
	out = append(out, -2000)
	return out
}
