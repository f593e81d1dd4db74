package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// KiaV2 decodes the Kia V2 Manchester key fob protocol: a 53-bit word
// (32-bit serial, 4-bit button, 12-bit counter with a nibble/byte
// swap, 4-bit CRC), validated with a simple nibble-XOR CRC4.
// Grounded on original_source's PPKiaV2.h.
type KiaV2 struct {
	st       int
	headerN  int
	halfOpen bool
	data     uint64
	bits     int
}

var kiaV2Timing = protocol.Timing{TEShort: 500, TELong: 1000, TEDelta: 150, MinCountBit: 51}

const (
	kv2StReset = iota
	kv2StPreamble
	kv2StBits
)

func NewKiaV2() *KiaV2 { return &KiaV2{} }

func (d *KiaV2) Name() string            { return "Kia V2" }
func (d *KiaV2) Timing() protocol.Timing { return kiaV2Timing }

func (d *KiaV2) Reset() {
	d.st = kv2StReset
	d.headerN = 0
	d.halfOpen = false
	d.data, d.bits = 0, 0
}

func (d *KiaV2) Feed(high bool, dur uint32) bool {
	t := kiaV2Timing
	switch d.st {
	case kv2StReset:
		if high && t.ClassifyShortLong(dur) == 1 {
			d.st = kv2StPreamble
			d.headerN = 1
		}
		return false

	case kv2StPreamble:
		if t.ClassifyShortLong(dur) == 1 {
			d.headerN++
			return false
		}
		if d.headerN >= 100 && high && t.ClassifyShortLong(dur) == 0 {
			d.st = kv2StBits
			d.data, d.bits = 1, 1
			d.halfOpen = false
			return false
		}
		d.Reset()
		return false

	case kv2StBits:
		switch t.ClassifyShortLong(dur) {
		case 0: // short
			if d.halfOpen {
				d.addBit(high)
				d.halfOpen = false
			} else {
				d.halfOpen = true
			}
		case 1: // long
			d.addBit(high)
			d.halfOpen = false
		default:
			if d.bits >= t.MinCountBit {
				return true
			}
			d.Reset()
			return false
		}
		if d.bits >= 53 {
			return true
		}
		return false
	}
	return false
}

func (d *KiaV2) addBit(level bool) {
	bit := uint64(0)
	if level {
		bit = 1
	}
	d.data = (d.data << 1) | bit
	d.bits++
}

func kiaV2CRC4(data uint64) byte {
	var crc byte
	for i := 0; i < 7; i++ {
		b := byte(data >> uint(i*8))
		crc ^= (b & 0x0F) ^ (b >> 4)
	}
	return (crc + 1) & 0x0F
}

func (d *KiaV2) Result() model.DecodedResult {
	serial := uint32(d.data >> 20)
	button := byte((d.data >> 16) & 0x0F)
	rawCount := uint16((d.data >> 4) & 0xFFF)
	counter := (rawCount>>4 | rawCount<<8) & 0xFFF
	crc := byte(d.data & 0x0F)
	computed := kiaV2CRC4(d.data >> 4)

	r := model.DecodedResult{
		Protocol:  "Kia V2",
		Data:      d.data,
		BitLength: d.bits,
		CRCValid:  computed == crc,
		Serial:    serial,
		Button:    button,
		Counter:   uint32(counter),
	}
	d.Reset()
	return r
}

func (d *KiaV2) CanEmulate(subType string) bool { return subType == "" || subType == "Kia V2" }

func (d *KiaV2) GeneratePulseData(result model.DecodedResult) []model.Pulse {
	out := make([]model.Pulse, 0, 2*120+2*53+1)
	for i := 0; i < 120; i++ {
		out = append(out, model.Pulse(kiaV2Timing.TELong), -model.Pulse(kiaV2Timing.TELong))
	}
	for bit := 52; bit >= 0; bit-- {
		if (result.Data>>uint(bit))&1 == 1 {
			out = append(out, model.Pulse(kiaV2Timing.TEShort), -model.Pulse(kiaV2Timing.TEShort))
		} else {
			out = append(out, -model.Pulse(kiaV2Timing.TEShort), model.Pulse(kiaV2Timing.TEShort))
		}
	}
	out = append(out, -3000)
	return out
}
