package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// KiaV1 decodes the Kia V1 differential-Manchester key fob protocol:
// a 57-bit word (32-bit serial, 8-bit button, 12-bit counter packed
// with a nibble swap, 4-bit CRC), validated with a CRC4 whose offset
// depends on the decoded counter/button (an original quirk preserved
// here). Grounded on original_source's PPKiaV1.h.
type KiaV1 struct {
	st      int
	headerN int
	dm      protocol.DiffManchester
	data    uint64
	bits    int
}

var kiaV1Timing = protocol.Timing{TEShort: 800, TELong: 1600, TEDelta: 200, MinCountBit: 56}

const (
	kv1StReset = iota
	kv1StPreamble
	kv1StWaitData
	kv1StDecode
)

func NewKiaV1() *KiaV1 { return &KiaV1{dm: protocol.DiffManchester{Timing: kiaV1Timing}} }

func (d *KiaV1) Name() string            { return "Kia V1" }
func (d *KiaV1) Timing() protocol.Timing { return kiaV1Timing }

func (d *KiaV1) Reset() {
	d.st = kv1StReset
	d.headerN = 0
	d.dm = protocol.DiffManchester{Timing: kiaV1Timing}
	d.data, d.bits = 0, 0
}

func (d *KiaV1) Feed(high bool, dur uint32) bool {
	t := kiaV1Timing
	switch d.st {
	case kv1StReset:
		if high && t.ClassifyShortLong(dur) == 1 {
			d.st = kv1StPreamble
			d.headerN = 1
		}
		return false

	case kv1StPreamble:
		if t.ClassifyShortLong(dur) == 1 {
			d.headerN++
			if !high && d.headerN >= 80 {
				d.st = kv1StWaitData
			}
			return false
		}
		if d.headerN >= 80 && t.ClassifyShortLong(dur) == 0 && high {
			d.seedFirstBit()
			return false
		}
		d.Reset()
		return false

	case kv1StWaitData:
		if high && t.ClassifyShortLong(dur) == 0 {
			d.seedFirstBit()
			return false
		}
		if t.ClassifyShortLong(dur) == 1 {
			d.headerN++ // preamble continues past the 80-pulse minimum
			return false
		}
		d.Reset()
		return false

	case kv1StDecode:
		bit, emitted, valid := d.dm.Feed(dur)
		if !valid {
			if d.bits >= 57 {
				return true
			}
			d.Reset()
			return false
		}
		if emitted {
			d.data = (d.data << 1) | uint64(bit)
			d.bits++
			if d.bits >= 57 {
				return true
			}
		}
		return false
	}
	return false
}

func (d *KiaV1) seedFirstBit() {
	d.dm = protocol.DiffManchester{Timing: kiaV1Timing}
	d.dm.Seed(1)
	d.data = 1
	d.bits = 1
	d.st = kv1StDecode
}

func kiaV1CRC4(data uint64, bitCount int, offset byte) byte {
	var crc byte
	bytes := (bitCount + 7) / 8
	for i := 0; i < bytes; i++ {
		b := byte(data >> uint((bytes-1-i)*8))
		crc ^= (b & 0x0F) ^ (b >> 4)
	}
	return (crc + offset) & 0x0F
}

func (d *KiaV1) Result() model.DecodedResult {
	serial := uint32(d.data >> 24)
	button := byte((d.data >> 16) & 0xFF)
	rawCnt := uint16((d.data >> 4) & 0xFFF)
	counter := uint16(rawCnt&0x0F)<<8 | uint16(rawCnt>>4)&0xFF
	crc := byte(d.data & 0x0F)

	offset := byte(1)
	if (counter>>8)&0xFF == 0 && counter >= 0x098 {
		offset = button
	}
	computed := kiaV1CRC4(d.data>>4, 53, offset)

	r := model.DecodedResult{
		Protocol:  "Kia V1",
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

func (d *KiaV1) CanEmulate(subType string) bool { return subType == "" || subType == "Kia V1" }

func (d *KiaV1) GeneratePulseData(result model.DecodedResult) []model.Pulse {
	out := make([]model.Pulse, 0, 2*90+2*57+1)
	for i := 0; i < 90; i++ {
		out = append(out, model.Pulse(kiaV1Timing.TELong), -model.Pulse(kiaV1Timing.TELong))
	}
	var prev = true
	for bit := 56; bit >= 0; bit-- {
		val := (result.Data>>uint(bit))&1 == 1
		if val == prev {
			out = append(out, model.Pulse(kiaV1Timing.TEShort), -model.Pulse(kiaV1Timing.TEShort))
		} else if val {
			out = append(out, model.Pulse(kiaV1Timing.TELong))
		} else {
			out = append(out, -model.Pulse(kiaV1Timing.TELong))
		}
		prev = val
	}
	out = append(out, -3000)
	return out
}
