package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// FordV0 decodes the Ford V0 differential-Manchester key fob
// protocol: a 63-bit key1 plus a 16-bit key2 (8-bit BS, 8-bit CRC),
// validated with a GF(2) matrix CRC. Grounded on original_source's
// PPFordV0.h.
type FordV0 struct {
	st       int
	headerN  int
	dm       protocol.DiffManchester
	key1     uint64
	key1Bits int
	key2     uint16
	key2Bits int
}

var fordV0Timing = protocol.Timing{TEShort: 250, TELong: 500, TEDelta: 100, MinCountBit: 64}

const (
	fordStReset = iota
	fordStPreamble
	fordStSync
	fordStKey1
	fordStKey2
)

func NewFordV0() *FordV0 { return &FordV0{dm: protocol.DiffManchester{Timing: fordV0Timing}} }

func (d *FordV0) Name() string            { return "Ford V0" }
func (d *FordV0) Timing() protocol.Timing { return fordV0Timing }

func (d *FordV0) Reset() {
	d.st = fordStReset
	d.headerN = 0
	d.dm = protocol.DiffManchester{Timing: fordV0Timing}
	d.key1, d.key1Bits = 0, 0
	d.key2, d.key2Bits = 0, 0
}

func (d *FordV0) Feed(high bool, dur uint32) bool {
	t := fordV0Timing
	switch d.st {
	case fordStReset:
		if high && durationDiff(dur, t.TELong*2) <= t.TEDelta*2 {
			d.st = fordStPreamble
			d.headerN = 1
		}
		return false

	case fordStPreamble:
		if durationDiff(dur, t.TELong*2) <= t.TEDelta*2 {
			d.headerN++
			if d.headerN >= 4 {
				d.st = fordStSync
			}
			return false
		}
		d.Reset()
		return false

	case fordStSync:
		if durationDiff(dur, t.TELong*2) <= t.TEDelta*2 {
			d.headerN++ // further preamble pulses
			return false
		}
		if high && t.ClassifyShortLong(dur) == 0 {
			return false // short high ahead of the sync gap
		}
		if !high && dur > 3000 && dur < 4000 {
			d.st = fordStKey1
			d.dm = protocol.DiffManchester{Timing: fordV0Timing}
			d.key1, d.key1Bits = 0, 0
			return false
		}
		d.Reset()
		return false

	case fordStKey1:
		bit, emitted, valid := d.dm.Feed(dur)
		if !valid {
			if d.key1Bits >= 63 {
				d.st = fordStKey2
				d.key2, d.key2Bits = 0, 0
			} else {
				d.Reset()
			}
			return false
		}
		if emitted {
			d.key1 = (d.key1 << 1) | uint64(bit)
			d.key1Bits++
			if d.key1Bits >= 63 {
				d.st = fordStKey2
				d.key2, d.key2Bits = 0, 0
			}
		}
		return false

	case fordStKey2:
		bit, emitted, valid := d.dm.Feed(dur)
		if !valid {
			if d.key2Bits >= 16 {
				return true
			}
			d.Reset()
			return false
		}
		if emitted {
			d.key2 = (d.key2 << 1) | uint16(bit)
			d.key2Bits++
			if d.key2Bits >= 16 {
				return true
			}
		}
		return false
	}
	return false
}

// fordCRCMatrix is the 64-byte GF(2) CRC matrix published in the
// original ford_v0.c source.
var fordCRCMatrix = [64]byte{
	0xDA, 0xB5, 0x55, 0x6A, 0xAA, 0xAA, 0xAA, 0xD5,
	0xB6, 0x6C, 0xCC, 0xD9, 0x99, 0x99, 0x99, 0xB3,
	0x71, 0xE3, 0xC3, 0xC7, 0x87, 0x87, 0x87, 0x8F,
	0x0F, 0xE0, 0x3F, 0xC0, 0x7F, 0x80, 0x7F, 0x80,
	0x00, 0x1F, 0xFF, 0xC0, 0x00, 0x7F, 0xFF, 0x80,
	0x00, 0x00, 0x00, 0x3F, 0xFF, 0xFF, 0xFF, 0x80,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x7F,
	0x23, 0x12, 0x94, 0x84, 0x35, 0xF4, 0x55, 0x84,
}

func fordPopcount8(x byte) int {
	n := 0
	for x != 0 {
		n += int(x & 1)
		x >>= 1
	}
	return n
}

func fordComputeCRC(buf [9]byte) byte {
	var crc byte
	for row := 0; row < 8; row++ {
		var xorSum byte
		for col := 0; col < 8; col++ {
			xorSum ^= fordCRCMatrix[row*8+col] & buf[col+1]
		}
		if fordPopcount8(xorSum)&1 == 1 {
			crc |= 1 << uint(row)
		}
	}
	return crc
}

func fordVerifyCRC(key1 uint64, key2 uint16) bool {
	var buf [9]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(key1 >> uint(56-8*i))
	}
	buf[8] = byte(key2 >> 8)
	calculated := fordComputeCRC(buf)
	received := byte(key2&0xFF) ^ 0x80
	return calculated == received
}

func (d *FordV0) Result() model.DecodedResult {
	r := model.DecodedResult{
		Protocol:  "Ford V0",
		Data:      d.key1,
		Data2:     uint64(d.key2),
		BitLength: 63,
		CRCValid:  fordVerifyCRC(d.key1, d.key2),
	}
	d.Reset()
	return r
}

func (d *FordV0) CanEmulate(subType string) bool { return subType == "" || subType == "Ford V0" }

func (d *FordV0) GeneratePulseData(result model.DecodedResult) []model.Pulse {
	out := make([]model.Pulse, 0, 8+2+2*80)
	for i := 0; i < 4; i++ {
		out = append(out, model.Pulse(fordV0Timing.TELong*2), -model.Pulse(fordV0Timing.TELong*2))
	}
	out = append(out, model.Pulse(fordV0Timing.TEShort), -3500)

	var prev byte
	encodeBit := func(bit byte) {
		if bit != prev {
			if bit == 1 {
				out = append(out, model.Pulse(fordV0Timing.TELong))
			} else {
				out = append(out, -model.Pulse(fordV0Timing.TELong))
			}
		} else {
			if prev == 1 {
				out = append(out, model.Pulse(fordV0Timing.TEShort), model.Pulse(fordV0Timing.TEShort))
			} else {
				out = append(out, -model.Pulse(fordV0Timing.TEShort), -model.Pulse(fordV0Timing.TEShort))
			}
		}
		prev = bit
	}
	for i := 62; i >= 0; i-- {
		encodeBit(byte((result.Data >> uint(i)) & 1))
	}
	for i := 15; i >= 0; i-- {
		encodeBit(byte((result.Data2 >> uint(i)) & 1))
	}
	out = append(out, -4000)
	return out
}
