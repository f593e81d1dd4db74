package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/cipher"
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// KiaV3V4 decodes the Kia V3/V4 PWM key fob protocol: 68 raw bits
// (V3's byte-inverted variant distinguished by sync pulse polarity),
// CRC4 over the first 8 bytes, and a KeeLoq-encrypted 32-bit payload
// (button+counter) keyed by a shared manufacturer key. Grounded on
// original_source's PPKiaV3V4.h.
type KiaV3V4 struct {
	st      pwmState
	headerN int
	isV3    bool
	buf     [9]byte
	bufIdx  int

	MfKey uint64
}

var kiaV3V4Timing = protocol.Timing{TEShort: 400, TELong: 800, TEDelta: 150, MinCountBit: 68}

func NewKiaV3V4(mfKey uint64) *KiaV3V4 { return &KiaV3V4{MfKey: mfKey} }

func (d *KiaV3V4) Name() string            { return "Kia V3/V4" }
func (d *KiaV3V4) Timing() protocol.Timing { return kiaV3V4Timing }

func (d *KiaV3V4) Reset() {
	d.st = pwmPreamble
	d.headerN = 0
	d.isV3 = false
	d.buf = [9]byte{}
	d.bufIdx = 0
}

func reverseBits8(b byte) byte {
	var out byte
	for i := 0; i < 8; i++ {
		out <<= 1
		out |= (b >> uint(i)) & 1
	}
	return out
}

func (d *KiaV3V4) setBit(bit byte) {
	if d.bufIdx >= 68 {
		return
	}
	if bit == 1 {
		d.buf[d.bufIdx/8] |= 1 << uint(7-d.bufIdx%8)
	}
	d.bufIdx++
}

func (d *KiaV3V4) Feed(high bool, dur uint32) bool {
	t := kiaV3V4Timing
	switch d.st {
	case pwmPreamble:
		if t.ClassifyShortLong(dur) == 0 {
			d.headerN++
			return false
		}
		if d.headerN >= 8 && dur >= 1000 && dur <= 1500 {
			d.isV3 = !high
			d.st = pwmBits
			d.buf = [9]byte{}
			d.bufIdx = 0
			return false
		}
		d.Reset()
		return false

	case pwmBits:
		if high {
			switch t.ClassifyShortLong(dur) {
			case 0:
				d.setBit(0)
			case 1:
				d.setBit(1)
			default:
				if d.bufIdx >= 68 {
					return true
				}
				d.Reset()
			}
			return false
		}
		if dur > uint32(t.TELong)*3 {
			if d.bufIdx >= 68 {
				return true
			}
			d.Reset()
		}
		return false
	}
	return false
}

func (d *KiaV3V4) Result() model.DecodedResult {
	b := d.buf
	if d.isV3 {
		for i := range b {
			b[i] = ^b[i]
		}
	}

	rxCrc := (b[8] >> 4) & 0x0F
	var calcCrc byte
	for i := 0; i < 8; i++ {
		calcCrc ^= (b[i] & 0x0F) ^ (b[i] >> 4)
	}
	calcCrc &= 0x0F

	encrypted := uint32(reverseBits8(b[3]))<<24 | uint32(reverseBits8(b[2]))<<16 |
		uint32(reverseBits8(b[1]))<<8 | uint32(reverseBits8(b[0]))
	serial := uint32(reverseBits8(b[7])&0xF0)<<20 | uint32(reverseBits8(b[6]))<<16 |
		uint32(reverseBits8(b[5]))<<8 | uint32(reverseBits8(b[4]))
	btn := (reverseBits8(b[7]) & 0xF0) >> 4

	decrypted := cipher.KeeloqDecrypt(encrypted, d.MfKey)
	decBtn := byte(decrypted>>28) & 0x0F
	decCnt := uint16(decrypted & 0xFFFF)

	canEmulate := decBtn == btn
	counter := uint32(0)
	if canEmulate {
		counter = uint32(decCnt)
	}

	data := uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])

	r := model.DecodedResult{
		Protocol:  "Kia V3/V4",
		Data:      data,
		BitLength: 68,
		CRCValid:  rxCrc == calcCrc,
		Serial:    serial,
		Button:    btn,
		Counter:   counter,
		Encrypted: true,
	}
	d.Reset()
	return r
}

func (d *KiaV3V4) CanEmulate(subType string) bool { return subType == "" || subType == "Kia V3/V4" }

func (d *KiaV3V4) GeneratePulseData(result model.DecodedResult) []model.Pulse {
	out := make([]model.Pulse, 0, 2*8+2+2*68)
	for i := 0; i < 8; i++ {
		out = append(out, model.Pulse(kiaV3V4Timing.TEShort), -model.Pulse(kiaV3V4Timing.TEShort))
	}
	out = append(out, model.Pulse(1200), -model.Pulse(1200))

	var crc byte
	for i := 0; i < 8; i++ {
		b := byte(result.Data >> uint(56-8*i))
		crc ^= (b & 0x0F) ^ (b >> 4)
	}
	crc &= 0x0F
	// 64 data bits MSB-first, then the 4 CRC bits.
	for i := 67; i >= 0; i-- {
		bit := uint64(crc>>uint(i)) & 1
		if i >= 4 {
			bit = (result.Data >> uint(i-4)) & 1
		}
		high := model.Pulse(kiaV3V4Timing.TEShort)
		if bit == 1 {
			high = model.Pulse(kiaV3V4Timing.TELong)
		}
		out = append(out, high, -model.Pulse(kiaV3V4Timing.TEShort))
	}
	out = append(out, -model.Pulse(kiaV3V4Timing.TELong*4))
	return out
}
