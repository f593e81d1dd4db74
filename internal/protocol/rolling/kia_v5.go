package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// KiaV5 decodes the Kia V5 Manchester key fob protocol (decode only,
// spec.md §4.7): a 64-bit word, with the counter recovered by an
// 18-round byte-mixing cipher keyed per-vehicle. Grounded on
// original_source's PPKiaV5.h.
type KiaV5 struct {
	st       int
	headerN  int
	halfOpen bool
	data     uint64
	bits     int
	savedKey uint64

	Key uint64
}

var kiaV5Timing = protocol.Timing{TEShort: 400, TELong: 800, TEDelta: 150, MinCountBit: 64}

const (
	kv5StReset = iota
	kv5StPreamble
	kv5StData
)

func NewKiaV5(key uint64) *KiaV5 { return &KiaV5{Key: key} }

func (d *KiaV5) Name() string            { return "Kia V5" }
func (d *KiaV5) Timing() protocol.Timing { return kiaV5Timing }

func (d *KiaV5) Reset() {
	d.st = kv5StReset
	d.headerN = 0
	d.halfOpen = false
	d.data, d.bits = 0, 0
	d.savedKey = 0
}

func (d *KiaV5) Feed(high bool, dur uint32) bool {
	t := kiaV5Timing
	switch d.st {
	case kv5StReset:
		if high && t.ClassifyShortLong(dur) == 0 {
			d.st = kv5StPreamble
			d.headerN = 1
		}
		return false

	case kv5StPreamble:
		if t.ClassifyShortLong(dur) == 0 {
			d.headerN++
			return false
		}
		if d.headerN >= 40 && high && t.ClassifyShortLong(dur) == 1 {
			d.st = kv5StData
			d.data, d.bits = 1, 1
			d.halfOpen = false
			return false
		}
		d.Reset()
		return false

	case kv5StData:
		switch t.ClassifyShortLong(dur) {
		case 0:
			if d.halfOpen {
				d.addBit(high)
				d.halfOpen = false
			} else {
				d.halfOpen = true
			}
		case 1:
			d.addBit(high)
			d.halfOpen = false
		default:
			if d.bits >= 64 {
				d.data = d.savedKey
				d.bits = 64
				return true
			}
			d.Reset()
			return false
		}
		if d.bits == 64 {
			d.savedKey = d.data
		}
		if d.bits > 67 {
			d.data = d.savedKey
			d.bits = 64
			return true
		}
		return false
	}
	return false
}

func (d *KiaV5) addBit(level bool) {
	bit := uint64(0)
	if level {
		bit = 1
	}
	d.data = (d.data << 1) | bit
	d.bits++
}

func kiaV5MixerDecode(encrypted uint32, key uint64) uint16 {
	var s [4]byte
	s[0] = byte(encrypted)
	s[1] = byte(encrypted >> 8)
	s[2] = byte(encrypted >> 16)
	s[3] = byte(encrypted >> 24)

	var k [8]byte
	for i := 0; i < 8; i++ {
		k[i] = byte(key >> uint(i*8))
	}

	for round := 17; round >= 0; round-- {
		ki := k[round%8]
		s[3] ^= s[2]
		s[2] ^= s[1]
		s[1] ^= s[0]
		s[0] ^= ki

		tmp := s[3]
		s[3] = s[2]
		s[2] = s[1]
		s[1] = s[0]
		s[0] = tmp
	}
	return uint16(s[1])<<8 | uint16(s[0])
}

func (d *KiaV5) Result() model.DecodedResult {
	var yek uint64
	for i := 0; i < 8; i++ {
		b := byte(d.data >> uint(i*8))
		yek |= uint64(reverseBits8(b)) << uint(i*8)
	}
	serial := uint32((yek >> 32) & 0x0FFFFFFF)
	button := byte((yek >> 60) & 0x0F)
	encrypted := uint32(yek & 0xFFFFFFFF)
	counter := kiaV5MixerDecode(encrypted, d.Key)

	r := model.DecodedResult{
		Protocol:  "Kia V5",
		Data:      d.data,
		BitLength: 64,
		CRCValid:  true,
		Serial:    serial,
		Button:    button,
		Counter:   uint32(counter),
		Encrypted: true,
	}
	d.Reset()
	return r
}

func (d *KiaV5) CanEmulate(subType string) bool { return false }

func (d *KiaV5) GeneratePulseData(result model.DecodedResult) []model.Pulse { return nil }
