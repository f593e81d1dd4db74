package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/cipher"
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// KiaV6 decodes the Kia V6 Manchester key fob protocol (decode only,
// spec.md §4.7): a 144-bit capture whose first 128 bits are one
// AES-128-ECB block, keyed from two keystore halves XORed with
// published per-byte masks (internal/cipher.KiaV6Key), validated with
// a CRC8/poly-0x07. Grounded on original_source's PPKiaV6.h.
type KiaV6 struct {
	st          int
	preambleN   int
	halfOpen    bool
	lo          uint64
	bits        int
	part1Lo     uint64
	part2Lo     uint64

	KeyA, KeyB uint64
}

var kiaV6Timing = protocol.Timing{TEShort: 200, TELong: 400, TEDelta: 100, MinCountBit: 144}

const (
	kv6StReset = iota
	kv6StPreamble
	kv6StWaitLongHigh
	kv6StData
)

func NewKiaV6(keyA, keyB uint64) *KiaV6 { return &KiaV6{KeyA: keyA, KeyB: keyB} }

func (d *KiaV6) Name() string            { return "Kia V6" }
func (d *KiaV6) Timing() protocol.Timing { return kiaV6Timing }

func (d *KiaV6) Reset() {
	d.st = kv6StReset
	d.preambleN = 0
	d.halfOpen = false
	d.lo, d.bits = 0, 0
	d.part1Lo, d.part2Lo = 0, 0
}

func (d *KiaV6) addBit(level bool) {
	bit := uint64(0)
	if level {
		bit = 1
	}
	d.lo = (d.lo << 1) | bit
	d.bits++
	switch d.bits {
	case 64:
		d.part1Lo = d.lo
		d.lo = 0
	case 128:
		d.part2Lo = d.lo
		d.lo = 0
	}
}

func (d *KiaV6) Feed(high bool, dur uint32) bool {
	t := kiaV6Timing
	switch d.st {
	case kv6StReset:
		if high && t.ClassifyShortLong(dur) == 0 {
			d.st = kv6StPreamble
			d.preambleN = 1
		}
		return false

	case kv6StPreamble:
		if t.ClassifyShortLong(dur) == 0 {
			d.preambleN++
			return false
		}
		if !high && d.preambleN >= 601 && t.ClassifyShortLong(dur) == 1 {
			d.st = kv6StWaitLongHigh
			return false
		}
		d.Reset()
		return false

	case kv6StWaitLongHigh:
		if !high {
			d.Reset()
			return false
		}
		d.lo, d.bits = 0, 0
		// Implicit sync bits 1,1,0,1 (spec.md §4.7 quirk preserved from
		// the original decoder).
		for _, b := range []bool{true, true, false, true} {
			d.addBit(b)
		}
		d.st = kv6StData
		d.halfOpen = false
		return false

	case kv6StData:
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
			if d.bits >= 144 { // part3 bits collected past the 128 checkpoint
				return true
			}
			d.Reset()
			return false
		}
		if d.bits >= 144 {
			return true
		}
		return false
	}
	return false
}

func kiaV6CRC8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for j := 0; j < 8; j++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func (d *KiaV6) Result() model.DecodedResult {
	key := cipher.KiaV6Key(d.KeyA, d.KeyB)
	var block [16]byte
	for i := 0; i < 8; i++ {
		block[i] = byte(d.part1Lo >> uint(8*(7-i)))
	}
	// part1Hi_ (the high 64 bits of the 128-bit shift register) always
	// stays zero in this decoder: only 144 total bits are captured, so
	// the register never accumulates a second full word in its high
	// half before the first checkpoint (original_source's own quirk).
	for i := 8; i < 16; i++ {
		block[i] = 0
	}
	decrypted, err := cipher.AES128ECBDecryptBlock(key, block)
	crcValid := false
	var serial uint32
	var button byte
	var counter uint32
	if err == nil {
		serial = uint32(decrypted[4])<<16 | uint32(decrypted[5])<<8 | uint32(decrypted[6])
		button = decrypted[7]
		counter = uint32(decrypted[8])<<24 | uint32(decrypted[9])<<16 | uint32(decrypted[10])<<8 | uint32(decrypted[11])
		calc := kiaV6CRC8(decrypted[:15])
		crcValid = decrypted[15] == calc
	}

	r := model.DecodedResult{
		Protocol:  "Kia V6",
		Data:      d.part1Lo,
		Data2:     d.part2Lo,
		BitLength: 144,
		CRCValid:  crcValid,
		Serial:    serial,
		Button:    button,
		Counter:   counter,
		Encrypted: true,
	}
	d.Reset()
	return r
}

func (d *KiaV6) CanEmulate(subType string) bool { return false }

func (d *KiaV6) GeneratePulseData(result model.DecodedResult) []model.Pulse { return nil }
