package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/cipher"
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// ManufacturerKey is one candidate KeeLoq manufacturer key StarLine
// tries against a captured hop code, with its learning mode.
type ManufacturerKey struct {
	Name    string
	Key     uint64
	Learning cipher.KeeloqLearning
}

// StarLine decodes the StarLine PWM key fob protocol: a 64-bit word
// (32-bit fixed part: button + 24-bit serial, 32-bit KeeLoq-encrypted
// hop part), tried against every configured manufacturer key under
// every applicable learning mode. Grounded on original_source's
// PPStarLine.h.
type StarLine struct {
	st       pwmState
	headerN  int
	bits     int
	code     uint64

	Keys []ManufacturerKey
}

var starLineTiming = protocol.Timing{TEShort: 250, TELong: 500, TEDelta: 120, MinCountBit: 64}

func NewStarLine(keys []ManufacturerKey) *StarLine { return &StarLine{Keys: keys} }

func (d *StarLine) Name() string            { return "StarLine" }
func (d *StarLine) Timing() protocol.Timing { return starLineTiming }

func (d *StarLine) Reset() {
	d.st = pwmPreamble
	d.headerN = 0
	d.bits = 0
	d.code = 0
}

func (d *StarLine) Feed(high bool, dur uint32) bool {
	t := starLineTiming
	switch d.st {
	case pwmPreamble:
		if durationDiff(dur, t.TELong*2) < t.TEDelta*2 {
			if high {
				d.headerN++
			}
			return false
		}
		if d.headerN <= 4 {
			d.headerN = 0
			return false
		}
		// First non-preamble pulse: it is already the first data bit.
		d.st = pwmBits
		d.bits, d.code = 0, 0
		fallthrough

	case pwmBits:
		if high {
			if dur >= t.TELong+t.TEDelta {
				if d.bits >= t.MinCountBit && d.bits <= t.MinCountBit+2 {
					return true
				}
				d.Reset()
				return false
			}
			bit, ok := classifyBit(t, dur, false)
			if !ok {
				d.Reset()
				return false
			}
			d.code = (d.code << 1) | uint64(bit)
			d.bits++
			return false
		}
		return false
	}
	return false
}

func starLineTryDecrypt(fix, hop uint32, btn byte, endSerial uint16, keys []ManufacturerKey) (string, uint32, bool) {
	check := func(decrypted uint32) (uint32, bool) {
		if byte(decrypted>>24) == btn && uint16(decrypted>>16)&0xFF == endSerial {
			return decrypted & 0xFFFF, true
		}
		return 0, false
	}
	for _, mk := range keys {
		serial := fix & 0x00FFFFFF
		for _, devKey := range cipher.DeviceKeys(mk.Learning, serial, mk.Key) {
			if cnt, ok := check(cipher.KeeloqDecrypt(hop, devKey)); ok {
				return mk.Name, cnt, true
			}
		}
	}
	return "Unknown", 0, false
}

func (d *StarLine) Result() model.DecodedResult {
	key := cipher.ReverseBits64(d.code)
	fix := uint32(key >> 32)
	hop := uint32(key & 0xFFFFFFFF)
	serial := fix & 0x00FFFFFF
	btn := byte(fix >> 24)
	endSerial := uint16(fix & 0xFF)

	name, cnt, found := starLineTryDecrypt(fix, hop, btn, endSerial, d.Keys)

	r := model.DecodedResult{
		Protocol:  "StarLine",
		Data:      d.code,
		BitLength: 64,
		Serial:    serial,
		Button:    btn,
		Counter:   cnt,
		Encrypted: true,
		SubType:   name,
		CRCValid:  found,
	}
	d.Reset()
	return r
}

func (d *StarLine) CanEmulate(subType string) bool { return subType == "" || subType == "StarLine" }

func (d *StarLine) GeneratePulseData(result model.DecodedResult) []model.Pulse {
	out := make([]model.Pulse, 0, 2*6+2*64)
	for i := 0; i < 6; i++ {
		out = append(out, model.Pulse(starLineTiming.TELong*2), -model.Pulse(starLineTiming.TELong*2))
	}
	for i := 63; i >= 0; i-- {
		bit := (result.Data >> uint(i)) & 1
		high := model.Pulse(starLineTiming.TEShort)
		if bit == 1 {
			high = model.Pulse(starLineTiming.TELong)
		}
		out = append(out, high, -high)
	}
	// A trailing preamble-length pair ends the frame for the decoder.
	out = append(out, model.Pulse(starLineTiming.TELong*2), -model.Pulse(starLineTiming.TELong*2))
	return out
}
