package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/cipher"
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// PSA decodes the Peugeot/Citroën key fob protocol (decode only,
// spec.md §4.7): dual-timing Manchester (250µs or 125µs half-period)
// over a 96-bit capture packed into an 80-bit payload (64-bit Key1 +
// 16-bit Key2), dispatched on Key2's low byte into one of two decrypt
// modes: 0x23 is an XOR-chain-plus-permutation cipher validated by a
// checksum nibble; 0x36 is TEA under one of two small trial-key
// ranges, bounded to stay real-time on embedded hardware (a 16M-trial
// sweep, per upstream, is infeasible there). Grounded on
// original_source's PPPsa.h.
type PSA struct {
	st                int
	teHalf            uint32
	patternThreshold   uint32
	headerN           int
	manch             vagManchState
	data              uint64
	bits              int
	key1              uint64
	key2              uint16
}

var psaTiming = protocol.Timing{TEShort: 250, TELong: 500, TEDelta: 80, MinCountBit: 80}

const (
	psaStReset = iota
	psaStPreamble
	psaStData
)

var psaBF1KeySchedule = [4]uint32{0x06D03681, 0x544B0B27, 0xA5B3AA06, 0xDDE232EC}
var psaBF2KeySchedule = [4]uint32{0x76B2E08F, 0xDBF1C9BA, 0x5E3B073D, 0xE03B3DA2}

func NewPSA() *PSA { return &PSA{} }

func (d *PSA) Name() string            { return "PSA" }
func (d *PSA) Timing() protocol.Timing { return psaTiming }

func (d *PSA) Reset() {
	d.st = psaStReset
	d.teHalf = 0
	d.patternThreshold = 0
	d.headerN = 0
	d.manch = vagManchMid0
	d.data, d.bits = 0, 0
	d.key1, d.key2 = 0, 0
}

func (d *PSA) pushBit(bit bool) {
	v := uint64(0)
	if bit {
		v = 1
	}
	d.data = (d.data << 1) | v
	d.bits++
}

func (d *PSA) manchesterAdvance(event int) (bit bool, emit bool) {
	switch d.manch {
	case vagManchMid0:
		switch event {
		case 1:
			d.manch = vagManchHigh
		case 0:
			d.manch = vagManchLow
		case 3:
			d.manch = vagManchMid1
			return false, true
		default:
			d.manch = vagManchMid0
		}
	case vagManchMid1:
		switch event {
		case 0:
			d.manch = vagManchLow
		case 1:
			d.manch = vagManchHigh
		case 2:
			d.manch = vagManchMid0
			return true, true
		default:
			d.manch = vagManchMid0
		}
	case vagManchLow:
		if event == 1 {
			d.manch = vagManchMid0
			return true, true
		}
		d.manch = vagManchMid0
	case vagManchHigh:
		if event == 0 {
			d.manch = vagManchMid1
			return false, true
		}
		d.manch = vagManchMid0
	}
	return false, false
}

func (d *PSA) Feed(high bool, dur uint32) bool {
	switch d.st {
	case psaStReset:
		if !high {
			return false
		}
		if vagNear(dur, 250, 60) {
			d.teHalf = 250
		} else if vagNear(dur, 125, 30) {
			d.teHalf = 125
		} else {
			return false
		}
		d.patternThreshold = 0x46
		d.headerN, d.bits = 0, 0
		d.data, d.key1, d.key2 = 0, 0, 0
		d.manch = vagManchMid0
		d.st = psaStPreamble
		return false

	case psaStPreamble:
		if high {
			return false
		}
		tol := d.teHalf / 4
		if vagNear(dur, d.teHalf, tol) {
			d.headerN++
			return false
		}
		if uint32(d.headerN) >= d.patternThreshold && vagNear(dur, d.teHalf*2, d.teHalf/2) {
			d.st = psaStData
			return false
		}
		d.Reset()
		return false

	case psaStData:
		if d.bits >= 96 {
			return d.finish()
		}
		tol := d.teHalf / 4
		event := -1
		if vagNear(dur, d.teHalf, tol) {
			if high {
				event = 0
			} else {
				event = 1
			}
		} else if vagNear(dur, d.teHalf*2, tol) {
			if high {
				event = 2
			} else {
				event = 3
			}
		}
		if event < 0 {
			d.Reset()
			return false
		}
		if bit, emit := d.manchesterAdvance(event); emit {
			d.pushBit(bit)
			if d.bits == 64 {
				d.key1 = d.data
				d.data = 0
			}
			if d.bits == 80 {
				d.key2 = uint16(d.data) & 0xFFFF
				nibble := byte(d.key1>>16) & 0x0F
				if nibble == 0xA {
					return d.finish()
				}
				d.Reset()
				return false
			}
		}
		return false
	}
	return false
}

func psaSetupByteBuffer(key1, key2 uint64) [10]byte {
	var buf [10]byte
	buf[0] = byte(key1 >> 56)
	buf[1] = byte(key1 >> 48)
	buf[2] = byte(key1 >> 40)
	buf[3] = byte(key1 >> 32)
	buf[4] = byte(key1 >> 24)
	buf[5] = byte(key1 >> 16)
	buf[6] = byte(key1 >> 8)
	buf[7] = byte(key1)
	buf[8] = byte(key2 >> 8)
	buf[9] = byte(key2)
	return buf
}

func psaChecksum(buf [10]byte) byte {
	var cs byte
	for i := 0; i < 9; i++ {
		cs ^= buf[i]
	}
	return cs
}

func psaDirectXorDecrypt(buf *[10]byte) {
	for i := 8; i > 0; i-- {
		buf[i] ^= buf[i-1]
	}
}

var psaPerm = [6]byte{1, 3, 5, 7, 2, 4}

func psaSecondStageXor(buf *[10]byte) {
	var tmp [6]byte
	for i := 0; i < 6; i++ {
		tmp[i] = buf[psaPerm[i]]
	}
	for i := 0; i < 6; i++ {
		buf[psaPerm[i]] = tmp[i] ^ buf[psaPerm[(i+1)%6]]
	}
}

func psaTryMode23(key1 uint64, key2 uint16) (serial uint32, counter uint32, button byte, ok bool) {
	buf := psaSetupByteBuffer(key1, uint64(key2))
	psaDirectXorDecrypt(&buf)
	cs := psaChecksum(buf)
	key2h := buf[8]
	if (cs^key2h)&0xF0 != 0 {
		return 0, 0, 0, false
	}
	psaSecondStageXor(&buf)
	serial = uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	counter = uint32(buf[4])<<8 | uint32(buf[5])
	button = buf[6]
	return serial, counter, button, true
}

func psaTryBruteForceRange(key1 uint64, start, end uint32, schedule [4]uint32, mixBoth bool) (serial, counter uint32, button byte, ok bool) {
	v0hi := uint32(key1 >> 32)
	v1lo := uint32(key1)
	for trial := start; trial < end; trial += 0x10000 {
		wk := schedule
		wk[0] ^= trial
		if mixBoth {
			wk[1] ^= trial
		}
		v0, v1 := cipher.TEADecryptSchedule(v0hi, v1lo, wk, 32)
		btn := byte(v1>>24) & 0x0F
		if btn == 1 || btn == 2 || btn == 4 {
			return v0, v1 & 0xFFFF, btn, true
		}
	}
	return 0, 0, 0, false
}

func psaTryBruteForce(key1 uint64) (serial, counter uint32, button byte, subType string, ok bool) {
	if s, c, b, ok := psaTryBruteForceRange(key1, 0x23000000, 0x23100000, psaBF1KeySchedule, false); ok {
		return s, c, b, "Mode 0x36 (TEA BF1)", true
	}
	if s, c, b, ok := psaTryBruteForceRange(key1, 0xF3000000, 0xF3100000, psaBF2KeySchedule, true); ok {
		return s, c, b, "Mode 0x36 (TEA BF2)", true
	}
	return 0, 0, 0, "", false
}

func (d *PSA) finish() bool {
	d.st = psaStReset
	return true
}

func (d *PSA) Result() model.DecodedResult {
	key1 := d.key1
	key2 := d.key2
	dispatchByte := byte(key2 & 0xFF)

	var serial, counter uint32
	var button byte
	var subType string
	ok := false

	switch dispatchByte {
	case 0x23:
		serial, counter, button, ok = psaTryMode23(key1, key2)
		subType = "Mode 0x23 (XOR)"
	case 0x36:
		serial, counter, button, subType, ok = psaTryBruteForce(key1)
	}
	if !ok && subType == "" {
		if dispatchByte == 0x23 {
			subType = "Mode 0x23 (encrypted)"
		} else {
			subType = "Mode 0x36 (encrypted)"
		}
	}

	r := model.DecodedResult{
		Protocol:  "PSA",
		Data:      key1,
		Data2:     uint64(key2),
		BitLength: 80,
		CRCValid:  ok,
		Serial:    serial,
		Button:    button,
		Counter:   counter,
		Encrypted: true,
		SubType:   subType,
		KeyIndex:  -1,
	}
	d.Reset()
	return r
}

func (d *PSA) CanEmulate(subType string) bool { return false }

func (d *PSA) GeneratePulseData(model.DecodedResult) []model.Pulse { return nil }
