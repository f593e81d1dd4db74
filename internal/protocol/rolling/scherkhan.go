package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// ScherKhan decodes the Scher-Khan Magicar key fob PWM protocol
// (decode only, spec.md §4.7): a variable-length payload (35-82
// bits) classified into one of several sub-types purely by its final
// bit count, no CRC or cipher. Grounded on original_source's
// PPScherKhan.h.
type ScherKhan struct {
	st      int
	teLast  uint32
	headerN int
	bits    int
	code    uint64
}

var scherKhanTiming = protocol.Timing{TEShort: 750, TELong: 1100, TEDelta: 160, MinCountBit: 35}

const (
	skStReset = iota
	skStPreamble
	skStSaveDuration
	skStCheckDuration
)

func NewScherKhan() *ScherKhan { return &ScherKhan{} }

func (d *ScherKhan) Name() string            { return "Scher-Khan" }
func (d *ScherKhan) Timing() protocol.Timing { return scherKhanTiming }

func (d *ScherKhan) Reset() {
	d.st = skStReset
	d.teLast = 0
	d.headerN = 0
	d.bits = 0
	d.code = 0
}

func (d *ScherKhan) Feed(high bool, dur uint32) bool {
	t := scherKhanTiming
	near := func(a, b uint32) bool { return durationDiff(a, b) < t.TEDelta }

	switch d.st {
	case skStReset:
		if high && near(dur, t.TEShort*2) {
			d.st = skStPreamble
			d.teLast = dur
			d.headerN = 0
		}
		return false

	case skStPreamble:
		if high {
			if near(dur, t.TEShort*2) || near(dur, t.TEShort) {
				d.teLast = dur
			} else {
				d.Reset()
			}
			return false
		}
		if near(dur, t.TEShort*2) || near(dur, t.TEShort) {
			switch {
			case near(d.teLast, t.TEShort*2):
				d.headerN++
			case near(d.teLast, t.TEShort):
				if d.headerN >= 2 {
					d.st = skStSaveDuration
					d.code, d.bits = 0, 1
				} else {
					d.Reset()
				}
			default:
				d.Reset()
			}
			return false
		}
		d.Reset()
		return false

	case skStSaveDuration:
		if high {
			if dur >= t.TEDelta*2+t.TELong {
				d.st = skStReset
				if d.bits >= t.MinCountBit {
					return true
				}
				d.Reset()
				return false
			}
			d.teLast = dur
			d.st = skStCheckDuration
			return false
		}
		d.Reset()
		return false

	case skStCheckDuration:
		if !high {
			switch {
			case near(d.teLast, t.TEShort) && near(dur, t.TEShort):
				d.code = (d.code << 1) | 0
				d.bits++
				d.st = skStSaveDuration
			case near(d.teLast, t.TELong) && near(dur, t.TELong):
				d.code = (d.code << 1) | 1
				d.bits++
				d.st = skStSaveDuration
			default:
				d.Reset()
			}
			return false
		}
		d.Reset()
		return false
	}
	return false
}

func (d *ScherKhan) Result() model.DecodedResult {
	subType := "Unknown"
	var serial uint32
	var btn byte
	var cnt uint32

	switch d.bits {
	case 35:
		subType = "MAGIC CODE, Static"
	case 51:
		subType = "MAGIC CODE, Dynamic"
		serial = uint32((d.code>>24)&0xFFFFFF0) | uint32((d.code>>20)&0x0F)
		btn = byte((d.code >> 24) & 0x0F)
		cnt = uint32(d.code & 0xFFFF)
	case 57:
		subType = "MAGIC CODE PRO/PRO2"
	case 63:
		subType = "MAGIC CODE, Response"
	case 64:
		subType = "MAGICAR, Response"
	case 81, 82:
		subType = "MAGIC CODE PRO, Response"
	}

	r := model.DecodedResult{
		Protocol:  "Scher-Khan",
		Data:      d.code,
		BitLength: d.bits,
		Serial:    serial,
		Button:    btn,
		Counter:   cnt,
		CRCValid:  true,
		SubType:   subType,
	}
	d.Reset()
	return r
}

func (d *ScherKhan) CanEmulate(subType string) bool              { return false }
func (d *ScherKhan) GeneratePulseData(model.DecodedResult) []model.Pulse { return nil }
