package dispatch

import (
	"encoding/binary"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/notify"
)

func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func le16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

// handleStartRecord payload: [module][freqHz:u32][modulation]
// [deviationHz:u32][rxBandwidth:u32][dataRate:u32][presetLen][preset].
func (d *Dispatcher) handleStartRecord(rest []byte) {
	if !d.needLen(rest, 1+4+1+4+4+4) {
		return
	}
	m, ok := d.parseModule(rest[0])
	if !ok {
		return
	}
	cfg := model.RecordingConfig{
		Module:      m,
		FreqHz:      le32(rest[1:5]),
		Modulation:  model.Modulation(rest[5]),
		DeviationHz: le32(rest[6:10]),
		RxBandwidth: le32(rest[10:14]),
		DataRate:    le32(rest[14:18]),
	}
	if preset, _, ok := readString(rest, 18); ok {
		cfg.PresetName = preset
	}
	d.worker.StartRecord(m, cfg)
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleStopRecord(rest []byte) {
	if !d.needLen(rest, 1) {
		return
	}
	m, ok := d.parseModule(rest[0])
	if !ok {
		return
	}
	d.worker.StopRecord(m)
	d.sink.Send(notify.CommandSuccess())
}

// handleTransmit payload: [module][pathType][repeat:u16][nameLen][name].
func (d *Dispatcher) handleTransmit(rest []byte) {
	if !d.needLen(rest, 1+1+2) {
		return
	}
	m, ok := d.parseModule(rest[0])
	if !ok {
		return
	}
	pt, ok := d.parsePathType(rest[1])
	if !ok {
		return
	}
	repeat := le16(rest[2:4])
	name, _, ok := readString(rest, 4)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	d.worker.TransmitFile(m, name, pt, repeat)
	d.sink.Send(notify.CommandSuccess())
}

// handleStartAnalyzer payload:
// [module][startFreq:u32][endFreq:u32][step:u32][dwellMs:u16].
func (d *Dispatcher) handleStartAnalyzer(rest []byte) {
	if !d.needLen(rest, 1+4+4+4+2) {
		return
	}
	m, ok := d.parseModule(rest[0])
	if !ok {
		return
	}
	d.worker.StartAnalyzer(m, le32(rest[1:5]), le32(rest[5:9]), le32(rest[9:13]), le16(rest[13:15]))
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleStopAnalyzer(rest []byte) {
	if !d.needLen(rest, 1) {
		return
	}
	m, ok := d.parseModule(rest[0])
	if !ok {
		return
	}
	d.worker.StopAnalyzer(m)
	d.sink.Send(notify.CommandSuccess())
}

// handleStartJam payload: [module][freqHz:u32][power:i8][pattern]
// [durationMs:u32][cooldownMs:u32].
func (d *Dispatcher) handleStartJam(rest []byte) {
	if !d.needLen(rest, 1+4+1+1+4+4) {
		return
	}
	m, ok := d.parseModule(rest[0])
	if !ok {
		return
	}
	cfg := model.JammingConfig{
		Module:     m,
		FreqHz:     le32(rest[1:5]),
		Power:      int8(rest[5]),
		Pattern:    model.JamPattern(rest[6]),
		DurationMs: le32(rest[7:11]),
		CooldownMs: le32(rest[11:15]),
	}
	d.worker.StartJam(m, cfg)
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleStopJam(rest []byte) {
	if !d.needLen(rest, 1) {
		return
	}
	m, ok := d.parseModule(rest[0])
	if !ok {
		return
	}
	d.worker.StopJam(m)
	d.sink.Send(notify.CommandSuccess())
}
