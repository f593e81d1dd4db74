package dispatch

import (
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/notify"
)

// handleProtoPirate is opcode 0x60's sub-opcode switch (spec.md §6:
// "ProtoPirate group, sub-opcodes 0x01..0x0B"). The spec names the
// range and one member (0x05, clear history); the rest are this
// rework's own allocation over the obvious remaining operations
// (see DESIGN.md).
func (d *Dispatcher) handleProtoPirate(rest []byte) {
	if !d.needLen(rest, 1) {
		return
	}
	sub := rest[0]
	args := rest[1:]
	switch sub {
	case ProtoPirateStartLiveDecode:
		d.handleProtoPirateStart(args)
	case ProtoPirateStopLiveDecode:
		d.handleProtoPirateStop(args)
	case ProtoPirateHistoryCount:
		d.handleProtoPirateCount()
	case ProtoPirateHistoryDump:
		d.handleProtoPirateDump()
	case ProtoPirateHistoryClear:
		d.handleProtoPirateClear()
	case ProtoPirateListDecoders:
		d.handleProtoPirateListDecoders()
	default:
		d.sink.Send(notify.CommandError(2))
	}
}

// handleProtoPirateStart payload mirrors handleStartRecord's:
// [module][freqHz:u32][modulation][deviationHz:u32][rxBandwidth:u32]
// [dataRate:u32][presetLen][preset].
func (d *Dispatcher) handleProtoPirateStart(rest []byte) {
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
	d.worker.StartLiveDecode(m, cfg)
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleProtoPirateStop(rest []byte) {
	if !d.needLen(rest, 1) {
		return
	}
	m, ok := d.parseModule(rest[0])
	if !ok {
		return
	}
	d.worker.StopLiveDecode(m)
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleProtoPirateCount() {
	count := 0
	if d.history != nil {
		count = d.history.Count()
	}
	d.sink.Send(notify.Message{Type: notify.TypeCommandSuccess, Body: []byte{byte(count), byte(count >> 8), byte(count >> 16), byte(count >> 24)}})
}

// handleProtoPirateDump streams the decode history as a DecodeResult
// per entry; history entries aren't tagged with a module, so they're
// reported against Module0.
func (d *Dispatcher) handleProtoPirateDump() {
	if d.history == nil {
		d.sink.Send(notify.CommandSuccess())
		return
	}
	for _, entry := range d.history.Get() {
		d.sink.Send(notify.DecodeResult(model.Module0, entry.Result))
	}
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleProtoPirateClear() {
	if d.history != nil {
		d.history.Clear()
	}
	d.sink.Send(notify.CommandSuccess())
}

// handleProtoPirateListDecoders replies with [count][len][name]...
// piggybacked on a CommandSuccess body.
func (d *Dispatcher) handleProtoPirateListDecoders() {
	var body []byte
	if d.router != nil {
		decoders := d.router.Decoders()
		body = append(body, byte(len(decoders)))
		for _, dec := range decoders {
			name := dec.Name()
			body = append(body, byte(len(name)))
			body = append(body, name...)
		}
	} else {
		body = []byte{0}
	}
	d.sink.Send(notify.Message{Type: notify.TypeCommandSuccess, Body: body})
}
