package radio

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/notify"
	"github.com/evilcrow/subghz-gadget/internal/subfile"
)

// pulseGapBetweenRepeats is the silent gap held between repetitions
// of a transmitted file (spec.md §4.2: "Repeat count is honored with
// a silent gap between repetitions").
const pulseGapBetweenRepeats = 10 * time.Millisecond

// runTransmission is the Transmission handler (spec.md §4.2): the
// Worker's mode stays Transmitting for its whole duration, which is
// why it runs synchronously on the Worker goroutine rather than
// stepping through stepActiveModules.
func (w *Worker) runTransmission(t Task) {
	w.transitionTo(t.Module, model.Transmitting)
	defer w.goIdle(t.Module)

	rc, err := w.storage.Open(t.PathType, t.Filename)
	if err != nil {
		log.Error("radio: transmit open failed", "module", t.Module, "file", t.Filename, "err", err)
		w.sink.Send(notify.SignalSendError(t.Module, 0x03, t.Filename))
		return
	}
	defer rc.Close()

	var pulses []model.Pulse
	hdr, err := subfile.Parse(rc, func(durationUs uint32, high bool) error {
		p := model.Pulse(durationUs)
		if !high {
			p = -p
		}
		pulses = append(pulses, p)
		return nil
	})
	if err != nil {
		log.Error("radio: transmit parse failed", "module", t.Module, "file", t.Filename, "err", err)
		w.sink.Send(notify.SignalSendError(t.Module, 0x03, t.Filename))
		return
	}

	cfg := model.RecordingConfig{Module: t.Module, FreqHz: hdr.FrequencyHz, PresetName: string(hdr.Preset)}
	if err := w.radios[t.Module].ConfigureTX(cfg, 10); err != nil {
		log.Error("radio: transmit configure failed", "module", t.Module, "err", err)
		w.sink.Send(notify.SignalSendError(t.Module, 0x01, t.Filename))
		return
	}

	for r := uint16(0); r < t.Repeat; r++ {
		w.emitPulses(t.Module, pulses)
		if r+1 < t.Repeat {
			w.radios[t.Module].WriteLine(false, pulseGapBetweenRepeats)
		}
	}
	w.sink.Send(notify.SignalSent(t.Module, t.Filename))
}

// emitPulses drives the output pin for each pulse in order, busy-
// waiting its duration (spec.md §4.2).
func (w *Worker) emitPulses(module model.Module, pulses []model.Pulse) {
	for _, p := range pulses {
		w.radios[module].WriteLine(p.High(), p.Duration())
	}
}

// ResetForTransmit implements bruteforce.Transmitter: go through Idle
// first so the PLL recalibrates, then re-assert TX configuration
// (spec.md §4.8 pre-run step — "other consumers of the shared bus may
// have left it in RX or a stale TX state").
func (w *Worker) ResetForTransmit(module model.Module, freqHz uint32) error {
	w.goIdle(module)
	w.transitionTo(module, model.Transmitting)
	cfg := model.RecordingConfig{Module: module, FreqHz: freqHz}
	return w.radios[module].ConfigureTX(cfg, 10)
}

// Transmit implements bruteforce.Transmitter: emit one frame's pulse
// list without touching TX configuration (already re-asserted by
// ResetForTransmit).
func (w *Worker) Transmit(module model.Module, pulses []model.Pulse) error {
	w.emitPulses(module, pulses)
	return nil
}
