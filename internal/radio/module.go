package radio

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/notify"
	"github.com/evilcrow/subghz-gadget/internal/subfile"
)

// handleTask dispatches one dequeued Task (spec.md §4.2 step 2). Every
// handler first drives the module to Idle before applying new
// configuration, except GoIdle and the Stop* variants which are
// themselves the Idle transition.
func (w *Worker) handleTask(t Task) {
	switch t.Kind {
	case TaskGoIdle:
		w.goIdle(t.Module)
	case TaskStopDetect, TaskStopRecord, TaskStopAnalyzer, TaskStopJam, TaskStopLiveDecode:
		w.goIdle(t.Module)
	case TaskStartDetect:
		w.goIdle(t.Module)
		w.transitionTo(t.Module, model.Detecting)
		w.mu.Lock()
		w.modules[t.Module].detect = t.Detect
		w.modules[t.Module].detectIdx = 0
		w.mu.Unlock()
	case TaskStartRecord:
		w.goIdle(t.Module)
		if err := w.radios[t.Module].ConfigureRX(t.Record); err != nil {
			log.Error("radio: record configure failed", "module", t.Module, "err", err)
			w.sink.Send(notify.SignalSendError(t.Module, 0x01, ""))
			return
		}
		w.transitionTo(t.Module, model.Recording)
		w.mu.Lock()
		w.modules[t.Module].record = t.Record
		w.modules[t.Module].recordWriter = nil
		w.mu.Unlock()
	case TaskStartAnalyzer:
		w.goIdle(t.Module)
		w.transitionTo(t.Module, model.Analyzing)
		w.mu.Lock()
		w.modules[t.Module].analyze = t.Analyze
		w.mu.Unlock()
	case TaskStartJam:
		w.goIdle(t.Module)
		w.transitionTo(t.Module, model.Jamming)
		w.mu.Lock()
		w.modules[t.Module].jam = t.Jam
		w.modules[t.Module].jamNextAt = time.Now()
		w.modules[t.Module].jamCoolingDown = false
		w.mu.Unlock()
	case TaskStartLiveDecode:
		w.goIdle(t.Module)
		if err := w.radios[t.Module].ConfigureRX(t.Record); err != nil {
			log.Error("radio: live-decode configure failed", "module", t.Module, "err", err)
			w.sink.Send(notify.SignalSendError(t.Module, 0x01, ""))
			return
		}
		w.transitionTo(t.Module, model.LiveDecode)
		w.mu.Lock()
		w.modules[t.Module].record = t.Record
		w.mu.Unlock()
	case TaskTransmit:
		w.runTransmission(t)
	}
}

// transitionTo announces a mode switch before overwriting the state
// field, and enforces that only {Idle→X} and {X→Idle} are valid
// (spec.md §4.2 "Mode transitions").
func (w *Worker) transitionTo(module model.Module, newMode model.RadioMode) {
	w.mu.Lock()
	prev := w.modules[module].mode
	w.mu.Unlock()

	if prev != model.Idle && newMode != model.Idle {
		log.Error("radio: rejected cross-mode transition", "module", module, "from", prev, "to", newMode)
		return
	}

	w.sink.Send(notify.ModeSwitch(module, newMode, prev))
	w.mu.Lock()
	w.modules[module].mode = newMode
	w.mu.Unlock()
}

// goIdle drives module to Idle: detaches the edge source, returns the
// radio to standby, clears samples, and is idempotent (spec.md §4.2,
// §5).
func (w *Worker) goIdle(module model.Module) {
	w.mu.Lock()
	prev := w.modules[module].mode
	w.mu.Unlock()
	if prev == model.Idle {
		return
	}

	if err := w.radios[module].Idle(); err != nil {
		log.Error("radio: idle transition failed", "module", module, "err", err)
	}
	w.radios[module].EdgeSource().Reset()

	w.mu.Lock()
	if w.modules[module].recordWriter != nil {
		w.modules[module].recordWriter.Close()
		w.modules[module].recordWriter = nil
	}
	w.mu.Unlock()

	w.sink.Send(notify.ModeSwitch(module, model.Idle, prev))
	w.mu.Lock()
	w.modules[module].mode = model.Idle
	w.mu.Unlock()
}

// stepActiveModules runs the per-mode step for every module not in
// Idle or Transmitting (spec.md §4.2 step 3). Transmitting is excluded
// because its handler runs to completion synchronously on the Worker
// goroutine instead of stepping incrementally.
func (w *Worker) stepActiveModules() {
	for m := model.Module(0); m < model.NumModules; m++ {
		w.mu.Lock()
		mode := w.modules[m].mode
		w.mu.Unlock()

		switch mode {
		case model.Detecting:
			w.stepDetect(m)
		case model.Recording:
			w.stepRecord(m)
		case model.Analyzing:
			w.stepAnalyze(m)
		case model.Jamming:
			w.stepJam(m)
		case model.LiveDecode:
			w.stepLiveDecode(m)
		}
	}
}

// stepDetect advances one frequency of the Detecting sweep: retune,
// settle, sample RSSI, and either report a hit or move to the next
// frequency (spec.md §4.2).
func (w *Worker) stepDetect(m model.Module) {
	w.mu.Lock()
	idx := w.modules[m].detectIdx
	cfg := w.modules[m].detect
	w.mu.Unlock()

	freq := DetectFrequencies[idx%len(DetectFrequencies)]
	if err := w.radios[m].SetFrequency(freq); err != nil {
		log.Error("radio: detect retune failed", "module", m, "err", err)
		return
	}
	time.Sleep(DetectSettleTime)
	rssi, err := w.radios[m].ReadRSSI()
	if err != nil {
		log.Error("radio: detect RSSI read failed", "module", m, "err", err)
		return
	}

	if rssi > cfg.rssiThreshold {
		samples := w.radios[m].EdgeSource().Size()
		w.sink.Send(notify.SignalDetected(m, uint16(samples), freq, rssi))
		if !cfg.isBackground {
			w.goIdle(m)
			return
		}
	}

	w.mu.Lock()
	w.modules[m].detectIdx = (idx + 1) % len(DetectFrequencies)
	w.mu.Unlock()
}

// recordingFile wraps a subfile.Writer plus how many pulses it's
// written, so stepRecord can roll over at RecordingFileSizeLimit.
type recordingFile struct {
	wc     io.WriteCloser
	w      *subfile.Writer
	name   string
	pulses int
}

func (rf *recordingFile) Close() {
	if rf == nil {
		return
	}
	rf.w.Close()
	rf.wc.Close()
}

func recordingPreset(mod model.Modulation) subfile.Preset {
	switch mod {
	case model.ModOOK:
		return subfile.PresetOok650
	case model.Mod2FSK:
		return subfile.Preset2FSKDev238
	case model.ModMSK:
		return subfile.PresetMSK99_97Kb
	case model.ModGFSK:
		return subfile.PresetGFSK9_99Kb
	default:
		return subfile.PresetOok650
	}
}

// stepRecord drains the module's completed capture, if any, appending
// it to the in-progress pulse file and rolling over at the size
// threshold (spec.md §4.2).
func (w *Worker) stepRecord(m model.Module) {
	ring := w.radios[m].EdgeSource()
	now := time.Now()
	if !ring.Complete(now) {
		return
	}
	samples := ring.CopyAndClear()
	if len(samples) == 0 {
		return
	}

	w.mu.Lock()
	cfg := w.modules[m].record
	rf := w.modules[m].recordWriter
	w.mu.Unlock()

	if rf == nil {
		name := fmt.Sprintf("%s_%d.sub", cfg.PresetName, now.Unix())
		wc, err := w.storage.Create(model.PathSignals, name)
		if err != nil {
			log.Error("radio: record file create failed", "module", m, "err", err)
			w.sink.Send(notify.SignalSendError(m, 0x0A, name))
			return
		}
		sw, err := subfile.NewWriter(wc, cfg.FreqHz, recordingPreset(cfg.Modulation), nil)
		if err != nil {
			log.Error("radio: record header write failed", "module", m, "err", err)
			wc.Close()
			return
		}
		rf = &recordingFile{wc: wc, w: sw, name: name}
		w.mu.Lock()
		w.modules[m].recordWriter = rf
		w.mu.Unlock()
	}

	for _, dur := range samples {
		if err := rf.w.WritePulse(dur); err != nil {
			log.Error("radio: record pulse write failed", "module", m, "err", err)
			break
		}
		rf.pulses++
	}

	if rf.pulses >= RecordingFileSizeLimit {
		rf.Close()
		w.sink.Send(notify.SignalRecorded(m, rf.name))
		w.mu.Lock()
		w.modules[m].recordWriter = nil
		w.mu.Unlock()
		return
	}
	w.sink.Send(notify.SignalRecorded(m, rf.name))
}

// stepAnalyze advances one point of the spectrum sweep (spec.md §4.2).
func (w *Worker) stepAnalyze(m model.Module) {
	w.mu.Lock()
	cfg := w.modules[m].analyze
	idx := w.modules[m].detectIdx // re-used as the analyzer's point cursor
	w.mu.Unlock()

	freq := cfg.startFreq + uint32(idx)*cfg.step
	if freq > cfg.endFreq {
		w.mu.Lock()
		w.modules[m].detectIdx = 0
		w.mu.Unlock()
		return
	}
	if err := w.radios[m].SetFrequency(freq); err != nil {
		log.Error("radio: analyze retune failed", "module", m, "err", err)
		return
	}
	time.Sleep(time.Duration(cfg.dwellMs) * time.Millisecond)
	rssi, err := w.radios[m].ReadRSSI()
	if err != nil {
		log.Error("radio: analyze RSSI read failed", "module", m, "err", err)
		return
	}
	w.sink.Send(notify.SignalDetected(m, 0, freq, rssi))

	w.mu.Lock()
	w.modules[m].detectIdx = idx + 1
	w.mu.Unlock()
}

// stepLiveDecode drains a completed capture exactly as stepRecord
// does, but routes it through the Protocol Router instead of
// persisting it (spec.md §4.2).
func (w *Worker) stepLiveDecode(m model.Module) {
	ring := w.radios[m].EdgeSource()
	now := time.Now()
	if !ring.Complete(now) {
		return
	}
	samples := ring.CopyAndClear()
	if len(samples) == 0 {
		return
	}
	w.mu.Lock()
	freq := w.modules[m].record.FreqHz
	w.mu.Unlock()
	w.router.Feed(samples, freq, now)
}

// stepJam drives the jam pattern for durationMs then cools down for
// cooldownMs, checking for a cancel-through-Idle request between
// pattern elements (spec.md §4.2).
func (w *Worker) stepJam(m model.Module) {
	w.mu.Lock()
	cfg := w.modules[m].jam
	coolingDown := w.modules[m].jamCoolingDown
	nextAt := w.modules[m].jamNextAt
	w.mu.Unlock()

	now := time.Now()
	if now.Before(nextAt) {
		return
	}

	if coolingDown {
		w.mu.Lock()
		w.modules[m].jamCoolingDown = false
		w.modules[m].jamNextAt = now
		w.mu.Unlock()
		return
	}

	if err := w.radios[m].ConfigureTX(model.RecordingConfig{Module: m, FreqHz: cfg.FreqHz}, cfg.Power); err != nil {
		log.Error("radio: jam configure failed", "module", m, "err", err)
		return
	}
	onFor := time.Duration(cfg.DurationMs) * time.Millisecond
	switch cfg.Pattern {
	case model.JamPulsed:
		w.radios[m].WriteLine(true, onFor/2)
		w.radios[m].WriteLine(false, onFor/2)
	case model.JamSweep:
		w.radios[m].WriteLine(true, onFor)
	default: // JamContinuous
		w.radios[m].WriteLine(true, onFor)
	}
	w.radios[m].WriteLine(false, 0)

	w.mu.Lock()
	w.modules[m].jamCoolingDown = true
	w.modules[m].jamNextAt = now.Add(time.Duration(cfg.CooldownMs) * time.Millisecond)
	w.mu.Unlock()
}
