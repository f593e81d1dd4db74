package dispatch

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/evilcrow/subghz-gadget/internal/hid"
	"github.com/evilcrow/subghz-gadget/internal/nrf"
	"github.com/evilcrow/subghz-gadget/internal/notify"
)

// handleNrf routes the 0x20..0x2B scan/attack/jammer group and the
// 0x41..0x45 jammer-tuning opcodes (spec.md §6).
func (d *Dispatcher) handleNrf(op Opcode, rest []byte) {
	switch op {
	case OpNrfScanStart:
		d.handleNrfScanStart()
	case OpNrfScanStop:
		d.handleNrfScanStop()
	case OpNrfClearTargets:
		d.handleNrfClearTargets()
	case OpNrfInjectString:
		d.handleNrfInjectString(rest)
	case OpNrfInjectKeys:
		d.handleNrfInjectKeys(rest)
	case OpNrfRunDucky:
		d.handleNrfRunDucky(rest)
	case OpNrfStopAttack:
		d.handleNrfStopAttack()
	case OpNrfJamStart:
		d.handleNrfJamStart(rest)
	case OpNrfJamStop:
		d.handleNrfJamStop()
	case OpNrfJamSetHopper:
		d.handleNrfJamSetHopper(rest)
	case OpNrfJamGetModeCfg:
		d.handleNrfJamGetModeCfg(rest)
	case OpNrfJamSetModeCfg:
		d.handleNrfJamSetModeCfg(rest)
	case OpNrfJamSetPaLevel:
		d.handleNrfJamTune(rest, func(c *nrf.JamModeConfig, v []byte) { c.PALevel = v[0] })
	case OpNrfJamSetDataRate:
		d.handleNrfJamTune(rest, func(c *nrf.JamModeConfig, v []byte) { c.DataRate = v[0] })
	case OpNrfJamSetDwell:
		d.handleNrfJamTuneWide(rest, 2, func(c *nrf.JamModeConfig, v []byte) { c.DwellTimeMs = le16(v) })
	case OpNrfJamSetFlooding:
		d.handleNrfJamTuneWide(rest, 2, func(c *nrf.JamModeConfig, v []byte) {
			c.UseFlooding = v[0] != 0
			c.FloodBursts = v[1]
		})
	case OpNrfJamGetModeInfo:
		d.handleNrfJamGetModeInfo(rest)
	}
}

func (d *Dispatcher) handleHwButtonConfig(rest []byte) {
	if !d.needLen(rest, 4) {
		return
	}
	d.settingsMu.Lock()
	d.settings.Update("button1_action", strconv.Itoa(int(rest[0])))
	d.settings.Update("button2_action", strconv.Itoa(int(rest[1])))
	d.settings.Update("button1_signal_path_type", strconv.Itoa(int(rest[2])))
	d.settings.Update("button2_signal_path_type", strconv.Itoa(int(rest[3])))
	set := d.settings
	d.settingsMu.Unlock()
	d.persistSettings()
	d.sink.Send(notify.HwButtonStatus(byte(set.Button1Action), byte(set.Button2Action), byte(set.Button1PathType), byte(set.Button2PathType)))
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleNrfScanStart() {
	if d.scanner == nil {
		d.sink.Send(notify.CommandError(2))
		return
	}
	if err := d.scanner.Start(); err != nil {
		d.sink.Send(notify.CommandError(4))
		return
	}
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleNrfScanStop() {
	if d.scanner == nil {
		d.sink.Send(notify.CommandError(2))
		return
	}
	d.scanner.Stop()
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleNrfClearTargets() {
	if d.scanner == nil {
		d.sink.Send(notify.CommandError(2))
		return
	}
	d.scanner.ClearTargets()
	d.sink.Send(notify.CommandSuccess())
}

// nrfTarget resolves a client-supplied target index against the
// scanner's fingerprinted-target table.
func (d *Dispatcher) nrfTarget(idx byte) (nrf.Target, bool) {
	if d.scanner == nil {
		d.sink.Send(notify.CommandError(2))
		return nrf.Target{}, false
	}
	targets := d.scanner.Targets()
	if int(idx) >= len(targets) {
		d.sink.Send(notify.CommandError(3))
		return nrf.Target{}, false
	}
	return targets[idx], true
}

// handleNrfInjectString payload: [targetIdx][textLen][text].
func (d *Dispatcher) handleNrfInjectString(rest []byte) {
	if !d.needLen(rest, 1) || d.attacker == nil {
		if d.attacker == nil {
			d.sink.Send(notify.CommandError(2))
		}
		return
	}
	target, ok := d.nrfTarget(rest[0])
	if !ok {
		return
	}
	text, _, ok := readString(rest, 1)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	go func() {
		if err := d.attacker.InjectString(target, text); err != nil {
			log.Error("dispatch: nrf inject string failed", "err", err)
			d.sink.Send(notify.ErrorMsg(0x02, "nrf: inject failed"))
		}
	}()
	d.sink.Send(notify.CommandSuccess())
}

// handleNrfInjectKeys payload: [targetIdx][modifier][keyCount][keys...].
func (d *Dispatcher) handleNrfInjectKeys(rest []byte) {
	if !d.needLen(rest, 3) {
		return
	}
	if d.attacker == nil {
		d.sink.Send(notify.CommandError(2))
		return
	}
	target, ok := d.nrfTarget(rest[0])
	if !ok {
		return
	}
	modifier := hid.Modifier(rest[1])
	n := int(rest[2])
	if !d.needLen(rest, 3+n) {
		return
	}
	keys := append([]byte(nil), rest[3:3+n]...)
	go func() {
		if err := d.attacker.InjectKeys(target, keys, modifier); err != nil {
			log.Error("dispatch: nrf inject keys failed", "err", err)
			d.sink.Send(notify.ErrorMsg(0x02, "nrf: inject failed"))
		}
	}()
	d.sink.Send(notify.CommandSuccess())
}

// handleNrfRunDucky payload: [targetIdx][scriptLen:u16][script], script
// is a newline-separated Ducky Script body (spec.md §4.9).
func (d *Dispatcher) handleNrfRunDucky(rest []byte) {
	if !d.needLen(rest, 3) {
		return
	}
	if d.attacker == nil {
		d.sink.Send(notify.CommandError(2))
		return
	}
	target, ok := d.nrfTarget(rest[0])
	if !ok {
		return
	}
	n := int(le16(rest[1:3]))
	if !d.needLen(rest, 3+n) {
		return
	}
	lines := strings.Split(string(rest[3:3+n]), "\n")
	ops := nrf.ParseDuckyScript(lines)
	go func() {
		if err := d.attacker.RunDuckyScript(target, ops); err != nil {
			log.Error("dispatch: nrf ducky script failed", "err", err)
			d.sink.Send(notify.ErrorMsg(0x02, "nrf: ducky script failed"))
		}
	}()
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleNrfStopAttack() {
	if d.attacker == nil {
		d.sink.Send(notify.CommandError(2))
		return
	}
	d.attacker.Stop()
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleNrfJamStart(rest []byte) {
	if !d.needLen(rest, 1) || d.jammer == nil {
		if d.jammer == nil {
			d.sink.Send(notify.CommandError(2))
		}
		return
	}
	if err := d.jammer.Start(nrf.JamMode(rest[0])); err != nil {
		d.sink.Send(notify.CommandError(4))
		return
	}
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleNrfJamStop() {
	if d.jammer == nil {
		d.sink.Send(notify.CommandError(2))
		return
	}
	d.jammer.Stop()
	d.sink.Send(notify.CommandSuccess())
}

// handleNrfJamSetHopper payload: [startChannel][stopChannel][stepSize].
func (d *Dispatcher) handleNrfJamSetHopper(rest []byte) {
	if !d.needLen(rest, 3) || d.jammer == nil {
		if d.jammer == nil {
			d.sink.Send(notify.CommandError(2))
		}
		return
	}
	cfg := nrf.HopperConfig{StartChannel: rest[0], StopChannel: rest[1], StepSize: rest[2]}
	if err := d.jammer.StartHopper(cfg); err != nil {
		d.sink.Send(notify.CommandError(4))
		return
	}
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleNrfJamGetModeCfg(rest []byte) {
	if !d.needLen(rest, 1) || d.jammer == nil {
		if d.jammer == nil {
			d.sink.Send(notify.CommandError(2))
		}
		return
	}
	cfg := d.jammer.ModeConfig(nrf.JamMode(rest[0]))
	d.sink.Send(notify.NrfModeConfig(rest[0], cfg.PALevel, cfg.DataRate, cfg.DwellTimeMs, cfg.UseFlooding))
	d.sink.Send(notify.CommandSuccess())
}

// handleNrfJamSetModeCfg payload:
// [mode][paLevel][dataRate][dwellMs:u16][useFlooding][floodBursts].
func (d *Dispatcher) handleNrfJamSetModeCfg(rest []byte) {
	if !d.needLen(rest, 6) || d.jammer == nil {
		if d.jammer == nil {
			d.sink.Send(notify.CommandError(2))
		}
		return
	}
	cfg := nrf.JamModeConfig{
		PALevel:     rest[1],
		DataRate:    rest[2],
		DwellTimeMs: le16(rest[3:5]),
		UseFlooding: rest[5] != 0,
	}
	if len(rest) > 6 {
		cfg.FloodBursts = rest[6]
	}
	d.jammer.SetModeConfig(nrf.JamMode(rest[0]), cfg.Clamp())
	d.sink.Send(notify.CommandSuccess())
}

// handleNrfJamTune reads [mode][value] and applies fn as a
// read-modify-write over that mode's config.
func (d *Dispatcher) handleNrfJamTune(rest []byte, fn func(*nrf.JamModeConfig, []byte)) {
	if !d.needLen(rest, 2) || d.jammer == nil {
		if d.jammer == nil {
			d.sink.Send(notify.CommandError(2))
		}
		return
	}
	mode := nrf.JamMode(rest[0])
	cfg := d.jammer.ModeConfig(mode)
	fn(&cfg, rest[1:])
	d.jammer.SetModeConfig(mode, cfg.Clamp())
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleNrfJamTuneWide(rest []byte, valLen int, fn func(*nrf.JamModeConfig, []byte)) {
	if !d.needLen(rest, 1+valLen) || d.jammer == nil {
		if d.jammer == nil {
			d.sink.Send(notify.CommandError(2))
		}
		return
	}
	mode := nrf.JamMode(rest[0])
	cfg := d.jammer.ModeConfig(mode)
	fn(&cfg, rest[1:1+valLen])
	d.jammer.SetModeConfig(mode, cfg.Clamp())
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleNrfJamGetModeInfo(rest []byte) {
	if !d.needLen(rest, 1) || d.jammer == nil {
		if d.jammer == nil {
			d.sink.Send(notify.CommandError(2))
		}
		return
	}
	mode := nrf.JamMode(rest[0])
	d.sink.Send(notify.NrfModeInfo(rest[0], mode.String()))
	d.sink.Send(notify.CommandSuccess())
}
