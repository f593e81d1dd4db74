package dispatch

import (
	"github.com/evilcrow/subghz-gadget/internal/notify"
)

// handleSettingsUpdate payload: [keyLen][key][valLen][val] (spec.md
// §6); Settings.Update silently ignores an unknown key and clamps a
// known one to its documented range.
func (d *Dispatcher) handleSettingsUpdate(rest []byte) {
	key, off, ok := readString(rest, 0)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	val, _, ok := readString(rest, off)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	d.settingsMu.Lock()
	d.settings.Update(key, val)
	set := d.settings
	d.settingsMu.Unlock()
	d.persistSettings()
	d.sink.Send(notify.SettingsSync(
		int8(set.ScannerRSSI), byte(set.BruterPower), uint16(set.BruterDelayMs),
		byte(set.BruterRepeats), int8(set.RadioPowerMod1), int8(set.RadioPowerMod2),
		int16(set.CPUTempOffsetDeciC),
	))
	d.sink.Send(notify.CommandSuccess())
}

// handleOta is a deliberate non-goal stub: OTA firmware update is an
// external collaborator this rework's scope excludes (spec.md §1). It
// still answers with a typed error rather than silently dropping the
// opcode, so a client probing for the feature gets a clear no.
func (d *Dispatcher) handleOta(op Opcode) {
	d.sink.Send(notify.OtaError(0x01, "ota: not supported"))
}
