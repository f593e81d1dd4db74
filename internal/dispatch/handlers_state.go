package dispatch

import (
	"github.com/charmbracelet/log"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/notify"
	"github.com/evilcrow/subghz-gadget/internal/settings"
)

// handleGetState answers scenario 1 of spec.md §8: a burst of single-
// chunk status messages, each built independently so a missing
// collaborator (e.g. no diag.Collector in a test harness) only leaves
// its own figures zeroed; every message of the exchange is still sent.
func (d *Dispatcher) handleGetState() {
	mode0 := d.worker.Mode(model.Module0)
	mode1 := d.worker.Mode(model.Module1)

	var s notify.StatusInfo
	s.Mode0, s.Mode1 = mode0, mode1
	if d.diag != nil {
		sample := d.diag.Sample()
		s.FreeHeap = sample.FreeHeapBytes
		s.CPUTempDeci = sample.CPUTempDeci
		s.Core0Mhz, s.Core1Mhz = sample.Core0Mhz, sample.Core1Mhz
	}
	d.sink.Send(notify.Status(s))

	d.settingsMu.Lock()
	set := d.settings
	d.settingsMu.Unlock()
	d.sink.Send(notify.SettingsSync(
		int8(set.ScannerRSSI), byte(set.BruterPower), uint16(set.BruterDelayMs),
		byte(set.BruterRepeats), int8(set.RadioPowerMod1), int8(set.RadioPowerMod2),
		int16(set.CPUTempOffsetDeciC),
	))
	d.sink.Send(notify.VersionInfo(d.version.Major, d.version.Minor, d.version.Patch))
	d.sink.Send(notify.DeviceName(set.DeviceName))
	d.sink.Send(notify.HwButtonStatus(byte(set.Button1Action), byte(set.Button2Action), byte(set.Button1PathType), byte(set.Button2PathType)))
	// SD mount/capacity figures aren't sourced from anywhere in this
	// rework's scope (the SD/flash filesystem driver is an external
	// collaborator per spec.md §1); report "mounted" with zeroed
	// capacity rather than omit the message entirely.
	d.sink.Send(notify.SdStatus(true, 0, 0))
	d.sink.Send(notify.NrfStatus(true, true, boolToByte(d.scanner != nil && d.scanner.Running())))

	d.sink.Send(notify.CommandSuccess())
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (d *Dispatcher) handleRequestScan() {
	if d.scanner == nil {
		d.sink.Send(notify.CommandError(2))
		return
	}
	if err := d.scanner.Start(); err != nil {
		log.Error("dispatch: nrf scan start failed", "err", err)
		d.sink.Send(notify.CommandError(4))
		return
	}
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleRequestIdle(rest []byte) {
	if !d.needLen(rest, 1) {
		return
	}
	m, ok := d.parseModule(rest[0])
	if !ok {
		return
	}
	d.worker.GoIdle(m)
	d.sink.Send(notify.CommandSuccess())
}

// handleSetTime is a no-op acknowledgment: no RTC is modeled in this
// rework's scope, matching the battery/LED/OTA external-collaborator
// carve-outs in spec.md §1.
func (d *Dispatcher) handleSetTime(rest []byte) {
	if !d.needLen(rest, 4) {
		return
	}
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleReboot() {
	if d.reboot != nil {
		d.reboot.Reboot()
	}
	d.sink.Send(notify.CommandSuccess())
}

func hasGuard(rest []byte, guard [2]byte) bool {
	return len(rest) >= 2 && rest[0] == guard[0] && rest[1] == guard[1]
}

func (d *Dispatcher) handleFactoryReset(rest []byte) {
	if !hasGuard(rest, FactoryResetGuard) {
		d.sink.Send(notify.CommandError(1))
		return
	}
	d.settingsMu.Lock()
	d.settings = settings.Default()
	d.settingsMu.Unlock()
	d.persistSettings()
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleSetDeviceName(rest []byte) {
	name, _, ok := readString(rest, 0)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	d.settingsMu.Lock()
	d.settings.Update("device_name", name)
	name = d.settings.DeviceName
	d.settingsMu.Unlock()
	d.persistSettings()
	d.sink.Send(notify.DeviceName(name))
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleFormatSD(rest []byte) {
	if !hasGuard(rest, FormatSDGuard) {
		d.sink.Send(notify.CommandError(1))
		return
	}
	if d.store == nil {
		d.sink.Send(notify.CommandError(2))
		return
	}
	d.store.Format()
	d.sink.Send(notify.CommandSuccess())
}
