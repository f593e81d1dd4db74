package notify

import (
	"encoding/binary"

	"github.com/evilcrow/subghz-gadget/internal/model"
)

// The helpers in this file build the Body for each outbound message
// shape named in spec.md §6. They're grouped here, not spread across
// every producer, so the wire layout for a given Type has one home.

func le16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
func le32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }

func ModeSwitch(module model.Module, newMode, prevMode model.RadioMode) Message {
	return Message{Type: TypeModeSwitch, Body: []byte{byte(module), byte(newMode), byte(prevMode)}}
}

func Heartbeat(uptimeMs uint32) Message {
	return Message{Type: TypeHeartbeat, Body: le32(uptimeMs)}
}

type StatusInfo struct {
	Mode0, Mode1       model.RadioMode
	FreeHeap           uint32
	CPUTempDeci        int16
	Core0Mhz, Core1Mhz uint16
	Regs0, Regs1       [47]byte
}

func Status(s StatusInfo) Message {
	body := make([]byte, 0, 1+1+1+4+2+2+2+47+47)
	body = append(body, byte(s.Mode0), byte(s.Mode1), 0x2E)
	body = append(body, le32(s.FreeHeap)...)
	body = append(body, le16(uint16(s.CPUTempDeci))...)
	body = append(body, le16(s.Core0Mhz)...)
	body = append(body, le16(s.Core1Mhz)...)
	body = append(body, s.Regs0[:]...)
	body = append(body, s.Regs1[:]...)
	return Message{Type: TypeStatus, Body: body}
}

func SignalDetected(module model.Module, samples uint16, freqHz uint32, rssi int16) Message {
	body := []byte{byte(module)}
	body = append(body, le16(samples)...)
	body = append(body, le32(freqHz)...)
	body = append(body, le16(uint16(rssi))...)
	body = append(body, le16(0)...) // reserved
	return Message{Type: TypeSignalDetected, Body: body}
}

// DecodeResult reports a fresh (non-deduplicated) protocol decode
// from the Router (spec.md §4.7): module, protocol name, primary and
// auxiliary data words, serial, button, counter, bit length, CRC
// validity, the encrypted flag, an optional sub-type label, and the
// session frequency.
func DecodeResult(module model.Module, r model.DecodedResult) Message {
	body := []byte{byte(module), byte(len(r.Protocol))}
	body = append(body, r.Protocol...)
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, r.Data)
	body = append(body, data...)
	binary.LittleEndian.PutUint64(data, r.Data2)
	body = append(body, data...)
	body = append(body, le32(r.Serial)...)
	body = append(body, r.Button)
	body = append(body, le32(r.Counter)...)
	body = append(body, le16(uint16(r.BitLength))...)
	crcValid, encrypted := byte(0), byte(0)
	if r.CRCValid {
		crcValid = 1
	}
	if r.Encrypted {
		encrypted = 1
	}
	body = append(body, crcValid, encrypted, byte(len(r.SubType)))
	body = append(body, r.SubType...)
	body = append(body, le32(r.FreqHz)...)
	return Message{Type: TypeDecodeResult, Body: body}
}

func namedModuleMessage(t Type, module model.Module, name string) Message {
	body := []byte{byte(module), byte(len(name))}
	body = append(body, name...)
	return Message{Type: t, Body: body}
}

func SignalRecorded(module model.Module, name string) Message {
	return namedModuleMessage(TypeSignalRecorded, module, name)
}

func SignalSent(module model.Module, name string) Message {
	return namedModuleMessage(TypeSignalSent, module, name)
}

func SignalSendError(module model.Module, errorCode byte, name string) Message {
	body := []byte{byte(module), errorCode, byte(len(name))}
	body = append(body, name...)
	return Message{Type: TypeSignalSendError, Body: body}
}

func CommandSuccess() Message { return Message{Type: TypeCommandSuccess} }

func CommandError(code byte) Message {
	return Message{Type: TypeCommandError, Body: []byte{code}}
}

func ErrorMsg(code byte, msg string) Message {
	body := append([]byte{code}, msg...)
	return Message{Type: TypeError, Body: body}
}

// OtaError reports a firmware-update failure: (code, message).
func OtaError(code byte, msg string) Message {
	body := append([]byte{code}, msg...)
	return Message{Type: TypeOtaError, Body: body}
}

func VersionInfo(major, minor, patch byte) Message {
	return Message{Type: TypeVersionInfo, Body: []byte{major, minor, patch}}
}

func BatteryStatus(mv uint16, pct byte, charging bool) Message {
	c := byte(0)
	if charging {
		c = 1
	}
	body := append(le16(mv), pct, c)
	return Message{Type: TypeBatteryStatus, Body: body}
}

func DeviceName(name string) Message {
	body := []byte{byte(len(name))}
	body = append(body, name...)
	return Message{Type: TypeDeviceName, Body: body}
}

func HwButtonStatus(btn1Act, btn2Act, btn1Path, btn2Path byte) Message {
	return Message{Type: TypeHwButtonStatus, Body: []byte{btn1Act, btn2Act, btn1Path, btn2Path}}
}

func SdStatus(mounted bool, totalMB, freeMB uint16) Message {
	m := byte(0)
	if mounted {
		m = 1
	}
	body := []byte{m}
	body = append(body, le16(totalMB)...)
	body = append(body, le16(freeMB)...)
	return Message{Type: TypeSdStatus, Body: body}
}

func NrfStatus(present, initialized bool, activeState byte) Message {
	p, i := byte(0), byte(0)
	if present {
		p = 1
	}
	if initialized {
		i = 1
	}
	return Message{Type: TypeNrfStatus, Body: []byte{p, i, activeState}}
}

// BruteProgress carries (current, total, menuId, percentage,
// codesPerSec) in a 13-byte body (spec.md §6).
func BruteProgress(current, total uint32, menuID byte, percentage byte, codesPerSec uint16) Message {
	body := append(le32(current), le32(total)...)
	body = append(body, menuID, percentage)
	body = append(body, le16(codesPerSec)...)
	body = append(body, 0) // pad to the documented 13-byte size
	return Message{Type: TypeBruteProgress, Body: body}
}

// BruteComplete carries (menuId, totalCodes) in an 8-byte body.
func BruteComplete(menuID byte, totalCodes uint32) Message {
	body := append([]byte{menuID}, le32(totalCodes)...)
	body = append(body, 0, 0, 0) // pad to the documented 8-byte size
	return Message{Type: TypeBruteComplete, Body: body[:8]}
}

func bruteStateMessage(t Type, menuID byte, currentCode, totalCodes uint32) Message {
	body := append([]byte{menuID}, le32(currentCode)...)
	body = append(body, le32(totalCodes)...)
	body = append(body, 0, 0, 0, 0) // pad to the documented 13-byte size
	return Message{Type: t, Body: body[:13]}
}

func BrutePaused(menuID byte, currentCode, totalCodes uint32) Message {
	return bruteStateMessage(TypeBrutePaused, menuID, currentCode, totalCodes)
}

func BruteResumed(menuID byte, resumeCode, totalCodes uint32) Message {
	return bruteStateMessage(TypeBruteResumed, menuID, resumeCode, totalCodes)
}

func BruteStateAvailable(menuID byte, currentCode, totalCodes uint32) Message {
	return bruteStateMessage(TypeBruteStateAvail, menuID, currentCode, totalCodes)
}

func SettingsSync(rssi int8, bruterPower byte, delay uint16, repeats byte, mod1Power, mod2Power int8, tempOffset int16) Message {
	body := []byte{byte(rssi), bruterPower}
	body = append(body, le16(delay)...)
	body = append(body, repeats, byte(mod1Power), byte(mod2Power))
	body = append(body, le16(uint16(tempOffset))...)
	return Message{Type: TypeSettingsSync, Body: body}
}

// NrfFound reports a newly-added fingerprinted target: (address[5],
// deviceType, channel). Matches spec.md §4.9's "each new entry is
// notified".
func NrfFound(address [5]byte, deviceType, channel byte) Message {
	body := append(append([]byte{}, address[:]...), deviceType, channel)
	return Message{Type: TypeNrfFound, Body: body}
}

// NrfComplete reports a scan sweep finishing: (targetsFound,
// channelsSwept).
func NrfComplete(targetsFound byte, channelsSwept byte) Message {
	return Message{Type: TypeNrfComplete, Body: []byte{targetsFound, channelsSwept}}
}

// NrfScanStatus reports current sweep progress: (running,
// currentChannel, targetCount).
func NrfScanStatus(running bool, currentChannel, targetCount byte) Message {
	r := byte(0)
	if running {
		r = 1
	}
	return Message{Type: TypeNrfScanStatus, Body: []byte{r, currentChannel, targetCount}}
}

// NrfSpectrum carries one channel's observed RSSI sample during a
// spectrum sweep: (channel, rssi).
func NrfSpectrum(channel byte, rssi int8) Message {
	return Message{Type: TypeNrfSpectrum, Body: []byte{channel, byte(rssi)}}
}

// NrfJamStatus reports jammer state: (running, mode, currentChannel).
func NrfJamStatus(running bool, mode, currentChannel byte) Message {
	r := byte(0)
	if running {
		r = 1
	}
	return Message{Type: TypeNrfJamStatus, Body: []byte{r, mode, currentChannel}}
}

// NrfModeConfig echoes the active jam mode's tuned parameters back to
// the client: (mode, paLevel, dataRate, dwellMs:u16, useFlooding).
func NrfModeConfig(mode, paLevel, dataRate byte, dwellMs uint16, useFlooding bool) Message {
	f := byte(0)
	if useFlooding {
		f = 1
	}
	body := []byte{mode, paLevel, dataRate}
	body = append(body, le16(dwellMs)...)
	body = append(body, f)
	return Message{Type: TypeNrfModeConfig, Body: body}
}

// NrfModeInfo names the active jam mode for display: (mode, nameLen,
// name...).
func NrfModeInfo(mode byte, name string) Message {
	body := []byte{mode, byte(len(name))}
	body = append(body, name...)
	return Message{Type: TypeNrfModeInfo, Body: body}
}

// FileEntry is one directory-listing row (spec.md §4.5).
type FileEntry struct {
	Name    string
	IsDir   bool
	Size    uint32
	ModTime uint32
}

// listFlags bit 0 = more chunks follow, bit 7 = error (code in the
// low bits).
func listFlags(more bool, errorCode byte) byte {
	f := errorCode & 0x7F
	if more {
		f |= 0x01
	}
	if errorCode != 0 {
		f |= 0x80
	}
	return f
}

// FileList builds one paginated directory-listing chunk. totalFiles
// carries the 0xFFFF sentinel while more chunks remain, the true
// count only on the terminal chunk (spec.md §4.5).
func FileList(path string, more bool, errorCode byte, totalFiles uint16, entries []FileEntry) Message {
	body := []byte{byte(len(path))}
	body = append(body, path...)
	body = append(body, listFlags(more, errorCode))
	body = append(body, le16(totalFiles)...)
	body = append(body, byte(len(entries)))
	for _, e := range entries {
		body = append(body, byte(len(e.Name)))
		body = append(body, e.Name...)
		entryFlags := byte(0)
		if e.IsDir {
			entryFlags = 1
		}
		body = append(body, entryFlags)
		if !e.IsDir {
			body = append(body, le32(e.Size)...)
			body = append(body, le32(e.ModTime)...)
		}
	}
	return Message{Type: TypeFileList, Body: body}
}

// DirectoryTree builds one paginated directory-tree chunk (entries
// are directories only, spec.md §4.5).
func DirectoryTree(path string, more bool, errorCode byte, totalDirs uint16, dirs []string) Message {
	body := []byte{byte(len(path))}
	body = append(body, path...)
	body = append(body, listFlags(more, errorCode))
	body = append(body, le16(totalDirs)...)
	body = append(body, byte(len(dirs)))
	for _, d := range dirs {
		body = append(body, byte(len(d)))
		body = append(body, d...)
	}
	return Message{Type: TypeDirectoryTree, Body: body}
}

// FileContent builds the download response: header fused with the
// whole file body so the chunk-emitter's first chunk naturally
// carries header+leading-bytes together (spec.md §4.5).
func FileContent(path string, size uint32, data []byte) Message {
	body := []byte{byte(len(path))}
	body = append(body, path...)
	body = append(body, le32(size)...)
	body = append(body, data...)
	return Message{Type: TypeFileContent, Body: body}
}

func FileActionResult(action, status, errorCode byte, path string) Message {
	body := []byte{action, status, errorCode, byte(len(path))}
	body = append(body, path...)
	return Message{Type: TypeFileActionResult, Body: body}
}
