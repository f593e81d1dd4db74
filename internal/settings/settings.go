// Package settings implements the persistent, line-oriented
// key=value settings store (spec.md §3, §6): every numeric field is
// clamped to its documented range on every load and every update, and
// unknown keys are silently ignored.
package settings

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Settings is the flat record of gadget configuration. Field names
// follow spec.md §6's key list.
type Settings struct {
	SerialBaudRate      uint32
	ScannerRSSI         int32  // -120..-10
	BruterPower         int32  // 0..7
	BruterDelayMs       int32  // 1..1000
	BruterRepeats       int32  // 1..10
	RadioPowerMod1      int32  // -30..10
	RadioPowerMod2      int32  // -30..10
	Button1Action       int32  // 0..6
	Button2Action       int32  // 0..6
	Button1PathType     int32  // 0..5
	Button2PathType     int32  // 0..5
	Button1SignalPath   string
	Button2SignalPath   string
	NrfPaLevel          int32 // 0..3
	NrfDataRate         int32 // 0..2
	NrfChannel          int32 // 0..125
	NrfAutoRetransmit   int32 // 0..15
	CPUTempOffsetDeciC  int32 // -500..500
	DeviceName          string // <=20 chars
}

// Default returns the settings restored when a field is unset on
// load (spec.md §6).
func Default() Settings {
	return Settings{
		SerialBaudRate:     115200,
		ScannerRSSI:        -80,
		BruterPower:        7,
		BruterDelayMs:      10,
		BruterRepeats:      3,
		RadioPowerMod1:     10,
		RadioPowerMod2:     10,
		Button1Action:      0,
		Button2Action:      0,
		Button1PathType:    0,
		Button2PathType:    0,
		NrfPaLevel:         3,
		NrfDataRate:        1,
		NrfChannel:         76,
		NrfAutoRetransmit:  3,
		CPUTempOffsetDeciC: 0,
		DeviceName:         "subghz-gadget",
	}
}

type clampSpec struct {
	lo, hi int32
}

var intRanges = map[string]clampSpec{
	"scanner_rssi":         {-120, -10},
	"bruter_power":         {0, 7},
	"bruter_delay":         {1, 1000},
	"bruter_repeats":       {1, 10},
	"radio_power_mod1":     {-30, 10},
	"radio_power_mod2":     {-30, 10},
	"button1_action":       {0, 6},
	"button2_action":       {0, 6},
	"button1_signal_path_type": {0, 5},
	"button2_signal_path_type": {0, 5},
	"nrf_pa_level":         {0, 3},
	"nrf_data_rate":        {0, 2},
	"nrf_channel":          {0, 125},
	"nrf_auto_retransmit":  {0, 15},
	"cpu_temp_offset_decic": {-500, 500},
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampInt32 clamps a named field if it has a documented range. It is
// used both right after parsing a loaded line and on every field
// update via Set.
func clampInt32(key string, v int32) int32 {
	if r, ok := intRanges[key]; ok {
		return clamp(v, r.lo, r.hi)
	}
	return v
}

func clampDeviceName(name string) string {
	if len(name) > 20 {
		return name[:20]
	}
	return name
}

// Load parses the line-oriented key=value store, ignoring unknown
// keys, and clamps every recognized numeric field (spec.md §6, §8).
func Load(r io.Reader) (Settings, error) {
	s := Default()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		applyField(&s, key, val)
	}
	if err := sc.Err(); err != nil {
		return s, fmt.Errorf("settings: load: %w", err)
	}
	s.clampAll()
	return s, nil
}

func applyField(s *Settings, key, val string) {
	asInt := func() (int32, bool) {
		v, err := strconv.ParseInt(val, 10, 32)
		if err != nil {
			return 0, false
		}
		return int32(v), true
	}
	switch key {
	case "serial_baud_rate":
		if v, err := strconv.ParseUint(val, 10, 32); err == nil {
			s.SerialBaudRate = uint32(v)
		}
	case "scanner_rssi":
		if v, ok := asInt(); ok {
			s.ScannerRSSI = v
		}
	case "bruter_power":
		if v, ok := asInt(); ok {
			s.BruterPower = v
		}
	case "bruter_delay":
		if v, ok := asInt(); ok {
			s.BruterDelayMs = v
		}
	case "bruter_repeats":
		if v, ok := asInt(); ok {
			s.BruterRepeats = v
		}
	case "radio_power_mod1":
		if v, ok := asInt(); ok {
			s.RadioPowerMod1 = v
		}
	case "radio_power_mod2":
		if v, ok := asInt(); ok {
			s.RadioPowerMod2 = v
		}
	case "button1_action":
		if v, ok := asInt(); ok {
			s.Button1Action = v
		}
	case "button2_action":
		if v, ok := asInt(); ok {
			s.Button2Action = v
		}
	case "button1_signal_path_type":
		if v, ok := asInt(); ok {
			s.Button1PathType = v
		}
	case "button2_signal_path_type":
		if v, ok := asInt(); ok {
			s.Button2PathType = v
		}
	case "button1_signal_path":
		s.Button1SignalPath = val
	case "button2_signal_path":
		s.Button2SignalPath = val
	case "nrf_pa_level":
		if v, ok := asInt(); ok {
			s.NrfPaLevel = v
		}
	case "nrf_data_rate":
		if v, ok := asInt(); ok {
			s.NrfDataRate = v
		}
	case "nrf_channel":
		if v, ok := asInt(); ok {
			s.NrfChannel = v
		}
	case "nrf_auto_retransmit":
		if v, ok := asInt(); ok {
			s.NrfAutoRetransmit = v
		}
	case "cpu_temp_offset_decic":
		if v, ok := asInt(); ok {
			s.CPUTempOffsetDeciC = v
		}
	case "device_name":
		s.DeviceName = val
	}
}

func (s *Settings) clampAll() {
	s.ScannerRSSI = clampInt32("scanner_rssi", s.ScannerRSSI)
	s.BruterPower = clampInt32("bruter_power", s.BruterPower)
	s.BruterDelayMs = clampInt32("bruter_delay", s.BruterDelayMs)
	s.BruterRepeats = clampInt32("bruter_repeats", s.BruterRepeats)
	s.RadioPowerMod1 = clampInt32("radio_power_mod1", s.RadioPowerMod1)
	s.RadioPowerMod2 = clampInt32("radio_power_mod2", s.RadioPowerMod2)
	s.Button1Action = clampInt32("button1_action", s.Button1Action)
	s.Button2Action = clampInt32("button2_action", s.Button2Action)
	s.Button1PathType = clampInt32("button1_signal_path_type", s.Button1PathType)
	s.Button2PathType = clampInt32("button2_signal_path_type", s.Button2PathType)
	s.NrfPaLevel = clampInt32("nrf_pa_level", s.NrfPaLevel)
	s.NrfDataRate = clampInt32("nrf_data_rate", s.NrfDataRate)
	s.NrfChannel = clampInt32("nrf_channel", s.NrfChannel)
	s.NrfAutoRetransmit = clampInt32("nrf_auto_retransmit", s.NrfAutoRetransmit)
	s.CPUTempOffsetDeciC = clampInt32("cpu_temp_offset_decic", s.CPUTempOffsetDeciC)
	s.DeviceName = clampDeviceName(s.DeviceName)
}

// Save serializes the store back to the line-oriented format. Saving
// clamps first, so Load(Save(x)) == clamp(x) for any x (spec.md §8).
func Save(w io.Writer, s Settings) error {
	s.clampAll()
	lines := []string{
		fmt.Sprintf("serial_baud_rate=%d", s.SerialBaudRate),
		fmt.Sprintf("scanner_rssi=%d", s.ScannerRSSI),
		fmt.Sprintf("bruter_power=%d", s.BruterPower),
		fmt.Sprintf("bruter_delay=%d", s.BruterDelayMs),
		fmt.Sprintf("bruter_repeats=%d", s.BruterRepeats),
		fmt.Sprintf("radio_power_mod1=%d", s.RadioPowerMod1),
		fmt.Sprintf("radio_power_mod2=%d", s.RadioPowerMod2),
		fmt.Sprintf("button1_action=%d", s.Button1Action),
		fmt.Sprintf("button2_action=%d", s.Button2Action),
		fmt.Sprintf("button1_signal_path_type=%d", s.Button1PathType),
		fmt.Sprintf("button2_signal_path_type=%d", s.Button2PathType),
		fmt.Sprintf("button1_signal_path=%s", s.Button1SignalPath),
		fmt.Sprintf("button2_signal_path=%s", s.Button2SignalPath),
		fmt.Sprintf("nrf_pa_level=%d", s.NrfPaLevel),
		fmt.Sprintf("nrf_data_rate=%d", s.NrfDataRate),
		fmt.Sprintf("nrf_channel=%d", s.NrfChannel),
		fmt.Sprintf("nrf_auto_retransmit=%d", s.NrfAutoRetransmit),
		fmt.Sprintf("cpu_temp_offset_decic=%d", s.CPUTempOffsetDeciC),
		fmt.Sprintf("device_name=%s", s.DeviceName),
	}
	for _, l := range lines {
		if _, err := io.WriteString(w, l+"\n"); err != nil {
			return fmt.Errorf("settings: save: %w", err)
		}
	}
	return nil
}

// Update applies a single field update by key, clamping it against
// its documented range exactly as Load does (spec.md §6).
func (s *Settings) Update(key, val string) {
	applyField(s, key, val)
	s.clampAll()
}
