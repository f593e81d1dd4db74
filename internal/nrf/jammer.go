package nrf

import (
	"sync"
	"time"

	"github.com/evilcrow/subghz-gadget/internal/notify"
)

// JamMode is a jamming preset (NrfJamMode in the original).
type JamMode uint8

const (
	JamFull JamMode = iota
	JamWifi
	JamBLE
	JamBLEAdv
	JamBluetooth
	JamUSB
	JamVideo
	JamRC
	JamSingle
	JamHopper
	JamZigbee
	JamDrone
	jamModeCount
)

func (m JamMode) String() string {
	if info, ok := jamModeInfo[m]; ok {
		return info.Name
	}
	return "unknown"
}

// JamModeConfig is the tunable RF config for one jam mode
// (NrfJamModeConfig in the original), persisted per-mode.
type JamModeConfig struct {
	PALevel      byte // 0-3
	DataRate     byte // 0=1Mbps 1=2Mbps 2=250Kbps
	DwellTimeMs  uint16
	UseFlooding  bool
	FloodBursts  byte // 1-20
}

// Clamp enforces NrfJammer::setModeConfig's documented ranges.
func (c JamModeConfig) Clamp() JamModeConfig {
	if c.PALevel > 3 {
		c.PALevel = 3
	}
	if c.DataRate > 2 {
		c.DataRate = 1
	}
	if c.DwellTimeMs > 200 {
		c.DwellTimeMs = 200
	}
	if c.FloodBursts < 1 {
		c.FloodBursts = 1
	}
	if c.FloodBursts > 20 {
		c.FloodBursts = 20
	}
	return c
}

// modeInfo is the static display metadata for a jam mode
// (NrfJamModeInfo in the original).
type modeInfo struct {
	Name        string
	Description string
	Channels    []byte // nil = special per-mode logic (e.g. full sweep)
	FreqStartMHz, FreqEndMHz uint16
}

var jamBLEAdvChannels = []byte{2, 26, 80}
var jamZigbeeChannels = []byte{
	11, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60, 65, 70,
	74, 78, 80,
}

// jamModeInfo and jamDefaults are populated by defaultJamConfigs
// (NrfJammer::setDefaults / MODE_INFO_TABLE in the original).
var jamModeInfo = map[JamMode]modeInfo{
	JamFull:      {Name: "Full Spectrum", Description: "Sweeps all 125 channels (2400-2525 MHz).", FreqStartMHz: 2400, FreqEndMHz: 2525},
	JamWifi:      {Name: "WiFi 2.4GHz", Description: "Targets WiFi channels 1, 6, 11.", FreqStartMHz: 2401, FreqEndMHz: 2473},
	JamBLE:       {Name: "BLE Data", Description: "BLE data channels 0-36 mapped to nRF ch 2-80.", FreqStartMHz: 2402, FreqEndMHz: 2480},
	JamBLEAdv:    {Name: "BLE Advertising", Description: "Only the 3 BLE advertising channels.", Channels: jamBLEAdvChannels, FreqStartMHz: 2402, FreqEndMHz: 2480},
	JamBluetooth: {Name: "Bluetooth Classic", Description: "FHSS Bluetooth — fast random hop.", FreqStartMHz: 2402, FreqEndMHz: 2480},
	JamUSB:       {Name: "USB Wireless", Description: "Wireless USB dongles.", FreqStartMHz: 2400, FreqEndMHz: 2480},
	JamVideo:     {Name: "Video", Description: "Analog 2.4GHz video links.", FreqStartMHz: 2400, FreqEndMHz: 2480},
	JamRC:        {Name: "RC", Description: "FHSS RC controller protocols.", FreqStartMHz: 2400, FreqEndMHz: 2480},
	JamSingle:    {Name: "Single Channel", Description: "Constant-carrier saturation of one channel.", FreqStartMHz: 2400, FreqEndMHz: 2525},
	JamHopper:    {Name: "Custom Hopper", Description: "User-defined channel range hopping.", FreqStartMHz: 2400, FreqEndMHz: 2525},
	JamZigbee:    {Name: "Zigbee", Description: "Zigbee channels 11-26.", Channels: jamZigbeeChannels, FreqStartMHz: 2405, FreqEndMHz: 2480},
	JamDrone:     {Name: "Drone", Description: "Full-band random hop against drone links.", FreqStartMHz: 2400, FreqEndMHz: 2525},
}

// defaultJamConfigs mirrors NrfJammer::setDefaults' per-mode tuning
// for the E01-ML01SP2 PA+LNA module.
func defaultJamConfigs() map[JamMode]JamModeConfig {
	return map[JamMode]JamModeConfig{
		JamFull:      {3, 1, 1, true, 3},
		JamWifi:      {3, 1, 4, true, 3},
		JamBLE:       {3, 1, 2, true, 3},
		JamBLEAdv:    {3, 1, 15, true, 3},
		JamBluetooth: {3, 1, 1, false, 3},
		JamUSB:       {3, 1, 10, true, 3},
		JamVideo:     {3, 1, 10, false, 3},
		JamRC:        {3, 1, 10, false, 3},
		JamSingle:    {3, 1, 1, false, 3},
		JamHopper:    {3, 1, 3, true, 3},
		JamZigbee:    {3, 1, 4, true, 3},
		JamDrone:     {3, 1, 1, false, 3},
	}
}

// HopperConfig configures NRF_JAM_HOPPER-mode's custom channel range.
type HopperConfig struct {
	StartChannel, StopChannel byte
	StepSize                  byte // 1-10
}

// JamRadio is the nRF hardware seam the jammer drives: channel hop,
// PA/data-rate application, and the two strategies spec.md §4.9
// names — constant carrier and data-flood bursts.
type JamRadio interface {
	Configure(paLevel, dataRate byte) error
	SetChannel(ch byte) error
	StartConstantCarrier() error
	StopConstantCarrier() error
	FloodBurst(n int) error
}

// Jammer runs one jam mode at a time, hot-swappable while running
// (spec.md §5: "stop flag + hot-swap of mode config").
type Jammer struct {
	radio JamRadio
	sink  *notify.Queue

	mu       sync.Mutex
	configs  map[JamMode]JamModeConfig
	running  bool
	mode     JamMode
	hopper   HopperConfig
	curChan  byte
	cancel   chan struct{}
	done     chan struct{}
}

func NewJammer(radio JamRadio, sink *notify.Queue) *Jammer {
	return &Jammer{radio: radio, sink: sink, configs: defaultJamConfigs()}
}

func (j *Jammer) ModeConfig(mode JamMode) JamModeConfig {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.configs[mode]
}

func (j *Jammer) SetModeConfig(mode JamMode, cfg JamModeConfig) {
	j.mu.Lock()
	j.configs[mode] = cfg.Clamp()
	j.mu.Unlock()
}

func (j *Jammer) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func channelsForMode(mode JamMode, hopper HopperConfig) []byte {
	if info, ok := jamModeInfo[mode]; ok && info.Channels != nil {
		return info.Channels
	}
	switch mode {
	case JamHopper:
		step := hopper.StepSize
		if step == 0 {
			step = 1
		}
		var chans []byte
		for c := hopper.StartChannel; c <= hopper.StopChannel; c += step {
			chans = append(chans, c)
		}
		return chans
	default:
		chans := make([]byte, 0, 125)
		for c := byte(0); c < 125; c++ {
			chans = append(chans, c)
		}
		return chans
	}
}

// Start begins jamming in mode. Only one jam session runs at a time;
// calling Start again while running hot-swaps the mode instead of
// erroring (setMode in the original).
func (j *Jammer) Start(mode JamMode) error {
	j.mu.Lock()
	if j.running {
		j.mode = mode
		j.mu.Unlock()
		return nil
	}
	j.mode = mode
	j.running = true
	j.cancel = make(chan struct{})
	j.done = make(chan struct{})
	cfg := j.configs[mode]
	j.mu.Unlock()

	if err := j.radio.Configure(cfg.PALevel, cfg.DataRate); err != nil {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
		return err
	}

	go j.loop()
	return nil
}

// StartHopper begins NRF_JAM_HOPPER mode with a custom channel range.
func (j *Jammer) StartHopper(cfg HopperConfig) error {
	j.mu.Lock()
	j.hopper = cfg
	j.mu.Unlock()
	return j.Start(JamHopper)
}

func (j *Jammer) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	cancel := j.cancel
	done := j.done
	j.mu.Unlock()
	close(cancel)
	<-done
}

func (j *Jammer) loop() {
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
		close(j.done)
		j.radio.StopConstantCarrier()
	}()

	for {
		select {
		case <-j.cancel:
			return
		default:
		}
		j.mu.Lock()
		mode := j.mode
		cfg := j.configs[mode]
		hopper := j.hopper
		j.mu.Unlock()

		for _, ch := range channelsForMode(mode, hopper) {
			select {
			case <-j.cancel:
				return
			default:
			}
			if err := j.radio.SetChannel(ch); err != nil {
				continue
			}
			j.mu.Lock()
			j.curChan = ch
			j.mu.Unlock()

			if cfg.UseFlooding {
				j.radio.FloodBurst(int(cfg.FloodBursts))
			} else {
				j.radio.StartConstantCarrier()
			}
			if cfg.DwellTimeMs > 0 {
				select {
				case <-j.cancel:
					return
				case <-time.After(time.Duration(cfg.DwellTimeMs) * time.Millisecond):
				}
			}
			if !cfg.UseFlooding {
				j.radio.StopConstantCarrier()
			}
			j.sink.Send(notify.NrfJamStatus(true, byte(mode), ch))
		}
	}
}
