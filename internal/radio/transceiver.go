package radio

import (
	"time"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/pulse"
)

// Transceiver is the hardware seam for one CC1101 module: register
// configuration, RSSI sampling, and line-level pulse I/O. The Worker
// never touches SPI directly — it drives this interface, which the
// real periph.io-backed implementation (SPITransceiver) or a test
// fake satisfies. Grounded on the teacher's driver/wshat.Open split
// (hardware concerns isolated behind a small interface the rest of
// the program depends on).
type Transceiver interface {
	// Idle returns the module to standby, detaching any ISR-equivalent
	// edge source and clearing pending samples (spec.md §4.2 step 2).
	Idle() error

	// ConfigureRX applies the packet/modulation registers for a
	// receive-side mode (Detecting/Recording/Analyzing/LiveDecode) and
	// begins asserting edges to EdgeSource.
	ConfigureRX(cfg model.RecordingConfig) error

	// ReadRSSI samples the current channel's RSSI in dBm, valid after
	// DetectSettleTime following a frequency change.
	ReadRSSI() (int16, error)

	// SetFrequency retunes the PLL without otherwise touching the
	// current RX/TX configuration (used by the Detecting and Analyzing
	// sweeps).
	SetFrequency(freqHz uint32) error

	// ConfigureTX applies TX-side registers (frequency, modulation,
	// deviation, PA level) and transitions Idle→TX so the PLL
	// recalibrates (spec.md §4.8 pre-run step).
	ConfigureTX(cfg model.RecordingConfig, power int8) error

	// WriteLine drives the transmit output pin to the given level for
	// d, busy-waiting for the duration (spec.md §4.2 Transmission:
	// "driving the output pin and busy-waiting its duration").
	WriteLine(high bool, d time.Duration) error

	// EdgeSource exposes the ring fed by this module's edge-triggered
	// capture while in a receive-side mode.
	EdgeSource() *pulse.Ring
}
