// Package radio implements the CC1101 Worker (spec.md §4.2): a single
// cooperative loop that owns both sub-GHz transceivers, drains a Task
// queue, runs each active module's per-mode step, and performs
// periodic housekeeping. It also hosts the SPI bus arbiter the 2.4 GHz
// subsystem shares (spec.md §5) and the hardware-facing Transceiver
// seam real CC1101/nRF24L01+ drivers implement over periph.io.
//
// Grounded on the teacher's gui.engraverJob/Platform pattern: a
// cancellable background job driven by a quit channel and polled by
// the caller, generalized here into a persistent run loop instead of
// a one-shot job.
package radio

import (
	"time"

	"github.com/evilcrow/subghz-gadget/internal/model"
)

// HeartbeatInterval and HeapLogInterval are the Worker's two periodic
// housekeeping cadences (spec.md §4.2).
const (
	HeartbeatInterval = 30 * time.Second
	HeapLogInterval   = 60 * time.Second
	tickInterval      = 10 * time.Millisecond // "queue recv (10 ms)", spec.md §5
)

// DetectFrequencies is the fixed 18-frequency sweep list for
// Detecting mode (spec.md §4.2: "sweep a fixed 18-frequency list").
// Values span the common sub-GHz ISM allocations this gadget targets.
var DetectFrequencies = [18]uint32{
	300000000, 303875000, 304250000, 310000000, 315000000, 318000000,
	390000000, 418000000, 433075000, 433420000, 433920000, 434420000,
	868300000, 868350000, 868950000, 915000000, 925000000, 928000000,
}

// DetectSettleTime is how long RSSI is allowed to settle after a
// frequency change before it's sampled (spec.md §4.2).
const DetectSettleTime = 2 * time.Millisecond

// RecordingFileSizeLimit rolls the in-progress pulse file once its
// written pulse count crosses this threshold (spec.md §4.2: "roll the
// file when size threshold is crossed").
const RecordingFileSizeLimit = 4096

// detectConfig, analyzeConfig mirror the Task payload fields of the
// same name (spec.md §3).
type detectConfig struct {
	rssiThreshold int16
	isBackground  bool
}

type analyzeConfig struct {
	startFreq, endFreq, step uint32
	dwellMs                  uint16
}

// moduleRuntime is everything the Worker tracks for one sub-GHz
// module beyond its Ring (which lives at pulse.Ring and is fed by the
// hardware edge source directly).
type moduleRuntime struct {
	mode model.RadioMode

	detect  detectConfig
	record  model.RecordingConfig
	analyze analyzeConfig
	jam     model.JammingConfig

	detectIdx int // position in DetectFrequencies, carried across steps

	recordWriter   *recordingFile
	jamNextAt      time.Time
	jamCoolingDown bool
	jamIdx         int
}
