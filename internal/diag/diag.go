// Package diag sources the free-heap, CPU temperature, core clock and uptime figures
// carried in the Status/Heartbeat notifications and the low-memory
// guards elsewhere in the gadget (spec.md §4.4, §4.5). The real
// firmware reads these off its own heap allocator and die temperature
// sensor; this non-embedded rework sources the same shape of numbers
// from github.com/shirou/gopsutil/v3, the way madpsy/ka9q_ubersdr
// sources its own system stats.
package diag

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// LowMemoryThreshold is the free-memory floor below which a
// directory-listing pass aborts rather than risk exhausting the
// process (spec.md §4.5: "Low-memory threshold (3 KB free)").
const LowMemoryThreshold = 3072

// Sample is one diagnostic snapshot.
type Sample struct {
	FreeHeapBytes uint32
	CPUTempDeci   int16 // tenths of a degree C
	Core0Mhz      uint16
	Core1Mhz      uint16
	UptimeMs      uint32
}

// Collector samples the host's memory, CPU and uptime on demand.
// tempOffsetDeciC calibrates the reported temperature the way
// settings.Settings.CPUTempOffsetDeciC does for the real die sensor.
type Collector struct {
	startedAt       time.Time
	tempOffsetDeciC int32
}

func NewCollector() *Collector {
	return &Collector{startedAt: time.Now()}
}

// SetTempOffset applies settings.Settings.CPUTempOffsetDeciC to every
// subsequent Sample.
func (c *Collector) SetTempOffset(deciC int32) { c.tempOffsetDeciC = deciC }

// Sample gathers one diagnostic snapshot. A failed gopsutil call
// yields a zeroed field rather than aborting the whole sample — a
// missing CPU frequency shouldn't block a heartbeat.
func (c *Collector) Sample() Sample {
	s := Sample{UptimeMs: uint32(time.Since(c.startedAt).Milliseconds())}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.FreeHeapBytes = uint32(vm.Available)
	}

	if temps, err := host.SensorsTemperatures(); err == nil {
		for _, t := range temps {
			if t.Temperature > 0 {
				s.CPUTempDeci = int16(t.Temperature*10) + int16(c.tempOffsetDeciC)
				break
			}
		}
	}

	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		s.Core0Mhz = uint16(infos[0].Mhz)
		if len(infos) > 1 {
			s.Core1Mhz = uint16(infos[1].Mhz)
		} else {
			s.Core1Mhz = s.Core0Mhz
		}
	}

	return s
}

// LowOnMemory reports whether the most recent free-heap figure is
// under LowMemoryThreshold (spec.md §4.5).
func (s Sample) LowOnMemory() bool { return s.FreeHeapBytes < LowMemoryThreshold }
