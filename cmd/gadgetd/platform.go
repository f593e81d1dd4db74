// Package main is the gadget daemon: it wires the notification queue,
// storage, settings, the radio worker, the command dispatcher and the
// serial transport into one running process, in the order run (in
// main.go) documents.
package main

import (
	"time"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/nrf"
	"github.com/evilcrow/subghz-gadget/internal/pulse"
	"github.com/evilcrow/subghz-gadget/internal/radio"
)

// Backend is the hardware seam cmd/gadgetd builds against: a real
// periph.io-driven pair of CC1101s plus an nRF24L01+ on Linux
// (platform_linux.go), or an in-memory stand-in everywhere else, or
// when Config.Backend forces it (newDummyPlatform below) — the same
// Debug/production split cmd/controller's
// platform_rpi.go/platform_dummy.go make in the teacher repo.
type Backend interface {
	Radios() [model.NumModules]radio.Transceiver
	Bus() *radio.Bus
	NrfRadio() nrf.Radio
	NrfJamRadio() nrf.JamRadio
	NrfFrameSink() nrf.FrameSink
	Close() error
}

// dummyTransceiver is a no-op radio.Transceiver for running the
// daemon off-target (development, CI, or a bench unit with no
// CC1101s wired up), mirroring cmd/controller's platform_dummy.go
// stand-in for hardware it can't reach.
type dummyTransceiver struct{ ring pulse.Ring }

func (*dummyTransceiver) Idle() error                                            { return nil }
func (*dummyTransceiver) ConfigureRX(cfg model.RecordingConfig) error             { return nil }
func (*dummyTransceiver) ConfigureTX(cfg model.RecordingConfig, power int8) error { return nil }
func (*dummyTransceiver) ReadRSSI() (int16, error)                               { return -90, nil }
func (*dummyTransceiver) SetFrequency(freqHz uint32) error                       { return nil }
func (*dummyTransceiver) WriteLine(high bool, d time.Duration) error             { return nil }
func (t *dummyTransceiver) EdgeSource() *pulse.Ring                              { return &t.ring }

type dummyNrf struct{}

func (dummyNrf) SetChannel(ch byte) error                        { return nil }
func (dummyNrf) EnterPromiscuous() error                          { return nil }
func (dummyNrf) Poll() ([]byte, bool)                             { return nil, false }
func (dummyNrf) Configure(paLevel, dataRate byte) error           { return nil }
func (dummyNrf) StartConstantCarrier() error                      { return nil }
func (dummyNrf) StopConstantCarrier() error                       { return nil }
func (dummyNrf) FloodBurst(n int) error                           { return nil }
func (dummyNrf) SendFrame(target nrf.Target, frame []byte) error { return nil }

type dummyPlatform struct {
	bus    *radio.Bus
	radios [model.NumModules]radio.Transceiver
	nrf    dummyNrf
}

// newDummyPlatform builds the in-memory stand-in backend, shared by
// platform_dummy.go (non-linux builds) and platform_linux.go (when
// Config.Backend == "dummy" forces it on linux too).
func newDummyPlatform() *dummyPlatform {
	p := &dummyPlatform{bus: radio.NewBus()}
	for i := range p.radios {
		p.radios[i] = &dummyTransceiver{}
	}
	return p
}

func (p *dummyPlatform) Radios() [model.NumModules]radio.Transceiver { return p.radios }
func (p *dummyPlatform) Bus() *radio.Bus                             { return p.bus }
func (p *dummyPlatform) NrfRadio() nrf.Radio                         { return p.nrf }
func (p *dummyPlatform) NrfJamRadio() nrf.JamRadio                   { return p.nrf }
func (p *dummyPlatform) NrfFrameSink() nrf.FrameSink                 { return p.nrf }
func (p *dummyPlatform) Close() error                                { return nil }
