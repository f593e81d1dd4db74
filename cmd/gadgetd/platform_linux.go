//go:build linux

package main

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/nrf"
	"github.com/evilcrow/subghz-gadget/internal/radio"
)

// spiPin names the three periph.io resources one CC1101 needs beyond
// the bus itself: the SPI device node, a manually-driven chip-select,
// and GDO0 (the capture edge/interrupt line).
type spiPin struct {
	dev  string
	cs   string
	gdo0 string
}

// cc1101Pins is this board's wiring; it has no spec.md source since
// pin assignment is a hardware-revision detail the external protocol
// never exposes (see DESIGN.md).
var cc1101Pins = [model.NumModules]spiPin{
	{dev: "/dev/spidev0.0", cs: "GPIO8", gdo0: "GPIO24"},
	{dev: "/dev/spidev0.1", cs: "GPIO7", gdo0: "GPIO25"},
}

const (
	nrfSPIDev = "/dev/spidev1.0"
	nrfCEPin  = "GPIO22"
)

// linuxPlatform drives the real hardware over periph.io SPI and GPIO.
type linuxPlatform struct {
	bus     *radio.Bus
	radios  [model.NumModules]radio.Transceiver
	nrf     *radio.NrfHardware
	closers []func() error
}

func openCC1101(module model.Module, pins spiPin, bus *radio.Bus) (radio.Transceiver, func() error, error) {
	port, err := spireg.Open(pins.dev)
	if err != nil {
		return nil, nil, fmt.Errorf("gadgetd: open %s: %w", pins.dev, err)
	}
	conn, err := port.Connect(6*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("gadgetd: connect %s: %w", pins.dev, err)
	}
	cs := gpioreg.ByName(pins.cs)
	if cs == nil {
		port.Close()
		return nil, nil, fmt.Errorf("gadgetd: gpio %s not found", pins.cs)
	}
	if err := cs.Out(gpio.High); err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("gadgetd: drive %s: %w", pins.cs, err)
	}
	gdo0 := gpioreg.ByName(pins.gdo0)
	if gdo0 == nil {
		port.Close()
		return nil, nil, fmt.Errorf("gadgetd: gpio %s not found", pins.gdo0)
	}
	return radio.NewSPITransceiver(module, conn, cs, gdo0, bus), port.Close, nil
}

// InitPlatform brings periph.io's host drivers up and opens both
// CC1101s plus the nRF24L01+, unless cfg.Backend == "dummy" forces
// the in-memory stand-in even on linux (a bench unit with no radios
// wired up yet still boots the daemon and answers commands).
func InitPlatform(cfg Config) (Backend, error) {
	if cfg.Backend == "dummy" {
		return newDummyPlatform(), nil
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gadgetd: periph host init: %w", err)
	}
	p := &linuxPlatform{bus: radio.NewBus()}
	for i, pins := range cc1101Pins {
		t, closer, err := openCC1101(model.Module(i), pins, p.bus)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.radios[i] = t
		p.closers = append(p.closers, closer)
	}

	nrfPort, err := spireg.Open(nrfSPIDev)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("gadgetd: open %s: %w", nrfSPIDev, err)
	}
	nrfConn, err := nrfPort.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		nrfPort.Close()
		p.Close()
		return nil, fmt.Errorf("gadgetd: connect %s: %w", nrfSPIDev, err)
	}
	ce := gpioreg.ByName(nrfCEPin)
	if ce == nil {
		nrfPort.Close()
		p.Close()
		return nil, fmt.Errorf("gadgetd: gpio %s not found", nrfCEPin)
	}
	p.nrf = radio.NewNrfHardware(nrfConn, ce, p.bus)
	p.closers = append(p.closers, nrfPort.Close)
	return p, nil
}

func (p *linuxPlatform) Radios() [model.NumModules]radio.Transceiver { return p.radios }
func (p *linuxPlatform) Bus() *radio.Bus                             { return p.bus }
func (p *linuxPlatform) NrfRadio() nrf.Radio                         { return p.nrf }
func (p *linuxPlatform) NrfJamRadio() nrf.JamRadio                   { return p.nrf }
func (p *linuxPlatform) NrfFrameSink() nrf.FrameSink                 { return p.nrf }

func (p *linuxPlatform) Close() error {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if p.closers[i] != nil {
			p.closers[i]()
		}
	}
	return nil
}
