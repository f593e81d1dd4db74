package radio

import (
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/evilcrow/subghz-gadget/internal/nrf"
)

// nRF24L01+ SPI command bytes and registers this driver uses; each
// register is written on its own through writeReg, and the address
// width and auto-ack registers are never written.
const (
	nrfCmdRRegister   = 0x00
	nrfCmdWRegister   = 0x20
	nrfCmdRRxPayload  = 0x61
	nrfCmdFlushRX     = 0xE2
	nrfRegCONFIG      = 0x00
	nrfRegRFCH        = 0x05
	nrfRegRFSetup     = 0x06
	nrfRegStatus      = 0x07
	nrfRegRxPwPipe0   = 0x11
	nrfStatusRXReady  = 1 << 6
)

// NrfHardware drives the nRF24L01+ over SPI for the scan, attack, and
// jam state machines in internal/nrf, all of which depend only on the
// small Radio/FrameSink/JamRadio seams those packages declare. Shares
// Bus with the two CC1101 Transceivers (spec.md §5): every SPI burst
// goes through Bus.WithBus; no sweep holds the bus across channels,
// since Bus.RequestExclusive is not used here.
//
// Grounded the same way as SPITransceiver: periph.io/x/conn/v3's
// spi.Conn and gpio.PinOut, generalized from tve-devices' sx1231-test
// register-burst pattern to the nRF24's command-byte-prefixed frame.
type NrfHardware struct {
	conn spi.Conn
	ce   gpio.PinOut // chip-enable: RX/TX active when high
	bus  *Bus

	promiscuous bool
	txAddr      [5]byte
}

func NewNrfHardware(conn spi.Conn, ce gpio.PinOut, bus *Bus) *NrfHardware {
	h := &NrfHardware{conn: conn, ce: ce, bus: bus}
	bus.RegisterParker(h.park)
	return h
}

// park drives CE low and leaves the chip in standby, the nRF side of
// spec.md §5's "parks both modules in standby, deselects both
// chip-selects" bus handoff.
func (h *NrfHardware) park() error {
	return h.ce.Out(gpio.Low)
}

func (h *NrfHardware) writeReg(addr, val byte) error {
	return h.bus.WithBus(func() error {
		rx := make([]byte, 2)
		return h.conn.Tx([]byte{nrfCmdWRegister | addr, val}, rx)
	})
}

func (h *NrfHardware) readReg(addr byte) (byte, error) {
	var v byte
	err := h.bus.WithBus(func() error {
		rx := make([]byte, 2)
		if err := h.conn.Tx([]byte{nrfCmdRRegister | addr, 0}, rx); err != nil {
			return err
		}
		v = rx[1]
		return nil
	})
	return v, err
}

// SetChannel implements nrf.Radio, nrf.JamRadio.
func (h *NrfHardware) SetChannel(ch byte) error {
	return h.writeReg(nrfRegRFCH, ch)
}

// EnterPromiscuous implements nrf.Radio for the MouseJack
// "address-sniffing" mode (spec.md §4.9): receiver powered up with
// CRC off, a 32-byte pipe-0 payload, 2 Mbps at maximum power. The
// address width and auto-ack registers are left as they were; this
// does not select a 2-byte address width.
func (h *NrfHardware) EnterPromiscuous() error {
	h.promiscuous = true
	if err := h.writeReg(nrfRegCONFIG, 0x03); err != nil { // PWR_UP, PRIM_RX, CRC off
		return err
	}
	if err := h.writeReg(nrfRegRxPwPipe0, 32); err != nil {
		return err
	}
	if err := h.writeReg(nrfRegRFSetup, 0x0F); err != nil { // 2 Mbps, max power
		return err
	}
	return h.ce.Out(gpio.High)
}

// Poll implements nrf.Radio: a single non-blocking check of the RX
// FIFO, returning the raw promiscuous-mode buffer on a hit.
func (h *NrfHardware) Poll() (buf []byte, ok bool) {
	status, err := h.readReg(nrfRegStatus)
	if err != nil || status&nrfStatusRXReady == 0 {
		return nil, false
	}
	out := make([]byte, 37)
	err = h.bus.WithBus(func() error {
		tx := make([]byte, len(out)+1)
		tx[0] = nrfCmdRRxPayload
		rx := make([]byte, len(tx))
		if err := h.conn.Tx(tx, rx); err != nil {
			return err
		}
		copy(out, rx[1:])
		rx2 := make([]byte, 2)
		return h.conn.Tx([]byte{nrfCmdFlushRX, 0}, rx2)
	})
	if err != nil {
		return nil, false
	}
	return out, true
}

// Configure implements nrf.JamRadio: PA level and data rate share the
// RF_SETUP register with the promiscuous-mode data rate bit used
// above.
func (h *NrfHardware) Configure(paLevel, dataRate byte) error {
	val := (paLevel & 0x03) << 1
	switch dataRate {
	case 0: // 1 Mbps
	case 2: // 250 Kbps
		val |= 0x20
	default: // 2 Mbps
		val |= 0x08
	}
	return h.writeReg(nrfRegRFSetup, val)
}

// StartConstantCarrier implements nrf.JamRadio: sets the
// CONT_WAVE/PLL_LOCK bits and keys the transmitter, the jammer's
// "constant carrier" strategy (spec.md §4.9).
func (h *NrfHardware) StartConstantCarrier() error {
	if err := h.writeReg(nrfRegRFSetup, 0x90); err != nil {
		return err
	}
	return h.ce.Out(gpio.High)
}

// StopConstantCarrier implements nrf.JamRadio.
func (h *NrfHardware) StopConstantCarrier() error {
	return h.ce.Out(gpio.Low)
}

// FloodBurst implements nrf.JamRadio: transmits n garbage payloads
// back-to-back, the jammer's "data flooding" strategy — better than a
// constant carrier against channel-specific protocols that only
// listen while framing a packet (spec.md §4.9).
func (h *NrfHardware) FloodBurst(n int) error {
	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = 0xFF
	}
	return h.bus.WithBus(func() error {
		for i := 0; i < n; i++ {
			tx := append([]byte{0xA0}, payload...) // W_TX_PAYLOAD
			rx := make([]byte, len(tx))
			if err := h.conn.Tx(tx, rx); err != nil {
				return err
			}
		}
		return nil
	})
}

// SendFrame implements nrf.FrameSink: configure the TX address for
// target once, then write frame with W_TX_PAYLOAD (the fingerprint
// already told the attacker which channel/address to use).
func (h *NrfHardware) SendFrame(target nrf.Target, frame []byte) error {
	if h.txAddr != target.Address {
		if err := h.setTXAddress(target.Address); err != nil {
			return err
		}
		h.txAddr = target.Address
	}
	if err := h.SetChannel(target.Channel); err != nil {
		return err
	}
	return h.bus.WithBus(func() error {
		tx := append([]byte{0xA0}, frame...)
		rx := make([]byte, len(tx))
		return h.conn.Tx(tx, rx)
	})
}

const nrfRegTXAddr = 0x10

func (h *NrfHardware) setTXAddress(addr [5]byte) error {
	return h.bus.WithBus(func() error {
		tx := append([]byte{nrfCmdWRegister | nrfRegTXAddr}, addr[:]...)
		rx := make([]byte, len(tx))
		return h.conn.Tx(tx, rx)
	})
}
