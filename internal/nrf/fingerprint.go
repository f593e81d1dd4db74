package nrf

import "github.com/evilcrow/subghz-gadget/internal/cipher"

// shiftRight1 returns buf shifted right by one bit across the whole
// slice, catching the case where the nRF24 preamble (0xAA vs 0x55)
// left the promiscuous capture off by one bit — the second alignment
// pass fingerprint tries, matching the original's offset==1 branch.
func shiftRight1(buf []byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	for x := len(out) - 1; x >= 0; x-- {
		if x > 0 {
			out[x] = (out[x-1] << 7) | (out[x] >> 1)
		} else {
			out[x] = out[x] >> 1
		}
	}
	return out
}

// tryAlignment validates one bit-alignment of a raw promiscuous
// capture as an ESB packet (address + PCF + payload + CRC16-CCITT)
// and, on success, returns the 5-byte address and unshifted payload.
// Matches the per-offset body of the original's fingerprint().
func tryAlignment(buf []byte) (addr [5]byte, payload []byte, ok bool) {
	if len(buf) < 9 {
		return addr, nil, false
	}
	payloadLength := int(buf[5] >> 2)
	if payloadLength == 0 || payloadLength > len(buf)-9 {
		return addr, nil, false
	}

	crcGiven := (uint16(buf[6+payloadLength]) << 9) | (uint16(buf[7+payloadLength]) << 1)
	crcGiven = (crcGiven << 8) | (crcGiven >> 8)
	if buf[8+payloadLength]&0x80 != 0 {
		crcGiven |= 0x0100
	}

	crcCalc := cipher.CRC16CCITTBits(buf[:6+payloadLength], buf[6+payloadLength]&0x80)
	crcCalc = (crcCalc << 8) | (crcCalc >> 8)

	if crcCalc != crcGiven {
		return addr, nil, false
	}

	copy(addr[:], buf[:5])
	esbPayload := make([]byte, payloadLength)
	for x := 0; x < payloadLength; x++ {
		esbPayload[x] = ((buf[6+x] << 1) & 0xFF) | (buf[7+x] >> 7)
	}
	return addr, esbPayload, true
}

// Fingerprint validates a raw promiscuous capture at both bit
// alignments and, if either validates, classifies the device by its
// ESB payload's magic bytes. ok is false when neither alignment
// yields a CRC-valid ESB packet.
func Fingerprint(rawBuf []byte) (addr [5]byte, devType DeviceType, ok bool) {
	if len(rawBuf) < 10 {
		return addr, DeviceNone, false
	}
	buf := rawBuf
	if len(buf) > 37 {
		buf = buf[:37]
	}

	for offset := 0; offset < 2; offset++ {
		trial := buf
		if offset == 1 {
			trial = shiftRight1(buf)
		}
		a, payload, valid := tryAlignment(trial)
		if !valid {
			continue
		}
		if dt := classifyPayload(payload); dt != DeviceNone {
			return a, dt, true
		}
	}
	return addr, DeviceNone, false
}

// classifyPayload matches the ESB payload's magic bytes against the
// Microsoft and Logitech signatures (fingerprintPayload in the
// original).
func classifyPayload(payload []byte) DeviceType {
	if len(payload) == 19 {
		if payload[0] == 0x08 && payload[6] == 0x40 {
			return DeviceMicrosoft
		}
		if payload[0] == 0x0A {
			return DeviceMicrosoftCrypt
		}
	}
	if len(payload) > 0 && payload[0] == 0x00 {
		switch {
		case len(payload) == 10 && (payload[1] == 0xC2 || payload[1] == 0x4F):
			return DeviceLogitech
		case len(payload) == 22 && payload[1] == 0xD3:
			return DeviceLogitech
		case len(payload) == 5 && payload[1] == 0x40:
			return DeviceLogitech
		}
	}
	return DeviceNone
}
