package hid

import "testing"

func TestASCIIToHIDLettersAndDigits(t *testing.T) {
	mod, key, ok := ASCIIToHID('a')
	if !ok || mod != ModNone || key != KeyA {
		t.Fatalf("'a' = (%v,%v,%v)", mod, key, ok)
	}
	mod, key, ok = ASCIIToHID('A')
	if !ok || mod != ModLShift || key != KeyA {
		t.Fatalf("'A' = (%v,%v,%v)", mod, key, ok)
	}
	mod, key, ok = ASCIIToHID('5')
	if !ok || mod != ModNone || key != 0x22 {
		t.Fatalf("'5' = (%v,%v,%v)", mod, key, ok)
	}
	if _, _, ok := ASCIIToHID(0x01); ok {
		t.Fatal("control byte should not map")
	}
}

func TestDuckyKeyByName(t *testing.T) {
	mod, key, ok := DuckyKeyByName("ENTER")
	if !ok || mod != ModNone || key != KeyEnter {
		t.Fatalf("ENTER = (%v,%v,%v)", mod, key, ok)
	}
	if _, _, ok := DuckyKeyByName("NOT_A_KEY"); ok {
		t.Fatal("unknown ducky key name should not resolve")
	}
}

func TestLogitechFrameChecksum(t *testing.T) {
	frame := LogitechFrame(ModLShift, []byte{KeyA})
	if len(frame) != 10 {
		t.Fatalf("frame length = %d, want 10", len(frame))
	}
	var sum byte
	for i := 0; i < 9; i++ {
		sum += frame[i]
	}
	sum += frame[9]
	if sum != 0 {
		t.Fatalf("checksum invariant violated: sum = %#x", sum)
	}
}

func TestMicrosoftEncoderSequenceAdvancesAndChecksumValid(t *testing.T) {
	enc := NewMicrosoftEncoder([5]byte{1, 2, 3, 4, 5}, false)
	down, up := enc.KeyDownUp(ModNone, KeyA)
	if len(down) != 19 || len(up) != 19 {
		t.Fatalf("frame lengths = %d/%d, want 19/19", len(down), len(up))
	}
	seqDown := uint16(down[4]) | uint16(down[5])<<8
	seqUp := uint16(up[4]) | uint16(up[5])<<8
	if seqUp != seqDown+1 {
		t.Fatalf("sequence did not advance: down=%d up=%d", seqDown, seqUp)
	}
	var cksum byte
	for i := 0; i < len(down)-1; i++ {
		cksum ^= down[i]
	}
	if down[18] != ^cksum {
		t.Fatalf("checksum mismatch: got %#x want %#x", down[18], ^cksum)
	}
}

func TestMicrosoftEncryptedFrameDiffersFromPlain(t *testing.T) {
	addr := [5]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	plain := NewMicrosoftEncoder(addr, false)
	crypt := NewMicrosoftEncoder(addr, true)
	pf, _ := plain.KeyDownUp(ModLCtrl, KeyA)
	cf, _ := crypt.KeyDownUp(ModLCtrl, KeyA)
	same := true
	for i := 4; i < len(pf); i++ {
		if pf[i] != cf[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("encrypted frame's variable region should differ from plaintext")
	}
	// The crypt operation is its own inverse.
	decoded := append([]byte(nil), cf...)
	microsoftCrypt(decoded, addr)
	for i := 4; i < len(pf); i++ {
		if decoded[i] != pf[i] {
			t.Fatalf("byte %d: decrypt(encrypt(x)) = %#x want %#x", i, decoded[i], pf[i])
		}
	}
}

func TestSyncFramesConsumeSequence(t *testing.T) {
	enc := NewMicrosoftEncoder([5]byte{}, false)
	frames := enc.SyncFrames(6)
	if len(frames) != 6 {
		t.Fatalf("got %d sync frames, want 6", len(frames))
	}
	if enc.seq != 6 {
		t.Fatalf("sequence after sync = %d, want 6", enc.seq)
	}
}
