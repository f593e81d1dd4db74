package hid

// LogitechFrame builds a 10-byte Logitech Unifying keyboard HID
// injection frame: [deviceIndex:0x00][frameType:0xC1][modifier]
// [key0..key5][checksum]. Up to 6 simultaneous keycodes are packed;
// extras are silently dropped, matching the original's keysLen<6
// bound. Grounded on original_source's MouseJack.cpp logTransmit.
func LogitechFrame(modifier Modifier, keys []byte) []byte {
	frame := make([]byte, 10)
	frame[0] = 0x00
	frame[1] = 0xC1
	frame[2] = byte(modifier)
	for i := 0; i < len(keys) && i < 6; i++ {
		frame[3+i] = keys[i]
	}
	var sum byte
	for i := 0; i < 9; i++ {
		sum += frame[i]
	}
	frame[9] = byte(0x100 - int(sum))
	return frame
}

// LogitechKeyUp is the explicit key-release frame the Logitech
// protocol needs after every keystroke (unlike Microsoft's frame,
// which embeds its own release).
func LogitechKeyUp() []byte {
	return LogitechFrame(ModNone, []byte{KeyNone})
}
