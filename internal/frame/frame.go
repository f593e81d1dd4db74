// Package frame implements the external wire framing protocol
// (spec.md §4.3): magic-byte framed packets with XOR checksums, and
// chunked reassembly for multi-frame commands and uploads.
package frame

import (
	"encoding/binary"
	"errors"
)

const (
	Magic    byte = 0xAA
	TypeData byte = 0x01

	// HeaderSize covers magic, type, chunkId, chunkNum, totalChunks and
	// the little-endian dataLen field (spec.md §4.3).
	HeaderSize  = 7
	TrailerSize = 1 // xorChecksum
)

// Frame is one decoded wire frame.
type Frame struct {
	ChunkID     byte
	ChunkNum    byte
	TotalChunks byte
	Payload     []byte
}

// ErrMalformed is returned for any magic/type/length/checksum
// mismatch. Per spec.md §4.3 the caller must drop such a frame with
// no state change — it is never surfaced to the client.
var ErrMalformed = errors.New("frame: malformed")

// Len reports the total wire length of the frame at b's head, or -1
// if b does not yet contain enough bytes to know (the caller should
// buffer more before retrying).
func Len(b []byte) int {
	if len(b) < HeaderSize {
		return -1
	}
	dataLen := int(binary.LittleEndian.Uint16(b[5:7]))
	return HeaderSize + dataLen + TrailerSize
}

// Decode parses exactly one frame from b, which must hold exactly
// Len(b) bytes (use Len to find the boundary over a stream).
func Decode(b []byte) (Frame, error) {
	if len(b) < HeaderSize+TrailerSize {
		return Frame{}, ErrMalformed
	}
	if b[0] != Magic || b[1] != TypeData {
		return Frame{}, ErrMalformed
	}
	dataLen := int(binary.LittleEndian.Uint16(b[5:7]))
	want := HeaderSize + dataLen + TrailerSize
	if len(b) != want {
		return Frame{}, ErrMalformed
	}
	payload := b[HeaderSize : HeaderSize+dataLen]
	if xorChecksum(b[:HeaderSize+dataLen]) != b[want-1] {
		return Frame{}, ErrMalformed
	}
	return Frame{
		ChunkID:     b[2],
		ChunkNum:    b[3],
		TotalChunks: b[4],
		Payload:     append([]byte(nil), payload...),
	}, nil
}

// Encode serializes one frame: magic, type, chunk header, payload and
// trailing XOR checksum.
func Encode(chunkID, chunkNum, totalChunks byte, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload)+TrailerSize)
	buf[0] = Magic
	buf[1] = TypeData
	buf[2] = chunkID
	buf[3] = chunkNum
	buf[4] = totalChunks
	binary.LittleEndian.PutUint16(buf[5:7], uint16(len(payload)))
	copy(buf[HeaderSize:], payload)
	buf[len(buf)-1] = xorChecksum(buf[:len(buf)-1])
	return buf
}

func xorChecksum(b []byte) byte {
	var c byte
	for _, v := range b {
		c ^= v
	}
	return c
}
