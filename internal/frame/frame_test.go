package frame

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	b := Encode(7, 1, 1, payload)
	f, err := Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if f.ChunkID != 7 || f.ChunkNum != 1 || f.TotalChunks != 1 {
		t.Fatalf("unexpected header: %+v", f)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Fatalf("payload = % x want % x", f.Payload, payload)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	b := Encode(1, 1, 1, []byte{0x01})
	b[0] = 0xFF
	if _, err := Decode(b); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	b := Encode(1, 1, 1, []byte{0x01})
	b[len(b)-1] ^= 0xFF
	if _, err := Decode(b); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	b := Encode(1, 1, 1, []byte{0x01, 0x02})
	b = b[:len(b)-1] // truncate payload
	if _, err := Decode(b); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestReassemblerSinglePacket(t *testing.T) {
	var gotOp byte
	var gotRest []byte
	r := NewReassembler(Callbacks{
		Dispatch: func(op byte, rest []byte) {
			gotOp = op
			gotRest = rest
		},
	})
	r.Feed(Frame{ChunkID: 1, ChunkNum: 1, TotalChunks: 1, Payload: []byte{0x01, 0xAA, 0xBB}})
	if gotOp != 0x01 {
		t.Fatalf("opcode = %x", gotOp)
	}
	if !bytes.Equal(gotRest, []byte{0xAA, 0xBB}) {
		t.Fatalf("rest = % x", gotRest)
	}
}

func TestReassemblerUpload(t *testing.T) {
	var began, appended, finished bool
	var appendedPayload []byte
	r := NewReassembler(Callbacks{
		IsUploadOpcode: func(op byte) bool { return op == 0x0D },
		BeginUpload:    func(chunkID byte, rest []byte) { began = true },
		AppendUpload: func(chunkID byte, payload []byte) {
			appended = true
			appendedPayload = payload
		},
		FinishUpload: func(chunkID byte) { finished = true },
	})
	r.Feed(Frame{ChunkID: 5, ChunkNum: 1, TotalChunks: 2, Payload: []byte{0x0D, 0x01, 'a'}})
	if !began {
		t.Fatal("expected BeginUpload")
	}
	if finished {
		t.Fatal("should not finish on chunk 1 of 2")
	}
	r.Feed(Frame{ChunkID: 5, ChunkNum: 2, TotalChunks: 2, Payload: []byte("rest-of-file")})
	if !appended || !finished {
		t.Fatalf("appended=%v finished=%v", appended, finished)
	}
	if string(appendedPayload) != "rest-of-file" {
		t.Fatalf("appendedPayload = %q", appendedPayload)
	}
}

func TestReassemblerNonUploadChunkedDropsRest(t *testing.T) {
	dispatchCount := 0
	r := NewReassembler(Callbacks{
		IsUploadOpcode: func(op byte) bool { return false },
		Dispatch: func(op byte, rest []byte) {
			dispatchCount++
		},
	})
	r.Feed(Frame{ChunkID: 3, ChunkNum: 1, TotalChunks: 2, Payload: []byte{0x02, 'x'}})
	r.Feed(Frame{ChunkID: 3, ChunkNum: 2, TotalChunks: 2, Payload: []byte("dropped")})
	if dispatchCount != 1 {
		t.Fatalf("dispatchCount = %d, want 1", dispatchCount)
	}
}

func TestStreamReaderResyncsOnGarbage(t *testing.T) {
	good := Encode(1, 1, 1, []byte{0xAB})
	garbage := []byte{0xAA, 0x01, 0x00, 0x00} // looks like a start but too short / truncated
	stream := append(append([]byte{}, garbage...), good...)
	sr := NewStreamReader(bytes.NewReader(stream))
	f, err := sr.Next()
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Payload) != 1 || f.Payload[0] != 0xAB {
		t.Fatalf("unexpected frame: %+v", f)
	}
}
