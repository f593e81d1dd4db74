package frame

// Callbacks are the actions a Reassembler drives once it has decoded
// one or more frames into a command. The caller (the dispatcher)
// supplies these; the reassembler has no opinion about opcode
// semantics beyond "is this an upload opcode" (spec.md §4.3).
type Callbacks struct {
	// IsUploadOpcode reports whether the first payload byte names an
	// upload command, which gets the special chunked-file handling.
	IsUploadOpcode func(opcode byte) bool

	// Dispatch delivers a fully-reassembled single-packet or
	// first-chunk-only command: opcode is payload[0], rest is
	// payload[1:].
	Dispatch func(opcode byte, rest []byte)

	// BeginUpload is called with the first chunk of an upload
	// command (opcode already stripped: rest is payload[1:]).
	BeginUpload func(chunkID byte, rest []byte)
	// AppendUpload is called with each subsequent chunk's full
	// payload.
	AppendUpload func(chunkID byte, payload []byte)
	// FinishUpload is called once chunkNum == totalChunks.
	FinishUpload func(chunkID byte)
}

// Reassembler turns a stream of decoded Frames into dispatched
// commands, per spec.md §4.3:
//
//   - totalChunks == 1: dispatch immediately, opcode = payload[0].
//   - upload opcodes: first chunk initializes the upload, later
//     chunks are appended verbatim, completion closes it.
//   - any other chunked opcode: the first chunk is dispatched as a
//     single-packet command; subsequent chunks are dropped.
type Reassembler struct {
	cb Callbacks

	// inProgress tracks, per chunkId, whether the first chunk named an
	// upload opcode (so later chunks of the same chunkId route to
	// AppendUpload instead of being dropped).
	inProgress map[byte]bool
}

func NewReassembler(cb Callbacks) *Reassembler {
	return &Reassembler{cb: cb, inProgress: make(map[byte]bool)}
}

// Feed processes one decoded frame.
func (r *Reassembler) Feed(f Frame) {
	if f.TotalChunks <= 1 {
		if len(f.Payload) == 0 {
			return
		}
		r.cb.Dispatch(f.Payload[0], f.Payload[1:])
		return
	}

	if f.ChunkNum == 1 {
		if len(f.Payload) == 0 {
			return
		}
		opcode := f.Payload[0]
		isUpload := r.cb.IsUploadOpcode != nil && r.cb.IsUploadOpcode(opcode)
		r.inProgress[f.ChunkID] = isUpload
		if isUpload {
			r.cb.BeginUpload(f.ChunkID, f.Payload[1:])
		} else {
			r.cb.Dispatch(opcode, f.Payload[1:])
		}
		if f.ChunkNum == f.TotalChunks {
			delete(r.inProgress, f.ChunkID)
			if isUpload {
				r.cb.FinishUpload(f.ChunkID)
			}
		}
		return
	}

	// Subsequent chunk.
	if !r.inProgress[f.ChunkID] {
		// Either this chunkId was never an upload (non-upload chunked
		// opcodes are dropped past chunk 1) or we never saw chunk 1.
		return
	}
	r.cb.AppendUpload(f.ChunkID, f.Payload)
	if f.ChunkNum >= f.TotalChunks {
		delete(r.inProgress, f.ChunkID)
		r.cb.FinishUpload(f.ChunkID)
	}
}
