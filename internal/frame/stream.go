package frame

import (
	"bufio"
	"bytes"
	"io"
)

// StreamReader extracts frames from a byte stream (the serial/BLE
// transport), resynchronizing on the magic byte after any malformed
// frame.
type StreamReader struct {
	r   *bufio.Reader
	buf bytes.Buffer
}

func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: bufio.NewReaderSize(r, 4096)}
}

// Next blocks until one well-formed frame is available, silently
// skipping malformed bytes (spec.md §4.3: a bad frame "produces no
// state change").
func (s *StreamReader) Next() (Frame, error) {
	for {
		// Resync: drop bytes until buf starts with the magic byte.
		for s.buf.Len() > 0 && s.buf.Bytes()[0] != Magic {
			s.buf.Next(1)
		}
		if need := HeaderSize - s.buf.Len(); need > 0 {
			if err := s.fill(need); err != nil {
				return Frame{}, err
			}
			continue
		}
		total := Len(s.buf.Bytes())
		if total < 0 {
			if err := s.fill(1); err != nil {
				return Frame{}, err
			}
			continue
		}
		if s.buf.Len() < total {
			if err := s.fill(total - s.buf.Len()); err != nil {
				// The stream ended before the claimed length arrived:
				// treat the candidate as malformed and resync past its
				// magic byte over whatever is still buffered.
				s.buf.Next(1)
				continue
			}
			continue
		}
		raw := append([]byte(nil), s.buf.Bytes()[:total]...)
		f, err := Decode(raw)
		if err != nil {
			// Drop just the magic byte and resync, rather than the whole
			// candidate frame, so a false-positive magic match doesn't
			// swallow a real frame that starts one byte later.
			s.buf.Next(1)
			continue
		}
		s.buf.Next(total)
		return f, nil
	}
}

func (s *StreamReader) fill(n int) error {
	tmp := make([]byte, n)
	read := 0
	for read < n {
		k, err := s.r.Read(tmp[read:])
		read += k
		if err != nil {
			s.buf.Write(tmp[:read])
			return err
		}
	}
	s.buf.Write(tmp)
	return nil
}
