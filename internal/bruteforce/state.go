package bruteforce

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/evilcrow/subghz-gadget/internal/model"
)

// StatePersister is the on-flash home for a paused attack's
// AttackState (spec.md §3, §4.8). A clean stop, clean completion, or
// any error must purge the record; Load's second return reports
// whether a record existed at all, so a reconnecting client can be
// told a StateAvailable notification is due.
type StatePersister interface {
	Save(model.AttackState) error
	Load() (model.AttackState, bool, error)
	Clear() error
}

// WriteState encodes an AttackState in the wire format spec.md §6
// documents for the brute-force state file: little-endian
// [magic:u32][menuId][currentCode:u32][totalCodes:u32]
// [interFrameDelay:u16][globalRepeats:u8][timestamp:u32][attackType:u8].
// Mirrors settings.Save's choice to take an io.Writer rather than a
// path, leaving the actual file open to the caller.
func WriteState(w io.Writer, s model.AttackState) error {
	var buf [4 + 1 + 4 + 4 + 2 + 1 + 4 + 1]byte
	binary.LittleEndian.PutUint32(buf[0:4], model.AttackStateMagic)
	buf[4] = s.MenuID
	binary.LittleEndian.PutUint32(buf[5:9], s.CurrentCode)
	binary.LittleEndian.PutUint32(buf[9:13], s.TotalCodes)
	binary.LittleEndian.PutUint16(buf[13:15], s.InterFrameDelayMs)
	buf[15] = s.GlobalRepeats
	binary.LittleEndian.PutUint32(buf[16:20], s.Timestamp)
	buf[20] = byte(s.AttackType)
	_, err := w.Write(buf[:])
	return err
}

// ReadState decodes the format WriteState produces, rejecting a
// record whose magic doesn't match (a stale or foreign file).
func ReadState(r io.Reader) (model.AttackState, error) {
	var buf [4 + 1 + 4 + 4 + 2 + 1 + 4 + 1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return model.AttackState{}, err
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != model.AttackStateMagic {
		return model.AttackState{}, fmt.Errorf("bruteforce: bad state file magic %#x", magic)
	}
	return model.AttackState{
		Magic:             magic,
		MenuID:            buf[4],
		CurrentCode:       binary.LittleEndian.Uint32(buf[5:9]),
		TotalCodes:        binary.LittleEndian.Uint32(buf[9:13]),
		InterFrameDelayMs: binary.LittleEndian.Uint16(buf[13:15]),
		GlobalRepeats:     buf[15],
		Timestamp:         binary.LittleEndian.Uint32(buf[16:20]),
		AttackType:        model.AttackType(buf[20]),
	}, nil
}
