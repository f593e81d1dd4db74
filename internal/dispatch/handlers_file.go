package dispatch

import (
	"github.com/charmbracelet/log"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/notify"
)

// handleGetFileList payload: [pathType][pathLen][path...].
func (d *Dispatcher) handleGetFileList(rest []byte) {
	if !d.needLen(rest, 1) {
		return
	}
	pt, ok := d.parsePathType(rest[0])
	if !ok {
		return
	}
	path, _, ok := readString(rest, 1)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	if err := d.store.List(pt, path); err != nil {
		log.Error("dispatch: list failed", "path", path, "err", err)
		d.sink.Send(notify.CommandError(3))
		return
	}
	d.sink.Send(notify.CommandSuccess())
}

// handleGetDirTree payload: [pathType][pathLen][path...].
func (d *Dispatcher) handleGetDirTree(rest []byte) {
	if !d.needLen(rest, 1) {
		return
	}
	pt, ok := d.parsePathType(rest[0])
	if !ok {
		return
	}
	path, _, ok := readString(rest, 1)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	if err := d.store.Tree(pt, path); err != nil {
		log.Error("dispatch: tree failed", "path", path, "err", err)
		d.sink.Send(notify.CommandError(3))
		return
	}
	d.sink.Send(notify.CommandSuccess())
}

// handleLoadFile (download) payload: [pathType][pathLen][path...].
func (d *Dispatcher) handleLoadFile(rest []byte) {
	if !d.needLen(rest, 1) {
		return
	}
	pt, ok := d.parsePathType(rest[0])
	if !ok {
		return
	}
	path, _, ok := readString(rest, 1)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	if err := d.store.Download(pt, path); err != nil {
		log.Error("dispatch: download failed", "path", path, "err", err)
		d.sink.Send(notify.CommandError(3))
		return
	}
	d.sink.Send(notify.CommandSuccess())
}

// handleMkdir / handleRm payload: [pathType][pathLen][path...].
func (d *Dispatcher) handleMkdir(rest []byte) {
	if !d.needLen(rest, 1) {
		return
	}
	pt, ok := d.parsePathType(rest[0])
	if !ok {
		return
	}
	path, _, ok := readString(rest, 1)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	d.store.Mkdir(pt, path)
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleRm(rest []byte) {
	if !d.needLen(rest, 1) {
		return
	}
	pt, ok := d.parsePathType(rest[0])
	if !ok {
		return
	}
	path, _, ok := readString(rest, 1)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	d.store.Delete(pt, path)
	d.sink.Send(notify.CommandSuccess())
}

// handleRename payload: [pathType][oldLen][old][newLen][new].
func (d *Dispatcher) handleRename(rest []byte) {
	if !d.needLen(rest, 1) {
		return
	}
	pt, ok := d.parsePathType(rest[0])
	if !ok {
		return
	}
	oldRel, off, ok := readString(rest, 1)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	newRel, _, ok := readString(rest, off)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	d.store.Rename(pt, oldRel, newRel)
	d.sink.Send(notify.CommandSuccess())
}

// parseTwoPaths reads the shared [srcPathType][srcLen][src]
// [dstPathType][dstLen][dst] shape used by copy and move.
func (d *Dispatcher) parseTwoPaths(rest []byte) (srcPT model.PathType, src string, dstPT model.PathType, dst string, ok bool) {
	if !d.needLen(rest, 1) {
		return
	}
	srcPT, ok = d.parsePathType(rest[0])
	if !ok {
		return
	}
	src, off, sOk := readString(rest, 1)
	if !sOk || off >= len(rest) {
		d.sink.Send(notify.CommandError(1))
		ok = false
		return
	}
	dstPT, ok = d.parsePathType(rest[off])
	if !ok {
		return
	}
	dst, _, dOk := readString(rest, off+1)
	if !dOk {
		d.sink.Send(notify.CommandError(1))
		ok = false
		return
	}
	ok = true
	return
}

func (d *Dispatcher) handleCopy(rest []byte) {
	srcPT, src, dstPT, dst, ok := d.parseTwoPaths(rest)
	if !ok {
		return
	}
	d.store.Copy(srcPT, src, dstPT, dst)
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleMove(rest []byte) {
	srcPT, src, dstPT, dst, ok := d.parseTwoPaths(rest)
	if !ok {
		return
	}
	d.store.Move(srcPT, src, dstPT, dst)
	d.sink.Send(notify.CommandSuccess())
}

// handleSaveToSignals moves a staged temp-directory capture into the
// Signals directory proper (spec.md §6 "0x10 saveToSignals"); payload:
// [srcLen][src][dstLen][dst], both relative to Temp and Signals
// respectively.
func (d *Dispatcher) handleSaveToSignals(rest []byte) {
	src, off, ok := readString(rest, 0)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	dst, _, ok := readString(rest, off)
	if !ok {
		d.sink.Send(notify.CommandError(1))
		return
	}
	d.store.Move(model.PathTemp, src, model.PathSignals, dst)
	d.sink.Send(notify.CommandSuccess())
}
