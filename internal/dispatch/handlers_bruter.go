package dispatch

import (
	"errors"

	"github.com/charmbracelet/log"

	"github.com/evilcrow/subghz-gadget/internal/bruteforce"
	"github.com/evilcrow/subghz-gadget/internal/notify"
)

// handleBruter is opcode 0x04's sub-opcode switch (spec.md §6): rest[0]
// is either a control sub-opcode or, for 1..40, a menu index to start
// a keyspace walk on. A run does not release its module back to Idle
// on its own (completion, pause, or cancel all stop the TX loop without
// touching worker mode), so a goroutine watches bruter.Wait and calls
// GoIdle once the attack actually stops.
func (d *Dispatcher) handleBruter(rest []byte) {
	if !d.needLen(rest, 1) {
		return
	}
	sub := rest[0]
	args := rest[1:]

	switch {
	case sub == BruterCancel:
		d.handleBruterCancel()
	case sub >= 1 && sub <= 40:
		d.handleBruterStart(sub)
	case sub == BruterSetModule:
		d.handleBruterSetModule(args)
	case sub == BruterQueryState:
		d.handleBruterQueryState()
	case sub == BruterResume:
		d.handleBruterResume()
	case sub == BruterPause:
		d.handleBruterPause()
	case sub == BruterSetRepeats:
		d.handleBruterSetRepeats(args)
	case sub == BruterStartCustomDeBruijn:
		d.handleBruterStartCustomDeBruijn(args)
	case sub == BruterSetInterFrameDelayMs:
		d.handleBruterSetInterFrameDelay(args)
	default:
		d.sink.Send(notify.CommandError(2))
	}
}

func (d *Dispatcher) bruterOpts() bruteforce.Options {
	d.bruteMu.Lock()
	defer d.bruteMu.Unlock()
	return bruteforce.Options{
		Module:            d.bruteModule,
		InterFrameDelayMs: d.bruteDelayMs,
		GlobalRepeats:     d.bruteRepeats,
	}
}

// awaitBruterDone releases the attack's module back to Idle once the
// engine's work loop actually exits (completion, pause, or cancel),
// mirroring the completion path the CC1101 Worker uses for every
// other timed mode.
func (d *Dispatcher) awaitBruterDone() {
	opts := d.bruterOpts()
	go func() {
		d.bruter.Wait()
		d.worker.GoIdle(opts.Module)
	}()
}

func (d *Dispatcher) handleBruterStart(menu byte) {
	opts := d.bruterOpts()
	if err := d.bruter.Start(menu, 0, opts); err != nil {
		log.Error("dispatch: bruter start failed", "menu", menu, "err", err)
		if errors.Is(err, bruteforce.ErrAlreadyRunning) {
			d.sink.Send(notify.CommandError(4))
		} else {
			d.sink.Send(notify.CommandError(3))
		}
		return
	}
	d.awaitBruterDone()
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleBruterCancel() {
	if err := d.bruter.Cancel(); err != nil {
		if errors.Is(err, bruteforce.ErrNotRunning) {
			d.sink.Send(notify.CommandError(5))
			return
		}
		log.Error("dispatch: bruter cancel failed", "err", err)
		d.sink.Send(notify.CommandError(3))
		return
	}
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleBruterSetModule(args []byte) {
	if !d.needLen(args, 1) {
		return
	}
	m, ok := d.parseModule(args[0])
	if !ok {
		return
	}
	d.bruteMu.Lock()
	d.bruteModule = m
	d.bruteMu.Unlock()
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleBruterQueryState() {
	st, ok, err := d.persist.Load()
	if err != nil {
		log.Error("dispatch: bruter state load failed", "err", err)
		d.sink.Send(notify.CommandError(3))
		return
	}
	if !ok {
		d.sink.Send(notify.CommandError(6))
		return
	}
	d.sink.Send(notify.BruteStateAvailable(st.MenuID, st.CurrentCode, st.TotalCodes))
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleBruterResume() {
	opts := d.bruterOpts()
	if _, err := d.bruter.Resume(opts); err != nil {
		if errors.Is(err, bruteforce.ErrNoSavedState) {
			d.sink.Send(notify.CommandError(6))
			return
		}
		if errors.Is(err, bruteforce.ErrAlreadyRunning) {
			d.sink.Send(notify.CommandError(4))
			return
		}
		log.Error("dispatch: bruter resume failed", "err", err)
		d.sink.Send(notify.CommandError(3))
		return
	}
	d.awaitBruterDone()
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleBruterPause() {
	if err := d.bruter.Pause(); err != nil {
		if errors.Is(err, bruteforce.ErrNotRunning) {
			d.sink.Send(notify.CommandError(5))
			return
		}
		log.Error("dispatch: bruter pause failed", "err", err)
		d.sink.Send(notify.CommandError(3))
		return
	}
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleBruterSetRepeats(args []byte) {
	if !d.needLen(args, 1) {
		return
	}
	d.bruteMu.Lock()
	d.bruteRepeats = args[0]
	d.bruteMu.Unlock()
	d.sink.Send(notify.CommandSuccess())
}

func (d *Dispatcher) handleBruterSetInterFrameDelay(args []byte) {
	if !d.needLen(args, 2) {
		return
	}
	d.bruteMu.Lock()
	d.bruteDelayMs = le16(args[0:2])
	d.bruteMu.Unlock()
	d.sink.Send(notify.CommandSuccess())
}

// handleBruterStartCustomDeBruijn payload: [bits][teUs:u16][ratio][freqHz:u32].
func (d *Dispatcher) handleBruterStartCustomDeBruijn(args []byte) {
	if !d.needLen(args, 1+2+1+4) {
		return
	}
	bits := int(args[0])
	teUs := uint32(le16(args[1:3]))
	ratio := uint32(args[3])
	freqHz := le32(args[4:8])
	opts := d.bruterOpts()
	if err := d.bruter.StartCustomDeBruijn(bits, teUs, ratio, freqHz, opts); err != nil {
		log.Error("dispatch: custom de Bruijn start failed", "err", err)
		if errors.Is(err, bruteforce.ErrAlreadyRunning) {
			d.sink.Send(notify.CommandError(4))
		} else {
			d.sink.Send(notify.CommandError(3))
		}
		return
	}
	d.awaitBruterDone()
	d.sink.Send(notify.CommandSuccess())
}
