// Package bruteforce implements the fixed-code attack engine
// (spec.md §4.8): binary and tristate keyspace enumeration, De Bruijn
// sequence streaming, the universal auto-attack sweep, and the
// pause/resume protocol backed by an on-flash AttackState record.
// Grounded on the teacher's driver/mjolnir Engrave pattern — a single
// cancellable work loop driven by a plan and a quit channel, reused
// here for a keyspace walk instead of a stepper plan.
package bruteforce

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/notify"
	"github.com/evilcrow/subghz-gadget/internal/protocol/fixedcode"
)

// ProgressInterval is how many codes (or, in De Bruijn mode, how
// many bits) elapse between BruteProgress notifications.
const ProgressInterval = 32

var (
	ErrAlreadyRunning = errors.New("bruteforce: attack already running")
	ErrNotRunning      = errors.New("bruteforce: no attack running")
	ErrNoSavedState    = errors.New("bruteforce: no saved attack state")
)

// Transmitter is the radio-side sink for a frame's pulse list. The
// real implementation lives in internal/radio, driving the CC1101
// TX path; tests substitute a recording fake.
type Transmitter interface {
	// ResetForTransmit re-asserts TX configuration on module,
	// going through idle first so the PLL recalibrates — other
	// consumers of the shared SPI bus may have left the radio in
	// RX or a stale TX state (spec.md §4.8 pre-run step).
	ResetForTransmit(module model.Module, freqHz uint32) error
	Transmit(module model.Module, pulses []model.Pulse) error
}

// Options configures one attack run.
type Options struct {
	Module            model.Module
	InterFrameDelayMs uint16
	GlobalRepeats     byte
}

// Engine runs at most one attack at a time, priority 2 in the
// reference scheduling model (spec.md §5): it only ever sleeps
// between codes or frames, never blocking another subsystem.
type Engine struct {
	tx      Transmitter
	sink    *notify.Queue
	persist StatePersister

	mu     sync.Mutex
	active bool
	pause  chan struct{}
	cancel chan struct{}
	done   chan struct{}

	// freeHeap, when set, supplies the current free-heap figure so a
	// De Bruijn generation can be rejected before it's attempted
	// (spec.md §4.8: "heap budget must be checked before generation").
	freeHeap func() uint32
}

func NewEngine(tx Transmitter, sink *notify.Queue, persist StatePersister) *Engine {
	return &Engine{tx: tx, sink: sink, persist: persist}
}

// SetHeapSource wires the Worker's gopsutil-backed free-heap sample
// (radio.Worker.FreeHeapBytes) into the engine's De Bruijn heap check.
func (e *Engine) SetHeapSource(f func() uint32) { e.freeHeap = f }

// checkHeap is a no-op when no heap source has been wired (e.g. in
// tests that never call SetHeapSource).
func (e *Engine) checkHeap(n int) error {
	if e.freeHeap == nil {
		return nil
	}
	return CheckHeapBudget(n, e.freeHeap())
}

func pow3(n int) uint64 {
	v := uint64(1)
	for i := 0; i < n; i++ {
		v *= 3
	}
	return v
}

func totalCodesFor(tpl fixedcode.Template) (uint64, model.AttackType) {
	if tpl.Kind == fixedcode.Tristate {
		return pow3(tpl.Bits), model.AttackTristate
	}
	return uint64(1) << uint(tpl.Bits), model.AttackBinary
}

// Start begins a binary or tristate keyspace walk over menu (1-based
// index into fixedcode.Templates()) starting at startCode.
func (e *Engine) Start(menu byte, startCode uint32, opts Options) error {
	tpls := fixedcode.Templates()
	idx := int(menu) - 1
	if idx < 0 || idx >= len(tpls) {
		return fmt.Errorf("bruteforce: unknown menu %d", menu)
	}
	tpl := tpls[idx]
	total, kind := totalCodesFor(tpl)
	if total > uint64(^uint32(0)) {
		total = uint64(^uint32(0))
	}
	st := model.AttackState{
		MenuID:            menu,
		CurrentCode:       startCode,
		TotalCodes:        uint32(total),
		InterFrameDelayMs: opts.InterFrameDelayMs,
		GlobalRepeats:     opts.GlobalRepeats,
		AttackType:        kind,
	}
	return e.runKeyspace(st, opts, tpl)
}

// Resume restarts the persisted attack from max(0, currentCode-Overlap)
// (spec.md §3, §8: no code near the pause point is skipped).
func (e *Engine) Resume(opts Options) (model.AttackState, error) {
	st, ok, err := e.persist.Load()
	if err != nil {
		return model.AttackState{}, err
	}
	if !ok {
		return model.AttackState{}, ErrNoSavedState
	}
	resumeFrom := uint32(0)
	if st.CurrentCode > model.Overlap {
		resumeFrom = st.CurrentCode - model.Overlap
	}
	st.CurrentCode = resumeFrom

	tpls := fixedcode.Templates()
	idx := int(st.MenuID) - 1
	if idx < 0 || idx >= len(tpls) {
		return model.AttackState{}, fmt.Errorf("bruteforce: saved menu %d no longer valid", st.MenuID)
	}
	tpl := tpls[idx]

	e.sink.Send(notify.BruteResumed(st.MenuID, resumeFrom, st.TotalCodes))
	if err := e.runKeyspace(st, opts, tpl); err != nil {
		return model.AttackState{}, err
	}
	return st, nil
}

func (e *Engine) runKeyspace(st model.AttackState, opts Options, tpl fixedcode.Template) error {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.active = true
	pause := make(chan struct{})
	cancel := make(chan struct{})
	done := make(chan struct{})
	e.pause, e.cancel, e.done = pause, cancel, done
	e.mu.Unlock()

	if st.GlobalRepeats == 0 {
		st.GlobalRepeats = 1
	}

	go func() {
		defer close(done)
		defer func() {
			e.mu.Lock()
			e.active = false
			e.mu.Unlock()
		}()

		if err := e.tx.ResetForTransmit(opts.Module, tpl.FreqHz); err != nil {
			log.Error("bruteforce: could not re-assert TX config", "menu", st.MenuID, "err", err)
			e.sink.Send(notify.ErrorMsg(0x01, "bruteforce: radio reset failed"))
			return
		}

		start := time.Now()
		var sentSinceReport uint32
		code := st.CurrentCode
		for ; code < st.TotalCodes; code++ {
			select {
			case <-cancel:
				// A clean stop: no BrutePaused, no persisted
				// state -- the caller's Cancel() purges it right
				// after this goroutine exits (spec.md §4.8).
				return
			case <-pause:
				st.CurrentCode = code
				e.pauseAt(st)
				return
			default:
			}

			pulses := tpl.Encode(uint64(code))
			for r := byte(0); r < st.GlobalRepeats; r++ {
				if err := e.tx.Transmit(opts.Module, pulses); err != nil {
					log.Error("bruteforce: transmit failed", "menu", st.MenuID, "code", code, "err", err)
				}
				if st.InterFrameDelayMs > 0 {
					time.Sleep(time.Duration(st.InterFrameDelayMs) * time.Millisecond)
				}
			}

			sentSinceReport++
			if sentSinceReport >= ProgressInterval {
				e.reportProgress(st.MenuID, code+1, st.TotalCodes, start, sentSinceReport)
				sentSinceReport = 0
			}
		}
		e.complete(st.MenuID, st.TotalCodes)
	}()
	return nil
}

func (e *Engine) reportProgress(menu byte, current, total uint32, start time.Time, sinceLast uint32) {
	elapsed := time.Since(start).Seconds()
	var rate uint16
	if elapsed > 0 {
		rate = uint16(float64(current) / elapsed)
	}
	pct := byte(0)
	if total > 0 {
		pct = byte(uint64(current) * 100 / uint64(total))
	}
	e.sink.Send(notify.BruteProgress(current, total, menu, pct, rate))
}

func (e *Engine) pauseAt(st model.AttackState) {
	st.Timestamp = uint32(time.Now().Unix())
	if err := e.persist.Save(st); err != nil {
		log.Error("bruteforce: failed to persist paused state", "err", err)
	}
	e.sink.Send(notify.BrutePaused(st.MenuID, st.CurrentCode, st.TotalCodes))
}

func (e *Engine) complete(menu byte, total uint32) {
	if err := e.persist.Clear(); err != nil {
		log.Error("bruteforce: failed to clear state on completion", "err", err)
	}
	e.sink.Send(notify.BruteComplete(menu, total))
}

// Pause requests the running attack stop at the next code boundary
// and persists its resume point. It blocks until the loop exits.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return ErrNotRunning
	}
	pause, done := e.pause, e.done
	e.mu.Unlock()
	close(pause)
	<-done
	return nil
}

// Cancel stops the running attack and purges any persisted state —
// a clean stop, not a pause (spec.md §4.8). It signals the work loop
// on its own channel, distinct from Pause's, so a cancelled run never
// emits BrutePaused.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		if err := e.persist.Clear(); err != nil {
			return err
		}
		return ErrNotRunning
	}
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	close(cancel)
	<-done
	return e.persist.Clear()
}

// Running reports whether an attack is currently in flight.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Wait blocks until the current attack (if any) finishes, pauses, or
// is cancelled. Used by orderly shutdown and by tests.
func (e *Engine) Wait() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}
