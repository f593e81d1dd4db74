package bruteforce

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/notify"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
	"github.com/evilcrow/subghz-gadget/internal/protocol/fixedcode"
)

// dynamicTemplate builds the "dynamic" fixed-code template the
// universal auto-attack and custom De Bruijn modes parameterize on
// the fly (spec.md §4.8): a symmetric short pulse for every symbol,
// distinguished only by an asymmetric gap length — '0' gaps at te,
// '1' gaps at te*ratio.
func dynamicTemplate(name string, freqHz, teUs, ratio uint32, bits int) fixedcode.Template {
	long := teUs * ratio
	return fixedcode.Template{
		Name:   name,
		FreqHz: freqHz,
		Bits:   bits,
		Kind:   fixedcode.Binary,
		Timing: protocol.Timing{TEShort: teUs, TELong: long, TEDelta: teUs / 2, MinCountBit: bits},
		Pilot:  []fixedcode.Symbol{{High: teUs, Low: long * 4}},
		Stop:   fixedcode.Symbol{High: teUs, Low: long * 4},
		Symbols: map[byte]fixedcode.Symbol{
			'0': {High: teUs, Low: teUs},
			'1': {High: teUs, Low: long},
		},
	}
}

var (
	universalFreqsHz     = [8]uint32{300000000, 303875000, 310000000, 315000000, 330000000, 390000000, 433920000, 868350000}
	universalTEsUs       = [3]uint32{200, 400, 650}
	universalDutyRatios  = [2]uint32{2, 3}
	universalBitLengths  = [2]int{12, 24}
)

// StartUniversal runs the 8×3×2×2 = 96-configuration Cartesian sweep
// (spec.md §4.8) over the dynamic template, one short binary keyspace
// walk per configuration, stopping cleanly between configurations so
// Pause/Cancel still take effect at a code boundary.
func (e *Engine) StartUniversal(codesPerConfig uint32, opts Options) error {
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

	go func() {
		defer close(done)
		defer func() {
			e.mu.Lock()
			e.active = false
			e.mu.Unlock()
		}()

		configIdx := 0
		total := len(universalFreqsHz) * len(universalTEsUs) * len(universalDutyRatios) * len(universalBitLengths)
		for _, freq := range universalFreqsHz {
			for _, te := range universalTEsUs {
				for _, ratio := range universalDutyRatios {
					for _, bits := range universalBitLengths {
						select {
						case <-cancel:
							log.Info("bruteforce: universal sweep cancelled", "configsDone", configIdx, "configsTotal", total)
							return
						case <-pause:
							log.Info("bruteforce: universal sweep paused", "configsDone", configIdx, "configsTotal", total)
							return
						default:
						}
						tpl := dynamicTemplate(
							fmt.Sprintf("Dynamic %dMHz te=%d ratio=%d bits=%d", freq/1000000, te, ratio, bits),
							freq, te, ratio, bits,
						)
						if err := e.tx.ResetForTransmit(opts.Module, tpl.FreqHz); err != nil {
							log.Error("bruteforce: universal sweep reset failed", "config", tpl.Name, "err", err)
							continue
						}
						limit := uint32(1) << uint(bits)
						if codesPerConfig > 0 && codesPerConfig < limit {
							limit = codesPerConfig
						}
						for code := uint32(0); code < limit; code++ {
							select {
							case <-cancel:
								log.Info("bruteforce: universal sweep cancelled mid-config", "config", tpl.Name, "code", code)
								return
							case <-pause:
								log.Info("bruteforce: universal sweep paused mid-config", "config", tpl.Name, "code", code)
								return
							default:
							}
							pulses := tpl.Encode(uint64(code))
							for r := byte(0); r < maxByte(opts.GlobalRepeats, 1); r++ {
								e.tx.Transmit(opts.Module, pulses)
								if opts.InterFrameDelayMs > 0 {
									time.Sleep(time.Duration(opts.InterFrameDelayMs) * time.Millisecond)
								}
							}
						}
						configIdx++
						e.sink.Send(notify.BruteProgress(uint32(configIdx), uint32(total), 0xFF, byte(configIdx*100/total), 0))
					}
				}
			}
		}
		e.sink.Send(notify.BruteComplete(0xFF, uint32(total)))
	}()
	return nil
}

func maxByte(v, min byte) byte {
	if v < min {
		return min
	}
	return v
}

// StartCustomDeBruijn validates and runs a client-supplied De Bruijn
// sweep (spec.md §4.8): bits ∈ [1, MaxDeBruijnOrder], te ∈ [50, 5000],
// ratio ∈ [1, 10].
func (e *Engine) StartCustomDeBruijn(bits int, teUs, ratio, freqHz uint32, opts Options) error {
	if bits < 1 || bits > MaxDeBruijnOrder {
		return fmt.Errorf("bruteforce: custom de Bruijn bits %d out of range [1,%d]", bits, MaxDeBruijnOrder)
	}
	if teUs < 50 || teUs > 5000 {
		return fmt.Errorf("bruteforce: custom de Bruijn te %d out of range [50,5000]", teUs)
	}
	if ratio < 1 || ratio > 10 {
		return fmt.Errorf("bruteforce: custom de Bruijn ratio %d out of range [1,10]", ratio)
	}
	if err := e.checkHeap(bits); err != nil {
		return err
	}
	tpl := dynamicTemplate(fmt.Sprintf("Custom De Bruijn bits=%d te=%d ratio=%d", bits, teUs, ratio), freqHz, teUs, ratio, bits)
	return e.runDeBruijn(0xFE, bits, tpl, opts)
}

// StartDeBruijn streams a De Bruijn B(2,n) sequence through menu's
// own fixed-code transposition table — "the same triples are re-used
// as De Bruijn substrate" (spec.md §4.7).
func (e *Engine) StartDeBruijn(menu byte, n int, opts Options) error {
	tpls := fixedcode.Templates()
	idx := int(menu) - 1
	if idx < 0 || idx >= len(tpls) {
		return fmt.Errorf("bruteforce: unknown menu %d", menu)
	}
	if err := e.checkHeap(n); err != nil {
		return err
	}
	return e.runDeBruijn(menu, n, tpls[idx], opts)
}

func (e *Engine) runDeBruijn(menu byte, n int, tpl fixedcode.Template, opts Options) error {
	seq, err := DeBruijnBinary(n)
	if err != nil {
		return err
	}

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

	repeats := opts.GlobalRepeats
	if repeats == 0 {
		repeats = 1
	}

	go func() {
		defer close(done)
		defer func() {
			e.mu.Lock()
			e.active = false
			e.mu.Unlock()
		}()

		if err := e.tx.ResetForTransmit(opts.Module, tpl.FreqHz); err != nil {
			log.Error("bruteforce: de Bruijn TX reset failed", "err", err)
			e.sink.Send(notify.ErrorMsg(0x01, "bruteforce: radio reset failed"))
			return
		}

		start := time.Now()
		for r := byte(0); r < repeats; r++ {
			select {
			case <-cancel:
				// A clean stop: no BrutePaused, no persisted state
				// (spec.md §4.8) — Cancel() purges whatever's on
				// flash right after this goroutine exits.
				return
			case <-pause:
				st := model.AttackState{MenuID: menu, CurrentCode: 0, TotalCodes: uint32(len(seq)), AttackType: model.AttackDeBruijn, Timestamp: uint32(time.Now().Unix())}
				e.pauseAt(st)
				return
			default:
			}
			out := make([]model.Pulse, 0, len(tpl.Pilot)*2+len(seq)*2+2)
			for _, s := range tpl.Pilot {
				out = append(out, model.Pulse(s.High), -model.Pulse(s.Low))
			}
			for i, bit := range seq {
				sym := tpl.Symbols['0']
				if bit == 1 {
					sym = tpl.Symbols['1']
				}
				out = append(out, model.Pulse(sym.High), -model.Pulse(sym.Low))
				if (i+1)%ProgressInterval == 0 {
					e.reportProgress(menu, uint32(i+1), uint32(len(seq)), start, ProgressInterval)
				}
			}
			out = append(out, model.Pulse(tpl.Stop.High), -model.Pulse(tpl.Stop.Low))
			if err := e.tx.Transmit(opts.Module, out); err != nil {
				log.Error("bruteforce: de Bruijn transmit failed", "err", err)
			}
		}
		e.complete(menu, uint32(len(seq)))
	}()
	return nil
}
