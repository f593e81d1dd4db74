package nrf

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evilcrow/subghz-gadget/internal/notify"
)

// Radio is the nRF24 hardware seam: channel selection, promiscuous
// 2-byte-address 2Mbps mode, and a single non-blocking poll for one
// received buffer. The real implementation lives in internal/radio,
// arbitrating the shared SPI bus (spec.md §5); tests substitute a
// scripted fake.
type Radio interface {
	SetChannel(ch byte) error
	EnterPromiscuous() error
	// Poll returns one raw received buffer if one arrived, or ok=false
	// if nothing was pending.
	Poll() (buf []byte, ok bool)
}

// Scanner runs the channel-sweep state machine and owns the bounded
// target table (spec.md §4.9).
type Scanner struct {
	radio Radio
	sink  *notify.Queue

	mu      sync.Mutex
	targets []Target
	running bool
	cancel  chan struct{}
	done    chan struct{}
}

func NewScanner(radio Radio, sink *notify.Queue) *Scanner {
	return &Scanner{radio: radio, sink: sink}
}

func (s *Scanner) Targets() []Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Target, len(s.targets))
	copy(out, s.targets)
	return out
}

func (s *Scanner) ClearTargets() {
	s.mu.Lock()
	s.targets = nil
	s.mu.Unlock()
}

// findTarget returns the index of addr in s.targets, or -1.
func (s *Scanner) findTarget(addr [5]byte) int {
	for i, t := range s.targets {
		if t.Address == addr {
			return i
		}
	}
	return -1
}

// addTarget inserts or refreshes a target; duplicates just update the
// last-seen channel (spec.md §4.9). Returns whether this was a new
// entry. Caller holds s.mu.
func (s *Scanner) addTarget(addr [5]byte, channel byte, devType DeviceType) bool {
	if idx := s.findTarget(addr); idx >= 0 {
		s.targets[idx].Channel = channel
		return false
	}
	if len(s.targets) >= MaxTargets {
		return false
	}
	s.targets = append(s.targets, Target{Address: addr, Channel: channel, Type: devType})
	return true
}

func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches one promiscuous sweep over MinChannel..MaxChannel as
// a background goroutine: it reports NrfScanStatus after each channel
// and NrfComplete at the end, then stops. It does not repeat the sweep
// and takes no bus lock of its own; any bus locking happens inside the
// Radio implementation.
func (s *Scanner) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.cancel = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.sweepLoop()
	return nil
}

func (s *Scanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()
	close(cancel)
	<-done
}

func (s *Scanner) sweepLoop() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.done)
	}()

	if err := s.radio.EnterPromiscuous(); err != nil {
		log.Error("nrf: enter promiscuous failed", "err", err)
		return
	}

	for ch := byte(MinChannel); ch <= MaxChannel; ch++ {
		select {
		case <-s.cancel:
			return
		default:
		}
		if err := s.radio.SetChannel(ch); err != nil {
			log.Error("nrf: set channel failed", "channel", ch, "err", err)
			continue
		}
		for tries := 0; tries < ScanTriesPerChannel; tries++ {
			select {
			case <-s.cancel:
				return
			default:
			}
			buf, ok := s.radio.Poll()
			if ok {
				s.onPacket(buf, ch)
			}
			time.Sleep(ScanDwellMicros * time.Microsecond)
		}
		s.mu.Lock()
		count := len(s.targets)
		s.mu.Unlock()
		s.sink.Send(notify.NrfScanStatus(true, ch, byte(count)))
	}
	s.mu.Lock()
	count := len(s.targets)
	s.mu.Unlock()
	s.sink.Send(notify.NrfComplete(byte(count), MaxChannel-MinChannel+1))
}

func (s *Scanner) onPacket(buf []byte, channel byte) {
	addr, devType, ok := Fingerprint(buf)
	if !ok {
		return
	}
	s.mu.Lock()
	isNew := s.addTarget(addr, channel, devType)
	s.mu.Unlock()
	if isNew {
		s.sink.Send(notify.NrfFound(addr, byte(devType), channel))
	}
}
