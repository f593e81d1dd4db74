package dispatch

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/evilcrow/subghz-gadget/internal/bruteforce"
	"github.com/evilcrow/subghz-gadget/internal/diag"
	"github.com/evilcrow/subghz-gadget/internal/fsx"
	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/notify"
	"github.com/evilcrow/subghz-gadget/internal/nrf"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
	"github.com/evilcrow/subghz-gadget/internal/pulse"
	"github.com/evilcrow/subghz-gadget/internal/radio"
	"github.com/evilcrow/subghz-gadget/internal/settings"
)

// recordingSink captures every emitted wire payload's leading type
// byte, the way internal/radio's tests do.
type recordingSink struct {
	mu    sync.Mutex
	types []notify.Type
}

func (s *recordingSink) Emit(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = append(s.types, notify.Type(payload[0]))
	return nil
}

func (s *recordingSink) count(t notify.Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, got := range s.types {
		if got == t {
			n++
		}
	}
	return n
}

func waitForCount(t *testing.T, s *recordingSink, typ notify.Type, want int) int {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	var got int
	for time.Now().Before(deadline) {
		got = s.count(typ)
		if got >= want {
			return got
		}
		time.Sleep(time.Millisecond)
	}
	return got
}

// fakeTransceiver is a no-op radio.Transceiver.
type fakeTransceiver struct {
	ring pulse.Ring
}

func (*fakeTransceiver) Idle() error                                            { return nil }
func (*fakeTransceiver) ConfigureRX(cfg model.RecordingConfig) error             { return nil }
func (*fakeTransceiver) ConfigureTX(cfg model.RecordingConfig, power int8) error { return nil }
func (*fakeTransceiver) ReadRSSI() (int16, error)                                { return -80, nil }
func (*fakeTransceiver) SetFrequency(freqHz uint32) error                        { return nil }
func (*fakeTransceiver) WriteLine(high bool, d time.Duration) error              { return nil }
func (f *fakeTransceiver) EdgeSource() *pulse.Ring                               { return &f.ring }

// fakeTransmitter satisfies bruteforce.Transmitter without touching
// real RF hardware.
type fakeTransmitter struct {
	mu        sync.Mutex
	resets    int
	transmits int
}

func (f *fakeTransmitter) ResetForTransmit(module model.Module, freqHz uint32) error {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransmitter) Transmit(module model.Module, pulses []model.Pulse) error {
	f.mu.Lock()
	f.transmits++
	f.mu.Unlock()
	time.Sleep(time.Millisecond) // gives Pause a real window to land mid-run
	return nil
}

// fakeNrfRadio satisfies nrf.Radio with no traffic ever pending.
type fakeNrfRadio struct{}

func (fakeNrfRadio) SetChannel(ch byte) error    { return nil }
func (fakeNrfRadio) EnterPromiscuous() error     { return nil }
func (fakeNrfRadio) Poll() ([]byte, bool)        { return nil, false }

// fakeFrameSink satisfies nrf.FrameSink, recording nothing but never
// failing.
type fakeFrameSink struct{}

func (fakeFrameSink) SendFrame(target nrf.Target, frame []byte) error { return nil }

// fakeJamRadio satisfies nrf.JamRadio.
type fakeJamRadio struct{}

func (fakeJamRadio) Configure(paLevel, dataRate byte) error { return nil }
func (fakeJamRadio) SetChannel(ch byte) error               { return nil }
func (fakeJamRadio) StartConstantCarrier() error            { return nil }
func (fakeJamRadio) StopConstantCarrier() error              { return nil }
func (fakeJamRadio) FloodBurst(n int) error                  { return nil }

func newTestDispatcher(t *testing.T) (*Dispatcher, *recordingSink) {
	t.Helper()
	sink, rs := func() (*notify.Queue, *recordingSink) {
		rs := &recordingSink{}
		return notify.NewQueue(rs), rs
	}()

	store, err := fsx.NewStore(t.TempDir(), sink, diag.NewCollector())
	if err != nil {
		t.Fatalf("fsx.NewStore: %v", err)
	}
	t.Cleanup(store.Close)

	var transceivers [model.NumModules]radio.Transceiver
	for i := range transceivers {
		transceivers[i] = &fakeTransceiver{}
	}
	router := protocol.NewRouter(nil, protocol.NewHistory(), nil)
	worker := radio.NewWorker(transceivers, radio.NewBus(), sink, store, router)
	go worker.Run()
	t.Cleanup(worker.Stop)

	persist := NewFlashStatePersister(store)
	bruter := bruteforce.NewEngine(&fakeTransmitter{}, sink, persist)

	scanner := nrf.NewScanner(fakeNrfRadio{}, sink)
	attacker := nrf.NewAttacker(fakeFrameSink{})
	jammer := nrf.NewJammer(fakeJamRadio{}, sink)

	d := New(Deps{
		Worker:   worker,
		Bruter:   bruter,
		Persist:  persist,
		Store:    store,
		Scanner:  scanner,
		Attacker: attacker,
		Jammer:   jammer,
		History:  protocol.NewHistory(),
		Router:   router,
		Sink:     sink,
		Diag:     diag.NewCollector(),
		Settings: settings.Default(),
		Version:  Version{1, 0, 0},
	})
	return d, rs
}

func TestDispatchGetStateEmitsFullStatusBurst(t *testing.T) {
	d, sink := newTestDispatcher(t)
	d.Dispatch(byte(OpGetState), nil)

	for _, typ := range []notify.Type{
		notify.TypeStatus, notify.TypeSettingsSync, notify.TypeVersionInfo,
		notify.TypeDeviceName, notify.TypeHwButtonStatus, notify.TypeSdStatus,
		notify.TypeNrfStatus, notify.TypeCommandSuccess,
	} {
		if n := waitForCount(t, sink, typ, 1); n == 0 {
			t.Fatalf("GetState: expected at least one message of type %#x", typ)
		}
	}
}

func TestDispatchUnknownOpcodeReportsCommandError(t *testing.T) {
	d, sink := newTestDispatcher(t)
	d.Dispatch(0xFF, nil)
	if n := waitForCount(t, sink, notify.TypeCommandError, 1); n == 0 {
		t.Fatalf("expected CommandError for unknown opcode")
	}
}

func TestDispatchFactoryResetRequiresGuard(t *testing.T) {
	d, sink := newTestDispatcher(t)
	d.Dispatch(byte(OpFactoryReset), []byte("xx"))
	if n := waitForCount(t, sink, notify.TypeCommandError, 1); n == 0 {
		t.Fatalf("expected CommandError without the FR guard")
	}

	d.Dispatch(byte(OpFactoryReset), []byte(string(FactoryResetGuard[:])))
	if n := waitForCount(t, sink, notify.TypeCommandSuccess, 1); n == 0 {
		t.Fatalf("expected CommandSuccess with the FR guard present")
	}
}

func TestDispatchSetDeviceNameUpdatesSettingsAndEchoesName(t *testing.T) {
	d, sink := newTestDispatcher(t)
	name := "gadget-1"
	payload := append([]byte{byte(len(name))}, name...)
	d.Dispatch(byte(OpSetDeviceName), payload)

	if n := waitForCount(t, sink, notify.TypeDeviceName, 1); n == 0 {
		t.Fatalf("expected DeviceName echo")
	}
	d.settingsMu.Lock()
	got := d.settings.DeviceName
	d.settingsMu.Unlock()
	if got != name {
		t.Fatalf("DeviceName = %q, want %q", got, name)
	}
}

func TestDispatchBruterStartPauseResumeRoundTrip(t *testing.T) {
	d, sink := newTestDispatcher(t)

	// CAME 12-bit menu (scenario 3 of the external-interface contract).
	d.Dispatch(byte(OpBruter), []byte{0x01})
	if n := waitForCount(t, sink, notify.TypeCommandSuccess, 1); n == 0 {
		t.Fatalf("expected CommandSuccess starting the attack")
	}
	if n := waitForCount(t, sink, notify.TypeBruteProgress, 1); n == 0 {
		t.Fatalf("expected at least one BruteProgress message")
	}

	d.Dispatch(byte(OpBruter), []byte{BruterPause})
	if n := waitForCount(t, sink, notify.TypeBrutePaused, 1); n == 0 {
		t.Fatalf("expected BrutePaused after pause")
	}

	st, ok, err := d.persist.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatalf("expected a saved attack state after pause")
	}
	if st.MenuID != 1 {
		t.Fatalf("MenuID = %d, want 1", st.MenuID)
	}

	d.Dispatch(byte(OpBruter), []byte{BruterResume})
	if n := waitForCount(t, sink, notify.TypeBruteResumed, 1); n == 0 {
		t.Fatalf("expected BruteResumed")
	}

	d.Dispatch(byte(OpBruter), []byte{BruterCancel})
}

func TestDispatchCopyDuplicatesFileWithinPathType(t *testing.T) {
	d, sink := newTestDispatcher(t)

	w, err := d.store.Create(model.PathSignals, "a.sub")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := io.WriteString(w, "RAW_Data: 100 -100"); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	payload := []byte{byte(model.PathSignals), 5}
	payload = append(payload, "a.sub"...)
	payload = append(payload, byte(model.PathSignals))
	payload = append(payload, 5)
	payload = append(payload, "b.sub"...)
	d.Dispatch(byte(OpCopy), payload)

	if n := waitForCount(t, sink, notify.TypeCommandSuccess, 1); n == 0 {
		t.Fatalf("expected CommandSuccess for copy")
	}
	if _, err := d.store.Open(model.PathSignals, "b.sub"); err != nil {
		t.Fatalf("expected b.sub to exist after copy: %v", err)
	}
}
