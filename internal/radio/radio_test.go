package radio

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/notify"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
	"github.com/evilcrow/subghz-gadget/internal/pulse"
)

// fakeSink records every emitted wire payload's leading type byte.
type fakeSink struct {
	mu    sync.Mutex
	types []notify.Type
}

func (f *fakeSink) Emit(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, notify.Type(payload[0]))
	return nil
}

func (f *fakeSink) count(t notify.Type) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, got := range f.types {
		if got == t {
			n++
		}
	}
	return n
}

// waitForCount polls the sink for up to one second: notify.Queue drains
// each type's messages on its own background goroutine, so a Send does
// not take effect synchronously with the caller.
func waitForCount(t *testing.T, f *fakeSink, typ notify.Type, want int) int {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	var got int
	for time.Now().Before(deadline) {
		got = f.count(typ)
		if got >= want {
			return got
		}
		time.Sleep(time.Millisecond)
	}
	return got
}

func newTestQueue() (*notify.Queue, *fakeSink) {
	sink := &fakeSink{}
	q := notify.NewQueue(sink)
	return q, sink
}

// fakeTransceiver is a scripted, in-memory Transceiver.
type fakeTransceiver struct {
	mu sync.Mutex

	ring pulse.Ring

	idleCalls int
	rssi      int16
	rssiErr   error
	freq      uint32

	writes []bool // recorded WriteLine levels
}

func (f *fakeTransceiver) Idle() error {
	f.mu.Lock()
	f.idleCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransceiver) ConfigureRX(cfg model.RecordingConfig) error { return nil }
func (f *fakeTransceiver) ConfigureTX(cfg model.RecordingConfig, power int8) error { return nil }

func (f *fakeTransceiver) ReadRSSI() (int16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rssi, f.rssiErr
}

func (f *fakeTransceiver) SetFrequency(freqHz uint32) error {
	f.mu.Lock()
	f.freq = freqHz
	f.mu.Unlock()
	return nil
}

func (f *fakeTransceiver) WriteLine(high bool, d time.Duration) error {
	f.mu.Lock()
	f.writes = append(f.writes, high)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransceiver) EdgeSource() *pulse.Ring { return &f.ring }

func newFakeRadios() [model.NumModules]Transceiver {
	var r [model.NumModules]Transceiver
	for i := range r {
		r[i] = &fakeTransceiver{}
	}
	return r
}

// fakeStorage is an in-memory Storage.
type fakeStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeStorage() *fakeStorage { return &fakeStorage{files: make(map[string][]byte)} }

type memWriteCloser struct {
	buf *bytes.Buffer
	s   *fakeStorage
	key string
}

func (m *memWriteCloser) Write(p []byte) (int, error) { return m.buf.Write(p) }
func (m *memWriteCloser) Close() error {
	m.s.mu.Lock()
	m.s.files[m.key] = m.buf.Bytes()
	m.s.mu.Unlock()
	return nil
}

func (s *fakeStorage) Create(pathType model.PathType, relPath string) (io.WriteCloser, error) {
	s.mu.Lock()
	s.files[relPath] = nil // visible to callers checking existence before Close
	s.mu.Unlock()
	return &memWriteCloser{buf: &bytes.Buffer{}, s: s, key: relPath}, nil
}

func (s *fakeStorage) Open(pathType model.PathType, relPath string) (io.ReadCloser, error) {
	s.mu.Lock()
	data, ok := s.files[relPath]
	s.mu.Unlock()
	if !ok {
		return nil, errors.New("fakeStorage: not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func newTestWorker(t *testing.T) (*Worker, [model.NumModules]*fakeTransceiver, *fakeSink, *fakeStorage) {
	t.Helper()
	radios := newFakeRadios()
	var fakes [model.NumModules]*fakeTransceiver
	for i := range radios {
		fakes[i] = radios[i].(*fakeTransceiver)
	}
	sink, fs := newTestQueue()
	storage := newFakeStorage()
	router := protocol.NewRouter(nil, protocol.NewHistory(), nil)
	w := NewWorker(radios, NewBus(), sink, storage, router)
	return w, fakes, fs, storage
}

func TestTransitionRejectsCrossModeWithoutIdle(t *testing.T) {
	w, _, _, _ := newTestWorker(t)
	w.transitionTo(model.Module0, model.Detecting)
	if got := w.Mode(model.Module0); got != model.Detecting {
		t.Fatalf("mode = %v, want Detecting", got)
	}
	w.transitionTo(model.Module0, model.Jamming) // rejected: Detecting -> Jamming direct
	if got := w.Mode(model.Module0); got != model.Detecting {
		t.Fatalf("cross-mode transition should be rejected, got mode %v", got)
	}
}

func TestGoIdleIsIdempotentAndResetsRing(t *testing.T) {
	w, fakes, _, _ := newTestWorker(t)
	w.transitionTo(model.Module0, model.Recording)
	fakes[model.Module0].ring.Feed(time.Now())

	w.goIdle(model.Module0)
	if fakes[model.Module0].idleCalls != 1 {
		t.Fatalf("idleCalls = %d, want 1", fakes[model.Module0].idleCalls)
	}
	if got := w.Mode(model.Module0); got != model.Idle {
		t.Fatalf("mode = %v, want Idle", got)
	}

	w.goIdle(model.Module0) // second call should be a no-op
	if fakes[model.Module0].idleCalls != 1 {
		t.Fatalf("goIdle not idempotent: idleCalls = %d", fakes[model.Module0].idleCalls)
	}
}

func TestStepDetectEmitsOnThresholdAndStopsForeground(t *testing.T) {
	w, fakes, sink, _ := newTestWorker(t)
	fakes[model.Module0].rssi = -40 // above threshold
	w.handleTask(Task{Kind: TaskStartDetect, Module: model.Module0, Detect: detectConfig{rssiThreshold: -60, isBackground: false}})

	w.stepDetect(model.Module0)

	if n := waitForCount(t, sink, notify.TypeSignalDetected, 1); n != 1 {
		t.Fatalf("SignalDetected count = %d, want 1", n)
	}
	if got := w.Mode(model.Module0); got != model.Idle {
		t.Fatalf("foreground detect should return to Idle, got %v", got)
	}
}

func TestStepDetectBackgroundKeepsSweeping(t *testing.T) {
	w, fakes, _, _ := newTestWorker(t)
	fakes[model.Module0].rssi = -90 // below threshold: no hit
	w.handleTask(Task{Kind: TaskStartDetect, Module: model.Module0, Detect: detectConfig{rssiThreshold: -60, isBackground: true}})

	w.stepDetect(model.Module0)
	w.mu.Lock()
	idx := w.modules[model.Module0].detectIdx
	w.mu.Unlock()
	if idx != 1 {
		t.Fatalf("detectIdx = %d, want 1 after one sweep step", idx)
	}
	if got := w.Mode(model.Module0); got != model.Detecting {
		t.Fatalf("background detect should stay Detecting, got %v", got)
	}
}

func TestStepRecordWritesPulseFile(t *testing.T) {
	w, fakes, sink, storage := newTestWorker(t)
	cfg := model.RecordingConfig{Module: model.Module0, FreqHz: 433920000, PresetName: "test"}
	w.handleTask(Task{Kind: TaskStartRecord, Module: model.Module0, Record: cfg})

	// stepRecord compares its own real time.Now() against the ring's
	// lastEdge, so anchor the fed samples well in the past rather than
	// feeding a synthetic gap-crossing edge (which would just reset the
	// ring instead of marking it complete).
	ring := &fakes[model.Module0].ring
	base := time.Now().Add(-time.Hour)
	ring.Feed(base)
	ring.Feed(base.Add(100 * time.Microsecond))
	ring.Feed(base.Add(200 * time.Microsecond))

	w.stepRecord(model.Module0)

	if n := waitForCount(t, sink, notify.TypeSignalRecorded, 1); n == 0 {
		t.Fatalf("expected at least one SignalRecorded notification")
	}
	if len(storage.files) == 0 {
		t.Fatalf("expected a pulse file to be created")
	}
}

func TestStepJamAppliesCooldownBetweenBursts(t *testing.T) {
	w, fakes, _, _ := newTestWorker(t)
	cfg := model.JammingConfig{Module: model.Module0, FreqHz: 433920000, DurationMs: 1, CooldownMs: 50, Pattern: model.JamContinuous}
	w.handleTask(Task{Kind: TaskStartJam, Module: model.Module0, Jam: cfg})

	w.stepJam(model.Module0)
	w.mu.Lock()
	cooling := w.modules[model.Module0].jamCoolingDown
	w.mu.Unlock()
	if !cooling {
		t.Fatalf("expected jammer to enter cooldown after one burst")
	}
	if len(fakes[model.Module0].writes) == 0 {
		t.Fatalf("expected at least one WriteLine call during jam burst")
	}

	// Immediately stepping again should be a no-op: still cooling down.
	w.stepJam(model.Module0)
	w.mu.Lock()
	stillCooling := w.modules[model.Module0].jamCoolingDown
	w.mu.Unlock()
	if !stillCooling {
		t.Fatalf("expected cooldown to still be active before CooldownMs elapses")
	}
}

func TestStepLiveDecodeFeedsRouterOnCompletedCapture(t *testing.T) {
	// newTestWorker wires a Router with no registered decoders, so this
	// asserts indirectly: stepLiveDecode must not panic feeding it and
	// must drain (clear) a completed ring either way.
	w, fakes, _, _ := newTestWorker(t)
	w.handleTask(Task{Kind: TaskStartLiveDecode, Module: model.Module0, Record: model.RecordingConfig{FreqHz: 433920000}})

	ring := &fakes[model.Module0].ring
	base := time.Now().Add(-time.Hour)
	ring.Feed(base)
	ring.Feed(base.Add(100 * time.Microsecond))
	ring.Feed(base.Add(200 * time.Microsecond))

	w.stepLiveDecode(model.Module0)
	if ring.Size() != 0 {
		t.Fatalf("expected ring to be drained after stepLiveDecode")
	}
}

func TestResetForTransmitThenTransmitDrivesOutputPin(t *testing.T) {
	w, fakes, _, _ := newTestWorker(t)
	// Start from a non-Idle mode, as if a prior consumer left the radio
	// in RX, so ResetForTransmit's leading goIdle has something to do.
	w.transitionTo(model.Module0, model.Detecting)

	if err := w.ResetForTransmit(model.Module0, 433920000); err != nil {
		t.Fatalf("ResetForTransmit: %v", err)
	}
	if fakes[model.Module0].idleCalls != 1 {
		t.Fatalf("ResetForTransmit should idle the module first, idleCalls=%d", fakes[model.Module0].idleCalls)
	}
	if got := w.Mode(model.Module0); got != model.Transmitting {
		t.Fatalf("mode = %v, want Transmitting", got)
	}

	pulses := []model.Pulse{500, -500, 300, -300}
	if err := w.Transmit(model.Module0, pulses); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	if len(fakes[model.Module0].writes) != len(pulses) {
		t.Fatalf("writes = %d, want %d", len(fakes[model.Module0].writes), len(pulses))
	}
}

func TestBusAcquireTimesOutWhenHeld(t *testing.T) {
	b := NewBus()
	release, err := b.Acquire()
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := b.Acquire()
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrBusTimeout) {
			t.Fatalf("err = %v, want ErrBusTimeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second Acquire did not return within the expected timeout window")
	}
}

func TestBusRequestExclusiveParksRegisteredPeers(t *testing.T) {
	b := NewBus()
	parked := false
	b.RegisterParker(func() error {
		parked = true
		return nil
	})
	err := b.RequestExclusive(func() error { return nil })
	if err != nil {
		t.Fatalf("RequestExclusive: %v", err)
	}
	if !parked {
		t.Fatalf("expected registered parker to be invoked")
	}
}

func TestEnqueueTaskDropsOldestWhenSaturated(t *testing.T) {
	w, _, _, _ := newTestWorker(t)
	for i := 0; i < taskQueueCapacity+4; i++ {
		w.GoIdle(model.Module0)
	}
	if len(w.tasks) != taskQueueCapacity {
		t.Fatalf("queue length = %d, want capacity %d", len(w.tasks), taskQueueCapacity)
	}
}

func TestBeginEndExecutingSuppressesHeartbeat(t *testing.T) {
	w, _, _, _ := newTestWorker(t)
	w.BeginExecuting()
	if !w.executing {
		t.Fatalf("expected executing=true after BeginExecuting")
	}
	w.EndExecuting()
	if w.executing {
		t.Fatalf("expected executing=false after EndExecuting")
	}
}
