package bruteforce

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/notify"
)

// fakeTransmitter records every Transmit call instead of touching a
// radio; ResetForTransmit always succeeds.
type fakeTransmitter struct {
	mu    sync.Mutex
	sent  int
	resets int
}

func (f *fakeTransmitter) ResetForTransmit(model.Module, uint32) error {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransmitter) Transmit(model.Module, []model.Pulse) error {
	f.mu.Lock()
	f.sent++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent
}

// fakeSink captures wired notify messages in memory.
type fakeSink struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (s *fakeSink) Emit(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), payload...)
	s.payloads = append(s.payloads, cp)
	return nil
}

func (s *fakeSink) last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.payloads) == 0 {
		return nil
	}
	return s.payloads[len(s.payloads)-1]
}

// memPersister is an in-memory StatePersister for tests.
type memPersister struct {
	mu    sync.Mutex
	state model.AttackState
	have  bool
}

func (p *memPersister) Save(s model.AttackState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state, p.have = s, true
	return nil
}

func (p *memPersister) Load() (model.AttackState, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.have, nil
}

func (p *memPersister) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state, p.have = model.AttackState{}, false
	return nil
}

const linearMenu = 3 // registered as "Linear", 10-bit binary = 1024 codes

func newTestEngine() (*Engine, *fakeTransmitter, *memPersister) {
	tx := &fakeTransmitter{}
	persist := &memPersister{}
	sink := notify.NewQueue(&fakeSink{})
	return NewEngine(tx, sink, persist), tx, persist
}

func TestStartRunsToCompletion(t *testing.T) {
	e, tx, persist := newTestEngine()
	if err := e.Start(linearMenu, 1000, Options{GlobalRepeats: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.Wait()
	if tx.count() == 0 {
		t.Fatal("expected at least one transmit")
	}
	if _, ok, _ := persist.Load(); ok {
		t.Fatal("completed attack must not leave persisted state")
	}
}

func TestStartRejectsConcurrentRun(t *testing.T) {
	e, _, _ := newTestEngine()
	if err := e.Start(linearMenu, 0, Options{GlobalRepeats: 1, InterFrameDelayMs: 5}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Start(linearMenu, 0, Options{}); err != ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	e.Pause()
}

func TestPauseThenResumeContinuesNearSavedCode(t *testing.T) {
	e, _, persist := newTestEngine()
	if err := e.Start(linearMenu, 0, Options{GlobalRepeats: 1, InterFrameDelayMs: 2}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := e.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	saved, ok, _ := persist.Load()
	if !ok {
		t.Fatal("expected persisted state after pause")
	}
	if saved.MenuID != linearMenu {
		t.Fatalf("saved menu = %d, want %d", saved.MenuID, linearMenu)
	}

	resumed, err := e.Resume(Options{GlobalRepeats: 1})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	wantResume := uint32(0)
	if saved.CurrentCode > model.Overlap {
		wantResume = saved.CurrentCode - model.Overlap
	}
	if resumed.CurrentCode != wantResume {
		t.Fatalf("resume code = %d, want %d", resumed.CurrentCode, wantResume)
	}
	e.Wait()
}

func TestCancelPurgesState(t *testing.T) {
	e, _, persist := newTestEngine()
	e.Start(linearMenu, 0, Options{GlobalRepeats: 1, InterFrameDelayMs: 5})
	time.Sleep(5 * time.Millisecond)
	if err := e.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, ok, _ := persist.Load(); ok {
		t.Fatal("Cancel must purge any persisted state")
	}
}

func TestDeBruijnBinaryCoversEverySubstring(t *testing.T) {
	const n = 6
	seq, err := DeBruijnBinary(n)
	if err != nil {
		t.Fatalf("DeBruijnBinary: %v", err)
	}
	if len(seq) != 1<<n {
		t.Fatalf("sequence length = %d, want %d", len(seq), 1<<n)
	}
	seen := make(map[int]bool, 1<<n)
	for i := 0; i < len(seq); i++ {
		v := 0
		for j := 0; j < n; j++ {
			v = (v << 1) | int(seq[(i+j)%len(seq)])
		}
		seen[v] = true
	}
	if len(seen) != 1<<n {
		t.Fatalf("covered %d distinct substrings, want %d", len(seen), 1<<n)
	}
}

func TestDeBruijnBinaryRejectsOutOfRangeOrder(t *testing.T) {
	if _, err := DeBruijnBinary(0); err == nil {
		t.Fatal("expected error for order 0")
	}
	if _, err := DeBruijnBinary(MaxDeBruijnOrder + 1); err == nil {
		t.Fatal("expected error for order above max")
	}
}

func TestCheckHeapBudgetRejectsTooLarge(t *testing.T) {
	if err := CheckHeapBudget(16, 1000); err == nil {
		t.Fatal("expected heap budget error")
	}
	if err := CheckHeapBudget(4, 1<<20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStartCustomDeBruijnValidatesRanges(t *testing.T) {
	e, _, _ := newTestEngine()
	if err := e.StartCustomDeBruijn(0, 100, 2, 433920000, Options{}); err == nil {
		t.Fatal("expected bits validation error")
	}
	if err := e.StartCustomDeBruijn(8, 10, 2, 433920000, Options{}); err == nil {
		t.Fatal("expected te validation error")
	}
	if err := e.StartCustomDeBruijn(8, 100, 20, 433920000, Options{}); err == nil {
		t.Fatal("expected ratio validation error")
	}
	if err := e.StartCustomDeBruijn(8, 100, 2, 433920000, Options{GlobalRepeats: 1}); err != nil {
		t.Fatalf("expected valid custom de Bruijn to start, got %v", err)
	}
	e.Wait()
}

func TestStateRoundTrip(t *testing.T) {
	want := model.AttackState{
		MenuID: 7, CurrentCode: 1234, TotalCodes: 4096,
		InterFrameDelayMs: 10, GlobalRepeats: 3, Timestamp: 1700000000,
		AttackType: model.AttackTristate,
	}
	var buf bytes.Buffer
	if err := WriteState(&buf, want); err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	got, err := ReadState(&buf)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	got.Magic = 0 // not compared; WriteState always stamps the constant
	want.Magic = 0
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}
