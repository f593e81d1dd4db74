package radio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/evilcrow/subghz-gadget/internal/model"
	"github.com/evilcrow/subghz-gadget/internal/notify"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// Storage is the minimal file seam the Worker needs for Recording and
// Transmission: create a fresh pulse file under a path type, or open
// an existing one for streaming read. The real implementation lives
// in internal/fsx; tests substitute an in-memory fake.
type Storage interface {
	Create(pathType model.PathType, relPath string) (io.WriteCloser, error)
	Open(pathType model.PathType, relPath string) (io.ReadCloser, error)
}

// Worker is the CC1101 Worker: a single cooperative loop owning both
// sub-GHz modules (spec.md §4.2). Grounded on the teacher's
// gui.engraverJob — a goroutine driven by a quit channel and polled
// externally — generalized from a one-shot job into a persistent
// control loop with its own inbound work queue.
type Worker struct {
	radios  [model.NumModules]Transceiver
	bus     *Bus
	sink    *notify.Queue
	storage Storage
	router  *protocol.Router

	tasks chan Task
	quit  chan struct{}
	done  chan struct{}

	mu        sync.Mutex
	modules   [model.NumModules]moduleRuntime
	executing bool // isExecuting: suppresses heartbeats mid-handler (spec.md §4.4)
	startedAt time.Time

	lastFreeHeap heapSample
}

// NewWorker wires the two physical radios, the shared bus, the
// outbound notification queue, a file storage seam, and the protocol
// router LiveDecode feeds into.
func NewWorker(radios [model.NumModules]Transceiver, bus *Bus, sink *notify.Queue, storage Storage, router *protocol.Router) *Worker {
	return &Worker{
		radios:  radios,
		bus:     bus,
		sink:    sink,
		storage: storage,
		router:  router,
		tasks:   make(chan Task, taskQueueCapacity),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run drives the cooperative loop until Stop is called. It is meant
// to be launched once, in its own goroutine, for the lifetime of the
// process.
func (w *Worker) Run() {
	defer close(w.done)
	w.startedAt = time.Now()

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()
	heapLog := time.NewTicker(HeapLogInterval)
	defer heapLog.Stop()
	tick := time.NewTicker(tickInterval)
	defer tick.Stop()

	for {
		select {
		case <-w.quit:
			return
		case <-heartbeat.C:
			w.mu.Lock()
			executing := w.executing
			w.mu.Unlock()
			if !executing {
				w.sink.Send(notify.Heartbeat(uint32(time.Since(w.startedAt).Milliseconds())))
			}
		case <-heapLog.C:
			w.logHeapAndFragmentation()
		case t := <-w.tasks:
			w.handleTask(t)
		case <-tick.C:
			w.stepActiveModules()
		}
	}
}

// Stop requests the loop exit and blocks until it has.
func (w *Worker) Stop() {
	close(w.quit)
	<-w.done
}

// BeginExecuting and EndExecuting bracket a dispatcher handler's
// execution, suppressing heartbeat emission for the duration (spec.md
// §4.4's process-wide isExecuting flag).
func (w *Worker) BeginExecuting() { w.mu.Lock(); w.executing = true; w.mu.Unlock() }
func (w *Worker) EndExecuting()   { w.mu.Lock(); w.executing = false; w.mu.Unlock() }

// Mode reports module's current RadioMode.
func (w *Worker) Mode(module model.Module) model.RadioMode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.modules[module].mode
}

// logHeapAndFragmentation emits the periodic heap/fragmentation log
// spec.md §4.2 names, sampled via gopsutil so the brute-force engine's
// CheckHeapBudget has a real number to judge De Bruijn generation
// against (internal/bruteforce.CheckHeapBudget).
func (w *Worker) logHeapAndFragmentation() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Error("radio: heap sample failed", "err", err)
		return
	}
	fragPct := float64(0)
	if vm.Total > 0 {
		fragPct = float64(vm.Total-vm.Available) / float64(vm.Total) * 100
	}
	log.Debug("radio: heap", "freeBytes", vm.Available, "usedPct", fmt.Sprintf("%.1f", fragPct))
	w.lastFreeHeap.set(uint32(vm.Available))
}

// FreeHeapBytes is the most recent gopsutil sample, handed to
// internal/bruteforce.CheckHeapBudget before a De Bruijn generation.
func (w *Worker) FreeHeapBytes() uint32 { return w.lastFreeHeap.get() }

// heapSample is a tiny atomic box so FreeHeapBytes doesn't need the
// main mutex (read from the dispatcher goroutine, written from Run's).
type heapSample struct {
	mu  sync.Mutex
	val uint32
}

func (h *heapSample) set(v uint32) { h.mu.Lock(); h.val = v; h.mu.Unlock() }
func (h *heapSample) get() uint32  { h.mu.Lock(); defer h.mu.Unlock(); return h.val }
