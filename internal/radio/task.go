package radio

import "github.com/evilcrow/subghz-gadget/internal/model"

// TaskKind tags a Task's variant (spec.md §3: "Task (work item for
// the Worker). A tagged variant").
type TaskKind int

const (
	TaskGoIdle TaskKind = iota
	TaskStartDetect
	TaskStopDetect
	TaskStartRecord
	TaskStopRecord
	TaskTransmit
	TaskStartAnalyzer
	TaskStopAnalyzer
	TaskStartJam
	TaskStopJam
	TaskStartLiveDecode
	TaskStopLiveDecode
)

// Task is deep-copied into the Worker's queue by the caller before
// Enqueue returns — no field here is a pointer into caller-owned
// memory, so no borrowed reference survives across the queue (spec.md
// §3).
type Task struct {
	Kind   TaskKind
	Module model.Module

	Detect  detectConfig
	Record  model.RecordingConfig
	Analyze analyzeConfig
	Jam     model.JammingConfig

	// Transmit fields.
	Filename string
	Repeat   uint16
	PathType model.PathType
}

// taskQueueCapacity bounds the Worker's inbound Task queue; a full
// queue means the caller is issuing commands faster than one 10 ms
// tick can drain them, which should never happen given the dispatcher
// processes one command at a time.
const taskQueueCapacity = 16

// enqueueTask is the non-exported channel send shared by every public
// Start*/Stop*/GoIdle helper on Worker.
func (w *Worker) enqueueTask(t Task) {
	select {
	case w.tasks <- t:
	default:
		// Queue saturated: drop the oldest command rather than block
		// the caller, matching notify.Queue's saturation policy.
		select {
		case <-w.tasks:
		default:
		}
		w.tasks <- t
	}
}

// GoIdle requests module return to Idle, draining its current mode
// (spec.md §5: "GoIdle drains current mode"). Idempotent.
func (w *Worker) GoIdle(module model.Module) {
	w.enqueueTask(Task{Kind: TaskGoIdle, Module: module})
}

func (w *Worker) StartDetect(module model.Module, rssiThreshold int16, isBackground bool) {
	w.enqueueTask(Task{Kind: TaskStartDetect, Module: module, Detect: detectConfig{rssiThreshold, isBackground}})
}

func (w *Worker) StopDetect(module model.Module) {
	w.enqueueTask(Task{Kind: TaskStopDetect, Module: module})
}

func (w *Worker) StartRecord(module model.Module, cfg model.RecordingConfig) {
	cfg.Module = module
	w.enqueueTask(Task{Kind: TaskStartRecord, Module: module, Record: cfg})
}

func (w *Worker) StopRecord(module model.Module) {
	w.enqueueTask(Task{Kind: TaskStopRecord, Module: module})
}

func (w *Worker) StartAnalyzer(module model.Module, startFreq, endFreq, step uint32, dwellMs uint16) {
	w.enqueueTask(Task{Kind: TaskStartAnalyzer, Module: module, Analyze: analyzeConfig{startFreq, endFreq, step, dwellMs}})
}

func (w *Worker) StopAnalyzer(module model.Module) {
	w.enqueueTask(Task{Kind: TaskStopAnalyzer, Module: module})
}

func (w *Worker) StartJam(module model.Module, cfg model.JammingConfig) {
	cfg.Module = module
	w.enqueueTask(Task{Kind: TaskStartJam, Module: module, Jam: cfg})
}

func (w *Worker) StopJam(module model.Module) {
	w.enqueueTask(Task{Kind: TaskStopJam, Module: module})
}

func (w *Worker) StartLiveDecode(module model.Module, cfg model.RecordingConfig) {
	cfg.Module = module
	w.enqueueTask(Task{Kind: TaskStartLiveDecode, Module: module, Record: cfg})
}

func (w *Worker) StopLiveDecode(module model.Module) {
	w.enqueueTask(Task{Kind: TaskStopLiveDecode, Module: module})
}

// TransmitFile enqueues a Transmission handler run against a stored
// pulse file (spec.md §4.2). The Worker's mode stays Transmitting for
// the handler's whole duration, so unlike the other Start* calls this
// one doesn't return until queued — the handler itself runs
// asynchronously on the Worker loop. Named distinctly from Transmit,
// which satisfies bruteforce.Transmitter against an in-memory pulse
// list rather than a stored file (internal/radio/transmit.go).
func (w *Worker) TransmitFile(module model.Module, filename string, pathType model.PathType, repeat uint16) {
	if repeat == 0 {
		repeat = 1
	}
	w.enqueueTask(Task{Kind: TaskTransmit, Module: module, Filename: filename, PathType: pathType, Repeat: repeat})
}
