package protocol

import (
	"sync"
	"time"

	"github.com/evilcrow/subghz-gadget/internal/model"
)

// HistoryCapacity is the circular buffer size (spec.md §3).
const HistoryCapacity = 20

// DedupWindow is the time window within which two decodes hashing to
// the same (data, data2, protocol) collapse into one entry with a
// refreshed timestamp (spec.md §3, §8).
const DedupWindow = 500 * time.Millisecond

// History is the decode-history circular buffer, synchronized with a
// single short-held mutex around add/get/count (spec.md §5).
type History struct {
	mu      sync.Mutex
	entries []model.HistoryEntry // ring, oldest first
}

func NewHistory() *History {
	return &History{entries: make([]model.HistoryEntry, 0, HistoryCapacity)}
}

func hashKey(r model.DecodedResult) uint64 {
	h := uint64(1469598103934665603) // FNV-1a offset basis
	mix := func(v uint64) {
		h ^= v
		h *= 1099511628211
	}
	mix(r.Data)
	mix(r.Data2)
	for _, c := range r.Protocol {
		mix(uint64(c))
	}
	return h
}

// Add offers a new result to the history. It returns true if this is
// a genuinely new entry (and thus should be notified to the client),
// false if it was deduplicated against a recent entry with the same
// hash within DedupWindow, whose timestamp is refreshed in place
// (spec.md §3, §8).
func (h *History) Add(r model.DecodedResult, now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := hashKey(r)
	for i := range h.entries {
		e := &h.entries[i]
		if hashKey(e.Result) == key && now.Sub(e.Timestamp) <= DedupWindow {
			e.Timestamp = now
			return false
		}
	}

	entry := model.HistoryEntry{Result: r, Timestamp: now}
	if len(h.entries) >= HistoryCapacity {
		h.entries = append(h.entries[1:], entry)
	} else {
		h.entries = append(h.entries, entry)
	}
	return true
}

// Count returns the number of entries currently buffered.
func (h *History) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Get returns a snapshot copy of the buffered entries, oldest first.
func (h *History) Get() []model.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Clear empties the buffer (ProtoPirate sub-opcode 0x05, "Clear
// history", original_source/include/ProtoPirateCommands.h).
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = h.entries[:0]
}
