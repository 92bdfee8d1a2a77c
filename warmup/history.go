package warmup

import (
	"sort"
	"sync"

	"github.com/graphgate/graphgate/operation"
)

const defaultHistorySize = 1024

// History is a bounded frequency table of recently planned operations.
// It implements planner.Recorder. When full, recording a new operation
// evicts the least-frequently seen one, so sustained traffic keeps the
// operations that matter.
type History struct {
	mu      sync.Mutex
	max     int
	entries map[histKey]*histEntry
}

type histKey struct {
	query string
	name  string
}

type histEntry struct {
	op    operation.Operation
	count uint64
}

// NewHistory creates a History holding at most max distinct
// operations. A non-positive max falls back to the default of 1024.
func NewHistory(max int) *History {
	if max <= 0 {
		max = defaultHistorySize
	}
	return &History{
		max:     max,
		entries: make(map[histKey]*histEntry),
	}
}

// Record notes one use of op.
func (h *History) Record(op operation.Operation) {
	k := histKey{query: op.Query, name: op.Name}

	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.entries[k]; ok {
		e.count++
		return
	}

	if len(h.entries) >= h.max {
		h.evictColdestLocked()
	}
	h.entries[k] = &histEntry{op: op, count: 1}
}

// Top returns the n most frequently recorded operations, most
// frequent first. Fewer are returned when the history holds fewer.
func (h *History) Top(n int) []operation.Operation {
	h.mu.Lock()
	all := make([]*histEntry, 0, len(h.entries))
	for _, e := range h.entries {
		all = append(all, e)
	}
	h.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].count > all[j].count })

	if n > len(all) {
		n = len(all)
	}
	ops := make([]operation.Operation, n)
	for i := 0; i < n; i++ {
		ops[i] = all[i].op
	}
	return ops
}

// Len returns the number of distinct operations recorded.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *History) evictColdestLocked() {
	var coldest histKey
	var min uint64
	first := true
	for k, e := range h.entries {
		if first || e.count < min {
			coldest, min, first = k, e.count, false
		}
	}
	if !first {
		delete(h.entries, coldest)
	}
}
