package debug

import (
	"fmt"
	"sync"

	"github.com/dshills/auxlab/internal/engine"
)

// Scope is a handle to an engine execution scope. Handles carry a
// generation: when the engine scope behind a handle ends, the handle goes
// stale, and a later scope that reuses the same raw engine identity gets a
// new generation. The zero Scope is never valid.
type Scope struct {
	index      uint32
	generation uint32
}

// IsZero reports whether s is the invalid zero handle.
func (s Scope) IsZero() bool {
	return s.index == 0
}

// String returns a short label for logs.
func (s Scope) String() string {
	if s.IsZero() {
		return "scope(none)"
	}
	return fmt.Sprintf("scope(%d.%d)", s.index, s.generation)
}

type scopeSlot struct {
	raw        engine.ScopeID
	generation uint32
	activation uint64
	live       bool
}

// ScopeTable mints and invalidates scope handles. Slot 1 is the root scope,
// which stays live until the table is reset.
type ScopeTable struct {
	mu    sync.RWMutex
	slots []scopeSlot
	byRaw map[engine.ScopeID]uint32
}

// NewScopeTable creates an empty table with no root.
func NewScopeTable() *ScopeTable {
	t := &ScopeTable{}
	t.clear()
	return t
}

func (t *ScopeTable) clear() {
	// Slot 0 is reserved so the zero Scope never resolves.
	t.slots = make([]scopeSlot, 1, 8)
	t.byRaw = make(map[engine.ScopeID]uint32)
}

// Reset forgets every handle and mints the root handle for raw.
func (t *ScopeTable) Reset(raw engine.ScopeID) Scope {
	t.mu.Lock()
	defer t.mu.Unlock()

	generation := uint32(1)
	if len(t.slots) > 1 {
		generation = t.slots[1].generation + 1
	}
	t.clear()
	t.slots = append(t.slots, scopeSlot{raw: raw, generation: generation, live: true})
	t.byRaw[raw] = 1
	return Scope{index: 1, generation: generation}
}

// Root returns the root handle, or the zero Scope before Reset.
func (t *ScopeTable) Root() Scope {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.slots) < 2 {
		return Scope{}
	}
	return Scope{index: 1, generation: t.slots[1].generation}
}

// Observe returns the handle for a raw scope reported by the engine. A raw
// scope seen for the first time, or again after its handle was invalidated,
// gets a fresh handle. A non-zero activation that differs from the recorded
// one means a different frame now holds the raw identity, so the old handle
// is invalidated first.
func (t *ScopeTable) Observe(raw engine.ScopeID, activation uint64) Scope {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observe(raw, activation)
}

func (t *ScopeTable) observe(raw engine.ScopeID, activation uint64) Scope {
	idx, ok := t.byRaw[raw]
	if !ok {
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, scopeSlot{raw: raw})
		t.byRaw[raw] = idx
	}
	slot := &t.slots[idx]

	if idx == 1 {
		return Scope{index: idx, generation: slot.generation}
	}
	if slot.live && activation != 0 && slot.activation != 0 && slot.activation != activation {
		slot.live = false
	}
	if !slot.live {
		slot.generation++
		slot.live = true
		slot.activation = activation
	} else if slot.activation == 0 {
		slot.activation = activation
	}
	return Scope{index: idx, generation: slot.generation}
}

// Retain reconciles the table with the frame chain of a pause. Handles whose
// raw scope is not on the chain are invalidated, then every frame is
// observed. The returned handles follow frames order.
func (t *ScopeTable) Retain(frames []engine.Frame) []Scope {
	t.mu.Lock()
	defer t.mu.Unlock()

	onChain := make(map[engine.ScopeID]bool, len(frames))
	for _, f := range frames {
		onChain[f.Scope] = true
	}
	for i := 2; i < len(t.slots); i++ {
		if !onChain[t.slots[i].raw] {
			t.slots[i].live = false
		}
	}

	handles := make([]Scope, len(frames))
	for i, f := range frames {
		handles[i] = t.observe(f.Scope, f.Activation)
	}
	return handles
}

// LeaveAll invalidates every handle except the root.
func (t *ScopeTable) LeaveAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 2; i < len(t.slots); i++ {
		t.slots[i].live = false
	}
}

// IsLive reports whether s still refers to its engine scope.
func (t *ScopeTable) IsLive(s Scope) bool {
	_, ok := t.Raw(s)
	return ok
}

// Raw returns the engine identity behind a live handle.
func (t *ScopeTable) Raw(s Scope) (engine.ScopeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if s.IsZero() || int(s.index) >= len(t.slots) {
		return engine.NoScope, false
	}
	slot := t.slots[s.index]
	if !slot.live || slot.generation != s.generation {
		return engine.NoScope, false
	}
	return slot.raw, true
}
