package alerter

import (
	"sync"
	"time"

	"github.com/netspec/alertbatch/internal/types"
)

// alertSet is one type's identity-keyed set in a buffer generation.
type alertSet struct {
	mu    sync.Mutex
	items types.AlertSet
}

// toggle stores a, folding it into an existing entry with the same key.
// Returns true when a was a repeat occurrence.
func (s *alertSet) toggle(a types.Alert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.Key()
	existing, repeat := s.items[key]
	if repeat {
		if existing.FiredAt.Before(a.FiredAt) {
			a.FiredAt = existing.FiredAt
		}
		if existing.LastSeen.After(a.LastSeen) {
			a.LastSeen = existing.LastSeen
		}
		a.Occurrences += existing.Occurrences
	}
	s.items[key] = a
	return repeat
}

// generation is the live content of a Buffer between two swaps.
type generation struct {
	sets sync.Map // types.AlertType -> *alertSet
}

// setFor returns the set for t, creating it exactly once.
func (g *generation) setFor(t types.AlertType) *alertSet {
	if v, ok := g.sets.Load(t); ok {
		return v.(*alertSet)
	}
	v, _ := g.sets.LoadOrStore(t, &alertSet{items: make(types.AlertSet)})
	return v.(*alertSet)
}

// Buffer accumulates pending alerts per type until the next swap.
//
// Ingest holds the read side of mu for the duration of one insertion, so
// producers never wait on each other except within the same type's set.
// Swap takes the write side: every ingest lands in exactly one generation
// and a swapped-out generation has no producer left holding it.
type Buffer struct {
	mu      sync.RWMutex
	current *generation
	now     func() time.Time
}

// NewBuffer creates an empty buffer
func NewBuffer() *Buffer {
	return &Buffer{
		current: &generation{},
		now:     time.Now,
	}
}

// Ingest adds an alert to the pending set for its type. A repeat of an
// already pending key refreshes the stored copy and bumps its occurrence
// count instead of adding a second entry.
func (b *Buffer) Ingest(a types.Alert) {
	if a.FiredAt.IsZero() {
		a.FiredAt = b.now()
	}
	if a.LastSeen.IsZero() {
		a.LastSeen = a.FiredAt
	}
	if a.Occurrences <= 0 {
		a.Occurrences = 1
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.current.setFor(a.Type).toggle(a) {
		alertsRepeated.Inc()
	}
}

// Swap detaches everything pending and leaves an empty buffer behind.
// It returns nil when nothing was pending.
func (b *Buffer) Swap() types.AlertsByType {
	b.mu.Lock()
	old := b.current
	b.current = &generation{}
	b.mu.Unlock()

	snapshot := make(types.AlertsByType)
	old.sets.Range(func(k, v any) bool {
		set := v.(*alertSet)
		set.mu.Lock()
		if len(set.items) > 0 {
			snapshot[k.(types.AlertType)] = set.items
		}
		set.mu.Unlock()
		return true
	})

	if len(snapshot) == 0 {
		return nil
	}
	return snapshot
}

// Pending returns the number of pending alerts per type.
func (b *Buffer) Pending() map[types.AlertType]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[types.AlertType]int)
	b.current.sets.Range(func(k, v any) bool {
		set := v.(*alertSet)
		set.mu.Lock()
		out[k.(types.AlertType)] = len(set.items)
		set.mu.Unlock()
		return true
	})
	return out
}
