// Package serverstate tracks the gateway lifecycle (not ready, ready,
// draining) behind a pluggable store so replicas can publish it to Redis.
package serverstate

import (
	"sync"
	"sync/atomic"
	"time"
)

// Lifecycle statuses.
const (
	StatusNotReady = "not_ready"
	StatusReady    = "ready"
	StatusDraining = "draining"
	StatusUnknown  = "unknown"
)

// State is the lifecycle snapshot of one gateway instance. Fields change
// together so readers never see a draining status without the flag.
type State struct {
	Status    string    `json:"status"`
	Draining  bool      `json:"draining"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists State.
type Store interface {
	Load() State
	Store(State)
}

var (
	mu     sync.Mutex
	active Store = NewMemoryStore()
)

// UseStore replaces the active Store. A nil store is ignored.
func UseStore(s Store) {
	if s == nil {
		return
	}
	mu.Lock()
	active = s
	mu.Unlock()
}

func current() Store {
	mu.Lock()
	defer mu.Unlock()
	return active
}

type memoryStore struct {
	v atomic.Value
}

// NewMemoryStore returns a process-local Store starting as not ready.
func NewMemoryStore() Store {
	ms := &memoryStore{}
	ms.v.Store(State{Status: StatusNotReady})
	return ms
}

func (m *memoryStore) Load() State {
	if st, ok := m.v.Load().(State); ok {
		return st
	}
	return State{Status: StatusUnknown}
}

func (m *memoryStore) Store(s State) { m.v.Store(s) }

func update(fn func(*State)) {
	mu.Lock()
	defer mu.Unlock()
	st := active.Load()
	fn(&st)
	st.UpdatedAt = time.Now().UTC()
	active.Store(st)
}

// SetState updates the status string.
func SetState(status string) {
	update(func(st *State) { st.Status = status })
}

// GetState returns the current status.
func GetState() string { return current().Load().Status }

// Snapshot returns the full current state.
func Snapshot() State { return current().Load() }

// StartDrain marks the instance as draining. It is never undone.
func StartDrain() {
	update(func(st *State) {
		st.Draining = true
		st.Status = StatusDraining
	})
}

// IsDraining reports whether StartDrain was called.
func IsDraining() bool { return current().Load().Draining }
