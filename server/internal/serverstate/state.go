package serverstate

import "sync/atomic"

const (
	StatusNotReady = "not_ready"
	StatusReady    = "ready"
	StatusDraining = "draining"
)

// State holds the server status and draining flag. Both fields are written
// together so readers observe a consistent snapshot.
type State struct {
	Status   string `json:"status"`
	Draining bool   `json:"draining"`
}

// Store persists the server state. The memory store serves a single process;
// the redis store lets several instances behind a balancer drain together.
type Store interface {
	Load() State
	Store(State)
}

var active atomic.Pointer[storeHolder]

type storeHolder struct{ Store }

func init() {
	active.Store(&storeHolder{NewMemoryStore()})
}

func current() Store { return active.Load().Store }

// UseStore replaces the active Store. Nil is ignored.
func UseStore(s Store) {
	if s != nil {
		active.Store(&storeHolder{s})
	}
}

type memoryStore struct {
	v atomic.Value
}

// NewMemoryStore returns a memory-backed Store initialized to not_ready.
func NewMemoryStore() Store {
	ms := &memoryStore{}
	ms.v.Store(State{Status: StatusNotReady})
	return ms
}

func (m *memoryStore) Load() State {
	if st, ok := m.v.Load().(State); ok {
		return st
	}
	return State{Status: "unknown"}
}

func (m *memoryStore) Store(s State) {
	m.v.Store(s)
}

// Snapshot returns the full current state.
func Snapshot() State {
	return current().Load()
}

// SetState updates the status string. It is ignored once draining started.
func SetState(status string) {
	s := current()
	st := s.Load()
	if st.Draining {
		return
	}
	st.Status = status
	s.Store(st)
}

// Reset stores status and clears a drain left by a previous run. Call it
// once at startup; shared stores keep the state of the last shutdown.
func Reset(status string) {
	current().Store(State{Status: status})
}

// GetState returns the current status.
func GetState() string {
	return current().Load().Status
}

// StartDrain marks the server as draining.
func StartDrain() {
	current().Store(State{Status: StatusDraining, Draining: true})
}

// IsDraining reports whether the server is draining.
func IsDraining() bool {
	return current().Load().Draining
}
