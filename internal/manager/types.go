package manager

import (
	"time"

	"llamabind/internal/binding"
)

// State represents lifecycle state of the manager/instances.
type State string

const (
	StateReady    State = "ready"
	StateLoading  State = "loading"
	StateDraining State = "draining"
	StateError    State = "error"
)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State   State
	Current string
	Err     string
}

// Instance is a loaded model (one per model id).
type Instance struct {
	ID        string
	State     State
	LastUsed  time.Time
	EstMB     int
	Engine    string
	StateSize int
	EmbedSize int
	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight operation
	queueCh chan struct{} // buffered: queue slots

	bound  *binding.BoundModel
	closed bool // set under Manager.mu once bound has been released
}
