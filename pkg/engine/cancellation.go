package engine

import (
	"context"
	"sync"
)

// CancelRegistry tracks the cancel function of every run the worker is
// currently executing, so a cancel request can reach the in-flight run.
type CancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

func (r *CancelRegistry) Register(runID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancels[runID] = cancel
}

func (r *CancelRegistry) Remove(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.cancels, runID)
}

// Cancel fires the run's cancel function if the run is in flight here.
// Cancellation is fire-and-forget: it reports whether the run was found, not
// whether it stopped.
func (r *CancelRegistry) Cancel(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancel, ok := r.cancels[runID]
	if ok {
		cancel()
	}

	return ok
}
