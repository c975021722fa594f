package usecase

import (
	"sync"
	"time"

	"github.com/skyyMo/skynet-ai/internal/domain"
)

// RunState guards the single pipeline pass that may run at a time and remembers how the
// last one went. Every entry point that can mark the ledger goes through it.
type RunState struct {
	mu      sync.Mutex
	running bool
	trigger domain.Trigger
	started time.Time
	last    *domain.PassSummary
}

// RunStatus is a point-in-time view of a RunState.
type RunStatus struct {
	Running   bool                `json:"running"`
	Trigger   domain.Trigger      `json:"trigger,omitempty"`
	StartedAt time.Time           `json:"startedAt,omitempty"`
	LastPass  *domain.PassSummary `json:"lastPass,omitempty"`
}

// NewRunState returns an idle state.
func NewRunState() *RunState {
	return &RunState{}
}

// TryAcquire claims the pass slot. It fails with ErrPassInProgress while another pass runs.
func (r *RunState) TryAcquire(trigger domain.Trigger, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return domain.ErrPassInProgress
	}
	r.running = true
	r.trigger = trigger
	r.started = now
	return nil
}

// Release frees the slot and records the finished pass.
func (r *RunState) Release(summary domain.PassSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	r.trigger = ""
	r.started = time.Time{}
	summary.Stories = nil
	r.last = &summary
}

// Status reports whether a pass is running and the last finished one.
func (r *RunState) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := RunStatus{Running: r.running, Trigger: r.trigger, StartedAt: r.started}
	if r.last != nil {
		last := *r.last
		st.LastPass = &last
	}
	return st
}
