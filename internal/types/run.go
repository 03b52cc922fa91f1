package types

import (
	"sync"
	"time"

	latcherr "github.com/latch-ci/latch/internal/errors"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Valid returns true if this is a recognized run status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded,
		RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if this status is final.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusCancelled
}

// CanTransitionTo returns true if moving from s to target is legal.
func (s RunStatus) CanTransitionTo(target RunStatus) bool {
	switch s {
	case RunStatusPending:
		return target == RunStatusRunning || target == RunStatusCancelled
	case RunStatusRunning:
		return target.IsTerminal()
	}
	return false
}

// Run is one complete pipeline execution triggered by a qualifying event.
// Status transitions are guarded by an internal mutex because the
// concurrency gate may cancel a run while the engine is driving it.
type Run struct {
	ID       string           `yaml:"id"`
	Pipeline string           `yaml:"pipeline"`
	Event    Event            `yaml:"event"`
	Group    ConcurrencyGroup `yaml:"group"`

	Status    RunStatus  `yaml:"status"`
	StartedAt time.Time  `yaml:"started_at"`
	DoneAt    *time.Time `yaml:"done_at,omitempty"`

	// FailFast controls sibling cancellation on the first job failure.
	FailFast bool `yaml:"fail_fast"`

	// Superseded marks a run whose group holder slot was taken over by a
	// newer run without cancellation. It keeps running and reports its
	// outcome, but no longer gates the group.
	Superseded bool `yaml:"superseded,omitempty"`

	Jobs []*JobInstance `yaml:"jobs"`

	mu sync.Mutex
}

// NewRun creates a pending run for an admitted request.
func NewRun(id string, req *RunRequest) *Run {
	return &Run{
		ID:        id,
		Pipeline:  req.Pipeline,
		Event:     req.Event,
		Group:     req.Group,
		Status:    RunStatusPending,
		StartedAt: time.Now(),
	}
}

// CurrentStatus returns the status under the run's lock.
func (r *Run) CurrentStatus() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Status
}

// Start marks the run as running.
func (r *Run) Start() error {
	return r.transition(RunStatusRunning)
}

// Finish moves the run to the given terminal status. If the run is
// already terminal (for example cancelled by the concurrency gate while
// jobs were draining) the earlier status wins and an error is returned.
func (r *Run) Finish(target RunStatus) error {
	if !target.IsTerminal() {
		return latcherr.Newf(latcherr.CodeRunInvalidTransition, "run %s: %s is not a terminal status", r.ID, target)
	}
	return r.transition(target)
}

// Cancel marks the run as cancelled. Safe to call from the gate while
// the run is pending or running; a terminal run is left untouched.
func (r *Run) Cancel() error {
	return r.transition(RunStatusCancelled)
}

// MarkSuperseded flags the run as superseded for gating purposes.
func (r *Run) MarkSuperseded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Superseded = true
}

// IsSuperseded reads the superseded flag under the run's lock.
func (r *Run) IsSuperseded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Superseded
}

// Snapshot returns a copy of the run taken under its lock. The
// persistence path marshals the copy, so the gate may keep mutating
// status fields on the live run while a save is in flight. Job
// instances are shared, not copied: they are only mutated by the run's
// own worker goroutines, which are quiesced at every save point.
func (r *Run) Snapshot() *Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := &Run{
		ID:         r.ID,
		Pipeline:   r.Pipeline,
		Event:      r.Event,
		Group:      r.Group,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		FailFast:   r.FailFast,
		Superseded: r.Superseded,
		Jobs:       append([]*JobInstance(nil), r.Jobs...),
	}
	if r.DoneAt != nil {
		done := *r.DoneAt
		out.DoneAt = &done
	}
	return out
}

// IsTerminal reports whether the run has reached a final status.
func (r *Run) IsTerminal() bool {
	return r.CurrentStatus().IsTerminal()
}

func (r *Run) transition(target RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.Status.CanTransitionTo(target) {
		return latcherr.Newf(latcherr.CodeRunInvalidTransition, "run %s: cannot transition %s -> %s", r.ID, r.Status, target)
	}
	r.Status = target
	if target.IsTerminal() {
		now := time.Now()
		r.DoneAt = &now
	}
	return nil
}
