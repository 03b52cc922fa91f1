package types

import (
	"time"

	latcherr "github.com/latch-ci/latch/internal/errors"
)

// JobStatus represents the lifecycle state of a job instance.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Valid returns true if this is a recognized job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusSucceeded,
		JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if this status is final.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCancelled
}

// CanTransitionTo returns true if moving from s to target is a legal,
// forward-only transition. Terminal states accept nothing.
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	switch s {
	case JobStatusPending:
		return target == JobStatusRunning || target == JobStatusCancelled
	case JobStatusRunning:
		return target.IsTerminal()
	}
	return false
}

// StepFailure records the first failing step of a job instance.
type StepFailure struct {
	Step     string `yaml:"step"`
	Message  string `yaml:"message"`
	ExitCode int    `yaml:"exit_code,omitempty"`
	Output   string `yaml:"output,omitempty"`
}

// JobInstance is one concrete, fully parameterized unit of work derived
// from the matrix. A single worker executes its steps in order.
type JobInstance struct {
	// Name is the rendered display name, job name plus axis values in
	// declaration order, e.g. "test (ubuntu, 3.11)".
	Name string `yaml:"name"`

	// Job is the owning job's name in the pipeline definition.
	Job string `yaml:"job"`

	// Assignment maps axis name to the chosen value.
	Assignment map[string]string `yaml:"assignment,omitempty"`

	// AxisOrder preserves axis declaration order for reproducible output.
	AxisOrder []string `yaml:"axis_order,omitempty"`

	Steps []Step `yaml:"steps"`

	// Env holds job-level environment overrides.
	Env map[string]string `yaml:"env,omitempty"`

	Status    JobStatus  `yaml:"status"`
	StartedAt *time.Time `yaml:"started_at,omitempty"`
	DoneAt    *time.Time `yaml:"done_at,omitempty"`

	// FirstFailure identifies the first failing step, for diagnostics.
	// Set even when the failing step was continue-on-error.
	FirstFailure *StepFailure `yaml:"first_failure,omitempty"`
}

// Start marks the instance as running.
func (j *JobInstance) Start() error {
	if !j.Status.CanTransitionTo(JobStatusRunning) {
		return latcherr.Newf(latcherr.CodeRunInvalidTransition, "job %s: cannot start in status %s", j.Name, j.Status)
	}
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	return nil
}

// Succeed marks the instance as succeeded.
func (j *JobInstance) Succeed() error {
	return j.finish(JobStatusSucceeded)
}

// Fail marks the instance as failed, recording the failure if it is the
// first one observed.
func (j *JobInstance) Fail(failure *StepFailure) error {
	j.RecordFailure(failure)
	return j.finish(JobStatusFailed)
}

// Cancel marks the instance as cancelled. Pending instances may be
// cancelled without ever running.
func (j *JobInstance) Cancel() error {
	if !j.Status.CanTransitionTo(JobStatusCancelled) {
		return latcherr.Newf(latcherr.CodeRunInvalidTransition, "job %s: cannot cancel in status %s", j.Name, j.Status)
	}
	now := time.Now()
	j.Status = JobStatusCancelled
	j.DoneAt = &now
	return nil
}

// RecordFailure stores the failure unless an earlier one is already
// recorded. Used for continue-on-error steps that fail without ending
// the job.
func (j *JobInstance) RecordFailure(failure *StepFailure) {
	if j.FirstFailure == nil && failure != nil {
		j.FirstFailure = failure
	}
}

func (j *JobInstance) finish(target JobStatus) error {
	if !j.Status.CanTransitionTo(target) {
		return latcherr.Newf(latcherr.CodeRunInvalidTransition, "job %s: cannot transition %s -> %s", j.Name, j.Status, target)
	}
	now := time.Now()
	j.Status = target
	j.DoneAt = &now
	return nil
}
