// Package pipeline defines the declarative pipeline description: what
// triggers a run, how the job matrix expands, and which steps each job
// executes. Expansion and execution live elsewhere; this package is only
// the data and its validation.
package pipeline

import (
	"github.com/latch-ci/latch/internal/types"
)

// Triggers configures which events start a run.
type Triggers struct {
	// Events lists the qualifying event kinds.
	Events []types.EventKind `yaml:"events"`

	// Schedule holds cron expressions (standard 5-field). A schedule
	// event qualifies only when some expression matches its timestamp.
	Schedule []string `yaml:"schedule,omitempty"`
}

// Concurrency configures the run's concurrency group.
type Concurrency struct {
	// Group is a key template; ${ref} and ${repository} are substituted
	// from the triggering event.
	Group string `yaml:"group"`

	CancelInProgress bool `yaml:"cancel-in-progress"`
}

// Axis is one named dimension of the job matrix.
type Axis struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

// Exclusion removes matrix combinations. A candidate is dropped when
// every constrained axis matches its assignment.
type Exclusion map[string]string

// Matrix declares the axes and exclusions of a job.
type Matrix struct {
	Axes    []Axis      `yaml:"axes"`
	Exclude []Exclusion `yaml:"exclude,omitempty"`
}

// Job is one named job in the pipeline. Without a matrix it yields a
// single instance.
type Job struct {
	Name     string            `yaml:"name"`
	Matrix   *Matrix           `yaml:"matrix,omitempty"`
	FailFast *bool             `yaml:"fail-fast,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Steps    []types.Step      `yaml:"steps"`
}

// FailFastEnabled reports the effective fail-fast policy; unset means true.
func (j *Job) FailFastEnabled() bool {
	if j.FailFast == nil {
		return true
	}
	return *j.FailFast
}

// Pipeline is a complete pipeline definition.
type Pipeline struct {
	Name        string      `yaml:"name"`
	On          Triggers    `yaml:"on"`
	Concurrency Concurrency `yaml:"concurrency"`
	Jobs        []Job       `yaml:"jobs"`
}

// Job returns the named job, or nil.
func (p *Pipeline) Job(name string) *Job {
	for i := range p.Jobs {
		if p.Jobs[i].Name == name {
			return &p.Jobs[i]
		}
	}
	return nil
}

// Triggered reports whether the given event kind is configured.
func (p *Pipeline) Triggered(kind types.EventKind) bool {
	for _, k := range p.On.Events {
		if k == kind {
			return true
		}
	}
	return false
}
