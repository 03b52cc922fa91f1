// Package types defines the core data model shared across latch packages:
// events, runs, job instances, steps, and their status state machines.
package types

import (
	"time"
)

// EventKind identifies what produced an event.
type EventKind string

const (
	EventPush        EventKind = "push"
	EventPullRequest EventKind = "pull_request"
	EventSchedule    EventKind = "schedule"
)

// Valid returns true if this is a recognized event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventPush, EventPullRequest, EventSchedule:
		return true
	}
	return false
}

// Event is an immutable trigger produced by an external source
// (webhook delivery or the schedule ticker).
type Event struct {
	Kind       EventKind `yaml:"kind" json:"kind"`
	Ref        string    `yaml:"ref" json:"ref"`
	Repository string    `yaml:"repository" json:"repository"`
	Time       time.Time `yaml:"time" json:"time"`
}

// ConcurrencyGroup limits how many runs may be live for a rendered key.
type ConcurrencyGroup struct {
	Key              string `yaml:"key"`
	CancelInProgress bool   `yaml:"cancel_in_progress"`
}

// RunRequest is produced by the trigger evaluator for a qualifying event.
// It carries everything the concurrency gate needs to admit a run.
type RunRequest struct {
	Event    Event
	Pipeline string
	Group    ConcurrencyGroup
}
