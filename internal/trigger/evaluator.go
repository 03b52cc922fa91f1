// Package trigger decides whether an incoming event starts a pipeline
// run. A non-matching event is a normal no-op, not a failure.
package trigger

import (
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	latcherr "github.com/latch-ci/latch/internal/errors"
	"github.com/latch-ci/latch/internal/pipeline"
	"github.com/latch-ci/latch/internal/types"
)

// Evaluator holds a pipeline's static trigger configuration.
type Evaluator struct {
	pipeline  *pipeline.Pipeline
	schedules []cron.Schedule
	logger    *slog.Logger
}

// NewEvaluator builds an evaluator, parsing any cron schedules up front.
func NewEvaluator(p *pipeline.Pipeline, logger *slog.Logger) (*Evaluator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	schedules := make([]cron.Schedule, 0, len(p.On.Schedule))
	for _, expr := range p.On.Schedule {
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, latcherr.Newf(latcherr.CodePipelineInvalid, "invalid cron expression %q", expr).WithCause(err)
		}
		schedules = append(schedules, sched)
	}

	return &Evaluator{
		pipeline:  p,
		schedules: schedules,
		logger:    logger.With("pipeline", p.Name),
	}, nil
}

// Evaluate returns a run request when the event matches the configured
// triggers, or nil. No side effects either way.
func (e *Evaluator) Evaluate(event types.Event) *types.RunRequest {
	if !e.pipeline.Triggered(event.Kind) {
		e.logger.Debug("event does not match triggers", "kind", event.Kind)
		return nil
	}

	if event.Kind == types.EventSchedule && !e.scheduleMatches(event.Time) {
		e.logger.Debug("schedule event outside configured crons", "time", event.Time)
		return nil
	}

	return &types.RunRequest{
		Event:    event,
		Pipeline: e.pipeline.Name,
		Group: types.ConcurrencyGroup{
			Key:              RenderGroupKey(e.pipeline.Concurrency.Group, event),
			CancelInProgress: e.pipeline.Concurrency.CancelInProgress,
		},
	}
}

// scheduleMatches reports whether any configured cron fires at the
// event's timestamp, at minute granularity. With no crons configured, a
// schedule trigger never matches.
func (e *Evaluator) scheduleMatches(t time.Time) bool {
	minute := t.Truncate(time.Minute)
	for _, sched := range e.schedules {
		if sched.Next(minute.Add(-time.Second)).Equal(minute) {
			return true
		}
	}
	return false
}

// RenderGroupKey substitutes event fields into the group key template.
func RenderGroupKey(template string, event types.Event) string {
	key := strings.ReplaceAll(template, "${ref}", event.Ref)
	key = strings.ReplaceAll(key, "${repository}", event.Repository)
	return key
}
