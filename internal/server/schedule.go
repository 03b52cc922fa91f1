package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/latch-ci/latch/internal/types"
)

// ScheduleSource periodically emits schedule events. It does not decide
// whether a cron actually fires; that is the trigger evaluator's job.
type ScheduleSource struct {
	events   chan<- types.Event
	ref      string
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduleSource creates a schedule source emitting events with the
// configured ref at the given interval (minute granularity in
// production).
func NewScheduleSource(events chan<- types.Event, ref string, interval time.Duration, logger *slog.Logger) *ScheduleSource {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ScheduleSource{
		events:   events,
		ref:      ref,
		interval: interval,
		logger:   logger.With("component", "schedule"),
	}
}

// Run emits schedule events until the context is cancelled.
func (s *ScheduleSource) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("schedule source stopping")
			return
		case now := <-ticker.C:
			event := types.Event{
				Kind: types.EventSchedule,
				Ref:  s.ref,
				Time: now,
			}
			select {
			case s.events <- event:
			default:
				s.logger.Warn("event queue full, schedule tick dropped")
			}
		}
	}
}
