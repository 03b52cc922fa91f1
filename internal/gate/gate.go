// Package gate enforces concurrency groups: at most one live run per
// rendered group key, with optional cancellation of the older run. The
// keyed registry behind a single mutex is the only shared mutable state
// in the orchestrator, so admission and cancellation stay auditable and
// race-free under concurrent event arrival.
package gate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/latch-ci/latch/internal/types"
)

// holder tracks the current run for a group key, together with the
// cancel function for the run's execution context.
type holder struct {
	run    *types.Run
	cancel context.CancelFunc
}

// Gate admits run requests, enforcing the one-live-run-per-group rule.
type Gate struct {
	mu      sync.Mutex
	holders map[string]*holder
	logger  *slog.Logger
}

// New creates a gate.
func New(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		holders: make(map[string]*holder),
		logger:  logger.With("component", "gate"),
	}
}

// Admit registers a new pending run as its group's current holder and
// returns it along with the context its jobs must run under and that
// context's cancel function. The caller owns the cancel function and
// must call it once the run is finished; the gate keeps its own
// reference for cancel-in-progress eviction (cancelling twice is
// harmless).
//
// If the group already has a non-terminal holder and cancel-in-progress
// is set, the older run is cancelled before the new run is registered:
// its status flips to cancelled and its context is cancelled, which
// in-flight job runners observe at their next step boundary. Without
// the flag the older run keeps executing to completion, but is marked
// superseded so its outcome no longer gates the group.
func (g *Gate) Admit(ctx context.Context, req *types.RunRequest) (*types.Run, context.Context, context.CancelFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := req.Group.Key
	if prev, ok := g.holders[key]; ok && !prev.run.IsTerminal() {
		if req.Group.CancelInProgress {
			g.logger.Info("cancelling superseded run",
				"group", key,
				"run_id", prev.run.ID,
			)
			// Status first, then context: by the time job runners
			// observe cancellation the run is already cancelled.
			if err := prev.run.Cancel(); err != nil {
				g.logger.Debug("previous run already terminal", "run_id", prev.run.ID)
			}
			prev.cancel()
		} else {
			g.logger.Info("superseding run without cancellation",
				"group", key,
				"run_id", prev.run.ID,
			)
			prev.run.MarkSuperseded()
		}
	}

	run := types.NewRun(uuid.NewString(), req)
	runCtx, cancel := context.WithCancel(ctx)
	g.holders[key] = &holder{run: run, cancel: cancel}

	g.logger.Info("run admitted",
		"group", key,
		"run_id", run.ID,
		"cancel_in_progress", req.Group.CancelInProgress,
	)
	return run, runCtx, cancel
}

// Current returns the group's current holder, or nil.
func (g *Gate) Current(key string) *types.Run {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h, ok := g.holders[key]; ok {
		return h.run
	}
	return nil
}

// Release drops the run's holder registration and releases its context
// resources. Only the current holder is dropped; a superseded run
// releasing late must not evict its successor.
func (g *Gate) Release(run *types.Run) {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, ok := g.holders[run.Group.Key]
	if !ok || h.run.ID != run.ID {
		return
	}
	h.cancel()
	delete(g.holders, run.Group.Key)
}
