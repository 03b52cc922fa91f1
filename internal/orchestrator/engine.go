// Package orchestrator ties the pipeline components together: trigger
// evaluation, concurrency gating, matrix expansion, parallel job
// execution, and run aggregation.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/latch-ci/latch/internal/gate"
	"github.com/latch-ci/latch/internal/logging"
	"github.com/latch-ci/latch/internal/matrix"
	"github.com/latch-ci/latch/internal/pipeline"
	"github.com/latch-ci/latch/internal/trigger"
	"github.com/latch-ci/latch/internal/types"
)

// JobExecutor runs one job instance to a terminal status.
type JobExecutor interface {
	Run(ctx context.Context, event types.Event, job *types.JobInstance) error
}

// RunStore persists runs.
type RunStore interface {
	Save(run *types.Run) error
	Archive(run *types.Run) error
}

// Engine processes events end to end for one pipeline.
type Engine struct {
	pipeline  *pipeline.Pipeline
	evaluator *trigger.Evaluator
	gate      *gate.Gate
	jobs      JobExecutor
	store     RunStore
	logger    *slog.Logger
}

// New creates an engine for the given pipeline.
func New(p *pipeline.Pipeline, g *gate.Gate, jobs JobExecutor, store RunStore, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	evaluator, err := trigger.NewEvaluator(p, logger)
	if err != nil {
		return nil, err
	}
	return &Engine{
		pipeline:  p,
		evaluator: evaluator,
		gate:      g,
		jobs:      jobs,
		store:     store,
		logger:    logger,
	}, nil
}

// HandleEvent evaluates an event and, when it qualifies, admits and
// executes a run to completion. Returns the finished run, or nil for a
// non-qualifying event.
func (e *Engine) HandleEvent(ctx context.Context, event types.Event) (*types.Run, error) {
	req := e.evaluator.Evaluate(event)
	if req == nil {
		e.logger.Debug("event ignored", "kind", event.Kind, "ref", event.Ref)
		return nil, nil
	}

	run, runCtx, cancel := e.gate.Admit(ctx, req)
	defer cancel()

	if err := e.Execute(runCtx, run); err != nil {
		return run, err
	}
	return run, nil
}

// Execute expands the admitted run's jobs and drives them to a terminal
// overall status. Job instances execute as independent parallel units;
// the only cross-instance effect is fail-fast cancellation, issued at
// the completion boundary of a failed instance.
func (e *Engine) Execute(ctx context.Context, run *types.Run) error {
	logger := logging.WithGroup(logging.WithRun(e.logger, run.ID), run.Group.Key)

	run.Jobs, run.FailFast = e.expand()

	if err := run.Start(); err != nil {
		// Cancelled by the gate between admission and execution.
		logger.Info("run not started", "status", run.CurrentStatus())
		e.finalize(run, logger)
		return nil
	}
	if err := e.store.Save(run); err != nil {
		logger.Error("persisting run", "error", err)
	}

	logger.Info("run started",
		"jobs", len(run.Jobs),
		"fail_fast", run.FailFast,
	)

	// Fail-fast cancellation shares the cancellation mechanism with the
	// gate but not the status outcome: a fail-fast run finishes failed,
	// a gate-cancelled run finishes cancelled.
	jobCtx, cancelSiblings := context.WithCancel(ctx)
	defer cancelSiblings()

	var wg sync.WaitGroup
	for _, job := range run.Jobs {
		wg.Add(1)
		go func(j *types.JobInstance) {
			defer wg.Done()
			if err := e.jobs.Run(jobCtx, run.Event, j); err != nil {
				logger.Error("job execution", "job", j.Name, "error", err)
			}
			if j.Status == types.JobStatusFailed && run.FailFast {
				logger.Info("fail-fast: cancelling sibling jobs", "failed_job", j.Name)
				cancelSiblings()
			}
		}(job)
	}
	wg.Wait()

	e.finalize(run, logger)
	return nil
}

// finalize computes and records the overall status.
func (e *Engine) finalize(run *types.Run, logger *slog.Logger) {
	// Instances that never got a runner (cancelled before expansion
	// finished) still need a terminal status.
	for _, job := range run.Jobs {
		if !job.Status.IsTerminal() {
			_ = job.Cancel()
		}
	}

	overall := Aggregate(run)
	if err := run.Finish(overall); err != nil {
		// Already terminal: the gate cancelled the whole run, which
		// always overrides the aggregate.
		logger.Debug("run already terminal", "status", run.CurrentStatus())
	}

	e.gate.Release(run)

	if err := e.store.Archive(run); err != nil {
		logger.Error("archiving run", "error", err)
	}

	logger.Info("run finished",
		"status", run.CurrentStatus(),
		"superseded", run.IsSuperseded(),
	)
}

// Aggregate determines the overall status from job outcomes: failed if
// any instance failed, cancelled if nothing failed but instances were
// cancelled, succeeded otherwise. A run already cancelled by the gate
// keeps that status regardless of job outcomes.
func Aggregate(run *types.Run) types.RunStatus {
	if run.CurrentStatus() == types.RunStatusCancelled {
		return types.RunStatusCancelled
	}

	anyFailed := false
	anyCancelled := false
	for _, job := range run.Jobs {
		switch job.Status {
		case types.JobStatusFailed:
			anyFailed = true
		case types.JobStatusCancelled:
			anyCancelled = true
		}
	}

	switch {
	case anyFailed:
		return types.RunStatusFailed
	case anyCancelled:
		return types.RunStatusCancelled
	default:
		return types.RunStatusSucceeded
	}
}

// expand instantiates every job in the pipeline. The run-level
// fail-fast policy defaults to true and is disabled as soon as any job
// opts out.
func (e *Engine) expand() ([]*types.JobInstance, bool) {
	var instances []*types.JobInstance
	failFast := true
	for i := range e.pipeline.Jobs {
		job := &e.pipeline.Jobs[i]
		if !job.FailFastEnabled() {
			failFast = false
		}
		instances = append(instances, matrix.Instantiate(job, e.logger)...)
	}
	return instances, failFast
}
