package runner

import (
	"context"
	"log/slog"
	"strings"
	"time"

	latcherr "github.com/latch-ci/latch/internal/errors"
	"github.com/latch-ci/latch/internal/logging"
	"github.com/latch-ci/latch/internal/types"
)

// JobRunner drives one job instance at a time: steps strictly in order
// on a single logical worker, no intra-job parallelism.
type JobRunner struct {
	shell       *ShellExecutor
	actions     *Registry
	stepTimeout time.Duration
	logger      *slog.Logger
}

// NewJobRunner creates a job runner.
func NewJobRunner(shell *ShellExecutor, actions *Registry, stepTimeout time.Duration, logger *slog.Logger) *JobRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRunner{
		shell:       shell,
		actions:     actions,
		stepTimeout: stepTimeout,
		logger:      logger,
	}
}

// Run executes the instance's steps and drives its status machine to a
// terminal state. Cancellation is cooperative: it is observed only at
// step boundaries, never mid-step, and yields cancelled regardless of
// prior partial success. Already-produced side effects are not rolled
// back.
func (r *JobRunner) Run(ctx context.Context, event types.Event, job *types.JobInstance) error {
	logger := logging.WithJob(r.logger, job.Name)

	// A run cancelled before this instance ever started.
	if ctx.Err() != nil {
		logger.Info("job cancelled before start")
		return job.Cancel()
	}

	if err := job.Start(); err != nil {
		return err
	}
	logger.Info("job started", "steps", len(job.Steps))

	for i := range job.Steps {
		step := &job.Steps[i]

		// Step boundary: the only cancellation point.
		if ctx.Err() != nil {
			logger.Info("job cancelled", "at_step", step.ID)
			return job.Cancel()
		}

		failure := r.runStep(ctx, event, job, step)
		if failure == nil {
			logger.Debug("step succeeded", "step", step.ID)
			continue
		}

		logger.Warn("step failed",
			"step", step.ID,
			"error", failure.Message,
			"continue_on_error", step.ContinueOnError,
		)

		if step.ContinueOnError {
			job.RecordFailure(failure)
			continue
		}
		return job.Fail(failure)
	}

	return job.Succeed()
}

// runStep executes a single step and returns nil on success.
func (r *JobRunner) runStep(ctx context.Context, event types.Event, job *types.JobInstance, step *types.Step) *types.StepFailure {
	// The step itself must never be interrupted mid-flight by run
	// cancellation; only the per-step timeout bounds it.
	stepCtx := context.WithoutCancel(ctx)
	if r.stepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(stepCtx, r.stepTimeout)
		defer cancel()
	}

	env := stepEnv(job, step)

	switch step.Kind() {
	case types.StepManagedAction:
		fn, ok := r.actions.Resolve(step.Uses)
		if !ok {
			err := latcherr.Newf(latcherr.CodeStepUnknownAction, "unknown action %q", step.Uses)
			return &types.StepFailure{
				Step:    step.ID,
				Message: err.Error(),
			}
		}
		if err := fn(stepCtx, Invocation{Params: step.With, Env: env, Event: event}); err != nil {
			return &types.StepFailure{
				Step:    step.ID,
				Message: err.Error(),
			}
		}
		return nil

	default:
		result, err := r.shell.Run(stepCtx, step.Run, env)
		if err != nil {
			return &types.StepFailure{
				Step:     step.ID,
				Message:  err.Error(),
				ExitCode: result.ExitCode,
				Output:   result.Stderr,
			}
		}
		return nil
	}
}

// stepEnv layers step overrides on job overrides, with the matrix
// assignment exported as MATRIX_<AXIS> variables underneath both.
func stepEnv(job *types.JobInstance, step *types.Step) map[string]string {
	env := make(map[string]string)
	for axis, value := range job.Assignment {
		env["MATRIX_"+strings.ToUpper(axis)] = value
	}
	for k, v := range job.Env {
		env[k] = v
	}
	for k, v := range step.Env {
		env[k] = v
	}
	return env
}
