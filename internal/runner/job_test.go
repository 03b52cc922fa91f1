package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	latcherr "github.com/latch-ci/latch/internal/errors"
	"github.com/latch-ci/latch/internal/logging"
	"github.com/latch-ci/latch/internal/testutil"
	"github.com/latch-ci/latch/internal/types"
)

func newTestJobRunner(actions *Registry) *JobRunner {
	if actions == nil {
		actions = NewRegistry()
	}
	return NewJobRunner(NewShellExecutor("sh"), actions, 0, logging.NewForTest())
}

func job(steps ...types.Step) *types.JobInstance {
	return &types.JobInstance{
		Name:   "test",
		Job:    "test",
		Steps:  steps,
		Status: types.JobStatusPending,
	}
}

func TestJobRunner_StepsRunInOrder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "order.txt")
	j := job(
		types.Step{ID: "one", Run: "echo one >> " + out},
		types.Step{ID: "two", Run: "echo two >> " + out},
		types.Step{ID: "three", Run: "echo three >> " + out},
	)

	r := newTestJobRunner(nil)
	testutil.AssertNoError(t, r.Run(context.Background(), types.Event{}, j))
	testutil.AssertEqual(t, types.JobStatusSucceeded, j.Status)

	data, err := os.ReadFile(out)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, "one\ntwo\nthree\n", string(data))
}

func TestJobRunner_FirstFailureShortCircuits(t *testing.T) {
	out := filepath.Join(t.TempDir(), "order.txt")
	j := job(
		types.Step{ID: "ok", Run: "echo ok >> " + out},
		types.Step{ID: "boom", Run: "exit 7"},
		types.Step{ID: "never", Run: "echo never >> " + out},
	)

	r := newTestJobRunner(nil)
	testutil.AssertNoError(t, r.Run(context.Background(), types.Event{}, j))
	testutil.AssertEqual(t, types.JobStatusFailed, j.Status)

	if j.FirstFailure == nil {
		t.Fatal("expected first failure to be recorded")
	}
	testutil.AssertEqual(t, "boom", j.FirstFailure.Step)
	testutil.AssertEqual(t, 7, j.FirstFailure.ExitCode)

	data, err := os.ReadFile(out)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, "ok\n", string(data), "subsequent steps must not run")
}

func TestJobRunner_ContinueOnError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "order.txt")
	j := job(
		types.Step{ID: "flaky", Run: "exit 1", ContinueOnError: true},
		types.Step{ID: "after", Run: "echo after >> " + out},
	)

	r := newTestJobRunner(nil)
	testutil.AssertNoError(t, r.Run(context.Background(), types.Event{}, j))

	// A non-fatal failure leaves the job green but stays on record.
	testutil.AssertEqual(t, types.JobStatusSucceeded, j.Status)
	if j.FirstFailure == nil {
		t.Fatal("expected the non-fatal failure to be recorded")
	}
	testutil.AssertEqual(t, "flaky", j.FirstFailure.Step)

	data, err := os.ReadFile(out)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, "after\n", string(data))
}

func TestJobRunner_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j := job(types.Step{ID: "one", Run: "echo one"})
	r := newTestJobRunner(nil)
	testutil.AssertNoError(t, r.Run(ctx, types.Event{}, j))
	testutil.AssertEqual(t, types.JobStatusCancelled, j.Status)
}

func TestJobRunner_CancellationObservedAtStepBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := filepath.Join(t.TempDir(), "order.txt")

	// An action that cancels the run mid-job: the running step itself
	// completes, the next boundary observes the cancellation.
	actions := NewRegistry()
	actions.Register("trip", func(context.Context, Invocation) error {
		cancel()
		return nil
	})

	j := job(
		types.Step{ID: "first", Run: "echo first >> " + out},
		types.Step{ID: "trip", Uses: "trip"},
		types.Step{ID: "never", Run: "echo never >> " + out},
	)

	r := newTestJobRunner(actions)
	testutil.AssertNoError(t, r.Run(ctx, types.Event{}, j))
	testutil.AssertEqual(t, types.JobStatusCancelled, j.Status)

	data, err := os.ReadFile(out)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, "first\n", string(data))
}

func TestJobRunner_UnknownActionFailsJob(t *testing.T) {
	j := job(types.Step{ID: "mystery", Uses: "does-not-exist"})

	r := newTestJobRunner(nil)
	testutil.AssertNoError(t, r.Run(context.Background(), types.Event{}, j))
	testutil.AssertEqual(t, types.JobStatusFailed, j.Status)
	testutil.AssertContains(t, j.FirstFailure.Message, "does-not-exist")
	testutil.AssertContains(t, j.FirstFailure.Message, latcherr.CodeStepUnknownAction)
}

func TestJobRunner_EnvPrecedence(t *testing.T) {
	out := filepath.Join(t.TempDir(), "env.txt")
	j := job(types.Step{
		ID:  "env",
		Run: "echo $MATRIX_OS $WHO > " + out,
		Env: map[string]string{"WHO": "step"},
	})
	j.Assignment = map[string]string{"os": "ubuntu"}
	j.Env = map[string]string{"WHO": "job"}

	r := newTestJobRunner(nil)
	testutil.AssertNoError(t, r.Run(context.Background(), types.Event{}, j))

	data, err := os.ReadFile(out)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, "ubuntu step\n", string(data))
}
