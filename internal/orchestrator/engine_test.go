package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/latch-ci/latch/internal/gate"
	"github.com/latch-ci/latch/internal/logging"
	"github.com/latch-ci/latch/internal/pipeline"
	"github.com/latch-ci/latch/internal/runner"
	"github.com/latch-ci/latch/internal/runstore"
	"github.com/latch-ci/latch/internal/testutil"
	"github.com/latch-ci/latch/internal/types"
)

func boolPtr(b bool) *bool { return &b }

// shellJob builds a job whose steps are plain shell commands.
func shellJob(name string, commands ...string) pipeline.Job {
	steps := make([]types.Step, len(commands))
	for i, cmd := range commands {
		steps[i] = types.Step{ID: fmt.Sprintf("step-%d", i+1), Run: cmd}
	}
	return pipeline.Job{Name: name, Steps: steps}
}

func testPipeline(jobs ...pipeline.Job) *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Name: "check",
		On:   pipeline.Triggers{Events: []types.EventKind{types.EventPush}},
		Concurrency: pipeline.Concurrency{
			Group:            "check-${ref}",
			CancelInProgress: true,
		},
		Jobs: jobs,
	}
}

func newTestEngine(t *testing.T, p *pipeline.Pipeline) (*Engine, *runstore.Store) {
	t.Helper()
	logger := logging.NewForTest()

	store, err := runstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	shell := runner.NewShellExecutor("sh")
	jobs := runner.NewJobRunner(shell, runner.NewRegistry(), 0, logger)

	engine, err := New(p, gate.New(logger), jobs, store, logger)
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	return engine, store
}

func TestHandleEvent_NonQualifyingEvent(t *testing.T) {
	engine, _ := newTestEngine(t, testPipeline(shellJob("build", "true")))

	event := types.Event{Kind: types.EventSchedule, Ref: "refs/heads/main", Time: time.Now()}
	run, err := engine.HandleEvent(context.Background(), event)
	testutil.AssertNoError(t, err)
	testutil.AssertNil(t, run)
}

func TestHandleEvent_SuccessfulRunIsArchived(t *testing.T) {
	engine, store := newTestEngine(t, testPipeline(
		shellJob("build", "true"),
		shellJob("docs", "true"),
	))

	run, err := engine.HandleEvent(context.Background(), testutil.PushEvent("refs/heads/main"))
	testutil.AssertNoError(t, err)
	if run == nil {
		t.Fatal("expected a run")
	}

	testutil.AssertEqual(t, types.RunStatusSucceeded, run.CurrentStatus())
	for _, job := range run.Jobs {
		testutil.AssertEqual(t, types.JobStatusSucceeded, job.Status)
	}

	archived, err := store.Get(run.ID)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, types.RunStatusSucceeded, archived.Status)
}

func TestHandleEvent_FailFastCancelsSiblings(t *testing.T) {
	// The failing job finishes first; the slow sibling observes the
	// fail-fast cancellation at one of its step boundaries.
	slowSteps := make([]string, 20)
	for i := range slowSteps {
		slowSteps[i] = "sleep 0.1"
	}

	engine, _ := newTestEngine(t, testPipeline(
		shellJob("bad", "sleep 0.3; exit 1"),
		shellJob("slow", slowSteps...),
	))

	run, err := engine.HandleEvent(context.Background(), testutil.PushEvent("refs/heads/main"))
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, types.RunStatusFailed, run.CurrentStatus())

	byName := jobsByName(run)
	testutil.AssertEqual(t, types.JobStatusFailed, byName["bad"].Status)
	testutil.AssertEqual(t, types.JobStatusCancelled, byName["slow"].Status)
	testutil.AssertEqual(t, "step-1", byName["bad"].FirstFailure.Step)
}

func TestHandleEvent_NoFailFastLetsSiblingsFinish(t *testing.T) {
	bad := shellJob("bad", "exit 1")
	bad.FailFast = boolPtr(false)
	good := shellJob("good", "sleep 0.2", "true")

	engine, _ := newTestEngine(t, testPipeline(bad, good))

	run, err := engine.HandleEvent(context.Background(), testutil.PushEvent("refs/heads/main"))
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, types.RunStatusFailed, run.CurrentStatus())

	byName := jobsByName(run)
	testutil.AssertEqual(t, types.JobStatusFailed, byName["bad"].Status)
	testutil.AssertEqual(t, types.JobStatusSucceeded, byName["good"].Status)
}

func TestHandleEvent_NewerRunCancelsOlder(t *testing.T) {
	slowSteps := make([]string, 30)
	for i := range slowSteps {
		slowSteps[i] = "sleep 0.1"
	}
	engine, _ := newTestEngine(t, testPipeline(shellJob("slow", slowSteps...)))

	type outcome struct {
		run *types.Run
		err error
	}
	older := make(chan outcome, 1)
	go func() {
		run, err := engine.HandleEvent(context.Background(), testutil.PushEvent("refs/heads/main"))
		older <- outcome{run, err}
	}()

	// Give the older run time to start before superseding it.
	time.Sleep(300 * time.Millisecond)

	newer, err := engine.HandleEvent(context.Background(), testutil.PushEvent("refs/heads/main"))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, types.RunStatusSucceeded, newer.CurrentStatus())

	got := <-older
	testutil.AssertNoError(t, got.err)
	testutil.AssertEqual(t, types.RunStatusCancelled, got.run.CurrentStatus())
}

func TestHandleEvent_GateCancellationBeforeStart(t *testing.T) {
	engine, _ := newTestEngine(t, testPipeline(shellJob("build", "true")))

	req := &types.RunRequest{
		Event:    testutil.PushEvent("refs/heads/main"),
		Pipeline: "check",
		Group:    types.ConcurrencyGroup{Key: "check-refs/heads/main", CancelInProgress: true},
	}
	run, runCtx, cancel := engine.gate.Admit(context.Background(), req)
	defer cancel()

	// Superseded before it ever started executing.
	testutil.AssertNoError(t, run.Cancel())

	testutil.AssertNoError(t, engine.Execute(runCtx, run))
	testutil.AssertEqual(t, types.RunStatusCancelled, run.CurrentStatus())
	for _, job := range run.Jobs {
		testutil.AssertEqual(t, types.JobStatusCancelled, job.Status)
	}
}

func TestAggregate(t *testing.T) {
	mk := func(statuses ...types.JobStatus) *types.Run {
		run := types.NewRun("r", &types.RunRequest{})
		_ = run.Start()
		for i, s := range statuses {
			run.Jobs = append(run.Jobs, &types.JobInstance{
				Name:   fmt.Sprintf("j%d", i),
				Status: s,
			})
		}
		return run
	}

	testutil.AssertEqual(t, types.RunStatusSucceeded,
		Aggregate(mk(types.JobStatusSucceeded, types.JobStatusSucceeded)))
	testutil.AssertEqual(t, types.RunStatusFailed,
		Aggregate(mk(types.JobStatusSucceeded, types.JobStatusFailed)))
	testutil.AssertEqual(t, types.RunStatusFailed,
		Aggregate(mk(types.JobStatusFailed, types.JobStatusCancelled)))
	testutil.AssertEqual(t, types.RunStatusCancelled,
		Aggregate(mk(types.JobStatusSucceeded, types.JobStatusCancelled)))
	testutil.AssertEqual(t, types.RunStatusSucceeded, Aggregate(mk()))

	cancelled := mk(types.JobStatusSucceeded)
	_ = cancelled.Cancel()
	testutil.AssertEqual(t, types.RunStatusCancelled, Aggregate(cancelled))
}

func jobsByName(run *types.Run) map[string]*types.JobInstance {
	out := make(map[string]*types.JobInstance)
	for _, job := range run.Jobs {
		out[job.Job] = job
	}
	return out
}
