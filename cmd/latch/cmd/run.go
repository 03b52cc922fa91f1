package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/latch-ci/latch/internal/gate"
	"github.com/latch-ci/latch/internal/orchestrator"
	"github.com/latch-ci/latch/internal/pipeline"
	"github.com/latch-ci/latch/internal/runner"
	"github.com/latch-ci/latch/internal/runstore"
	"github.com/latch-ci/latch/internal/types"
)

var (
	runFile       string
	runEvent      string
	runRef        string
	runRepository string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fire an event at the pipeline and execute the resulting run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, baseDir, logger, closer, err := setup()
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}

		kind := types.EventKind(runEvent)
		if !kind.Valid() {
			return fmt.Errorf("unknown event kind %q (push, pull_request, schedule)", runEvent)
		}

		p, err := pipeline.Load(resolvePath(baseDir, runFile))
		if err != nil {
			return err
		}

		store, err := runstore.New(cfg.StoreDir(baseDir))
		if err != nil {
			return err
		}

		shell := runner.NewShellExecutor(cfg.Tools.Shell)
		actions := runner.BuiltinRegistry(cfg.Tools, runner.ExecCommandRunner{})
		jobs := runner.NewJobRunner(shell, actions, cfg.Runner.StepTimeout.Duration(), logger)

		engine, err := orchestrator.New(p, gate.New(logger), jobs, store, logger)
		if err != nil {
			return err
		}

		event := types.Event{
			Kind:       kind,
			Ref:        runRef,
			Repository: runRepository,
			Time:       time.Now(),
		}

		run, err := engine.HandleEvent(cmd.Context(), event)
		if err != nil {
			return err
		}
		if run == nil {
			fmt.Printf("event %s did not match pipeline triggers, nothing to do\n", kind)
			return nil
		}

		printSummary(run)

		if run.CurrentStatus() == types.RunStatusFailed {
			return fmt.Errorf("run %s failed", run.ID)
		}
		return nil
	},
}

// printSummary prints per-job outcomes and the overall status.
func printSummary(run *types.Run) {
	fmt.Printf("run %s (%s)\n", run.ID, run.Group.Key)
	for _, job := range run.Jobs {
		fmt.Printf("  %-10s %s\n", job.Status, job.Name)
		if job.FirstFailure != nil {
			fmt.Printf("             first failing step: %s (%s)\n",
				job.FirstFailure.Step, job.FirstFailure.Message)
		}
	}
	fmt.Printf("overall: %s\n", run.CurrentStatus())
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "pipeline.yml", "pipeline definition file")
	runCmd.Flags().StringVar(&runEvent, "event", "push", "event kind (push, pull_request, schedule)")
	runCmd.Flags().StringVar(&runRef, "ref", "refs/heads/main", "event ref")
	runCmd.Flags().StringVar(&runRepository, "repository", "", "event repository")
	rootCmd.AddCommand(runCmd)
}
