package cmd

import (
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/latch-ci/latch/internal/gate"
	"github.com/latch-ci/latch/internal/orchestrator"
	"github.com/latch-ci/latch/internal/pipeline"
	"github.com/latch-ci/latch/internal/runner"
	"github.com/latch-ci/latch/internal/runstore"
	"github.com/latch-ci/latch/internal/server"
	"github.com/latch-ci/latch/internal/types"
)

var (
	serveFile string
	serveAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept webhook deliveries and schedule ticks, running the pipeline for each qualifying event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, baseDir, logger, closer, err := setup()
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}

		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		p, err := pipeline.Load(resolvePath(baseDir, serveFile))
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

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		events := make(chan types.Event, 64)

		schedule := server.NewScheduleSource(events, cfg.Server.ScheduleRef, cfg.Server.ScheduleInterval.Duration(), logger)
		go schedule.Run(ctx)

		srv := server.New(events, logger)
		go func() {
			if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
				logger.Error("webhook server stopped", "error", err)
				stop()
			}
		}()

		// Dispatch each event on its own goroutine: concurrent arrival
		// is exactly what the concurrency gate arbitrates.
		var wg sync.WaitGroup
		for {
			select {
			case <-ctx.Done():
				logger.Info("shutting down, waiting for active runs")
				wg.Wait()
				return nil
			case event := <-events:
				wg.Add(1)
				go func(ev types.Event) {
					defer wg.Done()
					if _, err := engine.HandleEvent(ctx, ev); err != nil {
						logger.Error("handling event", "kind", ev.Kind, "error", err)
					}
				}(event)
			}
		}
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveFile, "file", "f", "pipeline.yml", "pipeline definition file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
