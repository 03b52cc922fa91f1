package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/latch-ci/latch/internal/logging"
	"github.com/latch-ci/latch/internal/matrix"
	"github.com/latch-ci/latch/internal/pipeline"
)

var planFile string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the expanded job matrix without executing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir, err := getWorkDir()
		if err != nil {
			return err
		}

		p, err := pipeline.Load(resolvePath(baseDir, planFile))
		if err != nil {
			return err
		}

		logger := logging.NewDefault()
		total := 0
		for i := range p.Jobs {
			job := &p.Jobs[i]
			instances := matrix.Instantiate(job, logger)
			for _, inst := range instances {
				fmt.Printf("%s  (%d steps)\n", inst.Name, len(inst.Steps))
			}
			total += len(instances)
		}
		fmt.Printf("%d job instance(s)\n", total)
		return nil
	},
}

// resolvePath makes a definition path absolute relative to baseDir.
func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func init() {
	planCmd.Flags().StringVarP(&planFile, "file", "f", "pipeline.yml", "pipeline definition file")
	rootCmd.AddCommand(planCmd)
}
