package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latch-ci/latch/internal/pipeline"
)

var validateFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate a pipeline definition",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir, err := getWorkDir()
		if err != nil {
			return err
		}

		p, err := pipeline.Load(resolvePath(baseDir, validateFile))
		if err != nil {
			return err
		}

		fmt.Printf("pipeline %q is valid (%d job(s))\n", p.Name, len(p.Jobs))
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "pipeline.yml", "pipeline definition file")
	rootCmd.AddCommand(validateCmd)
}
