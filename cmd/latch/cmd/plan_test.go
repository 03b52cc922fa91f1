package cmd

import (
	"strings"
	"testing"

	"github.com/latch-ci/latch/internal/testutil"
)

func TestPlanCommand(t *testing.T) {
	tmpDir := t.TempDir()
	writeTestPipeline(t, tmpDir, testutil.CheckPipelineYAML)

	workDir = tmpDir
	planFile = "pipeline.yml"
	defer func() { workDir = ""; planFile = "pipeline.yml" }()

	out, err := captureOutput(t, func() error {
		return planCmd.RunE(planCmd, nil)
	})
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	// lint plus the 2x2 matrix minus the windows/pkg_meta exclusion.
	for _, want := range []string{
		"lint",
		"test (ubuntu, dev)",
		"test (ubuntu, pkg_meta)",
		"test (windows, dev)",
		"4 job instance(s)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "test (windows, pkg_meta)") {
		t.Error("excluded combination should not appear in the plan")
	}
}
