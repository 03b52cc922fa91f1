package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/latch-ci/latch/internal/pipeline"
	"github.com/latch-ci/latch/internal/types"
)

// CheckPipelineYAML is a definition mirroring a typical check workflow:
// a lint job and a matrix test job with an exclusion.
const CheckPipelineYAML = `name: check
on:
  events: [push, pull_request, schedule]
  schedule:
    - "0 8 * * *"
concurrency:
  group: check-${ref}
  cancel-in-progress: true
jobs:
  - name: lint
    steps:
      - uses: checkout
      - uses: lint
  - name: test
    matrix:
      axes:
        - name: os
          values: [ubuntu, windows]
        - name: tox_env
          values: [dev, pkg_meta]
      exclude:
        - os: windows
          tox_env: pkg_meta
    steps:
      - uses: checkout
      - uses: test
        with:
          env: ${tox_env}
`

// WritePipelineFile writes a pipeline definition into a temp dir and
// returns its path.
func WritePipelineFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing pipeline fixture: %v", err)
	}
	return path
}

// MustParsePipeline parses a definition or fails the test.
func MustParsePipeline(t *testing.T, content string) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.Parse([]byte(content))
	if err != nil {
		t.Fatalf("parsing pipeline fixture: %v", err)
	}
	return p
}

// PushEvent returns a push event against the given ref.
func PushEvent(ref string) types.Event {
	return types.Event{
		Kind:       types.EventPush,
		Ref:        ref,
		Repository: "example/repo",
		Time:       time.Now(),
	}
}
