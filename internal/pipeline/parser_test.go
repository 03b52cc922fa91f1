package pipeline_test

import (
	"testing"

	latcherr "github.com/latch-ci/latch/internal/errors"
	"github.com/latch-ci/latch/internal/pipeline"
	"github.com/latch-ci/latch/internal/testutil"
	"github.com/latch-ci/latch/internal/types"
)

func TestParse_FullDefinition(t *testing.T) {
	p := testutil.MustParsePipeline(t, testutil.CheckPipelineYAML)

	testutil.AssertEqual(t, "check", p.Name)
	testutil.AssertEqual(t, 3, len(p.On.Events))
	testutil.AssertTrue(t, p.Triggered(types.EventPullRequest))
	testutil.AssertEqual(t, "check-${ref}", p.Concurrency.Group)
	testutil.AssertTrue(t, p.Concurrency.CancelInProgress)
	testutil.AssertEqual(t, 2, len(p.Jobs))

	test := p.Job("test")
	if test == nil {
		t.Fatal("expected job 'test'")
	}
	testutil.AssertTrue(t, test.FailFastEnabled(), "fail-fast defaults to true")
	testutil.AssertEqual(t, 2, len(test.Matrix.Axes))
	testutil.AssertEqual(t, 1, len(test.Matrix.Exclude))
}

func TestParse_FailFastOptOut(t *testing.T) {
	p := testutil.MustParsePipeline(t, `name: t
on:
  events: [push]
jobs:
  - name: test
    fail-fast: false
    steps:
      - run: true
`)
	testutil.AssertTrue(t, !p.Job("test").FailFastEnabled())
}

func TestParse_DefaultGroupTemplate(t *testing.T) {
	p := testutil.MustParsePipeline(t, `name: nightly
on:
  events: [push]
jobs:
  - name: build
    steps:
      - run: true
`)
	testutil.AssertEqual(t, "nightly-${ref}", p.Concurrency.Group)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := pipeline.Parse([]byte(`name: t
on:
  events: [push]
stages: []
jobs:
  - name: build
    steps:
      - run: true
`))
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, latcherr.CodePipelineParseError, latcherr.CodeOf(err))
}

func TestParse_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		code string
	}{
		{
			name: "no events",
			yaml: "name: t\njobs:\n  - name: j\n    steps:\n      - run: true\n",
			code: latcherr.CodePipelineInvalid,
		},
		{
			name: "unknown event kind",
			yaml: "on:\n  events: [deploy]\njobs:\n  - name: j\n    steps:\n      - run: true\n",
			code: latcherr.CodePipelineInvalid,
		},
		{
			name: "bad cron",
			yaml: "on:\n  events: [schedule]\n  schedule: ['not a cron']\njobs:\n  - name: j\n    steps:\n      - run: true\n",
			code: latcherr.CodePipelineInvalid,
		},
		{
			name: "no jobs",
			yaml: "on:\n  events: [push]\njobs: []\n",
			code: latcherr.CodePipelineInvalid,
		},
		{
			name: "duplicate job names",
			yaml: "on:\n  events: [push]\njobs:\n  - name: j\n    steps:\n      - run: true\n  - name: j\n    steps:\n      - run: true\n",
			code: latcherr.CodePipelineInvalid,
		},
		{
			name: "step with uses and run",
			yaml: "on:\n  events: [push]\njobs:\n  - name: j\n    steps:\n      - uses: lint\n        run: true\n",
			code: latcherr.CodePipelineInvalid,
		},
		{
			name: "step with neither uses nor run",
			yaml: "on:\n  events: [push]\njobs:\n  - name: j\n    steps:\n      - name: empty\n",
			code: latcherr.CodePipelineInvalid,
		},
		{
			name: "duplicate axis",
			yaml: "on:\n  events: [push]\njobs:\n  - name: j\n    matrix:\n      axes:\n        - name: os\n          values: [a]\n        - name: os\n          values: [b]\n    steps:\n      - run: true\n",
			code: latcherr.CodeMatrixInvalid,
		},
		{
			name: "exclusion on unknown axis",
			yaml: "on:\n  events: [push]\njobs:\n  - name: j\n    matrix:\n      axes:\n        - name: os\n          values: [a]\n      exclude:\n        - arch: arm64\n    steps:\n      - run: true\n",
			code: latcherr.CodeMatrixInvalid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pipeline.Parse([]byte(tc.yaml))
			testutil.AssertError(t, err)
			testutil.AssertEqual(t, tc.code, latcherr.CodeOf(err))
		})
	}
}

func TestLoad_NameDefaultsFromFileName(t *testing.T) {
	path := testutil.WritePipelineFile(t, `on:
  events: [push]
jobs:
  - name: build
    steps:
      - run: true
`)
	p, err := pipeline.Load(path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, "pipeline", p.Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := pipeline.Load("/nonexistent/pipeline.yml")
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, latcherr.CodePipelineNotFound, latcherr.CodeOf(err))
}
