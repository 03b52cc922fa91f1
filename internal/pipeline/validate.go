package pipeline

import (
	"fmt"

	"github.com/robfig/cron/v3"

	latcherr "github.com/latch-ci/latch/internal/errors"
)

// Validate checks a pipeline definition for configuration errors. These
// are fatal before any step executes.
func Validate(p *Pipeline) error {
	if len(p.On.Events) == 0 {
		return latcherr.New(latcherr.CodePipelineInvalid, "'on.events' must list at least one event kind")
	}
	seen := make(map[string]bool)
	for _, kind := range p.On.Events {
		if !kind.Valid() {
			return latcherr.Newf(latcherr.CodePipelineInvalid, "unknown event kind %q", kind)
		}
		if seen[string(kind)] {
			return latcherr.Newf(latcherr.CodePipelineInvalid, "duplicate event kind %q", kind)
		}
		seen[string(kind)] = true
	}

	for _, expr := range p.On.Schedule {
		if _, err := cron.ParseStandard(expr); err != nil {
			return latcherr.Newf(latcherr.CodePipelineInvalid, "invalid cron expression %q", expr).WithCause(err)
		}
	}

	if len(p.Jobs) == 0 {
		return latcherr.New(latcherr.CodePipelineInvalid, "pipeline has no jobs")
	}

	jobNames := make(map[string]bool)
	for i := range p.Jobs {
		job := &p.Jobs[i]
		if job.Name == "" {
			return latcherr.New(latcherr.CodePipelineInvalid, "job without a name")
		}
		if jobNames[job.Name] {
			return latcherr.Newf(latcherr.CodePipelineInvalid, "duplicate job name %q", job.Name)
		}
		jobNames[job.Name] = true

		if len(job.Steps) == 0 {
			return latcherr.Newf(latcherr.CodePipelineInvalid, "job %q has no steps", job.Name)
		}
		for s := range job.Steps {
			if err := job.Steps[s].Validate(); err != nil {
				return latcherr.Newf(latcherr.CodePipelineInvalid, "job %q: %v", job.Name, err)
			}
		}

		if job.Matrix != nil {
			if err := validateMatrix(job.Name, job.Matrix); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateMatrix checks axis and exclusion definitions.
func validateMatrix(jobName string, m *Matrix) error {
	if len(m.Axes) == 0 {
		return matrixErr(jobName, "matrix declared with no axes")
	}

	axisNames := make(map[string]bool)
	for _, axis := range m.Axes {
		if axis.Name == "" {
			return matrixErr(jobName, "axis without a name")
		}
		if axisNames[axis.Name] {
			return matrixErr(jobName, fmt.Sprintf("duplicate axis %q", axis.Name))
		}
		axisNames[axis.Name] = true

		values := make(map[string]bool)
		for _, v := range axis.Values {
			if values[v] {
				return matrixErr(jobName, fmt.Sprintf("axis %q has duplicate value %q", axis.Name, v))
			}
			values[v] = true
		}
	}

	for _, rule := range m.Exclude {
		if len(rule) == 0 {
			return matrixErr(jobName, "empty exclusion rule")
		}
		for axis := range rule {
			if !axisNames[axis] {
				return matrixErr(jobName, fmt.Sprintf("exclusion constrains unknown axis %q", axis))
			}
		}
	}
	return nil
}

func matrixErr(jobName, msg string) error {
	return latcherr.Newf(latcherr.CodeMatrixInvalid, "job %q: %s", jobName, msg)
}
