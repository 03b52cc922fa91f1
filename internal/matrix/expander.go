// Package matrix expands a job's axis declarations into concrete job
// instances. Expansion is a pure function over the declared data so it
// can be tested without touching any external tool.
package matrix

import (
	"log/slog"
	"strings"

	"github.com/latch-ci/latch/internal/pipeline"
	"github.com/latch-ci/latch/internal/types"
)

// Assignment is one surviving combination of axis values, in axis
// declaration order.
type Assignment struct {
	Values map[string]string
	Order  []string
}

// Name joins the assigned values in declaration order.
func (a Assignment) Name() string {
	parts := make([]string, 0, len(a.Order))
	for _, axis := range a.Order {
		parts = append(parts, a.Values[axis])
	}
	return strings.Join(parts, ", ")
}

// Expand computes the Cartesian product of the axes in declaration order
// and drops every combination matched by an exclusion rule. The returned
// order is stable: later axes vary fastest.
//
// An axis with no values empties the whole product. That is almost
// always a misconfiguration, but some pipelines populate axes
// conditionally, so it is surfaced as a warning by the caller rather
// than an error here.
func Expand(axes []pipeline.Axis, exclusions []pipeline.Exclusion) []Assignment {
	if len(axes) == 0 {
		return nil
	}
	for _, axis := range axes {
		if len(axis.Values) == 0 {
			return []Assignment{}
		}
	}

	order := make([]string, len(axes))
	for i, axis := range axes {
		order[i] = axis.Name
	}

	var out []Assignment
	current := make(map[string]string, len(axes))

	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(axes) {
			if excluded(current, exclusions) {
				return
			}
			values := make(map[string]string, len(current))
			for k, v := range current {
				values[k] = v
			}
			out = append(out, Assignment{Values: values, Order: order})
			return
		}
		axis := axes[depth]
		for _, v := range axis.Values {
			current[axis.Name] = v
			walk(depth + 1)
		}
		delete(current, axis.Name)
	}
	walk(0)

	return out
}

// excluded reports whether any rule matches the assignment on all of
// its constrained axes.
func excluded(assignment map[string]string, exclusions []pipeline.Exclusion) bool {
	for _, rule := range exclusions {
		matched := true
		for axis, want := range rule {
			if assignment[axis] != want {
				matched = false
				break
			}
		}
		if matched && len(rule) > 0 {
			return true
		}
	}
	return false
}

// Instantiate expands a job into its concrete instances, rendering axis
// references (${axis}) in step commands, action parameters, and
// environment values. A job without a matrix yields exactly one
// instance.
func Instantiate(job *pipeline.Job, logger *slog.Logger) []*types.JobInstance {
	if job.Matrix == nil {
		return []*types.JobInstance{newInstance(job, Assignment{})}
	}

	assignments := Expand(job.Matrix.Axes, job.Matrix.Exclude)
	if len(assignments) == 0 {
		logger.Warn("matrix expansion produced no job instances",
			"job", job.Name,
		)
		return nil
	}

	instances := make([]*types.JobInstance, 0, len(assignments))
	for _, a := range assignments {
		instances = append(instances, newInstance(job, a))
	}
	return instances
}

func newInstance(job *pipeline.Job, a Assignment) *types.JobInstance {
	name := job.Name
	if len(a.Order) > 0 {
		name = job.Name + " (" + a.Name() + ")"
	}

	steps := make([]types.Step, len(job.Steps))
	for i, step := range job.Steps {
		steps[i] = renderStep(step, a.Values)
	}

	return &types.JobInstance{
		Name:       name,
		Job:        job.Name,
		Assignment: a.Values,
		AxisOrder:  a.Order,
		Steps:      steps,
		Env:        renderEnv(job.Env, a.Values),
		Status:     types.JobStatusPending,
	}
}

// renderStep substitutes ${axis} references in a copied step.
func renderStep(step types.Step, values map[string]string) types.Step {
	out := step
	out.Run = render(step.Run, values)
	out.With = renderEnv(step.With, values)
	out.Env = renderEnv(step.Env, values)
	return out
}

func renderEnv(env map[string]string, values map[string]string) map[string]string {
	if env == nil {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = render(v, values)
	}
	return out
}

func render(s string, values map[string]string) string {
	if s == "" || !strings.Contains(s, "${") {
		return s
	}
	for axis, value := range values {
		s = strings.ReplaceAll(s, "${"+axis+"}", value)
	}
	return s
}
