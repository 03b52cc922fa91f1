package types

import (
	"fmt"
)

// StepKind determines how a step is executed.
type StepKind string

const (
	// StepManagedAction is an opaque call into an external collaborator
	// (checkout, environment provisioning, linter, test driver).
	StepManagedAction StepKind = "managed_action"

	// StepShellCommand runs a command via the shell; success iff exit 0.
	StepShellCommand StepKind = "shell_command"
)

// Step is one instruction inside a job instance. Exactly one of Uses
// (managed action reference) or Run (shell command) is set.
type Step struct {
	ID   string `yaml:"id,omitempty"`
	Name string `yaml:"name,omitempty"`

	// Managed action reference, e.g. "checkout" or "setup-env".
	Uses string `yaml:"uses,omitempty"`

	// Parameters passed to a managed action.
	With map[string]string `yaml:"with,omitempty"`

	// Shell command line.
	Run string `yaml:"run,omitempty"`

	// Environment overrides scoped to this step.
	Env map[string]string `yaml:"env,omitempty"`

	// ContinueOnError marks a failing step as non-fatal: the job records
	// the failure but keeps executing subsequent steps.
	ContinueOnError bool `yaml:"continue-on-error,omitempty"`
}

// Kind reports whether the step is a managed action or a shell command.
func (s *Step) Kind() StepKind {
	if s.Uses != "" {
		return StepManagedAction
	}
	return StepShellCommand
}

// DisplayName returns the step's name, falling back to its action
// reference or command line.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Uses != "" {
		return s.Uses
	}
	return s.Run
}

// Validate checks the step is well-formed.
func (s *Step) Validate() error {
	if s.Uses == "" && s.Run == "" {
		return fmt.Errorf("step %q: one of 'uses' or 'run' is required", s.DisplayName())
	}
	if s.Uses != "" && s.Run != "" {
		return fmt.Errorf("step %q: 'uses' and 'run' are mutually exclusive", s.DisplayName())
	}
	if s.Run != "" && len(s.With) > 0 {
		return fmt.Errorf("step %q: 'with' parameters require 'uses'", s.DisplayName())
	}
	return nil
}
