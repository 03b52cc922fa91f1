// Package runner executes job instances: shell command steps via the
// configured shell, managed action steps via adapters around external
// collaborators. The orchestrator core never sees their internals, only
// success or failure.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ShellResult captures a shell step's observable outcome.
type ShellResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ShellExecutor runs shell command steps. Success iff exit status zero.
type ShellExecutor struct {
	// Shell is the interpreter, invoked as `<shell> -c <command>`.
	Shell string
}

// NewShellExecutor creates a shell executor.
func NewShellExecutor(shell string) *ShellExecutor {
	if shell == "" {
		shell = "sh"
	}
	return &ShellExecutor{Shell: shell}
}

// Run executes the command line and captures output. The returned error
// is non-nil for any non-zero exit; the result is populated either way.
func (e *ShellExecutor) Run(ctx context.Context, command string, env map[string]string) (*ShellResult, error) {
	cmd := exec.CommandContext(ctx, e.Shell, "-c", command)
	cmd.Env = mergedEnv(env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &ShellResult{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	return result, err
}

// CommandRunner runs an external collaborator as an opaque subprocess.
// Managed action adapters depend on this narrow interface so tests can
// substitute a recording fake.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, env map[string]string) error
}

// ExecCommandRunner is the production CommandRunner backed by os/exec.
type ExecCommandRunner struct{}

// Run invokes the named binary and waits for it.
func (ExecCommandRunner) Run(ctx context.Context, name string, args []string, env map[string]string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = mergedEnv(env)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// mergedEnv layers overrides on top of the process environment.
func mergedEnv(overrides map[string]string) []string {
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}
