package runner

import (
	"context"
	"strings"

	"github.com/latch-ci/latch/internal/config"
	latcherr "github.com/latch-ci/latch/internal/errors"
	"github.com/latch-ci/latch/internal/types"
)

// Invocation is the context handed to a managed action.
type Invocation struct {
	// Params are the step's `with:` parameters.
	Params map[string]string

	// Env is the merged environment for the step.
	Env map[string]string

	// Event is the triggering event; checkout uses its ref.
	Event types.Event
}

// ActionFunc executes one managed action and reports success or failure.
type ActionFunc func(ctx context.Context, inv Invocation) error

// Registry maps action references to their adapters.
type Registry struct {
	actions map[string]ActionFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]ActionFunc)}
}

// Register adds an action under the given reference.
func (r *Registry) Register(name string, fn ActionFunc) {
	r.actions[name] = fn
}

// Resolve looks up an action by reference.
func (r *Registry) Resolve(name string) (ActionFunc, bool) {
	fn, ok := r.actions[name]
	return fn, ok
}

// Names returns the registered action references.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	return names
}

// BuiltinRegistry wires the standard adapters: checkout, environment
// provisioning, linter, and test driver. Each delegates to an external
// tool named in the configuration, invoked through cr.
func BuiltinRegistry(tools config.ToolsConfig, cr CommandRunner) *Registry {
	r := NewRegistry()
	r.Register("checkout", checkoutAction(cr))
	r.Register("setup-env", setupEnvAction(tools.EnvManager, cr))
	r.Register("lint", lintAction(tools.Linter, cr))
	r.Register("test", testAction(tools.TestDriver, cr))
	return r
}

// checkoutAction places the repository at the event's ref. The ref may
// be overridden with a `ref` parameter; with no ref at all the checkout
// is a no-op (workspace state is taken as-is).
func checkoutAction(cr CommandRunner) ActionFunc {
	return func(ctx context.Context, inv Invocation) error {
		ref := inv.Params["ref"]
		if ref == "" {
			ref = inv.Event.Ref
		}
		if ref == "" {
			return nil
		}
		return cr.Run(ctx, "git", []string{"checkout", "--detach", ref}, inv.Env)
	}
}

// setupEnvAction provisions an execution environment for the requested
// version. A failure here is an infrastructure failure, reported like a
// failure of the step itself.
func setupEnvAction(envManager string, cr CommandRunner) ActionFunc {
	return func(ctx context.Context, inv Invocation) error {
		version := inv.Params["version"]
		if version == "" {
			return latcherr.New(latcherr.CodeInfraProvision, "setup-env requires a 'version' parameter")
		}
		args := []string{"create", "-y", "-n", "ci-" + EnvSelector(version), "python=" + version}
		if err := cr.Run(ctx, envManager, args, inv.Env); err != nil {
			return latcherr.Newf(latcherr.CodeInfraProvision, "provisioning environment for %s", version).WithCause(err)
		}
		return nil
	}
}

// lintAction invokes the configured linter against the checked-out tree.
func lintAction(linter string, cr CommandRunner) ActionFunc {
	return func(ctx context.Context, inv Invocation) error {
		if err := cr.Run(ctx, linter, []string{"run", "--all-files"}, inv.Env); err != nil {
			return latcherr.New(latcherr.CodeStepFailed, "linter reported problems").WithCause(err)
		}
		return nil
	}
}

// testAction invokes the test driver with an environment selector. The
// selector comes from an explicit `env` parameter, or is derived from
// the `version` parameter with separators stripped ("3.11" -> "py311").
func testAction(driver string, cr CommandRunner) ActionFunc {
	return func(ctx context.Context, inv Invocation) error {
		selector := inv.Params["env"]
		if selector == "" {
			if version := inv.Params["version"]; version != "" {
				selector = "py" + EnvSelector(version)
			}
		}

		args := []string{"run"}
		if selector != "" {
			args = append(args, "-e", selector)
		}
		if err := cr.Run(ctx, driver, args, inv.Env); err != nil {
			return latcherr.Newf(latcherr.CodeStepFailed, "test driver failed for %q", selector).WithCause(err)
		}
		return nil
	}
}

// EnvSelector strips version separators for use in environment names.
func EnvSelector(version string) string {
	replacer := strings.NewReplacer(".", "", "-", "")
	return replacer.Replace(version)
}
