package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"

	"github.com/asad/usmo/internal/blob"
	"github.com/asad/usmo/internal/command"
	"github.com/asad/usmo/internal/logging"
)

const (
	// AutoLoginEnv is read by azcopy to pick its authentication mode.
	AutoLoginEnv = "AZCOPY_AUTO_LOGIN_TYPE"
	// AutoLoginAzCLI makes azcopy reuse the Azure CLI login.
	AutoLoginAzCLI = "AZCLI"
)

// Environment sets process-wide environment variables inherited by child processes.
type Environment interface {
	Setenv(key, value string) error
}

// OSEnvironment is the real process environment.
type OSEnvironment struct{}

func (OSEnvironment) Setenv(key, value string) error {
	return os.Setenv(key, value)
}

// ExecutionError reports a copy tool that exited non-zero.
type ExecutionError struct {
	Tool        string
	Source      string
	Destination string
	Status      int
	Err         error
}

func (e *ExecutionError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s failed copying %s to %s: %v", e.Tool, blob.Redact(e.Source), blob.Redact(e.Destination), e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ExitCode is the tool's exit status, or 1 when it never produced one.
func (e *ExecutionError) ExitCode() int {
	if e.Status > 0 {
		return e.Status
	}
	return 1
}

// Router runs a Plan, one external process at a time, in source order.
type Router struct {
	Runner    command.Runner
	Env       Environment
	LocalTool string
	CloudTool string

	// Out receives one progress line per dispatched transfer.
	Out    io.Writer
	Logger logging.Logger

	// Propagate turns transfer failures into a returned error. When false they are
	// logged and Execute succeeds.
	Propagate bool

	// DryRun prints the commands instead of running them.
	DryRun bool

	authReady bool
}

// Execute carries out the plan. Passthrough and bulk plans stop at the first failed
// transfer; a mixed plan attempts every source and reports all failures together.
func (r *Router) Execute(ctx context.Context, plan *Plan) error {
	var err error
	switch plan.Kind {
	case LocalPassthrough:
		err = r.executePassthrough(ctx, plan)
	case BulkCloudCopy:
		err = r.executeBulk(ctx, plan)
	case MixedDispatch:
		err = r.executeMixed(ctx, plan)
	default:
		return fmt.Errorf("unknown plan kind %d", plan.Kind)
	}

	if err != nil && !r.Propagate && isExecutionError(err) {
		r.Logger.Warn("transfer failed, continuing without error status", logging.ErrorField(err))
		return nil
	}
	return err
}

func (r *Router) executePassthrough(ctx context.Context, plan *Plan) error {
	if len(plan.Args) < 2 {
		return fmt.Errorf("passthrough plan needs a source and a destination")
	}
	inv := LocalCopyInvocation{
		Tool:        r.LocalTool,
		Sources:     plan.Args[:len(plan.Args)-1],
		Destination: plan.Args[len(plan.Args)-1],
	}
	r.progress("Copying locally with %s", r.LocalTool)
	return r.run(ctx, inv.Command(), "", "")
}

func (r *Router) executeBulk(ctx context.Context, plan *Plan) error {
	if err := r.ensureAmbientAuth(); err != nil {
		return err
	}
	r.progress("Copying %d source(s) to blob storage with %s", len(plan.Actions), r.CloudTool)
	for _, a := range plan.Actions {
		if err := r.dispatch(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) executeMixed(ctx context.Context, plan *Plan) error {
	if plan.CloudActions() > 0 {
		if err := r.ensureAmbientAuth(); err != nil {
			return err
		}
	}

	var errs error
	for _, a := range plan.Actions {
		if a.Kind == CloudCopy {
			r.progress("Copying from blob storage with %s: %s", r.CloudTool, blob.Redact(a.Source))
		} else {
			r.progress("Copying locally with %s: %s", r.LocalTool, a.Source)
		}
		if err := r.dispatch(ctx, a); err != nil {
			r.Logger.Error("transfer failed",
				logging.String("source", blob.Redact(a.Source)),
				logging.ErrorField(err),
			)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (r *Router) dispatch(ctx context.Context, a Action) error {
	if a.Kind == CloudCopy {
		inv := CloudCopyInvocation{Tool: r.CloudTool, Source: a.Source, Destination: a.Destination, Recursive: true}
		return r.run(ctx, inv.Command(), a.Source, a.Destination)
	}
	inv := LocalCopyInvocation{Tool: r.LocalTool, Sources: []string{a.Source}, Destination: a.Destination}
	return r.run(ctx, inv.Command(), a.Source, a.Destination)
}

func (r *Router) run(ctx context.Context, cmd command.Command, source, destination string) error {
	if r.DryRun {
		fmt.Fprintf(r.Out, "  %s\n", cmd.String())
		return nil
	}

	r.Logger.Debug("running transfer", logging.Strings("argv", blob.RedactAll(cmd.Argv())))
	if _, err := r.Runner.Run(ctx, cmd); err != nil {
		execErr := &ExecutionError{Tool: cmd.Program, Source: source, Destination: destination, Err: err}
		var exitErr *command.ExitError
		if errors.As(err, &exitErr) {
			execErr.Status = exitErr.ExitCode
		}
		return execErr
	}
	return nil
}

// ensureAmbientAuth points azcopy at the Azure CLI login, once per router.
func (r *Router) ensureAmbientAuth() error {
	if r.authReady || r.DryRun {
		return nil
	}
	if err := r.Env.Setenv(AutoLoginEnv, AutoLoginAzCLI); err != nil {
		return fmt.Errorf("failed to set %s: %w", AutoLoginEnv, err)
	}
	r.authReady = true
	return nil
}

func (r *Router) progress(format string, args ...any) {
	fmt.Fprintf(r.Out, format+"\n", args...)
}

func isExecutionError(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}
