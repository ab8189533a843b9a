// Package core wires mount discovery, path translation and transfer routing into
// the copy operation the CLI exposes.
package core

import (
	"context"
	"fmt"
	"io"

	"github.com/asad/usmo/internal/command"
	"github.com/asad/usmo/internal/config"
	"github.com/asad/usmo/internal/credential"
	"github.com/asad/usmo/internal/logging"
	"github.com/asad/usmo/internal/mount"
	"github.com/asad/usmo/internal/transfer"
)

// CopyUsage is printed when cp gets too few arguments.
const CopyUsage = "Usage: usmo cp [SOURCE...] DESTINATION"

// UsageError reports arguments that cannot describe a copy. Nothing was run.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// ExitCode follows the shell convention for misuse.
func (e *UsageError) ExitCode() int {
	return 2
}

// Dispatcher holds the collaborators of a copy. Each field is an interface so tests
// can replace the process table, the external tools and the environment.
type Dispatcher struct {
	Config    *config.Config
	Inspector mount.ProcessInspector
	Runner    command.Runner
	Env       transfer.Environment
	Logger    logging.Logger

	// Out receives progress lines and dry-run output.
	Out io.Writer
}

// NewDispatcher creates a dispatcher backed by the live system.
func NewDispatcher(cfg *config.Config, logger logging.Logger, out io.Writer) *Dispatcher {
	return &Dispatcher{
		Config:    cfg,
		Inspector: mount.NewSystemInspector(cfg.MountTool),
		Runner:    command.NewExecRunner(),
		Env:       transfer.OSEnvironment{},
		Logger:    logger,
		Out:       out,
	}
}

// CopyOptions adjusts a single copy.
type CopyOptions struct {
	// DryRun prints the planned commands without running anything or requesting tokens.
	DryRun bool
}

// Mounts discovers the active blob-filesystem mounts.
func (d *Dispatcher) Mounts(ctx context.Context) *mount.Registry {
	return mount.Discover(ctx, d.Inspector, d.Config.MountTool, d.Logger)
}

// Copy copies every argument but the last into the last one, routing each transfer
// to the local or the cloud copy tool depending on which paths live on blob mounts.
func (d *Dispatcher) Copy(ctx context.Context, args []string, opts CopyOptions) error {
	if len(args) < 2 {
		return &UsageError{Message: CopyUsage}
	}

	reg := d.Mounts(ctx)
	d.Logger.Debug("mount registry built", logging.Int("mounts", reg.Len()))

	sources, err := mount.ClassifyAll(args[:len(args)-1], reg)
	if err != nil {
		return err
	}
	destination, err := mount.Classify(args[len(args)-1], reg)
	if err != nil {
		return err
	}

	var issuer credential.Issuer = credential.NewCLIIssuer(d.Config.CredentialTool, d.Config.SASExpiry, d.Runner)
	if opts.DryRun {
		issuer = credential.Placeholder{}
	}

	plan, err := transfer.Build(ctx, transfer.NewTranslator(issuer, d.Config.UseSAS), sources, destination)
	if err != nil {
		return err
	}
	d.Logger.Info("transfer planned",
		logging.String("plan", plan.Kind.String()),
		logging.Int("sources", len(sources)),
		logging.Int("cloud_actions", plan.CloudActions()),
		logging.Bool("sas", d.Config.UseSAS),
	)
	if opts.DryRun {
		fmt.Fprintf(d.Out, "Plan: %s\n", plan.Kind)
	}

	router := &transfer.Router{
		Runner:    d.Runner,
		Env:       d.Env,
		LocalTool: d.Config.LocalCopyTool,
		CloudTool: d.Config.CloudCopyTool,
		Out:       d.Out,
		Logger:    d.Logger,
		Propagate: d.Config.PropagateFailures,
		DryRun:    opts.DryRun,
	}
	return router.Execute(ctx, plan)
}
