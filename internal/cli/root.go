package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/asad/usmo/internal/config"
	"github.com/asad/usmo/internal/core"
	"github.com/asad/usmo/internal/logging"
)

var (
	// Version is set at build time via ldflags.
	// Example: go build -ldflags "-X github.com/asad/usmo/internal/cli.Version=1.0.0"
	Version = "dev"
)

// exitCoder is implemented by errors that carry their own process exit status.
type exitCoder interface {
	ExitCode() int
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configFile string
	logLevel   string
}

// copyOptions are the cp flags; zero values leave the config untouched.
type copyOptions struct {
	sas         bool
	sasExpiry   time.Duration
	noPropagate bool
	dryRun      bool
}

// NewRootCommand builds the usmo command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "usmo",
		Short: "Copy files between local disk and blobfuse-mounted Azure storage",
		Long: `usmo copies files like cp, but notices when a path sits on a blobfuse2 mount
and moves that data with azcopy straight to or from Azure Blob Storage instead
of streaming it through the FUSE layer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/usmo/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newCopyCommand(opts))
	rootCmd.AddCommand(newMountsCommand(opts))
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

// Execute is the entry point for the CLI. It should be called from main.go.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command tree with args and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}

	var usage *core.UsageError
	if errors.As(err, &usage) {
		fmt.Fprintln(stderr, usage.Message)
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}

	var coded exitCoder
	if errors.As(err, &coded) && coded.ExitCode() != 0 {
		return coded.ExitCode()
	}
	return 1
}

// setup loads and validates config and builds the logger, applying root flags.
func setup(opts *rootOptions) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func newCopyCommand(root *rootOptions) *cobra.Command {
	opts := &copyOptions{}

	cmd := &cobra.Command{
		Use:   "cp [flags] SOURCE... DESTINATION",
		Short: "Copy files with blob storage support",
		Long: `Copy one or more sources into a destination.

When no path is on a blobfuse2 mount, the arguments go to cp -r unchanged.
When the destination is on a mount, every source is uploaded with azcopy.
Otherwise each source is copied on its own: mounted sources are downloaded
with azcopy, local ones with cp -r.

azcopy authenticates with the Azure CLI login. With --sas a user delegation
SAS token is minted per container and appended to the blob URLs.`,
		Example: `  usmo cp /mnt/data/model.bin ./models/
  usmo cp --sas -r ./dataset /mnt/data/datasets/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(root)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if opts.sas {
				cfg.UseSAS = true
			}
			if opts.sasExpiry > 0 {
				cfg.SASExpiry = opts.sasExpiry
			}
			if opts.noPropagate {
				cfg.PropagateFailures = false
			}

			d := core.NewDispatcher(cfg, logger, cmd.OutOrStdout())
			return d.Copy(cmd.Context(), args, core.CopyOptions{DryRun: opts.dryRun})
		},
	}

	// cp's own -r is accepted for familiarity; copies are always recursive.
	cmd.Flags().BoolP("recursive", "r", true, "copy directories recursively (always on)")
	cmd.Flags().BoolVar(&opts.sas, "sas", false, "append a freshly minted SAS token to blob URLs")
	cmd.Flags().DurationVar(&opts.sasExpiry, "sas-expiry", 0, "SAS token lifetime (default 168h)")
	cmd.Flags().BoolVar(&opts.noPropagate, "no-propagate", false, "exit 0 even if a transfer fails")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the planned commands without running them")
	return cmd
}

func newMountsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mounts",
		Short: "List active blobfuse2 mounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(root)
			if err != nil {
				return err
			}
			defer logger.Sync()

			d := core.NewDispatcher(cfg, logger, cmd.OutOrStdout())
			reg := d.Mounts(cmd.Context())
			if reg.Len() == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No blob mounts found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MOUNT PATH\tACCOUNT\tCONTAINER\tURL")
			for _, r := range reg.Records() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.MountPath, r.AccountName, r.ContainerName, r.BaseURL)
			}
			return w.Flush()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  `Print the version number of usmo.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "usmo version %s\n", Version)
		},
	}
}
