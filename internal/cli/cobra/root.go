// Package cobra provides the Cobra-based CLI command tree for detbuild.
package cobra

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NielsdaWheelz/detbuild/internal/commands"
	"github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/logging"
	"github.com/NielsdaWheelz/detbuild/internal/version"
)

// GlobalOpts holds global options parsed before subcommand dispatch.
type GlobalOpts struct {
	Verbose bool
	Config  string
}

// globalOpts stores the parsed global options for access by subcommands.
var globalOpts GlobalOpts

// GetGlobalOpts returns the parsed global options.
func GetGlobalOpts() GlobalOpts {
	return globalOpts
}

// NewRootCmd creates the root cobra command for detbuild.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "detbuild",
		Short: "Reproducible-build verification for C/C++ packages",
		Long: `detbuild - reproducible-build verification for C/C++ packages

detbuild neutralizes embedded timestamps in build artifacts and verifies that
repeated builds of the same sources produce bit-identical binaries, with the
deterministic hook off and on.`,
		Version:       version.FullVersion(),
		SilenceErrors: true, // We handle error printing in main.go
		SilenceUsage:  true, // We handle usage printing manually
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&globalOpts.Verbose, "verbose", false, "show detailed error context and debug logs")
	rootCmd.PersistentFlags().StringVar(&globalOpts.Config, "config", "", "settings file (default: ./detbuild.toml if present)")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newVerifyCmd(),
		newPatchCmd(),
		newInspectCmd(),
		newHookCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command with the given output writers.
// This is the main entry point from main.go.
func Execute(stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}

// runEnv is what every subcommand needs: a cancellable context, the
// working directory and real process dependencies logging to stderr.
type runEnv struct {
	ctx    context.Context
	cancel context.CancelFunc
	cwd    string
	deps   commands.Deps
	logger *zap.Logger
}

func newRunEnv(cmd *cobra.Command) (*runEnv, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to get working directory", err)
	}

	// Handle SIGINT for cancellation; the current build finishes its cleanup.
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)

	logger := logging.New(cmd.ErrOrStderr(), globalOpts.Verbose)
	return &runEnv{
		ctx:    ctx,
		cancel: cancel,
		cwd:    cwd,
		deps:   commands.RealDeps(logger),
		logger: logger,
	}, nil
}

func (e *runEnv) close() {
	e.cancel()
	_ = e.logger.Sync()
}
