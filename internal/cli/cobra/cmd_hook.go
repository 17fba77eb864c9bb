package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/detbuild/internal/commands"
	"github.com/NielsdaWheelz/detbuild/internal/errors"
)

func newHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Deterministic build hook lifecycle",
	}
	cmd.AddCommand(newHookRunCmd())
	return cmd
}

func newHookRunCmd() *cobra.Command {
	var opts commands.HookRunOpts

	cmd := &cobra.Command{
		Use:   "run --build-folder <dir> -- <build command...>",
		Short: "Run a build command inside the hook lifecycle",
		Long: `Run a build command the way a build orchestrator drives the hook:

  1. init with the build context (--os, --compiler, --shared)
  2. pre-build: export SOURCE_DATE_EPOCH (Linux) or ZERO_AR_DATE (Macos)
  3. run the build command
  4. post-build: patch --build-folder, then restore the environment

The environment is restored even when the command fails.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.ArgsLenAtDash() < 0 && len(args) > 0 {
				_ = cmd.Help()
				return errors.New(errors.EUsage, "separate the build command with --")
			}

			env, err := newRunEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			opts.Command = args
			opts.ConfigPath = globalOpts.Config
			return commands.HookRun(env.ctx, env.deps, env.cwd, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.BuildFolder, "build-folder", "", "package folder patched after a successful build")
	cmd.Flags().StringVar(&opts.OS, "os", "", "target platform: Windows, Linux or Macos (default: host)")
	cmd.Flags().StringVar(&opts.Compiler, "compiler", "", "compiler name reported to the hook")
	cmd.Flags().StringVar(&opts.CompilerVersion, "compiler-version", "", "compiler version reported to the hook")
	cmd.Flags().BoolVar(&opts.Shared, "shared", false, "the build uses shared linkage")
	cmd.Flags().BoolVar(&opts.Marker, "marker", false, "write 0x99-framed markers instead of zeros")

	return cmd
}
