package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/detbuild/internal/commands"
)

func newPatchCmd() *cobra.Command {
	var opts commands.PatchOpts

	cmd := &cobra.Command{
		Use:   "patch <package-folder>",
		Short: "Neutralize embedded timestamps under a package folder",
		Long: `Walk a package folder and overwrite the timestamps embedded in its
static libraries. With --shared, executables and shared libraries are
handed to the configured rewriter tool.

Arguments:
  package-folder    directory to walk`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newRunEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			opts.Dir = args[0]
			opts.ConfigPath = globalOpts.Config
			return commands.Patch(env.ctx, env.deps, env.cwd, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.OS, "os", "", "target platform: Windows, Linux or Macos (default: host)")
	cmd.Flags().BoolVar(&opts.Shared, "shared", false, "the package was built with shared linkage")
	cmd.Flags().StringVar(&opts.Rewriter, "rewriter", "", "executable rewriter tool (overrides rewriter_path)")
	cmd.Flags().BoolVar(&opts.Marker, "marker", false, "write 0x99-framed markers instead of zeros")

	return cmd
}

func newInspectCmd() *cobra.Command {
	var opts commands.InspectOpts

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show an archive's timestamp and where it occurs, without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newRunEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			opts.Path = args[0]
			return commands.Inspect(env.cwd, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.Marker, "marker", false, "preview marker replacement bytes")

	return cmd
}
