package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/detbuild/internal/commands"
)

func newHistoryCmd() *cobra.Command {
	var opts commands.HistoryOpts

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded artifact checksums",
		Long: `Print artifact checksums recorded by previous verify runs, oldest first.
The CHANGE column compares each row with the previous one for the same
case, hook state and artifact.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newRunEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			opts.ConfigPath = globalOpts.Config
			return commands.History(env.ctx, env.deps, env.cwd, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.DSN, "history", "", "SQLite path or postgres:// DSN (overrides the settings file)")
	cmd.Flags().StringVar(&opts.Case, "case", "", "only show this case")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "only show the most recent N runs")

	return cmd
}
