package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/detbuild/internal/commands"
)

func newVerifyCmd() *cobra.Command {
	var opts commands.VerifyOpts

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Build each case repeatedly and compare artifact checksums",
		Long: `Build every case in the case file under each hook state and compare
the checksums of the produced binaries across repetitions.

Behavior:
  - stages each build's sources, then runs <build_tool> create
  - with the hook on, neutralizes timestamps in the package folder
  - clears log_dir, then writes one log per build plus events.jsonl
  - prints a SUCCESS / FAIL / INCONCLUSIVE / UNKNOWN grid per case

Exit codes:
  0  no case produced differing binaries
  3  at least one case is non-deterministic`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newRunEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			opts.ConfigPath = globalOpts.Config
			return commands.Verify(env.ctx, env.deps, env.cwd, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.CasesPath, "cases", "", "case file (YAML)")
	cmd.Flags().StringVar(&opts.Hooks, "hooks", "", "hook states to run for every case, e.g. off,on")
	cmd.Flags().BoolVar(&opts.PerturbClock, "perturb-clock", false, "set the system clock to a random date before each build")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "clock perturbation seed (0 picks one)")
	cmd.Flags().IntVar(&opts.Repeat, "repeat", 0, "override every case's repeat count")
	cmd.Flags().StringVar(&opts.ReportPath, "report", "", "write a JSON run report to this path")
	cmd.Flags().StringVar(&opts.HistoryDSN, "history", "", "record checksums to this SQLite path or postgres:// DSN")
	_ = cmd.MarkFlagRequired("cases")

	return cmd
}
