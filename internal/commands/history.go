package commands

import (
	"context"
	"io"

	"github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/render"
	"github.com/NielsdaWheelz/detbuild/internal/store"
)

// HistoryOpts holds options for the history command.
type HistoryOpts struct {
	// DSN overrides the settings file's history.
	DSN string

	// Case restricts output to one case.
	Case string

	// Limit keeps only the most recent runs. Zero means all.
	Limit int

	ConfigPath string
}

// History prints recorded artifact checksums.
func History(ctx context.Context, deps Deps, cwd string, opts HistoryOpts, stdout io.Writer) error {
	deps = deps.withDefaults()

	if opts.Limit < 0 {
		return errors.New(errors.EUsage, "--limit must not be negative")
	}
	dsn := opts.DSN
	if dsn == "" {
		cfg, err := loadSettings(deps.FS, cwd, opts.ConfigPath)
		if err != nil {
			return err
		}
		dsn = cfg.History
	}
	if dsn == "" {
		return errors.New(errors.EUsage, "no history configured; pass --history or set history in detbuild.toml")
	}

	dsn = historyDSN(cwd, dsn)
	hist, err := store.OpenHistory(ctx, dsn)
	if err != nil {
		return errors.WrapWithDetails(errors.EHistoryFailed, "failed to open checksum history", err, map[string]string{"history": dsn})
	}
	defer func() { _ = hist.Close() }()

	entries, err := hist.Query(ctx, opts.Case, opts.Limit)
	if err != nil {
		return errors.WrapWithDetails(errors.EHistoryFailed, "failed to query checksum history", err, map[string]string{"history": dsn})
	}
	if err := render.WriteHistory(stdout, entries); err != nil {
		return errors.Wrap(errors.EInternal, "failed to write history", err)
	}
	return nil
}
