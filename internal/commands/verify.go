package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/NielsdaWheelz/detbuild/internal/buildlog"
	"github.com/NielsdaWheelz/detbuild/internal/cases"
	"github.com/NielsdaWheelz/detbuild/internal/checksum"
	detclock "github.com/NielsdaWheelz/detbuild/internal/clock"
	"github.com/NielsdaWheelz/detbuild/internal/config"
	"github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/harness"
	"github.com/NielsdaWheelz/detbuild/internal/hook"
	"github.com/NielsdaWheelz/detbuild/internal/invoker"
	"github.com/NielsdaWheelz/detbuild/internal/logging"
	"github.com/NielsdaWheelz/detbuild/internal/patcher"
	"github.com/NielsdaWheelz/detbuild/internal/render"
	"github.com/NielsdaWheelz/detbuild/internal/store"
	"github.com/NielsdaWheelz/detbuild/internal/timestamp"
	"github.com/NielsdaWheelz/detbuild/internal/toolchain"
)

// VerifyOpts holds options for the verify command. Zero values keep the
// settings file's choice.
type VerifyOpts struct {
	// CasesPath is the YAML case file (required).
	CasesPath string

	// ConfigPath is the settings file. Empty means detbuild.toml in cwd, if present.
	ConfigPath string

	// Hooks restricts every case to these hook states, e.g. "off,on".
	Hooks string

	PerturbClock bool
	Seed         int64

	// Repeat overrides each case's repeat count.
	Repeat int

	ReportPath string
	HistoryDSN string

	// Color forces the grid and progress colors. Nil detects a terminal.
	Color *bool
}

// Verify runs every selected case under each hook state and prints the
// results grid. It returns E_NONDETERMINISTIC when any case produced
// differing artifacts under any hook state.
func Verify(ctx context.Context, deps Deps, cwd string, opts VerifyOpts, stdout io.Writer) error {
	deps = deps.withDefaults()
	logger := logging.Component(deps.Logger, "verify")

	if opts.CasesPath == "" {
		return errors.New(errors.EUsage, "--cases is required")
	}
	if opts.Repeat < 0 {
		return errors.New(errors.EUsage, "--repeat must be positive")
	}

	cfg, err := loadSettings(deps.FS, cwd, opts.ConfigPath)
	if err != nil {
		return err
	}
	cfg = applyVerifyOverrides(cfg, opts)
	if err := config.ValidateSettings(cfg); err != nil {
		return err
	}

	file, err := loadCases(deps, resolve(cwd, opts.CasesPath), opts)
	if err != nil {
		return err
	}

	platform := toolchain.HostPlatform()
	comp := compiler(ctx, deps, cfg, platform)
	selected, skipped := cases.Select(file.Cases, comp)
	if len(selected) == 0 {
		return errors.NewWithDetails(errors.ENoCases, fmt.Sprintf("no case matches compiler %s", comp.String()), map[string]string{
			"file": file.Path,
		})
	}

	layout, err := resetLogDir(deps, resolve(cwd, cfg.LogDir))
	if err != nil {
		return err
	}

	h, err := newHarness(deps, cfg, layout, platform, comp, stdout, opts.Color)
	if err != nil {
		return err
	}

	logger.Info("starting run",
		zap.String("run_id", h.RunID),
		zap.Int("cases", len(selected)),
		zap.Int("skipped", len(skipped)),
		zap.String("hook_mode", cfg.HookMode),
	)
	res, runErr := h.Run(ctx, selected, skipped)

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if cfg.Report != "" {
		path := resolve(cwd, cfg.Report)
		if err := store.WriteRunRecord(path, res.Record(runErr)); err != nil {
			errs = append(errs, errors.WrapWithDetails(errors.EReportWriteFailed, "failed to write run report", err, map[string]string{"report": path}))
		} else {
			logger.Info("run report written", zap.String("report", path))
		}
	}
	if cfg.History != "" {
		if err := recordHistory(ctx, historyDSN(cwd, cfg.History), res); err != nil {
			errs = append(errs, err)
		}
	}

	_, _ = fmt.Fprintln(stdout)
	if err := render.WriteGrid(stdout, res.Grid(), h.Printer.Color()); err != nil {
		errs = append(errs, errors.Wrap(errors.EInternal, "failed to write results", err))
	}

	if len(errs) > 0 {
		return stderrors.Join(errs...)
	}
	if failing := res.NonDeterministic(); len(failing) > 0 {
		return errors.NewWithDetails(errors.ENonDeterministic,
			fmt.Sprintf("%d of %d cases produced differing artifacts: %s", len(failing), len(res.Cases), strings.Join(failing, ", ")),
			map[string]string{"log": layout.Dir})
	}

	_, _ = fmt.Fprintf(stdout, "ok verify run=%s cases=%d skipped=%d\n", res.RunID, len(res.Cases), len(res.Skipped))
	return nil
}

func applyVerifyOverrides(cfg config.Settings, opts VerifyOpts) config.Settings {
	if opts.PerturbClock {
		cfg.PerturbClock = true
	}
	if opts.Seed != 0 {
		cfg.Seed = opts.Seed
	}
	if opts.ReportPath != "" {
		cfg.Report = opts.ReportPath
	}
	if opts.HistoryDSN != "" {
		cfg.History = opts.HistoryDSN
	}
	return cfg
}

// loadCases reads the case file and applies the command-line overrides,
// validating again since they change the number of builds per hook state.
func loadCases(deps Deps, path string, opts VerifyOpts) (*cases.File, error) {
	file, err := cases.Load(deps.FS, path)
	if err != nil {
		return nil, err
	}
	if opts.Hooks == "" && opts.Repeat == 0 {
		return file, nil
	}

	var hooks []cases.HookState
	for _, s := range splitList(opts.Hooks) {
		state, err := cases.ParseHookState(s)
		if err != nil {
			return nil, errors.Wrap(errors.EUsage, "invalid --hooks", err)
		}
		hooks = append(hooks, state)
	}
	for i := range file.Cases {
		if len(hooks) > 0 {
			file.Cases[i].Hooks = hooks
		}
		if opts.Repeat > 0 {
			file.Cases[i].Repeat = opts.Repeat
		}
	}
	if err := cases.Validate(file); err != nil {
		return nil, errors.WrapWithDetails(errors.EInvalidCases, err.Error(), err, map[string]string{"file": path})
	}
	return file, nil
}

// resetLogDir clears the previous run's logs. The directory's parent bounds
// the removal.
func resetLogDir(deps Deps, dir string) (*store.Layout, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to resolve log directory", err)
	}
	layout := store.NewLayout(deps.FS, abs, deps.Clock.Now)
	if err := layout.Reset(filepath.Dir(abs)); err != nil {
		return nil, errors.WrapWithDetails(errors.EInternal, "failed to clear log directory", err, map[string]string{"log": abs})
	}
	if err := deps.FS.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.WrapWithDetails(errors.EInternal, "failed to create log directory", err, map[string]string{"log": abs})
	}
	return layout, nil
}

func newHarness(deps Deps, cfg config.Settings, layout *store.Layout, platform toolchain.Platform, comp toolchain.Compiler, stdout io.Writer, colorOn *bool) (*harness.Harness, error) {
	format, err := buildlog.Lookup(cfg.LogFormat)
	if err != nil {
		return nil, errors.Wrap(errors.EInvalidConfig, "log_format", err)
	}
	alg, err := checksum.Algorithm(cfg.Checksum)
	if err != nil {
		return nil, errors.Wrap(errors.EInvalidConfig, "checksum", err)
	}

	printer := render.NewPrinter(stdout)
	if colorOn != nil {
		printer = render.NewPrinterWithColor(stdout, *colorOn)
	}

	h := &harness.Harness{
		Invoker: &invoker.Invoker{
			Runner: deps.Runner,
			FS:     deps.FS,
			Clock:  deps.Clock,
			Logger: logging.Component(deps.Logger, "invoker"),
			Tool:   cfg.BuildTool,
			Format: format,
		},
		Layout:    layout,
		Printer:   printer,
		Clock:     deps.Clock,
		Logger:    logging.Component(deps.Logger, "harness"),
		Algorithm: alg,
		Recipe:    cfg.RecipePath,
		Platform:  platform,
		Compiler:  comp,
		RunID:     xid.New().String(),
	}

	switch cfg.HookMode {
	case config.HookModeExternal:
		h.Toggler = &hook.Toggler{Runner: deps.Runner, Tool: cfg.BuildTool, Name: cfg.HookName}
	default:
		h.Lifecycle = hook.New(newPatcher(deps, cfg.MarkerNeutral, cfg.RewriterPath), deps.Env, cfg.EpochValue, logging.Component(deps.Logger, "hook"))
	}

	if cfg.PerturbClock {
		seed := cfg.Seed
		if seed == 0 {
			seed = deps.Clock.Now().UnixNano()
		}
		setter := deps.ClockSetter
		if setter == nil {
			setter = detclock.SystemSetter(cfg.HWClockSync)
		}
		h.Perturber = detclock.NewPerturber(setter, seed, deps.Clock, logging.Component(deps.Logger, "clock"))
		h.Seed = seed
		deps.Logger.Info("clock perturbation enabled", zap.String("seed", strconv.FormatInt(seed, 10)))
	}

	return h, nil
}

func newPatcher(deps Deps, marker bool, rewriter string) *patcher.Patcher {
	mode := timestamp.NeutralZero
	if marker {
		mode = timestamp.NeutralMarker
	}
	return patcher.New(logging.Component(deps.Logger, "patcher"), patcher.Options{
		Neutral:  mode,
		Rewriter: patcher.NewToolRewriter(rewriter),
	})
}

func recordHistory(ctx context.Context, dsn string, res *harness.Result) error {
	hist, err := store.OpenHistory(ctx, dsn)
	if err != nil {
		return errors.WrapWithDetails(errors.EHistoryFailed, "failed to open checksum history", err, map[string]string{"history": dsn})
	}
	defer func() { _ = hist.Close() }()

	if err := hist.Record(ctx, res.HistoryEntries()); err != nil {
		return errors.WrapWithDetails(errors.EHistoryFailed, "failed to record checksum history", err, map[string]string{"history": dsn})
	}
	return nil
}
