package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/exec"
	"github.com/NielsdaWheelz/detbuild/internal/hook"
	"github.com/NielsdaWheelz/detbuild/internal/logging"
	"github.com/NielsdaWheelz/detbuild/internal/render"
	"github.com/NielsdaWheelz/detbuild/internal/toolchain"
)

// HookRunOpts holds options for `hook run`.
type HookRunOpts struct {
	// BuildFolder is patched after the command succeeds (required).
	BuildFolder string

	OS              string
	Compiler        string
	CompilerVersion string
	Shared          bool
	Marker          bool

	// Command is the build command and its arguments (required).
	Command []string

	ConfigPath string
}

// HookRun drives the hook lifecycle around an arbitrary build command:
// init with the build context, enter the environment scope, run the
// command, patch the build folder and exit the scope. A failing command is
// not patched; the scope is still exited.
func HookRun(ctx context.Context, deps Deps, cwd string, opts HookRunOpts, stdout io.Writer) error {
	deps = deps.withDefaults()
	logger := logging.Component(deps.Logger, "hook")

	if opts.BuildFolder == "" {
		return errors.New(errors.EUsage, "--build-folder is required")
	}
	if len(opts.Command) == 0 {
		return errors.New(errors.EUsage, "build command is required after --")
	}
	platform, err := toolchain.ParsePlatform(opts.OS)
	if err != nil {
		return errors.Wrap(errors.EUsage, "invalid --os", err)
	}

	cfg, err := loadSettings(deps.FS, cwd, opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Compiler != "" {
		cfg.Compiler, cfg.CompilerVersion = opts.Compiler, opts.CompilerVersion
	}

	folder := resolve(cwd, opts.BuildFolder)
	lc := hook.New(newPatcher(deps, opts.Marker || cfg.MarkerNeutral, cfg.RewriterPath), deps.Env, cfg.EpochValue, logger)
	bc := toolchain.Context{
		Platform: platform,
		Compiler: compiler(ctx, deps, cfg, platform),
		LinkMode: toolchain.LinkModeFor(opts.Shared),
	}
	if err := lc.Init(bc); err != nil {
		return err
	}

	command := strings.Join(opts.Command, " ")
	report, err := lc.Run(ctx, func(ctx context.Context) (string, error) {
		// The scope is applied to the process environment; the overlay
		// covers runners that do not inherit it.
		env := lc.Scope().Overlay(deps.Environ())
		res, err := deps.Runner.Run(ctx, opts.Command[0], opts.Command[1:], exec.RunOpts{Dir: cwd, Env: env, Tee: stdout})
		if err != nil {
			return "", errors.WrapWithDetails(errors.EHookFailed, "build command could not be started", err, map[string]string{"command": command})
		}
		if res.ExitCode != 0 {
			return "", errors.NewWithDetails(errors.EHookFailed, fmt.Sprintf("build command exited %d", res.ExitCode), map[string]string{
				"command":   command,
				"exit_code": strconv.Itoa(res.ExitCode),
			})
		}
		return folder, nil
	})

	if report != nil {
		_, _ = fmt.Fprintln(stdout)
		if werr := render.WritePatchReport(stdout, report); werr != nil {
			logger.Warn("failed to write patch report", zap.Error(werr))
		}
	}
	if err != nil {
		return err
	}

	logger.Info("hook lifecycle finished",
		zap.String("folder", folder),
		zap.String("platform", string(bc.Platform)),
		zap.String("compiler", bc.Compiler.String()),
		zap.String("link_mode", string(bc.LinkMode)),
	)
	return nil
}
