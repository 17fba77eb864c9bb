// Package commands implements detbuild CLI commands.
//
// Commands take their process dependencies (command runner, filesystem,
// environment, clock) through Deps so tests can substitute fakes.
package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	detclock "github.com/NielsdaWheelz/detbuild/internal/clock"
	"github.com/NielsdaWheelz/detbuild/internal/config"
	"github.com/NielsdaWheelz/detbuild/internal/envscope"
	"github.com/NielsdaWheelz/detbuild/internal/exec"
	"github.com/NielsdaWheelz/detbuild/internal/fs"
	"github.com/NielsdaWheelz/detbuild/internal/store"
	"github.com/NielsdaWheelz/detbuild/internal/toolchain"
)

// Deps are the process resources a command touches.
type Deps struct {
	Runner exec.CommandRunner
	FS     fs.FS
	Clock  clock.Clock
	Logger *zap.Logger

	// Env is mutated by the build environment scope.
	Env envscope.Environ

	// Environ returns the full process environment for subprocesses.
	Environ func() []string

	// Getenv reads single variables (CI detection).
	Getenv func(string) string

	// ClockSetter overrides the host clock setter. Nil picks one for the host.
	ClockSetter detclock.Setter
}

// RealDeps returns the dependencies of a real process.
func RealDeps(logger *zap.Logger) Deps {
	return Deps{
		Runner:  exec.NewRealRunner(),
		FS:      fs.NewRealFS(),
		Clock:   clock.New(),
		Logger:  logger,
		Env:     envscope.OSEnviron{},
		Environ: os.Environ,
		Getenv:  os.Getenv,
	}
}

func (d Deps) withDefaults() Deps {
	if d.FS == nil {
		d.FS = fs.NewRealFS()
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Env == nil {
		d.Env = envscope.OSEnviron{}
	}
	if d.Environ == nil {
		d.Environ = os.Environ
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
	return d
}

// loadSettings reads path, or detbuild.toml in cwd when path is empty.
// An explicit path must exist.
func loadSettings(filesystem fs.FS, cwd, path string) (config.Settings, error) {
	required := path != ""
	if path == "" {
		path = config.DefaultSettingsFile
	}
	cfg, _, err := config.LoadSettings(filesystem, resolve(cwd, path), required)
	return cfg, err
}

func resolve(cwd, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cwd, p)
}

// compiler returns the configured override or asks the build tool.
// Detection failures leave the compiler empty, which matches only ungated cases.
func compiler(ctx context.Context, deps Deps, cfg config.Settings, platform toolchain.Platform) toolchain.Compiler {
	if cfg.Compiler != "" {
		return toolchain.Compiler{Name: cfg.Compiler, Version: cfg.CompilerVersion}
	}
	d := &toolchain.Detector{Runner: deps.Runner, Tool: cfg.BuildTool, Getenv: deps.Getenv}
	comp, err := d.Detect(ctx, platform)
	if err != nil {
		deps.Logger.Warn("compiler detection failed", zap.String("tool", cfg.BuildTool), zap.Error(err))
		return toolchain.Compiler{}
	}
	deps.Logger.Debug("compiler detected", zap.String("compiler", comp.String()))
	return comp
}

// splitList parses a comma separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// historyDSN anchors a relative SQLite history path at cwd.
func historyDSN(cwd, dsn string) string {
	if _, ok := store.DialectFor(dsn).(*store.SQLiteDialect); !ok {
		return dsn
	}
	path := strings.TrimPrefix(dsn, "sqlite://")
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") || filepath.IsAbs(path) {
		return dsn
	}
	return filepath.Join(cwd, path)
}
