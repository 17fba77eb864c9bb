// Package invoker runs one build-and-package command against the external
// build tool and discovers the artifacts it produced from the tool's log.
package invoker

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/shlex"
	"go.uber.org/zap"

	"github.com/NielsdaWheelz/detbuild/internal/buildlog"
	"github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/exec"
	"github.com/NielsdaWheelz/detbuild/internal/fs"
)

// DefaultReference is used when a build names no user/channel.
const DefaultReference = "user/channel"

// Request describes one build.
type Request struct {
	// Folder is the working directory the build tool runs in.
	Folder string

	// Recipe is the recipe path relative to Folder. Empty means ".".
	Recipe string

	// Reference is the user/channel, optionally followed by extra tool arguments.
	Reference string

	// BuildType is passed as -s build_type=<BuildType> when set.
	BuildType string

	// Shared adds -o shared=True.
	Shared bool

	// Env holds KEY=VALUE overlays applied on top of the process environment.
	Env []string
}

// Result is what one build produced. A failed build is a Result with a
// non-zero ExitCode and, usually, no artifacts.
type Result struct {
	Args      []string
	ExitCode  int
	Output    string
	Duration  time.Duration
	Artifacts buildlog.Result
}

// Invoker runs builds.
type Invoker struct {
	Runner exec.CommandRunner
	FS     fs.FS
	Clock  clock.Clock
	Logger *zap.Logger

	// Tool is the build tool binary.
	Tool string

	// Format is the log format artifact markers are read with.
	Format buildlog.Format

	// Tee receives build output as it is produced. May be nil.
	Tee io.Writer
}

// BuildArgs assembles `create <recipe> <reference...> [-s build_type=X] [-o shared=True]`.
// The reference is split with shell quoting rules.
func BuildArgs(req Request) ([]string, error) {
	recipe := req.Recipe
	if recipe == "" {
		recipe = "."
	}
	reference := req.Reference
	if strings.TrimSpace(reference) == "" {
		reference = DefaultReference
	}

	refArgs, err := shlex.Split(reference)
	if err != nil {
		return nil, fmt.Errorf("invalid reference %q: %w", reference, err)
	}

	args := append([]string{"create", recipe}, refArgs...)
	if req.BuildType != "" {
		args = append(args, "-s", "build_type="+req.BuildType)
	}
	if req.Shared {
		args = append(args, "-o", "shared=True")
	}
	return args, nil
}

// Invoke runs the build and extracts artifact paths from its output.
//
// A non-zero exit is not an error; it is reported through Result.ExitCode
// and surfaces downstream as a build with no artifacts. Invoke returns an
// error only when the build tool cannot be started.
func (i *Invoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	logger := i.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := i.Clock
	if clk == nil {
		clk = clock.New()
	}

	args, err := BuildArgs(req)
	if err != nil {
		return nil, errors.Wrap(errors.EInvalidCases, "invalid build reference", err)
	}

	opts := exec.RunOpts{Dir: req.Folder, Tee: i.Tee}
	if len(req.Env) > 0 {
		opts.Env = Merge(os.Environ(), req.Env)
	}

	logger.Info("running build",
		zap.String("folder", req.Folder),
		zap.String("command", i.Tool+" "+strings.Join(args, " ")),
	)

	start := clk.Now()
	cmdRes, err := i.Runner.Run(ctx, i.Tool, args, opts)
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EBuildToolNotFound, "build tool could not be started", err, map[string]string{
			"tool":    i.Tool,
			"command": i.Tool + " " + strings.Join(args, " "),
			"folder":  req.Folder,
		})
	}

	res := &Result{
		Args:     args,
		ExitCode: cmdRes.ExitCode,
		Output:   cmdRes.Combined,
		Duration: clk.Since(start),
	}
	res.Artifacts = i.Format.Extract(res.Output, req.Folder, i.isFile)

	if res.ExitCode != 0 {
		logger.Warn("build exited non-zero", zap.Int("exit_code", res.ExitCode), zap.String("folder", req.Folder))
	}
	for _, w := range res.Artifacts.Warnings {
		logger.Warn("artifact discovery", zap.String("warning", w))
	}
	logger.Debug("build finished",
		zap.Duration("duration", res.Duration),
		zap.Strings("artifacts", res.Artifacts.Paths),
		zap.String("package_folder", res.Artifacts.PackageFolder),
	)

	return res, nil
}

func (i *Invoker) isFile(path string) bool {
	if i.FS == nil {
		return fs.IsFile(path)
	}
	st, err := i.FS.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// Merge returns base with overlay entries replacing same-named keys.
func Merge(base, overlay []string) []string {
	override := make(map[string]bool, len(overlay))
	for _, kv := range overlay {
		k, _, _ := strings.Cut(kv, "=")
		override[k] = true
	}

	out := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if !override[k] {
			out = append(out, kv)
		}
	}
	return append(out, overlay...)
}
