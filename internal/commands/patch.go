package commands

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/patcher"
	"github.com/NielsdaWheelz/detbuild/internal/render"
	"github.com/NielsdaWheelz/detbuild/internal/timestamp"
	"github.com/NielsdaWheelz/detbuild/internal/toolchain"
)

// PatchOpts holds options for the patch command.
type PatchOpts struct {
	// Dir is the package folder to walk (required).
	Dir string

	// OS is the target platform. Empty means the host.
	OS string

	Shared bool

	// Rewriter overrides rewriter_path from the settings file.
	Rewriter string

	// Marker writes 0x99-framed replacements.
	Marker bool

	ConfigPath string
}

// Patch neutralizes timestamps under a package folder without building.
// Per-file failures are listed in the report and returned as E_PATCH_FAILED.
func Patch(ctx context.Context, deps Deps, cwd string, opts PatchOpts, stdout io.Writer) error {
	deps = deps.withDefaults()

	if opts.Dir == "" {
		return errors.New(errors.EUsage, "package folder is required")
	}
	dir := resolve(cwd, opts.Dir)
	if st, err := deps.FS.Stat(dir); err != nil || !st.IsDir() {
		return errors.NewWithDetails(errors.EUsage, "package folder does not exist", map[string]string{"folder": dir})
	}

	platform, err := toolchain.ParsePlatform(opts.OS)
	if err != nil {
		return errors.Wrap(errors.EUsage, "invalid --os", err)
	}

	cfg, err := loadSettings(deps.FS, cwd, opts.ConfigPath)
	if err != nil {
		return err
	}
	rewriter := cfg.RewriterPath
	if opts.Rewriter != "" {
		rewriter = opts.Rewriter
	}

	p := newPatcher(deps, opts.Marker || cfg.MarkerNeutral, rewriter)
	report, patchErr := p.Patch(ctx, dir, platform, toolchain.LinkModeFor(opts.Shared))
	if report != nil {
		if err := render.WritePatchReport(stdout, report); err != nil {
			return errors.Wrap(errors.EInternal, "failed to write patch report", err)
		}
	}
	if patchErr != nil {
		return errors.WrapWithDetails(errors.EPatchFailed, "failed to patch package folder", patchErr, map[string]string{"folder": dir})
	}

	deps.Logger.Debug("patch finished",
		zap.String("folder", dir),
		zap.Int("patched", report.Count(patcher.OutcomePatched)),
		zap.Int("unverified", len(report.Unverified())),
	)
	return nil
}

// InspectOpts holds options for the inspect command.
type InspectOpts struct {
	// Path is the archive to scan (required).
	Path string

	// Marker previews marker replacements instead of zeros.
	Marker bool
}

// Inspect decodes one archive's timestamp and lists where it occurs without
// writing to the file.
func Inspect(cwd string, opts InspectOpts, stdout io.Writer) error {
	if opts.Path == "" {
		return errors.New(errors.EUsage, "file is required")
	}
	path := resolve(cwd, opts.Path)

	mode := timestamp.NeutralZero
	if opts.Marker {
		mode = timestamp.NeutralMarker
	}
	in, err := patcher.Inspect(path, timestamp.Width32, mode)
	if err != nil {
		return errors.WrapWithDetails(errors.EUsage, "failed to inspect file", err, map[string]string{"file": path})
	}
	if err := render.WriteInspection(stdout, in); err != nil {
		return errors.Wrap(errors.EInternal, "failed to write inspection", err)
	}
	return nil
}
