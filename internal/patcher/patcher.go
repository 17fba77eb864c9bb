// Package patcher neutralizes embedded build timestamps in a build output tree.
//
// Archive containers (.lib, .a) are rewritten in place by replacing every
// encoding of the first member's header timestamp. Executables and shared
// libraries are handed to an external rewriter when one is installed.
// Patching is stateless per file and idempotent.
package patcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/NielsdaWheelz/detbuild/internal/timestamp"
	"github.com/NielsdaWheelz/detbuild/internal/toolchain"
)

// Class is the container family of an artifact.
type Class string

const (
	ClassArchive Class = "archive"
	ClassBinary  Class = "binary"
	ClassOther   Class = "other"
)

var (
	archiveExts = []string{".lib", ".a"}
	binaryExts  = map[toolchain.Platform][]string{
		toolchain.Windows: {".exe", ".dll"},
		toolchain.Linux:   {".so"},
		toolchain.Macos:   {".dylib"},
	}
)

// Classify decides how an artifact is handled by extension convention.
func Classify(path string, platform toolchain.Platform) Class {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range archiveExts {
		if ext == e {
			return ClassArchive
		}
	}
	for _, e := range binaryExts[platform] {
		if ext == e {
			return ClassBinary
		}
	}
	return ClassOther
}

// Options configures a Patcher.
type Options struct {
	// Neutral selects zero or marker replacement bytes.
	Neutral timestamp.Neutral

	// Width is the packed encoding width; zero means 32-bit.
	Width timestamp.Width

	// Rewriter handles executables and shared libraries. Nil means none is installed.
	Rewriter Rewriter
}

// Patcher walks build trees and patches the artifacts it finds.
type Patcher struct {
	opts   Options
	logger *zap.Logger
}

// New returns a Patcher. A nil logger discards output.
func New(logger *zap.Logger, opts Options) *Patcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Width == 0 {
		opts.Width = timestamp.Width32
	}
	return &Patcher{opts: opts, logger: logger}
}

// Patch walks root and patches every matched file.
//
// Archives are always patched. With static linkage only archives are
// handled; with shared linkage binaries are delegated to the rewriter.
// Per-file failures are collected and returned together after the walk.
func (p *Patcher) Patch(ctx context.Context, root string, platform toolchain.Platform, link toolchain.LinkMode) (*Report, error) {
	report := &Report{Root: root}
	var errs *multierror.Error

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = multierror.Append(errs, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		switch Classify(path, platform) {
		case ClassArchive:
			res, err := p.PatchArchive(path)
			if err != nil {
				errs = multierror.Append(errs, err)
			}
			report.Files = append(report.Files, res)
		case ClassBinary:
			res := p.patchBinary(ctx, path, link)
			if res.Outcome == OutcomeRewriteFailed {
				errs = multierror.Append(errs, &RewriteError{Path: path, Reason: res.Reason})
			}
			report.Files = append(report.Files, res)
		}
		return nil
	})
	if walkErr != nil {
		errs = multierror.Append(errs, walkErr)
	}

	p.logger.Info("patch walk complete",
		zap.String("root", root),
		zap.Int("patched", report.Count(OutcomePatched)),
		zap.Int("already_neutral", report.Count(OutcomeAlreadyNeutral)),
		zap.Int("decode_failed", report.Count(OutcomeDecodeFailed)),
		zap.Int("tool_missing", report.Count(OutcomeToolMissing)),
		zap.Int("rewritten", report.Count(OutcomeRewritten)),
	)

	return report, errs.ErrorOrNil()
}

func (p *Patcher) patchBinary(ctx context.Context, path string, link toolchain.LinkMode) FileResult {
	res := FileResult{Path: path, Class: ClassBinary}

	if link == toolchain.Static {
		res.Outcome = OutcomeSkipped
		return res
	}
	if p.opts.Rewriter == nil {
		res.Outcome = OutcomeToolMissing
		p.logger.Debug("no rewriter configured, binary left unverified", zap.String("file", path))
		return res
	}

	outcome, err := p.opts.Rewriter.MaybePatch(ctx, path)
	res.Outcome = outcome
	if err != nil {
		res.Reason = err.Error()
	}

	switch outcome {
	case OutcomeToolMissing:
		p.logger.Debug("rewriter not installed, binary left unverified", zap.String("file", path))
	case OutcomeRewriteFailed:
		p.logger.Warn("rewriter failed", zap.String("file", path), zap.Error(err))
	default:
		p.logger.Info("rewrote binary", zap.String("file", path))
	}
	return res
}
