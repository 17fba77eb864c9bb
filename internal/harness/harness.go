// Package harness builds each case repeatedly under every requested hook
// state and decides from artifact digests whether the output is
// reproducible.
//
// Per case the sequence is: stage sources, optionally perturb the system
// clock, run the build (bracketed by the hook lifecycle when the hook is on
// and runs inline), checksum every discovered artifact, compare digests by
// basename. Execution is strictly sequential; the process environment and
// the build tree have one writer at a time.
package harness

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/opencontainers/go-digest"
	"go.uber.org/zap"

	"github.com/NielsdaWheelz/detbuild/internal/cases"
	"github.com/NielsdaWheelz/detbuild/internal/checksum"
	detclock "github.com/NielsdaWheelz/detbuild/internal/clock"
	"github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/events"
	"github.com/NielsdaWheelz/detbuild/internal/hook"
	"github.com/NielsdaWheelz/detbuild/internal/invoker"
	"github.com/NielsdaWheelz/detbuild/internal/patcher"
	"github.com/NielsdaWheelz/detbuild/internal/render"
	"github.com/NielsdaWheelz/detbuild/internal/store"
	"github.com/NielsdaWheelz/detbuild/internal/toolchain"
)

// Harness runs cases. Exactly one of Lifecycle and Toggler is used: the
// lifecycle runs the patch step in-process, the toggler switches a hook the
// build tool runs itself.
type Harness struct {
	Invoker *invoker.Invoker

	// Lifecycle is the inline hook. Nil with a Toggler.
	Lifecycle *hook.Lifecycle

	// Toggler switches the build tool's own hook. Nil for inline mode.
	Toggler *hook.Toggler

	// Perturber moves the system clock before each build. Nil disables it.
	Perturber *detclock.Perturber
	Seed      int64

	Layout  *store.Layout
	Printer *render.Printer
	Clock   clock.Clock
	Logger  *zap.Logger

	Algorithm digest.Algorithm
	Recipe    string

	Platform toolchain.Platform
	Compiler toolchain.Compiler

	RunID string

	started time.Time
}

// Run executes every case and returns the collected result. Build failures
// and mismatches become outcomes; an error is returned only when the run
// cannot continue (build tool missing, staging, clock or hook toggle
// failures, environment restore failures, cancellation), together with the
// partial result. The system clock is restored before Run returns.
func (h *Harness) Run(ctx context.Context, selected []cases.Case, skipped []cases.Skipped) (res *Result, err error) {
	h.defaults()
	h.started = h.Clock.Now()

	res = &Result{
		RunID:    h.RunID,
		Started:  h.started,
		Platform: h.Platform,
		Compiler: h.Compiler,
		Skipped:  skipped,
	}
	if h.Perturber != nil {
		seed := h.Seed
		res.Seed = &seed
	}

	defer func() {
		if h.Perturber != nil {
			if rerr := h.Perturber.Restore(context.WithoutCancel(ctx)); rerr != nil {
				err = stderrors.Join(err, errors.Wrap(errors.EClockFailed, "failed to restore system clock", rerr))
			}
		}
		res.Finished = h.now()
		h.event(events.RunEnd, map[string]any{"ok": res.OK(), "cases": len(res.Cases)})
	}()

	h.event(events.RunStart, map[string]any{
		"cases":    len(selected),
		"skipped":  len(skipped),
		"platform": string(h.Platform),
		"compiler": h.Compiler.String(),
	})
	for _, s := range skipped {
		h.Printer.Skipped(s.Name, s.Reason)
		h.event(events.CaseSkipped, events.CaseData(s.Name, map[string]any{"reason": s.Reason}))
	}

	for _, c := range selected {
		cr, err := h.runCase(ctx, c)
		res.Cases = append(res.Cases, *cr)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func (h *Harness) defaults() {
	if h.Clock == nil {
		h.Clock = clock.New()
	}
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}
	if h.Algorithm == "" {
		h.Algorithm = digest.SHA256
	}
}

// now is the real time, measured from the monotonic reading taken at start
// so that a perturbed wall clock does not leak into reports.
func (h *Harness) now() time.Time {
	return h.started.Add(h.Clock.Since(h.started)).UTC()
}

func (h *Harness) event(name string, data map[string]any) {
	if h.Layout == nil {
		return
	}
	err := events.AppendEvent(h.Layout.EventsPath(), events.Event{
		SchemaVersion: events.SchemaVersion,
		Timestamp:     h.now().Format(time.RFC3339Nano),
		RunID:         h.RunID,
		Event:         name,
		Data:          data,
	})
	if err != nil {
		h.Logger.Warn("failed to append event", zap.String("event", name), zap.Error(err))
	}
}

func (h *Harness) runCase(ctx context.Context, c cases.Case) (*CaseResult, error) {
	logger := h.Logger.With(zap.String("case", c.Name))
	cr := newCaseResult(c)

	h.Printer.Case(c.Name)
	h.event(events.CaseStart, events.CaseData(c.Name, map[string]any{
		"hooks":      hookNames(c.Hooks),
		"runs":       c.Runs(),
		"build_type": c.BuildType,
		"link_mode":  string(c.LinkMode()),
	}))

	for _, state := range c.Hooks {
		if err := h.setHook(ctx, state); err != nil {
			return cr, err
		}
		h.Printer.HookState(state.Enabled())

		cmp := NewComparison()
		n := 0
		for rep := 0; rep < c.Repeat; rep++ {
			for _, b := range c.Builds {
				if err := ctx.Err(); err != nil {
					return cr, err
				}
				n++
				br, err := h.runBuild(ctx, c, b, state, n, logger)
				if br != nil {
					h.compare(c.Name, state, br, cmp)
					cr.Builds = append(cr.Builds, *br)
				}
				if err != nil {
					return cr, err
				}
			}
		}

		cr.Outcomes[state] = cmp.Outcome()
		if mm := cmp.Mismatches(); len(mm) > 0 {
			cr.Mismatches[state] = mm
		}
		logger.Info("case finished", zap.String("hook", string(state)), zap.String("outcome", string(cr.Outcomes[state])))
	}

	h.event(events.CaseEnd, events.CaseData(c.Name, map[string]any{"outcomes": cr.outcomeStrings()}))
	return cr, nil
}

func (h *Harness) setHook(ctx context.Context, state cases.HookState) error {
	if h.Toggler == nil {
		return nil
	}
	if err := h.Toggler.Set(ctx, state.Enabled()); err != nil {
		return err
	}
	h.event(events.HookToggled, map[string]any{"hook": string(state)})
	return nil
}

func (h *Harness) runBuild(ctx context.Context, c cases.Case, b cases.Build, state cases.HookState, n int, logger *zap.Logger) (*BuildResult, error) {
	logger = logger.With(zap.String("hook", string(state)), zap.Int("repetition", n))
	br := &BuildResult{Hook: state, Repetition: n, Folder: b.Folder}

	if err := Stage(b.Sources); err != nil {
		return nil, errors.WrapWithDetails(errors.EStageFailed, "failed to stage case sources", err, map[string]string{
			"case":   c.Name,
			"folder": b.Folder,
		})
	}
	logger.Debug("sources staged", zap.Int("sources", len(b.Sources)))

	if h.Perturber != nil {
		fake, err := h.Perturber.Perturb(ctx)
		if err != nil {
			return nil, errors.WrapWithDetails(errors.EClockFailed, "failed to perturb system clock", err, map[string]string{"case": c.Name})
		}
		br.FakeTime = &fake
		h.Printer.FakeTime(fake)
		h.event(events.ClockPerturbed, map[string]any{"case": c.Name, "time": fake.Format(time.RFC3339)})
	}

	req := invoker.Request{
		Folder:    b.Folder,
		Recipe:    h.Recipe,
		Reference: b.Reference,
		BuildType: c.BuildType,
		Shared:    c.Shared,
		Env:       b.Env,
	}
	if args, err := invoker.BuildArgs(req); err == nil {
		br.Command = append([]string{h.Invoker.Tool}, args...)
		h.Printer.Command(fmt.Sprintf("cd %s && %s", b.Folder, strings.Join(br.Command, " ")))
	}
	h.event(events.BuildStart, events.BuildStartData(c.Name, string(state), n, b.Folder, br.Command))

	inv, report, err := h.invoke(ctx, c, req, state)
	if err != nil {
		return nil, err
	}
	br.fromInvocation(inv)

	if h.Layout != nil {
		path, err := h.Layout.WriteBuildLog(c.Name, string(state), n, inv.Output)
		if err != nil {
			logger.Warn("failed to write build log", zap.Error(err))
		}
		br.LogPath = path
	}

	for _, line := range inv.Artifacts.HookLines {
		h.Printer.HookLine(line)
	}
	if report != nil {
		h.echoReport(report)
		br.Unverified = unverifiedAmong(report, inv.Artifacts.Paths)
	}

	for _, path := range inv.Artifacts.Paths {
		rec, err := checksum.File(h.Algorithm, path)
		if err != nil {
			br.Warnings = append(br.Warnings, fmt.Sprintf("checksum %s: %v", path, err))
			logger.Warn("checksum failed", zap.String("file", path), zap.Error(err))
			continue
		}
		br.Artifacts = append(br.Artifacts, rec)
	}

	var pkg *string
	if br.PackageFolder != "" {
		pkg = &br.PackageFolder
	}
	h.event(events.BuildEnd, events.BuildEndData(c.Name, string(state), n, br.ExitCode, br.Duration.Milliseconds(), len(br.Artifacts), pkg, br.LogPath))

	if len(br.Artifacts) == 0 {
		h.Printer.NoArtifacts(br.ExitCode, br.LogPath)
	}
	for _, w := range br.Warnings {
		h.Printer.Warn(w)
	}
	return br, nil
}

// invoke runs the build, inside the inline hook lifecycle when the hook is on.
func (h *Harness) invoke(ctx context.Context, c cases.Case, req invoker.Request, state cases.HookState) (*invoker.Result, *patcher.Report, error) {
	if h.Lifecycle == nil || !state.Enabled() {
		inv, err := h.Invoker.Invoke(ctx, req)
		return inv, nil, err
	}

	if err := h.Lifecycle.Init(toolchain.Context{Platform: h.Platform, Compiler: h.Compiler, LinkMode: c.LinkMode()}); err != nil {
		return nil, nil, err
	}

	var inv *invoker.Result
	report, err := h.Lifecycle.Run(ctx, func(ctx context.Context) (string, error) {
		var err error
		inv, err = h.Invoker.Invoke(ctx, req)
		if err != nil {
			return "", err
		}
		return inv.Artifacts.PackageFolder, nil
	})
	if err != nil {
		if inv == nil || fatal(err) {
			return nil, nil, err
		}
		// Per-file patch failures leave the affected artifacts unverified.
		h.Logger.Warn("patch step reported failures", zap.String("case", c.Name), zap.Error(err))
	}
	return inv, report, nil
}

func (h *Harness) echoReport(r *patcher.Report) {
	for _, f := range r.Files {
		switch f.Outcome {
		case patcher.OutcomePatched:
			h.Printer.HookLine(fmt.Sprintf("HOOK - %s: patched %d timestamp occurrences in %s", hook.Name, f.Matches(), f.Path))
		case patcher.OutcomeRewritten:
			h.Printer.HookLine(fmt.Sprintf("HOOK - %s: rewrote %s", hook.Name, f.Path))
		case patcher.OutcomeSkipped, patcher.OutcomeAlreadyNeutral:
		default:
			h.Printer.Unverified(f.Path, string(f.Outcome))
		}
	}
}

func (h *Harness) compare(caseName string, state cases.HookState, br *BuildResult, cmp *Comparison) {
	matches := cmp.AddBuild(br.Artifacts, len(br.Unverified))
	for i, rec := range br.Artifacts {
		h.Printer.CreatedBinary(rec.Path, checksum.Short(rec.Digest), rec.Size)
		if matches[i] != nil {
			h.Printer.Match(*matches[i])
		}
		h.event(events.Artifact, events.ArtifactData(caseName, string(state), br.Repetition, rec.Name, rec.Path, rec.Digest.String(), matches[i]))
	}
}

// unverifiedAmong returns the discovered artifacts the patch step could not handle.
func unverifiedAmong(r *patcher.Report, paths []string) []string {
	bad := make(map[string]bool)
	for _, f := range r.Unverified() {
		bad[f.Path] = true
	}
	var out []string
	for _, p := range paths {
		if bad[p] {
			out = append(out, p)
		}
	}
	return out
}

// fatal reports whether err carries anything beyond per-file patch failures.
func fatal(err error) bool {
	switch e := err.(type) {
	case nil:
		return false
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if fatal(inner) {
				return true
			}
		}
		return false
	default:
		return errors.GetCode(err) != errors.EPatchFailed
	}
}

func hookNames(states []cases.HookState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
