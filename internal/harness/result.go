package harness

import (
	"time"

	"github.com/siderolabs/go-pointer"

	"github.com/NielsdaWheelz/detbuild/internal/cases"
	"github.com/NielsdaWheelz/detbuild/internal/checksum"
	"github.com/NielsdaWheelz/detbuild/internal/invoker"
	"github.com/NielsdaWheelz/detbuild/internal/render"
	"github.com/NielsdaWheelz/detbuild/internal/store"
	"github.com/NielsdaWheelz/detbuild/internal/toolchain"
)

// Result is one verify run.
type Result struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	Platform toolchain.Platform
	Compiler toolchain.Compiler

	// Seed is the clock perturbation seed, nil when the clock was left alone.
	Seed *int64

	Cases   []CaseResult
	Skipped []cases.Skipped
}

// CaseResult is one case across all of its hook states.
type CaseResult struct {
	Name string
	Case cases.Case

	Outcomes   map[cases.HookState]Outcome
	Mismatches map[cases.HookState][]string
	Builds     []BuildResult
}

// BuildResult is one build invocation.
type BuildResult struct {
	Hook       cases.HookState
	Repetition int
	Folder     string
	Command    []string
	ExitCode   int
	Duration   time.Duration

	// FakeTime is the system time set before the build, nil when unperturbed.
	FakeTime *time.Time

	PackageFolder string
	LogPath       string
	Artifacts     []checksum.Record
	Unverified    []string
	Warnings      []string
}

func newCaseResult(c cases.Case) *CaseResult {
	return &CaseResult{
		Name:       c.Name,
		Case:       c,
		Outcomes:   make(map[cases.HookState]Outcome),
		Mismatches: make(map[cases.HookState][]string),
	}
}

func (b *BuildResult) fromInvocation(inv *invoker.Result) {
	b.ExitCode = inv.ExitCode
	b.Duration = inv.Duration
	b.PackageFolder = inv.Artifacts.PackageFolder
	b.Warnings = append(b.Warnings, inv.Artifacts.Warnings...)
}

func (c *CaseResult) outcomeStrings() map[string]string {
	out := make(map[string]string, len(c.Outcomes))
	for state, o := range c.Outcomes {
		out[string(state)] = string(o)
	}
	return out
}

// OK reports whether no case produced differing artifacts.
func (r *Result) OK() bool {
	for _, c := range r.Cases {
		for _, o := range c.Outcomes {
			if o == OutcomeNonDeterministic {
				return false
			}
		}
	}
	return true
}

// NonDeterministic returns the names of failing cases in run order.
func (r *Result) NonDeterministic() []string {
	var out []string
	for _, c := range r.Cases {
		for _, state := range c.Case.Hooks {
			if c.Outcomes[state] == OutcomeNonDeterministic {
				out = append(out, c.Name)
				break
			}
		}
	}
	return out
}

// Grid returns one row per case for the results table.
func (r *Result) Grid() []render.GridRow {
	rows := make([]render.GridRow, 0, len(r.Cases))
	for _, c := range r.Cases {
		rows = append(rows, render.GridRow{
			Case: c.Name,
			Off:  string(c.Outcomes[cases.HookOff]),
			On:   string(c.Outcomes[cases.HookOn]),
		})
	}
	return rows
}

// Record converts the result into the JSON run report. runErr, when
// non-nil, is recorded as the reason the run stopped.
func (r *Result) Record(runErr error) *store.RunRecord {
	rec := &store.RunRecord{
		SchemaVersion: store.SchemaVersion,
		RunID:         r.RunID,
		StartedAt:     r.Started.UTC().Format(time.RFC3339Nano),
		Platform:      string(r.Platform),
		Compiler:      r.Compiler.String(),
		Seed:          r.Seed,
		Cases:         make([]store.CaseRecord, 0, len(r.Cases)),
		OK:            r.OK() && runErr == nil,
	}
	if !r.Finished.IsZero() {
		rec.FinishedAt = r.Finished.UTC().Format(time.RFC3339Nano)
		rec.DurationMS = r.Finished.Sub(r.Started).Milliseconds()
	}
	if runErr != nil {
		rec.Error = pointer.To(runErr.Error())
	}
	for _, s := range r.Skipped {
		rec.Skipped = append(rec.Skipped, store.SkippedCase{Name: s.Name, Reason: s.Reason})
	}

	for _, c := range r.Cases {
		cr := store.CaseRecord{
			Name:      c.Name,
			BuildType: c.Case.BuildType,
			LinkMode:  string(c.Case.LinkMode()),
			Outcomes:  c.outcomeStrings(),
			Builds:    make([]store.BuildRecord, 0, len(c.Builds)),
		}
		for state, names := range c.Mismatches {
			if cr.Mismatches == nil {
				cr.Mismatches = make(map[string][]string)
			}
			cr.Mismatches[string(state)] = names
		}
		for _, b := range c.Builds {
			cr.Builds = append(cr.Builds, b.record())
		}
		rec.Cases = append(rec.Cases, cr)
	}
	return rec
}

func (b BuildResult) record() store.BuildRecord {
	rec := store.BuildRecord{
		Hook:       string(b.Hook),
		Repetition: b.Repetition,
		Folder:     b.Folder,
		Command:    b.Command,
		ExitCode:   b.ExitCode,
		DurationMS: b.Duration.Milliseconds(),
		LogPath:    b.LogPath,
		Artifacts:  make([]store.ArtifactRecord, 0, len(b.Artifacts)),
		Unverified: b.Unverified,
		Warnings:   b.Warnings,
	}
	if b.FakeTime != nil {
		rec.FakeTime = pointer.To(b.FakeTime.Format(time.RFC3339))
	}
	if b.PackageFolder != "" {
		rec.PackageFolder = pointer.To(b.PackageFolder)
	}
	for _, a := range b.Artifacts {
		rec.Artifacts = append(rec.Artifacts, store.ArtifactRecord{
			Name:   a.Name,
			Path:   a.Path,
			Size:   a.Size,
			Digest: a.Digest.String(),
		})
	}
	return rec
}

// HistoryEntries flattens every artifact into checksum history rows.
func (r *Result) HistoryEntries() []store.HistoryEntry {
	recorded := r.Finished
	if recorded.IsZero() {
		recorded = r.Started
	}
	at := recorded.UTC().Format(time.RFC3339Nano)

	var out []store.HistoryEntry
	for _, c := range r.Cases {
		for _, b := range c.Builds {
			for _, a := range b.Artifacts {
				out = append(out, store.HistoryEntry{
					RunID:      r.RunID,
					RecordedAt: at,
					Case:       c.Name,
					Hook:       string(b.Hook),
					Repetition: b.Repetition,
					Artifact:   a.Name,
					Path:       a.Path,
					Size:       a.Size,
					Digest:     a.Digest.String(),
				})
			}
		}
	}
	return out
}
