package patcher

import (
	"github.com/siderolabs/gen/xslices"
)

// Outcome is the typed result of handling one artifact.
type Outcome string

const (
	// OutcomePatched means at least one timestamp occurrence was neutralized.
	OutcomePatched Outcome = "patched"

	// OutcomeAlreadyNeutral means the header field already carries a neutral value.
	OutcomeAlreadyNeutral Outcome = "already-neutral"

	// OutcomeDecodeFailed means the header field is not a decimal timestamp; the file is untouched.
	OutcomeDecodeFailed Outcome = "decode-failed"

	// OutcomeToolMissing means no external rewriter is available for this class.
	OutcomeToolMissing Outcome = "tool-missing"

	// OutcomeRewritten means the external rewriter exited zero.
	OutcomeRewritten Outcome = "rewritten"

	// OutcomeRewriteFailed means the external rewriter exited non-zero.
	OutcomeRewriteFailed Outcome = "rewrite-failed"

	// OutcomeSkipped means the class is not patched for this link mode.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeError means the file could not be read or written.
	OutcomeError Outcome = "error"
)

// Verified reports whether the outcome leaves the artifact free of the
// timestamps this tool knows how to remove.
func (o Outcome) Verified() bool {
	switch o {
	case OutcomePatched, OutcomeAlreadyNeutral, OutcomeRewritten:
		return true
	default:
		return false
	}
}

// FileResult describes what happened to one file.
type FileResult struct {
	Path    string  `json:"path"`
	Class   Class   `json:"class"`
	Outcome Outcome `json:"outcome"`

	// Value is the decoded header timestamp, zero when none was decoded.
	Value int64 `json:"value,omitempty"`

	// ASCIIOffsets and PackedOffsets are the positions that were overwritten.
	ASCIIOffsets  []int `json:"ascii_offsets,omitempty"`
	PackedOffsets []int `json:"packed_offsets,omitempty"`

	// Reason is set for decode, rewrite, and I/O failures.
	Reason string `json:"reason,omitempty"`
}

// Matches is the total number of overwritten occurrences.
func (r FileResult) Matches() int {
	return len(r.ASCIIOffsets) + len(r.PackedOffsets)
}

// Report is the result of one tree walk.
type Report struct {
	Root  string       `json:"root"`
	Files []FileResult `json:"files"`
}

// Count returns how many files ended with outcome o.
func (r *Report) Count(o Outcome) int {
	return len(xslices.Filter(r.Files, func(f FileResult) bool { return f.Outcome == o }))
}

// Unverified returns the files whose timestamps were not handled, excluding
// classes deliberately skipped for the link mode.
func (r *Report) Unverified() []FileResult {
	return xslices.Filter(r.Files, func(f FileResult) bool {
		return f.Outcome != OutcomeSkipped && !f.Outcome.Verified()
	})
}
