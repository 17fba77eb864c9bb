package store

import "github.com/NielsdaWheelz/detbuild/internal/fs"

// SchemaVersion is the run report format version.
const SchemaVersion = "1.0"

// RunRecord is the JSON report of one verify run, written when --report or
// the report setting names a path. Nullable fields are pointers.
type RunRecord struct {
	SchemaVersion string `json:"schema_version"`

	// RunID is a sortable unique identifier, shared with history rows.
	RunID string `json:"run_id"`

	// StartedAt and FinishedAt are RFC3339Nano UTC, taken from the real
	// clock rather than the perturbed system clock.
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	DurationMS int64  `json:"duration_ms"`

	Platform string `json:"platform"`
	Compiler string `json:"compiler"`

	// Seed is the clock perturbation seed. null when the clock was not perturbed.
	Seed *int64 `json:"seed"`

	Cases   []CaseRecord  `json:"cases"`
	Skipped []SkippedCase `json:"skipped,omitempty"`

	// OK is false when any case is non-deterministic.
	OK bool `json:"ok"`

	// Error is set when the run stopped early.
	Error *string `json:"error"`
}

// SkippedCase is a case excluded by its compiler gate.
type SkippedCase struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// CaseRecord is the outcome of one case.
type CaseRecord struct {
	Name      string `json:"name"`
	BuildType string `json:"build_type"`
	LinkMode  string `json:"link_mode"`

	// Outcomes maps hook state ("off", "on") to unknown, inconclusive,
	// deterministic or non-deterministic.
	Outcomes map[string]string `json:"outcomes"`

	// Mismatches lists artifact basenames whose checksums differed.
	Mismatches map[string][]string `json:"mismatches,omitempty"`

	Builds []BuildRecord `json:"builds"`
}

// BuildRecord is one build invocation.
type BuildRecord struct {
	Hook       string   `json:"hook"`
	Repetition int      `json:"repetition"`
	Folder     string   `json:"folder"`
	Command    []string `json:"command"`
	ExitCode   int      `json:"exit_code"`
	DurationMS int64    `json:"duration_ms"`

	// FakeTime is the system time set before the build. null when unperturbed.
	FakeTime *string `json:"fake_time"`

	// PackageFolder is null when the log carried no package folder marker.
	PackageFolder *string `json:"package_folder"`

	LogPath   string           `json:"log_path"`
	Artifacts []ArtifactRecord `json:"artifacts"`

	// Unverified lists artifacts the patch step could not establish.
	Unverified []string `json:"unverified,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ArtifactRecord is one produced binary.
type ArtifactRecord struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// WriteRunRecord writes rec to path atomically.
func WriteRunRecord(path string, rec *RunRecord) error {
	return fs.WriteJSONAtomic(path, rec, 0o644)
}
