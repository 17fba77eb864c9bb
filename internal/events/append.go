// Package events provides per-run event logging for detbuild.
// Events are stored in append-only JSONL files next to the build logs.
package events

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
)

// SchemaVersion is the events.jsonl line format version.
const SchemaVersion = "1.0"

// Event names.
const (
	RunStart       = "run_start"
	RunEnd         = "run_end"
	CaseStart      = "case_start"
	CaseSkipped    = "case_skipped"
	CaseEnd        = "case_end"
	HookToggled    = "hook_toggled"
	ClockPerturbed = "clock_perturbed"
	BuildStart     = "build_start"
	BuildEnd       = "build_end"
	Artifact       = "artifact"
)

// Event represents a single line in events.jsonl.
type Event struct {
	SchemaVersion string         `json:"schema_version"`
	Timestamp     string         `json:"timestamp"` // RFC3339Nano, real clock
	RunID         string         `json:"run_id"`
	Event         string         `json:"event"`
	Data          map[string]any `json:"data,omitempty"`
}

// AppendEvent appends a single event to the events.jsonl file.
// The file is created lazily if it doesn't exist.
//
// Best-effort: errors are returned but callers should typically log them
// and continue with the run.
func AppendEvent(path string, e Event) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	_, err = f.Write(append(data, '\n'))
	return err
}

// CaseData returns the data map for case_start, case_skipped and case_end.
func CaseData(name string, extra map[string]any) map[string]any {
	data := map[string]any{"case": name}
	maps.Copy(data, extra)
	return data
}

// BuildStartData returns the data map for a build_start event.
func BuildStartData(caseName, hook string, repetition int, folder string, command []string) map[string]any {
	return map[string]any{
		"case":       caseName,
		"hook":       hook,
		"repetition": repetition,
		"folder":     folder,
		"command":    command,
	}
}

// BuildEndData returns the data map for a build_end event.
// packageFolder is nil when the log carried no package folder marker.
func BuildEndData(caseName, hook string, repetition, exitCode int, durationMS int64, artifacts int, packageFolder *string, logPath string) map[string]any {
	data := map[string]any{
		"case":        caseName,
		"hook":        hook,
		"repetition":  repetition,
		"exit_code":   exitCode,
		"duration_ms": durationMS,
		"artifacts":   artifacts,
		"log_path":    logPath,
	}
	if packageFolder != nil {
		data["package_folder"] = *packageFolder
	}
	return data
}

// ArtifactData returns the data map for an artifact event.
func ArtifactData(caseName, hook string, repetition int, name, path, digest string, match *bool) map[string]any {
	data := map[string]any{
		"case":       caseName,
		"hook":       hook,
		"repetition": repetition,
		"name":       name,
		"path":       path,
		"digest":     digest,
	}
	if match != nil {
		data["match"] = *match
	}
	return data
}
