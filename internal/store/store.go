// Package store provides persistence for verify runs: per-build logs and
// events under a log directory, the JSON run report, and the SQL checksum
// history. JSON files are written atomically via temp file + rename.
package store

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/NielsdaWheelz/detbuild/internal/fs"
)

// Layout resolves paths under a run's log directory.
type Layout struct {
	FS  fs.FS            // filesystem interface for stubbing
	Dir string           // resolved log_dir
	Now func() time.Time // injectable clock for deterministic tests
}

// NewLayout creates a Layout rooted at dir.
func NewLayout(filesystem fs.FS, dir string, now func() time.Time) *Layout {
	return &Layout{
		FS:  filesystem,
		Dir: dir,
		Now: now,
	}
}

// CaseDir returns the directory for one case's build logs.
// Format: <log_dir>/<case>/
func (l *Layout) CaseDir(caseName string) string {
	return filepath.Join(l.Dir, SafeName(caseName))
}

// BuildLogPath returns the log for one build.
// Format: <log_dir>/<case>/hook-<state>-<n>.log
func (l *Layout) BuildLogPath(caseName, hookState string, n int) string {
	return filepath.Join(l.CaseDir(caseName), fmt.Sprintf("hook-%s-%d.log", hookState, n))
}

// EventsPath returns the path to the run's events.jsonl.
// Format: <log_dir>/events.jsonl
func (l *Layout) EventsPath() string {
	return filepath.Join(l.Dir, "events.jsonl")
}

// WriteBuildLog writes one build's captured output.
func (l *Layout) WriteBuildLog(caseName, hookState string, n int, output string) (string, error) {
	path := l.BuildLogPath(caseName, hookState, n)
	if err := l.FS.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := l.FS.WriteFile(path, []byte(output), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Reset removes the log directory. dir must sit inside allowedPrefix.
func (l *Layout) Reset(allowedPrefix string) error {
	return fs.SafeRemoveAll(l.Dir, allowedPrefix)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName maps a case name to a single path component.
func SafeName(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
