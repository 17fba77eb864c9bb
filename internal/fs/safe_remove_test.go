package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func mkdirs(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := os.MkdirAll(p, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", p, err)
		}
	}
}

func TestSafeRemoveAll_RemovesRunLogDir(t *testing.T) {
	logRoot := filepath.Join(t.TempDir(), "logs")
	runDir := filepath.Join(logRoot, "run-1", "case-a")
	mkdirs(t, runDir)
	if err := os.WriteFile(filepath.Join(runDir, "1.log"), []byte("log"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := SafeRemoveAll(filepath.Join(logRoot, "run-1"), logRoot); err != nil {
		t.Fatalf("SafeRemoveAll() error = %v", err)
	}
	if _, err := os.Stat(runDir); !os.IsNotExist(err) {
		t.Error("run dir still exists after SafeRemoveAll")
	}
}

func TestSafeRemoveAll_Refusals(t *testing.T) {
	tests := []struct {
		name   string
		target func(root string) string
		prefix func(root string) string
	}{
		{
			name:   "outside prefix",
			target: func(root string) string { return filepath.Join(root, "outside") },
			prefix: func(root string) string { return filepath.Join(root, "logs") },
		},
		{
			name:   "equals prefix",
			target: func(root string) string { return filepath.Join(root, "logs") },
			prefix: func(root string) string { return filepath.Join(root, "logs") },
		},
		{
			name:   "parent traversal",
			target: func(root string) string { return filepath.Join(root, "logs", "..", "outside") },
			prefix: func(root string) string { return filepath.Join(root, "logs") },
		},
		{
			name:   "missing prefix",
			target: func(root string) string { return filepath.Join(root, "outside") },
			prefix: func(root string) string { return filepath.Join(root, "nope") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			mkdirs(t, filepath.Join(root, "logs"), filepath.Join(root, "outside"))

			target := tt.target(root)
			err := SafeRemoveAll(target, tt.prefix(root))
			if _, ok := err.(*ErrNotUnderPrefix); !ok {
				t.Fatalf("error = %T %v, want *ErrNotUnderPrefix", err, err)
			}
			if _, statErr := os.Stat(target); os.IsNotExist(statErr) {
				t.Error("target was removed despite refusal")
			}
		})
	}
}

func TestSafeRemoveAll_MissingTarget(t *testing.T) {
	root := t.TempDir()
	if err := SafeRemoveAll(filepath.Join(root, "missing"), root); err != nil {
		t.Errorf("SafeRemoveAll(missing) error = %v, want nil", err)
	}
}

func TestIsSubpath(t *testing.T) {
	tests := []struct {
		target, prefix string
		want           bool
	}{
		{"/a/b/c/d", "/a/b", true},
		{"/a/b/c", "/a/b", true},
		{"/a/b", "/a/b", false},
		{"/a/c", "/a/b", false},
		{"/a/bcd", "/a/b", false},
		{"/a/b/", "/a/b", false},
	}

	for _, tt := range tests {
		if got := IsSubpath(tt.target, tt.prefix); got != tt.want {
			t.Errorf("IsSubpath(%q, %q) = %v, want %v", tt.target, tt.prefix, got, tt.want)
		}
	}
}
