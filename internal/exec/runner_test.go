package exec

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	if _, err := LookPath("sh"); err != nil {
		t.Skip("sh not on PATH")
	}
}

func TestRealRunner_Success(t *testing.T) {
	skipWithoutShell(t)

	r := NewRealRunner()
	result, err := r.Run(context.Background(), "sh", []string{"-c", "echo out; echo err 1>&2"}, RunOpts{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if result.Stdout != "out\n" {
		t.Errorf("Stdout = %q", result.Stdout)
	}
	if result.Stderr != "err\n" {
		t.Errorf("Stderr = %q", result.Stderr)
	}
	if !strings.Contains(result.Combined, "out\n") || !strings.Contains(result.Combined, "err\n") {
		t.Errorf("Combined = %q", result.Combined)
	}
}

func TestRealRunner_NonZeroExitIsNotError(t *testing.T) {
	skipWithoutShell(t)

	r := NewRealRunner()
	result, err := r.Run(context.Background(), "sh", []string{"-c", "echo failing; exit 3"}, RunOpts{})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
	if result.Combined != "failing\n" {
		t.Errorf("Combined = %q", result.Combined)
	}
}

func TestRealRunner_MissingBinary(t *testing.T) {
	r := NewRealRunner()
	_, err := r.Run(context.Background(), "detbuild-definitely-missing-binary", nil, RunOpts{})
	if err == nil {
		t.Fatal("Run() error = nil, want error for missing binary")
	}
}

func TestRealRunner_DirEnvAndTee(t *testing.T) {
	skipWithoutShell(t)

	dir := t.TempDir()
	var tee bytes.Buffer

	r := NewRealRunner()
	result, err := r.Run(context.Background(), "sh", []string{"-c", "pwd; echo $DETBUILD_PROBE"}, RunOpts{
		Dir: dir,
		Env: []string{"DETBUILD_PROBE=probe-value", "PATH=/usr/bin:/bin"},
		Tee: &tee,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(result.Stdout, "probe-value") {
		t.Errorf("Stdout = %q, want env value", result.Stdout)
	}
	if tee.String() != result.Combined {
		t.Errorf("tee = %q, combined = %q", tee.String(), result.Combined)
	}
}
