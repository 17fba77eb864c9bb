package errors

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatFirstLineAlwaysErrorCode(t *testing.T) {
	tests := []struct {
		name string
		code Code
		msg  string
	}{
		{"usage error", EUsage, "bad args"},
		{"patch failed", EPatchFailed, "2 files failed"},
		{"invalid cases", EInvalidCases, "cases[0].name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := Format(New(tt.code, tt.msg), PrintOptions{})
			lines := strings.Split(output, "\n")
			if lines[0] != "error_code: "+string(tt.code) {
				t.Errorf("first line = %q", lines[0])
			}
			if lines[1] != tt.msg {
				t.Errorf("second line = %q, want %q", lines[1], tt.msg)
			}
		})
	}
}

func TestFormatNonDetbuildError(t *testing.T) {
	if got := Format(errors.New("plain"), PrintOptions{}); got != "plain\n" {
		t.Errorf("Format() = %q", got)
	}
	if got := Format(nil, PrintOptions{}); got != "" {
		t.Errorf("Format(nil) = %q", got)
	}
}

func TestFormatContextKeysOrdered(t *testing.T) {
	err := NewWithDetails(EPatchFailed, "patch failed", map[string]string{
		"file":   "/tmp/out/lib/a.lib",
		"case":   "Empty lib",
		"op":     "patch",
		"unused": "value",
	})

	output := Format(err, PrintOptions{})

	opIdx := strings.Index(output, "op: patch")
	caseIdx := strings.Index(output, "case: Empty lib")
	fileIdx := strings.Index(output, "file: /tmp/out/lib/a.lib")
	if opIdx < 0 || caseIdx < 0 || fileIdx < 0 {
		t.Fatalf("missing context keys in output:\n%s", output)
	}
	if !(opIdx < caseIdx && caseIdx < fileIdx) {
		t.Errorf("context keys out of order:\n%s", output)
	}
	if strings.Contains(output, "unused") {
		t.Errorf("non-whitelisted key printed in default mode:\n%s", output)
	}
}

func TestFormatVerboseIncludesExtraAndCause(t *testing.T) {
	err := WrapWithDetails(EHistoryFailed, "history write failed", errors.New("disk full"), map[string]string{
		"history": "runs.db",
		"zeta":    "last",
	})

	output := Format(err, PrintOptions{Verbose: true})

	if !strings.Contains(output, "cause: disk full") {
		t.Errorf("verbose output missing cause:\n%s", output)
	}
	if !strings.Contains(output, "history: runs.db") {
		t.Errorf("verbose output missing history key:\n%s", output)
	}
	if !strings.Contains(output, "extra:\n  zeta: last") {
		t.Errorf("verbose output missing extra section:\n%s", output)
	}
}

func TestFormatHintAndTryLines(t *testing.T) {
	err := NewWithDetails(EBuildToolNotFound, "conan not found", map[string]string{
		"tool": "conan",
		"hint": "install conan 1.x",
	})

	output := Format(err, PrintOptions{})

	if !strings.Contains(output, "\nhint: install conan 1.x\n") {
		t.Errorf("missing hint:\n%s", output)
	}
	if !strings.HasSuffix(output, "try: which conan\n") {
		t.Errorf("missing try line:\n%s", output)
	}
}

func TestSanitizeValue(t *testing.T) {
	if got := sanitizeValue("a\r\nb\n", 100); got != `a\nb` {
		t.Errorf("sanitizeValue() = %q", got)
	}
	if got := sanitizeValue("abcdef", 3); got != "abc…" {
		t.Errorf("sanitizeValue() = %q", got)
	}
}

func TestPrintWithOptions_HookFailureIncludesLogTail(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "build.log")
	if err := os.WriteFile(logPath, []byte("line1\nline2\nlinker error\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := NewWithDetails(EHookFailed, "build command failed", map[string]string{
		"log":  logPath,
		"hint": "inspect the build log",
	})

	var buf bytes.Buffer
	PrintWithOptions(&buf, err, PrintOptions{})
	output := buf.String()

	blockIdx := strings.Index(output, "output (3 lines):\n  line1\n  line2\n  linker error\n")
	hintIdx := strings.Index(output, "\nhint: ")
	if blockIdx < 0 {
		t.Fatalf("missing output block:\n%s", output)
	}
	if hintIdx < blockIdx {
		t.Errorf("output block should precede hint:\n%s", output)
	}
}

func TestPrintWithOptions_UsesTailer(t *testing.T) {
	err := NewWithDetails(EHookFailed, "build command failed", map[string]string{"log": "/nonexistent"})

	var gotMax int
	opts := PrintOptions{
		Verbose: true,
		Tailer: func(path string, maxLines int) ([]string, error) {
			gotMax = maxLines
			return []string{"tail"}, nil
		},
	}

	var buf bytes.Buffer
	PrintWithOptions(&buf, err, opts)

	if gotMax != verboseMaxLines {
		t.Errorf("tailer maxLines = %d, want %d", gotMax, verboseMaxLines)
	}
	if !strings.Contains(buf.String(), "  tail\n") {
		t.Errorf("missing tail output:\n%s", buf.String())
	}
}

func TestReadTail_BoundsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.log")
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("row\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	lines, err := readTail(path, 5, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 5 {
		t.Errorf("len(lines) = %d, want 5", len(lines))
	}
}
