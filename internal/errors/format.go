// Package errors provides error formatting for detbuild CLI output.
package errors

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// PrintOptions controls error output formatting.
type PrintOptions struct {
	// Verbose enables detailed error output with more context keys and longer tails.
	Verbose bool

	// Tailer provides output tail lines for build failures.
	// If nil, PrintWithOptions reads the log file directly (bounded I/O).
	Tailer func(logPath string, maxLines int) ([]string, error)
}

// Context keys printed in default mode, in order.
var defaultContextKeys = []string{
	"op",
	"case",
	"hook",
	"file",
	"folder",
	"command",
	"tool",
	"exit_code",
	"log",
	"report",
}

// Additional context keys for verbose mode.
var verboseContextKeys = []string{
	"op",
	"case",
	"hook",
	"repetition",
	"file",
	"folder",
	"package_folder",
	"command",
	"tool",
	"platform",
	"link_mode",
	"exit_code",
	"duration_ms",
	"log",
	"report",
	"history",
	"hint",
}

const (
	defaultMaxLines = 20
	defaultMaxChars = 8 * 1024
	verboseMaxLines = 100
	verboseMaxChars = 64 * 1024

	maxValueLen      = 256
	maxExtraValueLen = 128
	maxOutputLineLen = 512
)

// Format formats an error for display without I/O.
func Format(err error, opts PrintOptions) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	de, ok := AsDetbuildError(err)
	if !ok {
		sb.WriteString(err.Error())
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString("error_code: ")
	sb.WriteString(string(de.Code))
	sb.WriteString("\n")
	sb.WriteString(de.Msg)
	sb.WriteString("\n")
	if de.Cause != nil && opts.Verbose {
		sb.WriteString("cause: ")
		sb.WriteString(sanitizeValue(de.Cause.Error(), maxValueLen))
		sb.WriteString("\n")
	}

	contextKeys := defaultContextKeys
	if opts.Verbose {
		contextKeys = verboseContextKeys
	}

	printed := make(map[string]bool)
	var ctxLines []string
	for _, key := range contextKeys {
		val, ok := de.Details[key]
		if !ok || val == "" || key == "hint" {
			continue
		}
		printed[key] = true
		ctxLines = append(ctxLines, key+": "+sanitizeValue(val, maxValueLen))
	}
	if len(ctxLines) > 0 {
		sb.WriteString("\n")
		for _, line := range ctxLines {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	if opts.Verbose {
		var extraKeys []string
		for key, val := range de.Details {
			if !printed[key] && key != "hint" && val != "" {
				extraKeys = append(extraKeys, key)
			}
		}
		if len(extraKeys) > 0 {
			sort.Strings(extraKeys)
			sb.WriteString("\nextra:\n")
			for _, key := range extraKeys {
				sb.WriteString("  ")
				sb.WriteString(key)
				sb.WriteString(": ")
				sb.WriteString(sanitizeValue(de.Details[key], maxExtraValueLen))
				sb.WriteString("\n")
			}
		}
	}

	if hint := de.Details["hint"]; hint != "" {
		sb.WriteString("\nhint: ")
		sb.WriteString(hint)
		sb.WriteString("\n")
	}

	for _, try := range deriveTryLines(de) {
		sb.WriteString("try: ")
		sb.WriteString(try)
		sb.WriteString("\n")
	}

	return sb.String()
}

// PrintWithOptions writes a formatted error to w with the given options.
// May perform bounded I/O to read the build log for E_HOOK_FAILED errors.
func PrintWithOptions(w io.Writer, err error, opts PrintOptions) {
	if err == nil {
		return
	}

	output := Format(err, opts)

	de, ok := AsDetbuildError(err)
	if ok && de.Code == EHookFailed {
		if logPath := de.Details["log"]; logPath != "" {
			maxLines, maxChars := defaultMaxLines, defaultMaxChars
			if opts.Verbose {
				maxLines, maxChars = verboseMaxLines, verboseMaxChars
			}

			var lines []string
			var tailErr error
			if opts.Tailer != nil {
				lines, tailErr = opts.Tailer(logPath, maxLines)
			} else {
				lines, tailErr = readTail(logPath, maxLines, maxChars)
			}
			if tailErr == nil && len(lines) > 0 {
				output = insertOutputBlock(output, lines, maxLines)
			}
		}
	}

	_, _ = io.WriteString(w, output)
}

// sanitizeValue flattens a value onto a single line and bounds its length.
func sanitizeValue(val string, maxLen int) string {
	val = strings.TrimRight(val, " \t\r\n")
	val = strings.ReplaceAll(val, "\r\n", "\n")
	val = strings.ReplaceAll(val, "\n", `\n`)
	if len(val) > maxLen {
		val = val[:maxLen] + "…"
	}
	return val
}

// readTail reads the last maxLines lines from a file, up to maxChars total.
func readTail(path string, maxLines, maxChars int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := stat.Size()
	if size == 0 {
		return nil, nil
	}

	readSize := int64(maxChars)
	if readSize > size {
		readSize = size
	}
	if _, err = f.Seek(size-readSize, io.SeekStart); err != nil {
		return nil, err
	}

	var all []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) > maxOutputLineLen {
			line = line[:maxOutputLineLen] + "…"
		}
		all = append(all, strings.TrimRight(line, " \t\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(all) > maxLines {
		return all[len(all)-maxLines:], nil
	}
	return all, nil
}

// insertOutputBlock inserts the log tail before the hint line.
func insertOutputBlock(output string, lines []string, maxLines int) string {
	var block strings.Builder
	if len(lines) >= maxLines {
		block.WriteString(fmt.Sprintf("\noutput (last %d lines):\n", len(lines)))
	} else {
		block.WriteString(fmt.Sprintf("\noutput (%d lines):\n", len(lines)))
	}
	for _, line := range lines {
		block.WriteString("  ")
		block.WriteString(line)
		block.WriteString("\n")
	}

	if idx := strings.Index(output, "\nhint: "); idx >= 0 {
		return output[:idx] + block.String() + output[idx:]
	}
	if idx := strings.Index(output, "\ntry: "); idx >= 0 {
		return output[:idx] + block.String() + output[idx:]
	}
	return output + block.String()
}

// deriveTryLines returns actionable suggestions based on error code.
func deriveTryLines(de *DetbuildError) []string {
	var lines []string

	switch de.Code {
	case EBuildToolNotFound:
		if tool := de.Details["tool"]; tool != "" {
			lines = append(lines, fmt.Sprintf("which %s", tool))
		}
	case EClockFailed:
		lines = append(lines, "detbuild verify --perturb-clock=false")
	case ENonDeterministic:
		if report := de.Details["report"]; report != "" {
			lines = append(lines, fmt.Sprintf("cat %s", report))
		}
	case EPatchFailed:
		if folder := de.Details["folder"]; folder != "" {
			lines = append(lines, fmt.Sprintf("detbuild patch %s --verbose", folder))
		}
	}

	return lines
}

// GetHint extracts the hint from an error's details, if present.
func GetHint(err error) string {
	de, ok := AsDetbuildError(err)
	if !ok {
		return ""
	}
	return de.Details["hint"]
}
