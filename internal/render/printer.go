package render

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/NielsdaWheelz/detbuild/internal/tty"
)

// Printer writes harness progress lines.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a Printer that colors output when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, color: tty.ColorEnabled(w)}
}

// NewPrinterWithColor returns a Printer with color forced on or off.
func NewPrinterWithColor(w io.Writer, colorOn bool) *Printer {
	return &Printer{w: w, color: colorOn}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Color reports whether the printer emits color.
func (p *Printer) Color() bool {
	return p.color
}

func (p *Printer) line(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

// Case announces a case.
func (p *Printer) Case(name string) {
	p.line("\n%s", paint(p.color, "CASE: "+name, color.FgHiMagenta))
}

// HookState announces the hook state for the runs that follow.
func (p *Printer) HookState(enabled bool) {
	state := "OFF"
	if enabled {
		state = "ON"
	}
	p.line("\n%s%s", paint(p.color, "DETERMINISTIC HOOK ", color.FgMagenta), paint(p.color, state, color.FgCyan))
}

// Command echoes a command line before it runs.
func (p *Printer) Command(cmd string) {
	p.line("%s", cmd)
}

// FakeTime reports a perturbed system clock.
func (p *Printer) FakeTime(t time.Time) {
	p.line("System time faked: %s", t.UTC().Format("2006-01-02 15:04:05"))
}

// HookLine echoes a hook message from the build output.
func (p *Printer) HookLine(line string) {
	p.line("%s", paint(p.color, line, color.FgCyan))
}

// CreatedBinary reports one produced artifact and its digest.
func (p *Printer) CreatedBinary(path, digest string, size int64) {
	msg := fmt.Sprintf("Created binary: %s (%s) with checksum %s", path, humanize.IBytes(uint64(max(size, 0))), digest)
	p.line("%s", paint(p.color, msg, color.FgYellow, color.Bold))
}

// Match reports whether an artifact matched the earlier builds of its case.
func (p *Printer) Match(ok bool) {
	if ok {
		p.line("%s", paint(p.color, "binaries match!", color.FgGreen, color.Bold))
		return
	}
	p.line("%s", paint(p.color, "binaries don't match!", color.FgRed, color.Bold))
}

// NoArtifacts reports a build that produced nothing to compare.
func (p *Printer) NoArtifacts(exitCode int, logPath string) {
	msg := "no artifacts found"
	if exitCode != 0 {
		msg = fmt.Sprintf("build failed with exit code %d, no artifacts found", exitCode)
	}
	if logPath != "" {
		msg += " (log: " + logPath + ")"
	}
	p.line("%s", paint(p.color, msg, color.FgYellow))
}

// Unverified reports an artifact whose timestamps the hook could not handle.
func (p *Printer) Unverified(path, outcome string) {
	p.line("%s", paint(p.color, fmt.Sprintf("unverified: %s (%s)", path, outcome), color.FgYellow))
}

// Warn prints a warning line.
func (p *Printer) Warn(msg string) {
	p.line("%s", paint(p.color, "warning: "+msg, color.FgYellow))
}

// Skipped reports a case excluded by its compiler gate.
func (p *Printer) Skipped(name, reason string) {
	p.line("%s", paint(p.color, fmt.Sprintf("skipping case %s: %s", name, reason), color.FgWhite))
}
