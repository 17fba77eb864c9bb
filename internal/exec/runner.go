// Package exec provides the subprocess abstraction used by detbuild.
// Callers depend on CommandRunner so tests can substitute scripted fakes.
package exec

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	osexec "os/exec"
	"sync"
)

// RunOpts configures a single command invocation.
type RunOpts struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is the full environment for the command. Nil inherits the process environment.
	Env []string

	// Tee, if set, receives the combined output as it is produced.
	Tee io.Writer
}

// CmdResult holds the outcome of a command that was started.
type CmdResult struct {
	// ExitCode is the process exit code; -1 if terminated by a signal.
	ExitCode int

	Stdout string
	Stderr string

	// Combined is stdout and stderr interleaved in write order.
	Combined string
}

// CommandRunner executes external commands.
//
// Run returns an error only when the command could not be executed at all
// (binary not found, context cancelled before start). A non-zero exit is
// reported through CmdResult.ExitCode, never as an error.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, opts RunOpts) (CmdResult, error)
}

// RealRunner runs commands with os/exec.
type RealRunner struct{}

// NewRealRunner returns a CommandRunner backed by os/exec.
func NewRealRunner() *RealRunner {
	return &RealRunner{}
}

// Run implements CommandRunner.
func (r *RealRunner) Run(ctx context.Context, name string, args []string, opts RunOpts) (CmdResult, error) {
	var stdout, stderr bytes.Buffer
	combined := &lockedBuffer{tee: opts.Tee}

	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Stdout = io.MultiWriter(&stdout, combined)
	cmd.Stderr = io.MultiWriter(&stderr, combined)

	devnull, err := os.Open(os.DevNull)
	if err != nil {
		return CmdResult{}, err
	}
	defer func() { _ = devnull.Close() }()
	cmd.Stdin = devnull

	runErr := cmd.Run()

	result := CmdResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
	}

	if runErr == nil {
		return result, nil
	}

	var exitErr *osexec.ExitError
	if stderrors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return result, runErr
}

// LookPath reports the resolved path of a binary on PATH.
func LookPath(name string) (string, error) {
	return osexec.LookPath(name)
}

// lockedBuffer serializes writes from the stdout and stderr copier goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	tee io.Writer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tee != nil {
		_, _ = b.tee.Write(p)
	}
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
