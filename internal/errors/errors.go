// Package errors defines the stable error code system for detbuild.
package errors

import (
	"errors"
	"fmt"
	"io"
)

// Code is a stable error code string.
type Code string

// Error codes. Stable public contract; scripts match on them.
const (
	EUsage    Code = "E_USAGE"
	EInternal Code = "E_INTERNAL"

	// Configuration
	EInvalidCases  Code = "E_INVALID_CASES"  // case file unreadable, malformed, or fails validation
	EInvalidConfig Code = "E_INVALID_CONFIG" // settings file unreadable, malformed, or fails validation
	ENoCases       Code = "E_NO_CASES"       // no case survives compiler gating

	// Tooling
	EBuildToolNotFound Code = "E_BUILD_TOOL_NOT_FOUND" // build tool binary not on PATH
	EHookToggleFailed  Code = "E_HOOK_TOGGLE_FAILED"   // external orchestrator refused hook config change
	ERewriterFailed    Code = "E_REWRITER_FAILED"      // external rewriter exited non-zero
	EClockFailed       Code = "E_CLOCK_FAILED"         // system clock could not be set

	// Pipeline
	EStageFailed    Code = "E_STAGE_FAILED"    // copying case sources into the build folder failed
	EPatchFailed    Code = "E_PATCH_FAILED"    // one or more artifact files could not be patched
	EChecksumFailed Code = "E_CHECKSUM_FAILED" // artifact could not be read for hashing
	EHookFailed     Code = "E_HOOK_FAILED"     // wrapped build command failed under `hook run`

	// Persistence
	EReportWriteFailed Code = "E_REPORT_WRITE_FAILED" // JSON run report could not be written
	EHistoryFailed     Code = "E_HISTORY_FAILED"      // checksum history store failure

	// Outcome
	ENonDeterministic Code = "E_NONDETERMINISTIC" // at least one case produced differing artifacts
)

// DetbuildError is the standard error type for detbuild errors.
type DetbuildError struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string // optional structured context
}

// Error returns the stable error format: "CODE: message".
func (e *DetbuildError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *DetbuildError) Unwrap() error {
	return e.Cause
}

// ExitCodeError wraps an error with an explicit process exit code.
type ExitCodeError struct {
	Err  error
	Code int
}

func (e *ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

func (e *ExitCodeError) ExitCode() int {
	return e.Code
}

// WithExitCode wraps err with a specific process exit code.
func WithExitCode(err error, code int) error {
	return &ExitCodeError{Err: err, Code: code}
}

// New creates a new DetbuildError with the given code and message.
func New(code Code, msg string) error {
	return &DetbuildError{Code: code, Msg: msg}
}

// NewWithDetails creates a new DetbuildError with code, message, and details.
func NewWithDetails(code Code, msg string, details map[string]string) error {
	return &DetbuildError{Code: code, Msg: msg, Details: copyDetails(details)}
}

// Wrap creates a new DetbuildError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &DetbuildError{Code: code, Msg: msg, Cause: err}
}

// WrapWithDetails creates a new DetbuildError wrapping an underlying error with details.
func WrapWithDetails(code Code, msg string, err error, details map[string]string) error {
	return &DetbuildError{Code: code, Msg: msg, Cause: err, Details: copyDetails(details)}
}

// GetCode extracts the error code from an error, or empty string if not a DetbuildError.
func GetCode(err error) Code {
	var de *DetbuildError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// AsDetbuildError returns (*DetbuildError, true) if err is or wraps a DetbuildError.
func AsDetbuildError(err error) (*DetbuildError, bool) {
	var de *DetbuildError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}

// ExitCode returns the process exit code for an error.
// 0 for nil, 2 for E_USAGE, 3 for E_NONDETERMINISTIC, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	switch GetCode(err) {
	case EUsage:
		return 2
	case ENonDeterministic:
		return 3
	}
	return 1
}

// Print writes the error to w in the stable stderr format:
//
//	error_code: <CODE>
//	<message>
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	var de *DetbuildError
	if errors.As(err, &de) {
		_, _ = fmt.Fprintf(w, "error_code: %s\n", de.Code)
		_, _ = fmt.Fprintln(w, de.Msg)
	} else {
		_, _ = fmt.Fprintln(w, err.Error())
	}
}
