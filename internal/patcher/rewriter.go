package patcher

import (
	"context"
	"fmt"
	"os"

	"github.com/siderolabs/go-cmd/pkg/cmd"
)

// Rewriter patches executable and shared-library containers out of process.
type Rewriter interface {
	// MaybePatch rewrites path when the tool is installed. A missing tool
	// yields OutcomeToolMissing and no error.
	MaybePatch(ctx context.Context, path string) (Outcome, error)
}

// RunFunc executes a tool and returns its output.
type RunFunc func(ctx context.Context, name string, args ...string) (string, error)

// ToolRewriter invokes `<Path> <artifact>` and trusts its exit status.
type ToolRewriter struct {
	// Path is the rewriter binary, e.g. C:\ducible\ducible.exe.
	Path string

	// Run defaults to go-cmd's RunContext.
	Run RunFunc
}

// NewToolRewriter returns nil when path is empty so callers can pass the
// result straight into Options.
func NewToolRewriter(path string) Rewriter {
	if path == "" {
		return nil
	}
	return &ToolRewriter{Path: path}
}

// MaybePatch implements Rewriter.
func (r *ToolRewriter) MaybePatch(ctx context.Context, path string) (Outcome, error) {
	if st, err := os.Stat(r.Path); err != nil || st.IsDir() {
		return OutcomeToolMissing, nil
	}

	run := r.Run
	if run == nil {
		run = cmd.RunContext
	}

	if _, err := run(ctx, r.Path, path); err != nil {
		return OutcomeRewriteFailed, err
	}
	return OutcomeRewritten, nil
}

// RewriteError records a rewriter failure for aggregation.
type RewriteError struct {
	Path   string
	Reason string
}

func (e *RewriteError) Error() string {
	return fmt.Sprintf("rewrite %s: %s", e.Path, e.Reason)
}
