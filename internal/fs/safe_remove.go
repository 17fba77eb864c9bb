package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotUnderPrefix is returned when a removal target escapes its allowed prefix.
type ErrNotUnderPrefix struct {
	Target string
	Prefix string
}

func (e *ErrNotUnderPrefix) Error() string {
	return fmt.Sprintf("target %q is not under allowed prefix %q", e.Target, e.Prefix)
}

// SafeRemoveAll removes target only if it resolves (after symlink evaluation)
// to a strict subpath of allowedPrefix. A missing target is not an error.
// Resolution failures other than "not exist" fail closed with ErrNotUnderPrefix.
func SafeRemoveAll(target, allowedPrefix string) error {
	cleanTarget := filepath.Clean(target)

	resolvedTarget, err := filepath.EvalSymlinks(cleanTarget)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &ErrNotUnderPrefix{Target: target, Prefix: allowedPrefix}
	}

	resolvedPrefix, err := filepath.EvalSymlinks(filepath.Clean(allowedPrefix))
	if err != nil {
		return &ErrNotUnderPrefix{Target: target, Prefix: allowedPrefix}
	}

	if !IsSubpath(resolvedTarget, resolvedPrefix) {
		return &ErrNotUnderPrefix{Target: target, Prefix: allowedPrefix}
	}

	return os.RemoveAll(cleanTarget)
}

// IsSubpath reports whether target lies strictly inside prefix.
// Both paths must already be cleaned; equal paths return false.
func IsSubpath(target, prefix string) bool {
	withSep := prefix
	if !strings.HasSuffix(withSep, string(filepath.Separator)) {
		withSep += string(filepath.Separator)
	}
	return strings.HasPrefix(target, withSep) && len(target) > len(withSep)
}
