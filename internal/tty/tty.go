// Package tty provides terminal detection helpers for detbuild commands.
package tty

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// IsTTY returns true if the given file is a terminal (including Cygwin/MSYS ptys).
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ColorEnabled reports whether colored output should be written to w.
// Color is off when NO_COLOR is set, when w is not an *os.File, or when it is not a terminal.
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return IsTTY(f)
}
