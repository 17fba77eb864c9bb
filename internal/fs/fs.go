// Package fs provides filesystem helpers for detbuild: an injectable FS,
// atomic JSON writes, and a guarded recursive remove.
package fs

import (
	"encoding/json"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
)

// FS is the subset of filesystem operations detbuild depends on.
type FS interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Stat(path string) (iofs.FileInfo, error)
	Rename(oldpath, newpath string) error
	Remove(path string) error
	CreateTemp(dir, pattern string) (string, io.WriteCloser, error)
}

// RealFS implements FS against the host filesystem.
type RealFS struct{}

// NewRealFS returns the host filesystem.
func NewRealFS() *RealFS {
	return &RealFS{}
}

func (RealFS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (RealFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (RealFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (RealFS) Stat(path string) (iofs.FileInfo, error)      { return os.Stat(path) }
func (RealFS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (RealFS) Remove(path string) error                     { return os.Remove(path) }

func (RealFS) CreateTemp(dir, pattern string) (string, io.WriteCloser, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", nil, err
	}
	return f.Name(), f, nil
}

// IsFile reports whether path exists and is a regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// WriteJSONAtomic marshals v (indented) and writes it to path via temp file + rename.
// The parent directory is created if missing.
func WriteJSONAtomic(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	return WriteFileAtomic(path, data, perm)
}

// WriteFileAtomic writes data to path via a temp file in the same directory and a rename.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
