// Package checksum computes content digests of build artifacts.
package checksum

import (
	_ "crypto/sha256" // registers the hash for go-digest
	_ "crypto/sha512"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// Supported algorithms.
const (
	SHA256 = string(digest.SHA256)
	SHA512 = string(digest.SHA512)
)

// Record is one produced binary and its digest for a single build.
type Record struct {
	Name   string        `json:"name"`
	Path   string        `json:"path"`
	Size   int64         `json:"size"`
	Digest digest.Digest `json:"digest"`
}

// Algorithm resolves a configured algorithm name. Empty means sha256.
func Algorithm(name string) (digest.Algorithm, error) {
	if name == "" {
		return digest.SHA256, nil
	}
	alg := digest.Algorithm(name)
	if !alg.Available() {
		return "", fmt.Errorf("unsupported checksum algorithm %q", name)
	}
	return alg, nil
}

// File digests the file at path.
func File(alg digest.Algorithm, path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return Record{}, err
	}

	d, err := alg.FromReader(f)
	if err != nil {
		return Record{}, fmt.Errorf("digest %s: %w", path, err)
	}

	return Record{
		Name:   filepath.Base(path),
		Path:   path,
		Size:   st.Size(),
		Digest: d,
	}, nil
}

// Short returns the first 12 hex characters of d for display.
func Short(d digest.Digest) string {
	if d.Validate() != nil {
		return string(d)
	}
	enc := d.Encoded()
	if len(enc) > 12 {
		return enc[:12]
	}
	return enc
}
