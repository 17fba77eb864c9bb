package checksum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mydetlib.lib")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	rec, err := File(digest.SHA256, path)
	require.NoError(t, err)

	assert.Equal(t, "mydetlib.lib", rec.Name)
	assert.Equal(t, int64(5), rec.Size)
	assert.Equal(t, digest.Digest("sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"), rec.Digest)
	assert.Equal(t, "2cf24dba5fb0", Short(rec.Digest))
}

func TestFile_Missing(t *testing.T) {
	_, err := File(digest.SHA256, filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestAlgorithm(t *testing.T) {
	alg, err := Algorithm("")
	require.NoError(t, err)
	assert.Equal(t, digest.SHA256, alg)

	alg, err = Algorithm(SHA512)
	require.NoError(t, err)
	assert.Equal(t, digest.SHA512, alg)

	_, err = Algorithm("md5")
	assert.Error(t, err)
}

func TestShort_Invalid(t *testing.T) {
	assert.Equal(t, "bogus", Short("bogus"))
}
