package buildlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = "\x1b[32mmydetlib/1.0@user/channel: Calling build()\x1b[0m\n" +
	"[ 50%] Building CXX object CMakeFiles/mydetlib.dir/src/mydetlib.cpp.o\r\n" +
	"[100%] \x1b[32m\x1b[1mLinking CXX static library lib/libmydetlib.a\x1b[0m\n" +
	"[100%] Linking CXX executable bin/consumer\n" +
	"[HOOK - deterministic-build.py] post_build(): patching timestamp at pos: 24\n" +
	"mydetlib/1.0@user/channel: Package folder %s\n" +
	"mydetlib/1.0@user/channel package(): Packaged 1 '.hpp' file: mydetlib.hpp\n" +
	"mydetlib/1.0@user/channel package(): Packaged 1 '.a' file: libmydetlib.a\n" +
	"mydetlib/1.0@user/channel package(): Packaged 2 '.dll' files: a.dll, b.dll\n"

func TestStripANSI(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "Linking CXX static library lib/a.a", "Linking CXX static library lib/a.a"},
		{"sgr", "\x1b[1;32mLinking\x1b[0m", "Linking"},
		{"osc title", "\x1b]0;conan\x07done", "done"},
		{"truncated", "text\x1b[", "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripANSI(tt.input))
		})
	}
}

func TestParse(t *testing.T) {
	f, err := Lookup(FormatConanV1)
	require.NoError(t, err)

	m := f.Parse(sampleLog)
	assert.Equal(t, "%s", m.PackageFolder)
	assert.Equal(t, []string{"libmydetlib.a", "consumer", "a.dll", "b.dll"}, m.Candidates)
	require.Len(t, m.HookLines, 1)
	assert.Contains(t, m.HookLines[0], "patching timestamp at pos: 24")
}

func TestParse_WindowsPaths(t *testing.T) {
	f, _ := Lookup(FormatConanV1)
	m := f.Parse("Linking CXX shared library bin\\mydetlib.dll\r\n")
	assert.Equal(t, []string{"mydetlib.dll"}, m.Candidates)
}

func TestExtract(t *testing.T) {
	pkg := t.TempDir()
	for _, p := range []string{"lib/libmydetlib.a", "bin/consumer", "bin/a.dll"} {
		full := filepath.Join(pkg, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}

	f, _ := Lookup(FormatConanV1)
	log := replaceFolder(sampleLog, pkg) + replaceFolder(sampleLog, pkg)
	res := f.Extract(log, "/unused", isRegular)

	assert.Equal(t, pkg, res.PackageFolder)
	assert.Equal(t, []string{
		filepath.Join(pkg, "lib", "libmydetlib.a"),
		filepath.Join(pkg, "bin", "consumer"),
		filepath.Join(pkg, "bin", "a.dll"),
	}, res.Paths)
	assert.Empty(t, res.Warnings)
}

func TestExtract_OverlappingSubdirs(t *testing.T) {
	pkg := t.TempDir()
	for _, p := range []string{"lib/b.lib", "lib/a.lib", "bin/a.dll"} {
		full := filepath.Join(pkg, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}

	f, _ := Lookup(FormatConanV1)
	f.Subdirs = []string{"lib", "bin", "./lib", "lib"}
	log := "x: Package folder " + pkg + "\n" +
		"Packaged 3 '.lib' files: b.lib, a.lib, a.dll\n"

	res := f.Extract(log, "", isRegular)
	assert.Equal(t, []string{
		filepath.Join(pkg, "lib", "b.lib"),
		filepath.Join(pkg, "lib", "a.lib"),
		filepath.Join(pkg, "bin", "a.dll"),
	}, res.Paths)
}

func TestExtract_RelativePackageFolder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg", "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg", "lib", "x.lib"), nil, 0o644))

	f, _ := Lookup(FormatConanV1)
	res := f.Extract("x: Package folder pkg\nPackaged 1 '.lib' file: x.lib\n", dir, isRegular)
	assert.Equal(t, []string{filepath.Join(dir, "pkg", "lib", "x.lib")}, res.Paths)
}

func TestExtract_Warnings(t *testing.T) {
	f, _ := Lookup(FormatConanV1)

	res := f.Extract("ERROR: compilation failed\n", "", isRegular)
	assert.Empty(t, res.Paths)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "no package folder marker")

	res = f.Extract("Package folder /nowhere\n", "", isRegular)
	assert.Contains(t, res.Warnings[0], "no packaged or linked artifact markers")

	res = f.Extract("Package folder /nowhere\nPackaged 1 '.lib' file: gone.lib\n", "", isRegular)
	assert.Empty(t, res.Paths)
	assert.Contains(t, res.Warnings[0], "none exist")
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("conan-v9")
	assert.Error(t, err)
	assert.Contains(t, Names(), FormatConanV1)
}

func isRegular(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

func replaceFolder(log, folder string) string {
	return strings.ReplaceAll(log, "%s", folder)
}
