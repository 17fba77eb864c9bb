package cases

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/fs"
	"github.com/NielsdaWheelz/detbuild/internal/toolchain"
)

const sampleCases = `
cases:
  - name: datetime-macro
    hooks: [off, on]
    builds:
      - folder: lib
        reference: user/channel1
        sources:
          - {src: fixtures/datetime.cpp, dst: lib/src/mydetlib.cpp}
      - folder: lib
        reference: user/channel2
        env_file: build.env
  - name: gcc8-only
    shared: true
    build_type: Debug
    repeat: 3
    hooks: [ON]
    when: {compiler: gcc, min_version: "8"}
    builds:
      - folder: /abs/lib
`

func writeCaseFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.env"), []byte("CFLAGS=-O2\n# comment\nARCH=x86_64\n"), 0o644))
	path := writeCaseFile(t, dir, sampleCases)

	f, err := Load(fs.NewRealFS(), path)
	require.NoError(t, err)
	require.Len(t, f.Cases, 2)

	first := f.Cases[0]
	assert.Equal(t, "Release", first.BuildType)
	assert.Equal(t, 1, first.Repeat)
	assert.Equal(t, 2, first.Runs())
	assert.Equal(t, toolchain.Static, first.LinkMode())
	assert.Equal(t, filepath.Join(dir, "lib"), first.Builds[0].Folder)
	assert.Equal(t, filepath.Join(dir, "fixtures", "datetime.cpp"), first.Builds[0].Sources[0].Src)
	assert.Equal(t, filepath.Join(dir, "lib", "src", "mydetlib.cpp"), first.Builds[0].Sources[0].Dst)
	assert.Empty(t, first.Builds[0].Env)
	assert.Equal(t, []string{"ARCH=x86_64", "CFLAGS=-O2"}, first.Builds[1].Env)

	second := f.Cases[1]
	assert.Equal(t, "Debug", second.BuildType)
	assert.Equal(t, toolchain.Shared, second.LinkMode())
	assert.Equal(t, []HookState{HookOn}, second.Hooks)
	assert.Equal(t, 3, second.Runs())
	assert.Equal(t, "/abs/lib", second.Builds[0].Folder)
}

func TestLoadMissingEnvFile(t *testing.T) {
	path := writeCaseFile(t, t.TempDir(), sampleCases)

	_, err := Load(fs.NewRealFS(), path)
	require.Error(t, err)
	assert.Equal(t, errors.EInvalidCases, errors.GetCode(err))
	assert.Contains(t, err.Error(), "environment file")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(fs.NewRealFS(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, errors.EInvalidCases, errors.GetCode(err))
}

func TestParseDefaults(t *testing.T) {
	f, err := Parse([]byte("cases:\n  - name: a\n    repeat: 2\n    builds:\n      - folder: x\n"))
	require.NoError(t, err)
	assert.Equal(t, AllHookStates, f.Cases[0].Hooks)
	assert.Equal(t, "Release", f.Cases[0].BuildType)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"empty", "", "empty"},
		{"unknown field", "cases:\n  - name: a\n    repat: 2\n", "repat"},
		{"no cases", "cases: []\n", "no cases"},
		{"missing name", "cases:\n  - repeat: 2\n    builds: [{folder: x}]\n", "name must not be empty"},
		{"duplicate name", "cases:\n  - {name: a, repeat: 2, builds: [{folder: x}]}\n  - {name: a, repeat: 2, builds: [{folder: x}]}\n", "duplicate"},
		{"no builds", "cases:\n  - name: a\n", "at least one build"},
		{"single run", "cases:\n  - name: a\n    builds: [{folder: x}]\n", "at least two builds"},
		{"negative repeat", "cases:\n  - {name: a, repeat: -1, builds: [{folder: x}]}\n", "repeat"},
		{"bad hook", "cases:\n  - {name: a, repeat: 2, hooks: [maybe], builds: [{folder: x}]}\n", "invalid hook state"},
		{"duplicate hook", "cases:\n  - {name: a, repeat: 2, hooks: [on, true], builds: [{folder: x}]}\n", "listed twice"},
		{"bad version", "cases:\n  - {name: a, repeat: 2, when: {min_version: banana}, builds: [{folder: x}]}\n", "min_version"},
		{"empty folder", "cases:\n  - {name: a, repeat: 2, builds: [{reference: u/c}]}\n", "folder"},
		{"half source", "cases:\n  - {name: a, repeat: 2, builds: [{folder: x, sources: [{src: a.cpp}]}]}\n", "src and dst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseHookState(t *testing.T) {
	for in, want := range map[string]HookState{"off": HookOff, "OFF": HookOff, "false": HookOff, "on": HookOn, " On ": HookOn, "enabled": HookOn} {
		got, err := ParseHookState(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseHookState("sometimes")
	assert.Error(t, err)
	assert.True(t, HookOn.Enabled())
	assert.False(t, HookOff.Enabled())
}

func TestSelect(t *testing.T) {
	all := []Case{
		{Name: "any"},
		{Name: "gcc", When: toolchain.Constraint{Compiler: "gcc"}},
		{Name: "gcc8", When: toolchain.Constraint{Compiler: "gcc", MinVersion: "8"}},
		{Name: "msvc", When: toolchain.Constraint{Compiler: "msvc"}},
	}

	kept, skipped := Select(all, toolchain.Compiler{Name: "gcc", Version: "7"})
	require.Len(t, kept, 2)
	assert.Equal(t, "any", kept[0].Name)
	assert.Equal(t, "gcc", kept[1].Name)
	require.Len(t, skipped, 2)
	assert.Equal(t, "gcc8", skipped[0].Name)
	assert.Contains(t, skipped[0].Reason, "gcc>=8")
	assert.Equal(t, "msvc", skipped[1].Name)
}
