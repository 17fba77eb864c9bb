package toolchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NielsdaWheelz/detbuild/internal/exec"
)

type fakeRunner struct {
	result exec.CmdResult
	err    error
	calls  [][]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, opts exec.RunOpts) (exec.CmdResult, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.result, f.err
}

const gccProfile = `Configuration for profile default:

[settings]
os=Linux
os_build=Linux
arch=x86_64
compiler=gcc
compiler.version=9
compiler.libcxx=libstdc++11
build_type=Release
[options]
[conf]
`

func TestParseProfile(t *testing.T) {
	assert.Equal(t, Compiler{Name: "gcc", Version: "9"}, ParseProfile(gccProfile))
	assert.Equal(t, Compiler{Name: "Visual Studio", Version: "16"},
		ParseProfile("compiler=Visual Studio\r\ncompiler.version=16\r\ncompiler.runtime=MD\r\n"))
	assert.Equal(t, Compiler{}, ParseProfile("[settings]\nos=Linux\n"))
}

func TestDetect(t *testing.T) {
	r := &fakeRunner{result: exec.CmdResult{Combined: gccProfile}}
	d := &Detector{Runner: r, Tool: "conan"}

	c, err := d.Detect(context.Background(), Linux)
	require.NoError(t, err)
	assert.Equal(t, "gcc", c.Name)
	assert.Equal(t, [][]string{{"conan", "profile", "show", "default"}}, r.calls)
}

func TestDetect_CIOverrideOnWindows(t *testing.T) {
	r := &fakeRunner{}
	d := &Detector{Runner: r, Tool: "conan", Getenv: func(k string) string {
		if k == CIEnvVar {
			return "True"
		}
		return ""
	}}

	c, err := d.Detect(context.Background(), Windows)
	require.NoError(t, err)
	assert.True(t, c.IsMSVC())
	assert.Empty(t, r.calls)

	r.result = exec.CmdResult{Combined: gccProfile}
	c, err = d.Detect(context.Background(), Linux)
	require.NoError(t, err)
	assert.Equal(t, "gcc", c.Name)
}

func TestDetect_Failures(t *testing.T) {
	d := &Detector{Runner: &fakeRunner{err: errors.New("not found")}, Tool: "conan"}
	_, err := d.Detect(context.Background(), Linux)
	assert.Error(t, err)

	d = &Detector{Runner: &fakeRunner{result: exec.CmdResult{ExitCode: 1, Combined: "ERROR: profile not found"}}, Tool: "conan"}
	_, err = d.Detect(context.Background(), Linux)
	assert.ErrorContains(t, err, "profile not found")
}

func TestConstraintMatches(t *testing.T) {
	gcc7 := Compiler{Name: "gcc", Version: "7"}
	gcc9 := Compiler{Name: "gcc", Version: "9.3"}
	msvc := Compiler{Name: "Visual Studio"}
	appleClang := Compiler{Name: "apple-clang", Version: "12.0"}
	unknown := Compiler{}

	tests := []struct {
		name string
		c    Constraint
		comp Compiler
		want bool
	}{
		{"zero matches anything", Constraint{}, unknown, true},
		{"family", Constraint{Compiler: "gcc"}, gcc7, true},
		{"family mismatch", Constraint{Compiler: "gcc"}, msvc, false},
		{"min version met", Constraint{Compiler: "gcc", MinVersion: "8"}, gcc9, true},
		{"min version unmet", Constraint{Compiler: "gcc", MinVersion: "8"}, gcc7, false},
		{"min version unknown", Constraint{Compiler: "msvc", MinVersion: "15"}, msvc, false},
		{"msvc alias", Constraint{Compiler: "msvc"}, msvc, true},
		{"clang is not apple-clang", Constraint{Compiler: "clang"}, appleClang, false},
		{"apple-clang", Constraint{Compiler: "apple-clang"}, appleClang, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Matches(tt.comp))
		})
	}
}

func TestConstraintValidate(t *testing.T) {
	assert.NoError(t, Constraint{Compiler: "gcc", MinVersion: "8"}.Validate())
	assert.Error(t, Constraint{MinVersion: "eight"}.Validate())
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform("windows")
	require.NoError(t, err)
	assert.Equal(t, Windows, p)

	p, err = ParsePlatform("")
	require.NoError(t, err)
	assert.Equal(t, HostPlatform(), p)

	_, err = ParsePlatform("plan9")
	assert.Error(t, err)
}

func TestCompilerString(t *testing.T) {
	assert.Equal(t, "unknown", Compiler{}.String())
	assert.Equal(t, "gcc 9", Compiler{Name: "gcc", Version: "9"}.String())
	assert.Equal(t, Shared, LinkModeFor(true))
	assert.Equal(t, Static, LinkModeFor(false))
}
