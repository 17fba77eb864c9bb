package invoker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/NielsdaWheelz/detbuild/internal/buildlog"
	detErrors "github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/exec"
)

// fakeRunner is a test fake for exec.CommandRunner.
type fakeRunner struct {
	result exec.CmdResult
	err    error
	onRun  func()

	name string
	args []string
	opts exec.RunOpts
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, opts exec.RunOpts) (exec.CmdResult, error) {
	f.name, f.args, f.opts = name, args, opts
	if f.onRun != nil {
		f.onRun()
	}
	return f.result, f.err
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{
			name: "defaults",
			req:  Request{},
			want: []string{"create", ".", "user/channel"},
		},
		{
			name: "build type and shared",
			req:  Request{Reference: "user/channel1", BuildType: "Debug", Shared: true},
			want: []string{"create", ".", "user/channel1", "-s", "build_type=Debug", "-o", "shared=True"},
		},
		{
			name: "reference with quoted options",
			req:  Request{Recipe: "recipes/lib", Reference: `user/channel -e "CXXFLAGS=-O2 -g"`},
			want: []string{"create", "recipes/lib", "user/channel", "-e", "CXXFLAGS=-O2 -g"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildArgs(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildArgs_BadQuoting(t *testing.T) {
	_, err := BuildArgs(Request{Reference: `user/channel "unterminated`})
	assert.Error(t, err)
}

func TestInvoke(t *testing.T) {
	pkg := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(pkg, "lib"), 0o755))
	artifact := filepath.Join(pkg, "lib", "libmydetlib.a")
	require.NoError(t, os.WriteFile(artifact, []byte("!<arch>\n"), 0o644))

	mock := clock.NewMock()
	r := &fakeRunner{result: exec.CmdResult{Combined: "mydetlib/1.0@user/channel: Package folder " + pkg + "\n" +
		"Packaged 1 '.a' file: libmydetlib.a\n"}}
	r.onRun = func() { mock.Add(3 * time.Second) }

	format, err := buildlog.Lookup(buildlog.FormatConanV1)
	require.NoError(t, err)

	inv := &Invoker{Runner: r, Clock: mock, Logger: zaptest.NewLogger(t), Tool: "conan", Format: format}
	res, err := inv.Invoke(context.Background(), Request{Folder: "/src/library", BuildType: "Release"})
	require.NoError(t, err)

	assert.Equal(t, "conan", r.name)
	assert.Equal(t, "/src/library", r.opts.Dir)
	assert.Nil(t, r.opts.Env)
	assert.Equal(t, []string{artifact}, res.Artifacts.Paths)
	assert.Equal(t, 3*time.Second, res.Duration)
	assert.Zero(t, res.ExitCode)
}

func TestInvoke_FailedBuildYieldsNoArtifacts(t *testing.T) {
	r := &fakeRunner{result: exec.CmdResult{ExitCode: 1, Combined: "ERROR: mydetlib/1.0@user/channel: Error in build() method\n"}}
	format, _ := buildlog.Lookup(buildlog.FormatConanV1)

	res, err := (&Invoker{Runner: r, Tool: "conan", Format: format}).Invoke(context.Background(), Request{Folder: "."})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Empty(t, res.Artifacts.Paths)
	assert.NotEmpty(t, res.Artifacts.Warnings)
}

func TestInvoke_ToolMissing(t *testing.T) {
	r := &fakeRunner{err: errors.New(`exec: "conan": executable file not found in $PATH`)}
	format, _ := buildlog.Lookup(buildlog.FormatConanV1)

	_, err := (&Invoker{Runner: r, Tool: "conan", Format: format}).Invoke(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, detErrors.EBuildToolNotFound, detErrors.GetCode(err))
}

func TestInvoke_EnvOverlay(t *testing.T) {
	t.Setenv("DETBUILD_TEST_VAR", "base")
	r := &fakeRunner{}
	format, _ := buildlog.Lookup(buildlog.FormatConanV1)

	_, err := (&Invoker{Runner: r, Tool: "conan", Format: format}).Invoke(context.Background(),
		Request{Env: []string{"DETBUILD_TEST_VAR=overlay", "CC=gcc-9"}})
	require.NoError(t, err)

	assert.Contains(t, r.opts.Env, "DETBUILD_TEST_VAR=overlay")
	assert.Contains(t, r.opts.Env, "CC=gcc-9")
	assert.NotContains(t, r.opts.Env, "DETBUILD_TEST_VAR=base")
}

func TestMerge(t *testing.T) {
	got := Merge([]string{"A=1", "B=2"}, []string{"B=3", "C=4"})
	assert.Equal(t, []string{"A=1", "B=3", "C=4"}, got)
}
