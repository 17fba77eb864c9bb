package hook

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/NielsdaWheelz/detbuild/internal/envscope"
	detbuilderrors "github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/exec"
	"github.com/NielsdaWheelz/detbuild/internal/patcher"
	"github.com/NielsdaWheelz/detbuild/internal/testutil"
	"github.com/NielsdaWheelz/detbuild/internal/toolchain"
)

type mapEnv map[string]string

func (m mapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapEnv) Setenv(key, value string) error {
	m[key] = value
	return nil
}

func (m mapEnv) Unsetenv(key string) error {
	delete(m, key)
	return nil
}

var linuxStatic = toolchain.Context{
	Platform: toolchain.Linux,
	Compiler: toolchain.Compiler{Name: "gcc", Version: "9"},
	LinkMode: toolchain.Static,
}

func packageFolder(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib", "libmydetlib.a")
	require.NoError(t, os.MkdirAll(filepath.Dir(lib), 0o755))
	archive := testutil.Archive(testutil.Member{Name: "a.o/", MTime: "1581000000", Data: []byte("object")})
	require.NoError(t, os.WriteFile(lib, archive, 0o644))
	return dir, lib
}

func newLifecycle(t *testing.T, env mapEnv) *Lifecycle {
	return New(patcher.New(zaptest.NewLogger(t), patcher.Options{}), env, "0", zaptest.NewLogger(t))
}

func TestLifecycle(t *testing.T) {
	env := mapEnv{}
	l := newLifecycle(t, env)
	dir, lib := packageFolder(t)

	require.ErrorIs(t, l.PreBuild(), ErrNotInitialized)
	require.NoError(t, l.Init(linuxStatic))

	got, ok := l.Context()
	require.True(t, ok)
	assert.Equal(t, linuxStatic, got)

	require.NoError(t, l.PreBuild())
	assert.Equal(t, "0", env[envscope.SourceDateEpoch])

	report, err := l.PostBuild(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, patcher.OutcomePatched, report.Files[0].Outcome)
	_, set := env[envscope.SourceDateEpoch]
	assert.False(t, set, "scope must be exited after post-build")

	data, err := os.ReadFile(lib)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(data, []byte("1581000000")))

	_, err = l.PostBuild(context.Background(), dir)
	assert.ErrorIs(t, err, ErrNotInBuild)
}

func TestRunRestoresOnBuildFailure(t *testing.T) {
	env := mapEnv{envscope.SourceDateEpoch: "42"}
	l := newLifecycle(t, env)
	require.NoError(t, l.Init(linuxStatic))

	boom := errors.New("compile error")
	_, err := l.Run(context.Background(), func(context.Context) (string, error) {
		assert.Equal(t, "0", env[envscope.SourceDateEpoch])
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "42", env[envscope.SourceDateEpoch])
	assert.False(t, l.Scope().Active())
}

func TestRunRestoresOnPanic(t *testing.T) {
	env := mapEnv{}
	l := newLifecycle(t, env)
	require.NoError(t, l.Init(linuxStatic))

	assert.Panics(t, func() {
		_, _ = l.Run(context.Background(), func(context.Context) (string, error) {
			panic("build crashed")
		})
	})
	assert.Empty(t, env)
	assert.False(t, l.Scope().Active())
}

func TestRunPatchesPackageFolder(t *testing.T) {
	env := mapEnv{}
	l := newLifecycle(t, env)
	require.NoError(t, l.Init(toolchain.Context{Platform: toolchain.Windows, LinkMode: toolchain.Shared}))
	dir, _ := packageFolder(t)

	report, err := l.Run(context.Background(), func(context.Context) (string, error) {
		assert.Empty(t, env, "windows has no epoch control")
		return dir, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(patcher.OutcomePatched))
}

func TestPostBuildWithoutFolder(t *testing.T) {
	env := mapEnv{}
	l := newLifecycle(t, env)
	require.NoError(t, l.Init(linuxStatic))
	require.NoError(t, l.PreBuild())

	report, err := l.PostBuild(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Empty(t, env)
}

func TestInitDuringBuild(t *testing.T) {
	l := newLifecycle(t, mapEnv{})
	require.NoError(t, l.Init(linuxStatic))
	require.NoError(t, l.PreBuild())
	assert.Error(t, l.Init(linuxStatic))
	require.NoError(t, l.Abort())
	assert.NoError(t, l.Abort())
}

type fakeRunner struct {
	result exec.CmdResult
	err    error
	calls  [][]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, opts exec.RunOpts) (exec.CmdResult, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.result, f.err
}

func TestToggler(t *testing.T) {
	r := &fakeRunner{}
	tg := &Toggler{Runner: r, Tool: "conan", Name: Name}

	require.NoError(t, tg.Set(context.Background(), true))
	require.NoError(t, tg.Set(context.Background(), false))
	assert.Equal(t, [][]string{
		{"conan", "config", "set", "hooks.deterministic-build"},
		{"conan", "config", "rm", "hooks.deterministic-build"},
	}, r.calls)
}

func TestTogglerErrors(t *testing.T) {
	r := &fakeRunner{result: exec.CmdResult{ExitCode: 1, Combined: "ERROR: bad key\n"}}
	tg := &Toggler{Runner: r, Tool: "conan", Name: Name}

	err := tg.Set(context.Background(), true)
	assert.Equal(t, detbuilderrors.EHookToggleFailed, detbuilderrors.GetCode(err))
	assert.Contains(t, err.Error(), "bad key")

	assert.NoError(t, tg.Set(context.Background(), false), "removing an absent key is not a failure")

	r.err = errors.New("executable file not found")
	assert.Equal(t, detbuilderrors.EHookToggleFailed, detbuilderrors.GetCode(tg.Set(context.Background(), false)))
}
