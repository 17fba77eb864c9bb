// Package hook exposes the patch step as build lifecycle callbacks.
//
// An orchestrator calls Init once with the build context, PreBuild before
// compiling, and PostBuild with the package folder afterwards. PreBuild
// enters the epoch-control environment scope; PostBuild patches the package
// folder and then exits the scope. Run pairs the callbacks so the scope is
// exited even when the build or the patcher fails.
package hook

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/NielsdaWheelz/detbuild/internal/envscope"
	"github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/patcher"
	"github.com/NielsdaWheelz/detbuild/internal/toolchain"
)

// Name identifies the hook in logs and in the build tool's config.
const Name = "deterministic-build"

var (
	// ErrNotInitialized is returned by PreBuild before Init.
	ErrNotInitialized = stderrors.New("hook not initialized")

	// ErrNotInBuild is returned by PostBuild without a matching PreBuild.
	ErrNotInBuild = stderrors.New("post-build without pre-build")
)

// Lifecycle is one hook instance. It is not safe for concurrent use.
type Lifecycle struct {
	patcher *patcher.Patcher
	env     envscope.Environ
	epoch   string
	logger  *zap.Logger

	build *toolchain.Context
	scope *envscope.Scope
	snap  *envscope.Snapshot
}

// New returns a Lifecycle that patches with p. Nil env uses the process
// environment.
func New(p *patcher.Patcher, env envscope.Environ, epoch string, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		patcher: p,
		env:     env,
		epoch:   epoch,
		logger:  logger.With(zap.String("hook", Name)),
	}
}

// Init records the build context. Calling it again replaces the context;
// it is an error while a build is in progress.
func (l *Lifecycle) Init(bc toolchain.Context) error {
	if l.snap != nil {
		return errors.New(errors.EInternal, "hook re-initialized during a build")
	}
	l.build = &bc
	l.scope = envscope.New(l.env, bc.Platform, l.epoch, l.logger)
	l.logger.Info("hook initialized",
		zap.String("platform", string(bc.Platform)),
		zap.String("compiler", bc.Compiler.String()),
		zap.String("link", string(bc.LinkMode)),
	)
	return nil
}

// Context returns the build context from Init.
func (l *Lifecycle) Context() (toolchain.Context, bool) {
	if l.build == nil {
		return toolchain.Context{}, false
	}
	return *l.build, true
}

// Scope returns the environment scope for the current build context.
func (l *Lifecycle) Scope() *envscope.Scope {
	return l.scope
}

// PreBuild enters the environment scope.
func (l *Lifecycle) PreBuild() error {
	if l.scope == nil {
		return ErrNotInitialized
	}
	snap, err := l.scope.Enter()
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to enter build environment scope", err)
	}
	l.snap = snap
	for _, st := range l.scope.Settings() {
		l.logger.Info("pre-build", zap.String("set", st.Key+"="+st.Value))
	}
	return nil
}

// PostBuild patches packageFolder, then exits the scope. The scope is exited
// even if patching fails; both errors are returned.
func (l *Lifecycle) PostBuild(ctx context.Context, packageFolder string) (*patcher.Report, error) {
	if l.snap == nil {
		return nil, ErrNotInBuild
	}

	var report *patcher.Report
	var patchErr error
	if packageFolder != "" {
		report, patchErr = l.patcher.Patch(ctx, packageFolder, l.build.Platform, l.build.LinkMode)
		if patchErr != nil {
			patchErr = errors.Wrap(errors.EPatchFailed, "failed to patch package folder", patchErr)
		}
	} else {
		l.logger.Warn("post-build without package folder, nothing patched")
	}

	exitErr := l.exit()
	return report, stderrors.Join(patchErr, exitErr)
}

// Abort exits the scope without patching. It is a no-op outside a build.
func (l *Lifecycle) Abort() error {
	if l.snap == nil {
		return nil
	}
	return l.exit()
}

func (l *Lifecycle) exit() error {
	snap := l.snap
	l.snap = nil
	if err := l.scope.Exit(snap); err != nil {
		return errors.Wrap(errors.EInternal, "failed to restore build environment", err)
	}
	return nil
}

// BuildFunc runs one build inside the scope and returns its package folder.
type BuildFunc func(ctx context.Context) (packageFolder string, err error)

// Run brackets build with PreBuild and PostBuild. When build fails the
// scope is exited without patching and the build error is returned.
func (l *Lifecycle) Run(ctx context.Context, build BuildFunc) (*patcher.Report, error) {
	if err := l.PreBuild(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = l.Abort()
			panic(r)
		}
	}()

	folder, err := build(ctx)
	if err != nil {
		return nil, stderrors.Join(err, l.Abort())
	}
	return l.PostBuild(ctx, folder)
}
