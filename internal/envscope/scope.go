// Package envscope brackets one build invocation with the environment
// variables that make the toolchain stamp deterministic timestamps.
//
// A Scope is entered once and exited once. The values it overwrote are held
// in a Snapshot owned by the Scope and restored on exit, including when the
// bracketed build fails. Use With rather than pairing Enter/Exit by hand.
package envscope

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/NielsdaWheelz/detbuild/internal/toolchain"
)

// Epoch-control variables understood by the supported toolchains.
const (
	// SourceDateEpoch is read by gcc, clang and most Linux packaging tools.
	SourceDateEpoch = "SOURCE_DATE_EPOCH"

	// ZeroArDate makes Apple's ld64 and libtool write zero archive dates.
	ZeroArDate = "ZERO_AR_DATE"
)

// DefaultEpoch is the value written to SourceDateEpoch when none is configured.
const DefaultEpoch = "0"

var (
	// ErrAlreadyEntered is returned by Enter on an active scope.
	ErrAlreadyEntered = errors.New("environment scope already entered")

	// ErrSnapshotMismatch is returned by Exit for a snapshot this scope did not issue.
	ErrSnapshotMismatch = errors.New("snapshot does not belong to the active scope")
)

// Environ is the process environment seen by a Scope.
type Environ interface {
	LookupEnv(key string) (string, bool)
	Setenv(key, value string) error
	Unsetenv(key string) error
}

// OSEnviron is the real process environment.
type OSEnviron struct{}

func (OSEnviron) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }
func (OSEnviron) Setenv(key, value string) error      { return os.Setenv(key, value) }
func (OSEnviron) Unsetenv(key string) error           { return os.Unsetenv(key) }

// Setting is one variable the scope controls.
type Setting struct {
	Key   string
	Value string
}

// SettingsFor returns the epoch-control variables for platform. Platforms
// without a known mechanism get none and their scope is a no-op.
func SettingsFor(platform toolchain.Platform, epoch string) []Setting {
	if epoch == "" {
		epoch = DefaultEpoch
	}
	switch platform {
	case toolchain.Linux:
		return []Setting{{Key: SourceDateEpoch, Value: epoch}}
	case toolchain.Macos:
		return []Setting{{Key: ZeroArDate, Value: "1"}}
	default:
		return nil
	}
}

type saved struct {
	key   string
	value string
	set   bool
}

// Snapshot holds the values a Scope overwrote.
type Snapshot struct {
	entries []saved
}

// Scope owns the epoch-control environment for one build.
type Scope struct {
	env      Environ
	settings []Setting
	logger   *zap.Logger

	active *Snapshot
}

// New returns a Scope for platform. Nil env uses the process environment.
func New(env Environ, platform toolchain.Platform, epoch string, logger *zap.Logger) *Scope {
	if env == nil {
		env = OSEnviron{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scope{env: env, settings: SettingsFor(platform, epoch), logger: logger}
}

// Settings returns the variables this scope applies.
func (s *Scope) Settings() []Setting {
	return append([]Setting(nil), s.settings...)
}

// Active reports whether the scope has been entered and not yet exited.
func (s *Scope) Active() bool {
	return s.active != nil
}

// Enter records the current values and applies the scope's settings.
// On a partial failure the values already written are rolled back.
func (s *Scope) Enter() (*Snapshot, error) {
	if s.active != nil {
		return nil, ErrAlreadyEntered
	}

	snap := &Snapshot{}
	for _, st := range s.settings {
		prev, ok := s.env.LookupEnv(st.Key)
		snap.entries = append(snap.entries, saved{key: st.Key, value: prev, set: ok})

		if err := s.env.Setenv(st.Key, st.Value); err != nil {
			rollbackErr := s.restore(snap)
			return nil, errors.Join(fmt.Errorf("set %s: %w", st.Key, err), rollbackErr)
		}
		s.logger.Debug("environment set", zap.String("key", st.Key), zap.String("value", st.Value), zap.Bool("was_set", ok))
	}

	s.active = snap
	return snap, nil
}

// Exit restores the values recorded by Enter. It accepts only the snapshot
// returned by the matching Enter.
func (s *Scope) Exit(snap *Snapshot) error {
	if snap == nil || snap != s.active {
		return ErrSnapshotMismatch
	}
	s.active = nil
	return s.restore(snap)
}

func (s *Scope) restore(snap *Snapshot) error {
	var errs []error
	for i := len(snap.entries) - 1; i >= 0; i-- {
		e := snap.entries[i]
		var err error
		if e.set {
			err = s.env.Setenv(e.key, e.value)
		} else {
			err = s.env.Unsetenv(e.key)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", e.key, err))
			continue
		}
		s.logger.Debug("environment restored", zap.String("key", e.key), zap.Bool("was_set", e.set))
	}
	return errors.Join(errs...)
}

// With runs fn inside the scope. The environment is restored before With
// returns, whether fn fails or panics.
func With(s *Scope, fn func() error) (err error) {
	snap, err := s.Enter()
	if err != nil {
		return err
	}
	defer func() {
		if exitErr := s.Exit(snap); exitErr != nil {
			err = errors.Join(err, exitErr)
		}
	}()
	return fn()
}

// Overlay returns base with the scope's settings applied, for subprocesses
// given an explicit environment. Later entries win.
func (s *Scope) Overlay(base []string) []string {
	out := make([]string, 0, len(base)+len(s.settings))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if !s.controls(key) {
			out = append(out, kv)
		}
	}
	for _, st := range s.settings {
		out = append(out, st.Key+"="+st.Value)
	}
	return out
}

func (s *Scope) controls(key string) bool {
	for _, st := range s.settings {
		if st.Key == key {
			return true
		}
	}
	return false
}
