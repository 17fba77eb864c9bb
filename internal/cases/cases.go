// Package cases loads reproducibility test scenarios from a YAML case file.
//
// A case names the sources staged into a build folder before each build, the
// build options, the hook states it runs under, and an optional compiler gate.
// Relative paths resolve against the directory containing the case file.
package cases

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-envparse"
	"github.com/siderolabs/gen/maps"
	"gopkg.in/yaml.v3"

	"github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/fs"
	"github.com/NielsdaWheelz/detbuild/internal/toolchain"
)

// HookState is whether the patch step is active for a run.
type HookState string

const (
	HookOff HookState = "off"
	HookOn  HookState = "on"
)

// AllHookStates is the default, in reporting order.
var AllHookStates = []HookState{HookOff, HookOn}

// ParseHookState accepts off/on and the boolean spellings.
func ParseHookState(s string) (HookState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "false", "disabled":
		return HookOff, nil
	case "on", "true", "enabled":
		return HookOn, nil
	default:
		return "", fmt.Errorf("invalid hook state %q (want off or on)", s)
	}
}

// Enabled reports whether patching is active.
func (h HookState) Enabled() bool {
	return h == HookOn
}

// Source is one file copied into the build tree before a build.
type Source struct {
	Src string `yaml:"src"`
	Dst string `yaml:"dst"`
}

// Build is one invocation inside a case.
type Build struct {
	// Folder is where the build tool runs.
	Folder string `yaml:"folder"`

	// Reference is the user/channel plus any extra tool arguments.
	// Distinct references make repeated builds land in distinct package folders.
	Reference string `yaml:"reference"`

	Sources []Source `yaml:"sources"`

	// EnvFile is a KEY=VALUE file overlaid on the build environment.
	EnvFile string `yaml:"env_file"`

	// Env is EnvFile's content, resolved by Load.
	Env []string `yaml:"-"`
}

// Case is one scenario.
type Case struct {
	Name      string               `yaml:"name"`
	BuildType string               `yaml:"build_type"`
	Shared    bool                 `yaml:"shared"`
	Hooks     []HookState          `yaml:"hooks"`
	Repeat    int                  `yaml:"repeat"`
	When      toolchain.Constraint `yaml:"when"`
	Builds    []Build              `yaml:"builds"`
}

// LinkMode derives the linkage from Shared.
func (c Case) LinkMode() toolchain.LinkMode {
	return toolchain.LinkModeFor(c.Shared)
}

// Runs is the number of builds per hook state.
func (c Case) Runs() int {
	return len(c.Builds) * c.Repeat
}

// File is a parsed case file.
type File struct {
	Path  string `yaml:"-"`
	Cases []Case `yaml:"cases"`
}

// Load reads, resolves, and validates a case file.
// Returns E_INVALID_CASES on any read, parse, or validation failure.
func Load(filesystem fs.FS, path string) (*File, error) {
	data, err := filesystem.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EInvalidCases, "failed to read case file", err, map[string]string{"file": path})
	}

	f, err := Parse(data)
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EInvalidCases, err.Error(), err, map[string]string{"file": path})
	}
	f.Path = path

	base := filepath.Dir(path)
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	if err := f.resolve(filesystem, base); err != nil {
		return nil, errors.WrapWithDetails(errors.EInvalidCases, err.Error(), err, map[string]string{"file": path})
	}

	return f, nil
}

// Parse decodes YAML with unknown fields rejected, applies defaults, and validates.
func Parse(data []byte) (*File, error) {
	var f File

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, stderrors.New("case file is empty")
		}
		return nil, fmt.Errorf("invalid case file: %w", err)
	}

	applyDefaults(&f)
	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func applyDefaults(f *File) {
	for i := range f.Cases {
		c := &f.Cases[i]
		if c.BuildType == "" {
			c.BuildType = "Release"
		}
		if c.Repeat == 0 {
			c.Repeat = 1
		}
		if len(c.Hooks) == 0 {
			c.Hooks = slices.Clone(AllHookStates)
		}
	}
}

// UnmarshalYAML accepts off/on case-insensitively and YAML booleans.
func (h *HookState) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseHookState(node.Value)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func (f *File) resolve(filesystem fs.FS, base string) error {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	for ci := range f.Cases {
		c := &f.Cases[ci]
		for bi := range c.Builds {
			b := &c.Builds[bi]
			b.Folder = abs(b.Folder)
			for si := range b.Sources {
				b.Sources[si].Src = abs(b.Sources[si].Src)
				b.Sources[si].Dst = abs(b.Sources[si].Dst)
			}
			if b.EnvFile == "" {
				continue
			}
			b.EnvFile = abs(b.EnvFile)
			env, err := loadEnvFile(filesystem, b.EnvFile)
			if err != nil {
				return fmt.Errorf("case %q build %d: %w", c.Name, bi+1, err)
			}
			b.Env = env
		}
	}
	return nil
}

func loadEnvFile(filesystem fs.FS, path string) ([]string, error) {
	data, err := filesystem.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read environment file %q: %w", path, err)
	}

	parsed, err := envparse.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment file %q: %w", path, err)
	}

	env := maps.ToSlice(parsed, func(k, v string) string {
		return fmt.Sprintf("%s=%s", k, v)
	})
	slices.Sort(env)
	return env, nil
}

// Skipped is a case excluded by its compiler gate.
type Skipped struct {
	Name   string
	Reason string
}

// Select returns the cases whose gate matches comp, in file order.
func Select(all []Case, comp toolchain.Compiler) (kept []Case, skipped []Skipped) {
	for _, c := range all {
		if c.When.Matches(comp) {
			kept = append(kept, c)
			continue
		}
		skipped = append(skipped, Skipped{
			Name:   c.Name,
			Reason: fmt.Sprintf("requires %s, have %s", c.When.String(), comp.String()),
		})
	}
	return kept, skipped
}
