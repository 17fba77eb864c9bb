package toolchain

import (
	"fmt"
	"strings"

	"github.com/blang/semver/v4"
)

// Constraint gates a case on the detected compiler.
// A zero Constraint matches every compiler.
type Constraint struct {
	// Compiler is a family name: "gcc", "clang", "apple-clang", or "msvc".
	Compiler string `yaml:"compiler" json:"compiler,omitempty"`

	// MinVersion is an inclusive lower bound, parsed leniently.
	MinVersion string `yaml:"min_version" json:"min_version,omitempty"`
}

// IsZero reports whether the constraint is unset.
func (c Constraint) IsZero() bool {
	return c.Compiler == "" && c.MinVersion == ""
}

// Validate checks that MinVersion parses.
func (c Constraint) Validate() error {
	if c.MinVersion == "" {
		return nil
	}
	if _, err := semver.ParseTolerant(c.MinVersion); err != nil {
		return fmt.Errorf("invalid min_version %q: %w", c.MinVersion, err)
	}
	return nil
}

// Matches reports whether comp satisfies the constraint. A version bound
// never matches a compiler whose version is unknown.
func (c Constraint) Matches(comp Compiler) bool {
	if c.Compiler != "" && !c.matchesFamily(comp) {
		return false
	}
	if c.MinVersion == "" {
		return true
	}

	floor, err := semver.ParseTolerant(c.MinVersion)
	if err != nil {
		return false
	}
	have, err := comp.SemVer()
	if err != nil {
		return false
	}
	return have.GTE(floor)
}

func (c Constraint) matchesFamily(comp Compiler) bool {
	want := strings.ToLower(c.Compiler)
	if want == "msvc" || want == "visual studio" {
		return comp.IsMSVC()
	}
	have := strings.ToLower(comp.Name)
	if want == "clang" {
		return have == "clang"
	}
	return strings.Contains(have, want)
}

// String renders the constraint for skip messages.
func (c Constraint) String() string {
	switch {
	case c.IsZero():
		return "any"
	case c.MinVersion == "":
		return c.Compiler
	case c.Compiler == "":
		return ">=" + c.MinVersion
	default:
		return c.Compiler + ">=" + c.MinVersion
	}
}
