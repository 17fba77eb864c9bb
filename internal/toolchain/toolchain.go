// Package toolchain describes the build context handed to the hook lifecycle:
// target platform, link mode, and the compiler the external build tool is
// configured to use.
package toolchain

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/blang/semver/v4"
)

// Platform is the target operating system family as the build tool names it.
type Platform string

const (
	Windows Platform = "Windows"
	Linux   Platform = "Linux"
	Macos   Platform = "Macos"
)

// HostPlatform maps the running OS onto a Platform.
// Unknown systems are reported as Linux, the closest ar/ELF toolchain.
func HostPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return Windows
	case "darwin":
		return Macos
	default:
		return Linux
	}
}

// ParsePlatform accepts the build tool's spelling case-insensitively.
// The empty string resolves to the host platform.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return HostPlatform(), nil
	case "windows":
		return Windows, nil
	case "linux":
		return Linux, nil
	case "macos", "darwin":
		return Macos, nil
	default:
		return "", fmt.Errorf("unknown platform %q (want Windows, Linux or Macos)", s)
	}
}

// LinkMode selects static or shared linkage of the produced library.
type LinkMode string

const (
	Static LinkMode = "static"
	Shared LinkMode = "shared"
)

// LinkModeFor converts the build tool's shared option to a LinkMode.
func LinkModeFor(shared bool) LinkMode {
	if shared {
		return Shared
	}
	return Static
}

// Compiler names the configured compiler and its version string as reported
// by the build tool profile. Version may be empty.
type Compiler struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// String renders the compiler for log and report lines.
func (c Compiler) String() string {
	if c.Name == "" {
		return "unknown"
	}
	if c.Version == "" {
		return c.Name
	}
	return c.Name + " " + c.Version
}

// IsMSVC reports whether the compiler is any spelling of Microsoft's.
func (c Compiler) IsMSVC() bool {
	n := strings.ToLower(c.Name)
	return n == "msvc" || strings.Contains(n, "visual studio")
}

// SemVer parses Version leniently ("8" becomes 8.0.0).
func (c Compiler) SemVer() (semver.Version, error) {
	if c.Version == "" {
		return semver.Version{}, fmt.Errorf("compiler %s has no version", c.String())
	}
	return semver.ParseTolerant(c.Version)
}

// Context is what the build orchestrator passes to the hook Init callback.
type Context struct {
	Platform Platform `json:"platform"`
	Compiler Compiler `json:"compiler"`
	LinkMode LinkMode `json:"link_mode"`
}
