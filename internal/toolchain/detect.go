package toolchain

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/NielsdaWheelz/detbuild/internal/exec"
)

// CIEnvVar marks an AppVeyor worker; on Windows those always build with MSVC.
const CIEnvVar = "APPVEYOR"

// Detector asks the build tool which compiler its default profile selects.
type Detector struct {
	Runner exec.CommandRunner

	// Tool is the build tool binary (e.g. "conan").
	Tool string

	// Getenv reads the process environment. Nil means no CI override.
	Getenv func(string) string
}

// Detect returns the configured compiler for platform.
//
// An empty Compiler is returned without error when the profile names none;
// callers gate cases on it and an unknown compiler simply matches no gate.
func (d *Detector) Detect(ctx context.Context, platform Platform) (Compiler, error) {
	if platform == Windows && d.Getenv != nil && d.Getenv(CIEnvVar) == "True" {
		return Compiler{Name: "Visual Studio"}, nil
	}

	res, err := d.Runner.Run(ctx, d.Tool, []string{"profile", "show", "default"}, exec.RunOpts{})
	if err != nil {
		return Compiler{}, err
	}
	if res.ExitCode != 0 {
		return Compiler{}, fmt.Errorf("%s profile show default exited %d: %s", d.Tool, res.ExitCode, strings.TrimSpace(res.Combined))
	}

	return ParseProfile(res.Combined), nil
}

// ParseProfile extracts compiler= and compiler.version= from profile output.
// Sub-settings such as compiler.libcxx are ignored.
func ParseProfile(text string) Compiler {
	var c Compiler
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "compiler="):
			c.Name = strings.TrimSpace(strings.TrimPrefix(line, "compiler="))
		case strings.HasPrefix(line, "compiler.version="):
			c.Version = strings.TrimSpace(strings.TrimPrefix(line, "compiler.version="))
		}
	}
	return c
}
