package hook

import (
	"context"
	"strconv"
	"strings"

	"github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/exec"
)

// Toggler switches a hook registered with the build tool on and off, for
// setups where the tool runs the hook itself.
type Toggler struct {
	Runner exec.CommandRunner

	// Tool is the build tool binary.
	Tool string

	// Name is the hook's config key suffix: hooks.<Name>.
	Name string
}

// Args returns the tool arguments that set the hook to enabled.
func (t *Toggler) Args(enabled bool) []string {
	key := "hooks." + t.Name
	if enabled {
		return []string{"config", "set", key}
	}
	return []string{"config", "rm", key}
}

// Set enables or disables the hook.
// A failed disable is ignored unless the tool cannot be started.
// Returns E_HOOK_TOGGLE_FAILED if the tool cannot run or exits non-zero.
func (t *Toggler) Set(ctx context.Context, enabled bool) error {
	args := t.Args(enabled)
	res, err := t.Runner.Run(ctx, t.Tool, args, exec.RunOpts{})
	details := map[string]string{"command": t.Tool + " " + strings.Join(args, " ")}
	if err != nil {
		return errors.WrapWithDetails(errors.EHookToggleFailed, "failed to run build tool", err, details)
	}
	// rm exits non-zero when the key is absent, which already means off.
	if res.ExitCode != 0 && enabled {
		details["exit_code"] = strconv.Itoa(res.ExitCode)
		msg := "build tool refused hook config change"
		if out := strings.TrimSpace(res.Combined); out != "" {
			msg += ": " + out
		}
		return errors.NewWithDetails(errors.EHookToggleFailed, msg, details)
	}
	return nil
}
