package config

import (
	"strings"
	"unicode"

	"github.com/NielsdaWheelz/detbuild/internal/buildlog"
	"github.com/NielsdaWheelz/detbuild/internal/checksum"
	"github.com/NielsdaWheelz/detbuild/internal/errors"
)

// ValidationError represents a single validation error with field context.
type ValidationError struct {
	Field string
	Msg   string
}

func (v *ValidationError) Error() string {
	if v.Field != "" {
		return v.Field + ": " + v.Msg
	}
	return v.Msg
}

// ValidateSettings checks semantic constraints the decoder cannot.
// Returns E_INVALID_CONFIG naming the first offending field.
func ValidateSettings(cfg Settings) error {
	if err := validateSettings(cfg); err != nil {
		return errors.WrapWithDetails(errors.EInvalidConfig, err.Error(), err, nil)
	}
	return nil
}

func validateSettings(cfg Settings) *ValidationError {
	if strings.TrimSpace(cfg.BuildTool) == "" {
		return &ValidationError{Field: "build_tool", Msg: "must not be empty"}
	}
	if containsWhitespace(cfg.BuildTool) {
		return &ValidationError{Field: "build_tool", Msg: "must be a single executable, not a command line"}
	}
	if _, err := buildlog.Lookup(cfg.LogFormat); err != nil {
		return &ValidationError{Field: "log_format", Msg: "must be one of " + strings.Join(buildlog.Names(), ", ")}
	}
	if _, err := checksum.Algorithm(cfg.Checksum); err != nil {
		return &ValidationError{Field: "checksum", Msg: "must be sha256 or sha512"}
	}
	if cfg.EpochValue != "" && !isDigits(cfg.EpochValue) {
		return &ValidationError{Field: "epoch_value", Msg: "must be a non-negative integer"}
	}
	switch cfg.HookMode {
	case HookModeInline, HookModeExternal:
	default:
		return &ValidationError{Field: "hook_mode", Msg: `must be "inline" or "external"`}
	}
	if cfg.HookMode == HookModeExternal && (cfg.HookName == "" || containsWhitespace(cfg.HookName)) {
		return &ValidationError{Field: "hook_name", Msg: "must be a non-empty name without whitespace"}
	}
	if cfg.CompilerVersion != "" && cfg.Compiler == "" {
		return &ValidationError{Field: "compiler_version", Msg: "requires compiler"}
	}
	if cfg.HWClockSync && !cfg.PerturbClock {
		return &ValidationError{Field: "hwclock_sync", Msg: "requires perturb_clock"}
	}
	if strings.TrimSpace(cfg.LogDir) == "" {
		return &ValidationError{Field: "log_dir", Msg: "must not be empty"}
	}
	return nil
}

// containsWhitespace returns true if s contains any whitespace character.
func containsWhitespace(s string) bool {
	for _, r := range s {
		if unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
