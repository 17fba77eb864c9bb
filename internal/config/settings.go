// Package config handles loading and validation of detbuild settings files.
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/fs"
)

// DefaultSettingsFile is looked up in the working directory when no
// --config flag is given.
const DefaultSettingsFile = "detbuild.toml"

// Hook modes.
const (
	// HookModeInline runs the patch lifecycle in-process around each build.
	HookModeInline = "inline"

	// HookModeExternal toggles a hook registered with the build tool itself.
	HookModeExternal = "external"
)

// Settings is the parsed detbuild.toml.
type Settings struct {
	// BuildTool is the build/package orchestrator binary.
	BuildTool string `toml:"build_tool"`

	// RecipePath is passed to `create`, relative to each build folder.
	RecipePath string `toml:"recipe_path"`

	// LogFormat names the marker extractor set for the tool's output.
	LogFormat string `toml:"log_format"`

	// RewriterPath is the executable/shared-library timestamp rewriter.
	// Empty disables delegation; those artifacts are reported unverified.
	RewriterPath string `toml:"rewriter_path"`

	// EpochValue is exported as SOURCE_DATE_EPOCH inside the build scope.
	EpochValue string `toml:"epoch_value"`

	// Checksum is the digest algorithm for artifact comparison.
	Checksum string `toml:"checksum"`

	// MarkerNeutral writes 0x99-framed replacements instead of zeros.
	MarkerNeutral bool `toml:"marker_neutral"`

	// Compiler and CompilerVersion override profile detection.
	Compiler        string `toml:"compiler"`
	CompilerVersion string `toml:"compiler_version"`

	HookMode string `toml:"hook_mode"`
	HookName string `toml:"hook_name"`

	PerturbClock bool `toml:"perturb_clock"`
	HWClockSync  bool `toml:"hwclock_sync"`

	// Seed drives clock perturbation. Zero picks one from the current time.
	Seed int64 `toml:"seed"`

	// LogDir receives one build log per invocation. It is cleared at the
	// start of each verify run.
	LogDir string `toml:"log_dir"`

	// Report is the JSON run report path. Empty disables it.
	Report string `toml:"report"`

	// History is the checksum history DSN. Empty disables it.
	History string `toml:"history"`
}

// DefaultSettings returns built-in defaults used when no settings file exists.
func DefaultSettings() Settings {
	return Settings{
		BuildTool:  "conan",
		RecipePath: ".",
		LogFormat:  "conan-v1",
		EpochValue: "0",
		Checksum:   "sha256",
		HookMode:   HookModeInline,
		HookName:   "deterministic-build",
		LogDir:     filepath.Join(".detbuild", "logs"),
	}
}

// LoadSettings reads path on top of the defaults.
// If the file is missing and required is false, returns defaults with found=false.
// Unknown keys are rejected with E_INVALID_CONFIG naming the key.
func LoadSettings(filesystem fs.FS, path string, required bool) (Settings, bool, error) {
	cfg := DefaultSettings()

	data, err := filesystem.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, false, nil
		}
		return Settings{}, false, errors.WrapWithDetails(errors.EInvalidConfig, "failed to read settings file", err, map[string]string{"file": path})
	}

	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Settings{}, false, errors.NewWithDetails(errors.EInvalidConfig, "invalid settings: "+describeDecodeError(err), map[string]string{"file": path})
	}

	if err := ValidateSettings(cfg); err != nil {
		return Settings{}, false, err
	}

	return cfg, true, nil
}

func describeDecodeError(err error) string {
	var strict *toml.StrictMissingError
	if stderrors.As(err, &strict) && len(strict.Errors) > 0 {
		return "unknown field: " + strings.Join(strict.Errors[0].Key(), ".")
	}
	var de *toml.DecodeError
	if stderrors.As(err, &de) {
		row, col := de.Position()
		return de.Error() + fmt.Sprintf(" (line %d, column %d)", row, col)
	}
	return err.Error()
}
