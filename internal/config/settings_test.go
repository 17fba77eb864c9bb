package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NielsdaWheelz/detbuild/internal/errors"
	"github.com/NielsdaWheelz/detbuild/internal/fs"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultSettingsFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}
	return path
}

func TestLoadSettings_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultSettingsFile)

	cfg, found, err := LoadSettings(fs.NewRealFS(), path, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected found=false")
	}
	if cfg != DefaultSettings() {
		t.Errorf("expected defaults, got %+v", cfg)
	}

	_, _, err = LoadSettings(fs.NewRealFS(), path, true)
	if errors.GetCode(err) != errors.EInvalidConfig {
		t.Errorf("expected E_INVALID_CONFIG for required missing file, got %v", err)
	}
}

func TestLoadSettings_Overrides(t *testing.T) {
	path := writeSettings(t, `
build_tool = "conan"
rewriter_path = 'C:\ducible\ducible.exe'
epoch_value = "1581000000"
marker_neutral = true
hook_mode = "external"
perturb_clock = true
hwclock_sync = true
seed = 42
history = "sqlite://detbuild.db"
`)

	cfg, found, err := LoadSettings(fs.NewRealFS(), path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Error("expected found=true")
	}
	if cfg.RewriterPath != `C:\ducible\ducible.exe` {
		t.Errorf("rewriter_path = %q", cfg.RewriterPath)
	}
	if !cfg.MarkerNeutral || !cfg.PerturbClock || !cfg.HWClockSync {
		t.Error("expected boolean overrides to apply")
	}
	if cfg.Seed != 42 {
		t.Errorf("seed = %d, want 42", cfg.Seed)
	}
	if cfg.LogFormat != "conan-v1" {
		t.Errorf("unset keys should keep defaults, log_format = %q", cfg.LogFormat)
	}
	if cfg.HookName != "deterministic-build" {
		t.Errorf("hook_name = %q", cfg.HookName)
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"unknown key", `build_tol = "conan"`, "unknown field: build_tol"},
		{"bad toml", `build_tool = `, "invalid settings"},
		{"wrong type", `perturb_clock = "yes"`, "invalid settings"},
		{"empty build tool", `build_tool = ""`, "build_tool"},
		{"command line build tool", `build_tool = "conan create"`, "single executable"},
		{"unknown log format", `log_format = "conan-v9"`, "log_format"},
		{"unknown checksum", `checksum = "md5"`, "checksum"},
		{"bad epoch", `epoch_value = "yesterday"`, "epoch_value"},
		{"bad hook mode", `hook_mode = "sometimes"`, "hook_mode"},
		{"external hook without name", "hook_mode = \"external\"\nhook_name = \"\"", "hook_name"},
		{"version without compiler", `compiler_version = "9"`, "compiler_version"},
		{"hwclock without perturb", `hwclock_sync = true`, "hwclock_sync"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSettings(t, tt.content)
			_, _, err := LoadSettings(fs.NewRealFS(), path, true)
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.GetCode(err) != errors.EInvalidConfig {
				t.Errorf("code = %s, want E_INVALID_CONFIG", errors.GetCode(err))
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidateSettings_Defaults(t *testing.T) {
	if err := ValidateSettings(DefaultSettings()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}
