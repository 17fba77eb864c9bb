package tty

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestIsTTY_Nil(t *testing.T) {
	if IsTTY(nil) {
		t.Error("IsTTY(nil) = true, want false")
	}
}

func TestIsTTY_RegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if IsTTY(f) {
		t.Error("IsTTY(regular file) = true, want false")
	}
}

func TestColorEnabled_NonFileWriter(t *testing.T) {
	var buf bytes.Buffer
	if ColorEnabled(&buf) {
		t.Error("ColorEnabled(bytes.Buffer) = true, want false")
	}
}

func TestColorEnabled_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if ColorEnabled(os.Stdout) {
		t.Error("ColorEnabled with NO_COLOR = true, want false")
	}
}
