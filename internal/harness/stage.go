package harness

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/siderolabs/go-copy/copy"

	"github.com/NielsdaWheelz/detbuild/internal/cases"
)

// Stage copies a build's sources into place, creating missing directories.
// A directory source is copied recursively.
func Stage(sources []cases.Source) error {
	for _, s := range sources {
		st, err := os.Stat(s.Src)
		if err != nil {
			return fmt.Errorf("stage %s: %w", s.Src, err)
		}

		if st.IsDir() {
			if err := copy.Dir(s.Src, s.Dst); err != nil {
				return fmt.Errorf("stage %s -> %s: %w", s.Src, s.Dst, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(s.Dst), 0o755); err != nil {
			return fmt.Errorf("stage %s: %w", s.Dst, err)
		}
		if err := copy.File(s.Src, s.Dst); err != nil {
			return fmt.Errorf("stage %s -> %s: %w", s.Src, s.Dst, err)
		}
	}
	return nil
}
