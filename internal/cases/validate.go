package cases

import (
	"fmt"
	"strings"
)

// Validate checks a parsed case file after defaults are applied.
// A case must produce at least two builds per hook state to be comparable.
func Validate(f *File) error {
	if len(f.Cases) == 0 {
		return fmt.Errorf("no cases defined")
	}

	seen := make(map[string]bool, len(f.Cases))
	for i, c := range f.Cases {
		label := fmt.Sprintf("case %d", i+1)
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%s: name must not be empty", label)
		}
		label = fmt.Sprintf("case %q", c.Name)
		if seen[c.Name] {
			return fmt.Errorf("%s: duplicate name", label)
		}
		seen[c.Name] = true

		if c.Repeat < 1 {
			return fmt.Errorf("%s: repeat must be at least 1", label)
		}
		if len(c.Builds) == 0 {
			return fmt.Errorf("%s: at least one build is required", label)
		}
		if c.Runs() < 2 {
			return fmt.Errorf("%s: needs at least two builds per hook state (add a build or set repeat >= 2)", label)
		}

		states := make(map[HookState]bool, len(c.Hooks))
		for _, h := range c.Hooks {
			if states[h] {
				return fmt.Errorf("%s: hook state %q listed twice", label, h)
			}
			states[h] = true
		}

		if err := c.When.Validate(); err != nil {
			return fmt.Errorf("%s: when: %w", label, err)
		}

		for bi, b := range c.Builds {
			if strings.TrimSpace(b.Folder) == "" {
				return fmt.Errorf("%s build %d: folder must not be empty", label, bi+1)
			}
			for si, s := range b.Sources {
				if s.Src == "" || s.Dst == "" {
					return fmt.Errorf("%s build %d source %d: src and dst are required", label, bi+1, si+1)
				}
			}
		}
	}
	return nil
}
