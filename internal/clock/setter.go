package clock

import (
	"context"
	"time"

	"github.com/siderolabs/go-cmd/pkg/cmd"
)

// RunFunc executes a system utility.
type RunFunc func(ctx context.Context, name string, args ...string) (string, error)

// DateSetter sets the clock with `date`, optionally syncing the hardware
// clock afterwards. Sudo prefixes both commands.
type DateSetter struct {
	Sudo    bool
	HWClock bool

	// Run defaults to go-cmd's RunContext.
	Run RunFunc
}

// Set implements Setter.
func (s *DateSetter) Set(ctx context.Context, t time.Time) error {
	if _, err := s.run(ctx, "date", "-u", "-s", t.UTC().Format("2006-01-02 15:04:05")); err != nil {
		return err
	}
	if s.HWClock {
		return s.hwclock(ctx)
	}
	return nil
}

func (s *DateSetter) hwclock(ctx context.Context) error {
	_, err := s.run(ctx, "hwclock", "-w")
	return err
}

func (s *DateSetter) run(ctx context.Context, name string, args ...string) (string, error) {
	run := s.Run
	if run == nil {
		run = cmd.RunContext
	}
	if s.Sudo {
		return run(ctx, "sudo", append([]string{name}, args...)...)
	}
	return run(ctx, name, args...)
}

// SystemSetter picks the setter for the host: the native call when the
// process may set the time itself, `sudo date` otherwise.
func SystemSetter(hwclock bool) Setter {
	if s := nativeSetter(hwclock); s != nil {
		return s
	}
	return &DateSetter{Sudo: true, HWClock: hwclock}
}
