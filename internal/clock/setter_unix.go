//go:build linux || darwin || freebsd

package clock

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// SyscallSetter calls settimeofday(2). Requires root.
type SyscallSetter struct {
	HWClock bool

	// Run syncs the hardware clock; defaults to go-cmd.
	Run RunFunc
}

// Set implements Setter.
func (s *SyscallSetter) Set(ctx context.Context, t time.Time) error {
	tv := unix.NsecToTimeval(t.UnixNano())
	if err := unix.Settimeofday(&tv); err != nil {
		return err
	}
	if s.HWClock {
		return (&DateSetter{Run: s.Run}).hwclock(ctx)
	}
	return nil
}

func nativeSetter(hwclock bool) Setter {
	if unix.Geteuid() != 0 {
		return nil
	}
	return &SyscallSetter{HWClock: hwclock}
}
