//go:build windows

package clock

import (
	"context"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var procSetSystemTime = windows.NewLazySystemDLL("kernel32.dll").NewProc("SetSystemTime")

// SyscallSetter calls SetSystemTime. Requires SeSystemtimePrivilege, which
// elevated administrators hold.
type SyscallSetter struct{}

// Set implements Setter.
func (SyscallSetter) Set(_ context.Context, t time.Time) error {
	t = t.UTC()
	st := windows.Systemtime{
		Year:         uint16(t.Year()),
		Month:        uint16(t.Month()),
		DayOfWeek:    uint16(t.Weekday()),
		Day:          uint16(t.Day()),
		Hour:         uint16(t.Hour()),
		Minute:       uint16(t.Minute()),
		Second:       uint16(t.Second()),
		Milliseconds: uint16(t.Nanosecond() / int(time.Millisecond)),
	}

	if err := procSetSystemTime.Find(); err != nil {
		return err
	}
	r, _, err := procSetSystemTime.Call(uintptr(unsafe.Pointer(&st)))
	if r == 0 {
		return err
	}
	return nil
}

func nativeSetter(bool) Setter {
	return SyscallSetter{}
}
