// Package clock moves the system wall clock to a random past date between
// builds and puts it back afterwards.
//
// Perturbation proves that patched builds are independent of when they ran:
// two builds at two different fake dates must still produce identical
// artifacts. The real time is recovered from the monotonic clock, which is
// unaffected by wall-clock changes.
package clock

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Range of generated dates. The day is fixed so every generated date is
// valid in every month.
const (
	MinYear = 1998
	MaxYear = 2018
	FakeDay = 6
)

// Setter changes the system wall clock.
type Setter interface {
	Set(ctx context.Context, t time.Time) error
}

// RandomTime returns a date in [MinYear, MaxYear] on the FakeDay of a random
// month, at a random hour and minute, in UTC.
func RandomTime(r *rand.Rand) time.Time {
	year := MinYear + r.Intn(MaxYear-MinYear+1)
	month := time.Month(1 + r.Intn(12))
	hour := r.Intn(24)
	minute := r.Intn(60)
	return time.Date(year, month, FakeDay, hour, minute, 0, 0, time.UTC)
}

// Perturber sets random times and restores the real one.
type Perturber struct {
	setter Setter
	rand   *rand.Rand
	clock  clock.Clock
	logger *zap.Logger

	// realStart is the wall time before the first perturbation; the
	// monotonic reading it carries measures elapsed real time.
	realStart time.Time
	perturbed bool
}

// NewPerturber returns a Perturber. The seed makes the date sequence reproducible.
func NewPerturber(setter Setter, seed int64, clk clock.Clock, logger *zap.Logger) *Perturber {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Perturber{
		setter: setter,
		rand:   rand.New(rand.NewSource(seed)),
		clock:  clk,
		logger: logger,
	}
}

// Perturb moves the wall clock to a new random time and returns it.
func (p *Perturber) Perturb(ctx context.Context) (time.Time, error) {
	if !p.perturbed {
		p.realStart = p.clock.Now()
	}

	fake := RandomTime(p.rand)
	if err := p.setter.Set(ctx, fake); err != nil {
		return time.Time{}, fmt.Errorf("set system time to %s: %w", fake.Format(time.RFC3339), err)
	}
	p.perturbed = true

	p.logger.Info("system time faked", zap.Time("time", fake))
	return fake, nil
}

// Restore sets the wall clock back to the real time. It is a no-op when
// Perturb never succeeded.
func (p *Perturber) Restore(ctx context.Context) error {
	if !p.perturbed {
		return nil
	}

	now := p.realStart.Add(p.clock.Since(p.realStart))
	if err := p.setter.Set(ctx, now); err != nil {
		return fmt.Errorf("restore system time to %s: %w", now.Format(time.RFC3339), err)
	}
	p.perturbed = false

	p.logger.Info("system time restored", zap.Time("time", now))
	return nil
}

// NoopSetter leaves the clock alone. Used when perturbation is disabled.
type NoopSetter struct{}

// Set implements Setter.
func (NoopSetter) Set(context.Context, time.Time) error { return nil }
