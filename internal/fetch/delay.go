package fetch

import (
	"context"
	"math/rand/v2"
	"time"
)

// Sleeper blocks for a duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper waits on a timer and returns early with ctx.Err() on cancellation.
type TimerSleeper struct{}

// Sleep implements Sleeper.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const (
	// DefaultDelayMin is the lower bound of the politeness pause.
	DefaultDelayMin = 700 * time.Millisecond
	// DefaultDelayMax is the upper bound of the politeness pause.
	DefaultDelayMax = 1600 * time.Millisecond
)

// DelayPolicy is the pause applied after each broker request.
// The wait is drawn uniformly from [Min, Max].
type DelayPolicy struct {
	Min     time.Duration
	Max     time.Duration
	Sleeper Sleeper

	// Rand returns a float in [0, 1). nil uses math/rand/v2.
	Rand func() float64
}

// DefaultDelayPolicy returns the 0.7s to 1.6s jitter policy.
func DefaultDelayPolicy() *DelayPolicy {
	return &DelayPolicy{
		Min:     DefaultDelayMin,
		Max:     DefaultDelayMax,
		Sleeper: TimerSleeper{},
	}
}

// NoDelay returns a policy that never waits.
func NoDelay() *DelayPolicy {
	return &DelayPolicy{}
}

// Next returns the next pause duration without sleeping.
func (p *DelayPolicy) Next() time.Duration {
	if p == nil || p.Max <= 0 {
		return 0
	}
	lo, hi := p.Min, p.Max
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return lo
	}
	r := p.Rand
	if r == nil {
		r = rand.Float64
	}
	return lo + time.Duration(r()*float64(hi-lo))
}

// Pause sleeps for the next pause duration.
// A nil policy or zero-length pause returns immediately.
func (p *DelayPolicy) Pause(ctx context.Context) error {
	d := p.Next()
	if d <= 0 {
		return nil
	}
	s := p.Sleeper
	if s == nil {
		s = TimerSleeper{}
	}
	return s.Sleep(ctx, d)
}
