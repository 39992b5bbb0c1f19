package channel

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// RetryPolicy describes how a failed score request is retried: the first
// delay is Initial, each next one grows by Multiplier, and the delays never
// add up to more than MaxWindow.
type RetryPolicy struct {
	Initial    time.Duration
	MaxWindow  time.Duration
	Multiplier float64
}

// DefaultRetryPolicy waits 1s, then 1.5x longer each time, within 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Initial: time.Second, MaxWindow: 30 * time.Second, Multiplier: 1.5}
}

// Delays returns the waits between consecutive attempts. An attempt is made
// before each delay and after the last one. The last delay is cut so that
// the sum equals MaxWindow.
func (p RetryPolicy) Delays() []time.Duration {
	if p.Initial <= 0 || p.MaxWindow <= 0 {
		return nil
	}

	window := p.MaxWindow
	if window < p.Initial {
		window = p.Initial
	}

	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	var (
		out     []time.Duration
		elapsed time.Duration
	)

	next := p.Initial
	for elapsed < window {
		d := next
		if remaining := window - elapsed; d > remaining {
			d = remaining
		}

		out = append(out, d)
		elapsed += d

		next = time.Duration(float64(next) * mult)
		if next > window {
			next = window
		}
	}

	return out
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "sleep interrupted")
	case <-timer.C:
		return nil
	}
}
