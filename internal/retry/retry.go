// Package retry polls a condition a bounded number of times at a fixed interval.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when the condition is still unmet after the last attempt.
var ErrTimeout = errors.New("condition not met before polling limit")

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ConditionFunc reports whether the awaited state has been reached. A non-nil
// error stops polling immediately.
type ConditionFunc func(ctx context.Context) (bool, error)

// Poller waits Interval before each of at most Attempts evaluations of a
// condition. There is no backoff.
type Poller struct {
	Attempts int
	Interval time.Duration
	// Sleep defaults to the wall-clock Sleep.
	Sleep SleepFunc
}

// Until polls cond. It returns nil as soon as cond reports true and an error
// wrapping ErrTimeout once every attempt has reported false.
func (p Poller) Until(ctx context.Context, cond ConditionFunc) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := sleep(ctx, p.Interval); err != nil {
			return err
		}
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %d attempts over %s", ErrTimeout, p.Attempts, time.Duration(p.Attempts)*p.Interval)
}
