package retry

import (
	"context"
	"time"
)

// Policy bounds how often and how slowly an action is retried.
// The delay before retry n (1-based) is BaseDelay * 2^n; there is no
// jitter and no cap.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// OnRetry is called after a failed attempt, before sleeping.
type OnRetry func(attempt int, err error, delay time.Duration)

// Delay returns the backoff before the given retry attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(uint64(1)<<uint(attempt))
}

// Do runs action up to MaxRetries+1 times. The last error is returned
// unchanged so callers can still inspect its classification.
func Do[T any](ctx context.Context, p Policy, action func(context.Context) (T, error), onRetry OnRetry) (T, error) {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var (
		res T
		err error
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		res, err = action(ctx)
		if err == nil {
			return res, nil
		}
		if attempt == maxRetries {
			break
		}
		delay := p.Delay(attempt + 1)
		if onRetry != nil {
			onRetry(attempt+1, err, delay)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return res, err
		}
	}
	return res, err
}

func sleep(ctx context.Context, d time.Duration) error {
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
