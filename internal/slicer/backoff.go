package slicer

import (
	"context"
	"math"
	"time"
)

// RetryPolicy spaces out slice retries. A zero Initial disables the delay.
type RetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns Initial * 2^failure, capped at Max.
func (p RetryPolicy) Delay(failure int) time.Duration {
	if p.Initial <= 0 {
		return 0
	}
	backoff := float64(p.Initial) * math.Pow(2, float64(failure))
	if p.Max > 0 && backoff > float64(p.Max) {
		backoff = float64(p.Max)
	}
	return time.Duration(backoff)
}

// Wait sleeps for the failure's delay or until ctx is done.
func (p RetryPolicy) Wait(ctx context.Context, failure int) error {
	d := p.Delay(failure)
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
