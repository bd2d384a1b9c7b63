// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff bounds how often and how fast a call is retried
type Backoff struct {
	// Retries after the first attempt. 0 calls once.
	Retries int

	Base   time.Duration
	Max    time.Duration
	Factor float64

	// Jitter adds up to this fraction of the delay at random
	Jitter float64

	// OnRetry runs before each retry with the 1-based retry number and the last error
	OnRetry func(retry int, err error)
}

// ClassifierBackoff is the backoff used for classification API calls
func ClassifierBackoff(retries int) Backoff {
	return Backoff{
		Retries: retries,
		Base:    500 * time.Millisecond,
		Max:     8 * time.Second,
		Factor:  2,
		Jitter:  0.25,
	}
}

// Delay returns the wait before the given retry, without jitter
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(b.Base)
	for i := 1; i < retry; i++ {
		d *= factor
		if b.Max > 0 && d >= float64(b.Max) {
			return b.Max
		}
	}
	if b.Max > 0 && time.Duration(d) > b.Max {
		return b.Max
	}
	return time.Duration(d)
}

func (b Backoff) wait(retry int) time.Duration {
	d := b.Delay(retry)
	if b.Jitter > 0 {
		d += time.Duration(float64(d) * b.Jitter * rand.Float64())
	}
	return d
}

// Call runs fn until it succeeds, fails with a non-retryable error, or the
// retries are used up. A non-nil breaker guards every attempt; once it opens
// the remaining retries are abandoned.
func Call[T any](ctx context.Context, b Backoff, br *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	attempt := func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	}
	for retry := 0; ; retry++ {
		if retry > 0 {
			timer := time.NewTimer(b.wait(retry))
			select {
			case <-ctx.Done():
				timer.Stop()
				var zero T
				return zero, ctx.Err()
			case <-timer.C:
			}
			if b.OnRetry != nil {
				b.OnRetry(retry, err)
			}
		}
		if br != nil {
			err = br.Do(ctx, attempt)
		} else {
			err = attempt(ctx)
		}
		if err == nil {
			return result, nil
		}
		if retry >= b.Retries || !Retryable(err) {
			var zero T
			return zero, err
		}
	}
}
