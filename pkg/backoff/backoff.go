package backoff

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxJitter  = time.Second
)

// Policy defines how often and how long to wait between attempts.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt. Optional; default DefaultMaxRetries (3).
	// A negative value disables retrying.
	MaxRetries int
	// BaseDelay is the wait before the first retry; it doubles for each following retry. Optional; default DefaultBaseDelay (1s).
	// A negative value retries without waiting.
	BaseDelay time.Duration
	// MaxJitter bounds the random delay added to every wait, drawn from [0, MaxJitter). Optional; default DefaultMaxJitter (1s).
	// A negative value disables jitter.
	MaxJitter time.Duration
	// OnRetry runs before each backoff wait with the 0-based failed attempt. Optional; default nil.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy provides the reconnect defaults: 3 retries, 1s base, up to 1s jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxJitter:  DefaultMaxJitter,
	}
}

func (p Policy) normalized() Policy {
	switch {
	case p.MaxRetries == 0:
		p.MaxRetries = DefaultMaxRetries
	case p.MaxRetries < 0:
		p.MaxRetries = 0
	}
	switch {
	case p.BaseDelay == 0:
		p.BaseDelay = DefaultBaseDelay
	case p.BaseDelay < 0:
		p.BaseDelay = 0
	}
	switch {
	case p.MaxJitter == 0:
		p.MaxJitter = DefaultMaxJitter
	case p.MaxJitter < 0:
		p.MaxJitter = 0
	}
	return p
}

// Delay returns the wait after the failed attempt (0-based): BaseDelay*2^attempt plus jitter.
// Zero fields take their defaults.
func (p Policy) Delay(attempt int) time.Duration {
	return p.normalized().delay(attempt)
}

func (p Policy) delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	wait := p.BaseDelay
	for i := 0; i < attempt; i++ {
		next := wait * 2
		if next < wait {
			wait = time.Duration(1<<63 - 1)
			break
		}
		wait = next
	}
	if p.MaxJitter > 0 {
		wait += rand.N(p.MaxJitter)
	}
	return wait
}

// Attempts returns the total number of attempts Retry performs.
func (p Policy) Attempts() int {
	return p.normalized().MaxRetries + 1
}

// Retry runs op until it succeeds or MaxRetries+1 attempts have failed, returning the last error.
// An attempt that would start after ctx is done fails with ctx.Err() without calling op,
// and ctx interrupts a pending wait.
func Retry[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p := policy.normalized()

	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		var (
			result T
			err    error
		)
		if err = ctx.Err(); err == nil {
			result, err = op(ctx)
			if err == nil {
				return result, nil
			}
		}
		lastErr = err

		if attempt == p.MaxRetries {
			break
		}

		wait := p.delay(attempt)
		if p.OnRetry != nil && ctx.Err() == nil {
			p.OnRetry(attempt, err, wait)
		}
		sleep(ctx, wait)
	}

	return zero, lastErr
}

func sleep(ctx context.Context, wait time.Duration) {
	if wait <= 0 || ctx.Err() != nil {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
