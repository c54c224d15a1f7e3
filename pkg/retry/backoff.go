package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines the interface for retry spacing strategies.
type BackoffStrategy interface {
	// NextDelay returns the delay before the given attempt (1-based).
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with multiplicative jitter.
type ExponentialBackoff struct {
	// BaseDelay is the initial delay duration
	BaseDelay time.Duration
	// MaxDelay is the maximum delay duration
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor adds randomness to avoid synchronized retries (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential growth and jitter.
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	return applyJitter(delay, eb.JitterFactor)
}

// FibonacciBackoff implements backoff following the Fibonacci sequence,
// growing slower than exponential while still spreading repeated retries.
type FibonacciBackoff struct {
	// BaseDelay is multiplied by the attempt's Fibonacci number
	BaseDelay time.Duration
	// MaxDelay is the maximum delay duration
	MaxDelay time.Duration
	// JitterFactor adds randomness (0.0 to 1.0)
	JitterFactor float64
}

// DefaultFibonacciBackoff returns a Fibonacci backoff with sensible defaults.
func DefaultFibonacciBackoff() *FibonacciBackoff {
	return &FibonacciBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay as BaseDelay * fib(attempt), capped.
func (fb *FibonacciBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(fb.BaseDelay) * float64(fibonacci(attempt))
	if delay > float64(fb.MaxDelay) {
		delay = float64(fb.MaxDelay)
	}

	return applyJitter(delay, fb.JitterFactor)
}

// ConstantBackoff implements a fixed delay between attempts.
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns the constant delay.
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// fibonacci returns the nth Fibonacci number (1, 1, 2, 3, 5, ...).
// Iterative to stay cheap for the attempt counts retries actually reach.
func fibonacci(n int) int64 {
	if n <= 2 {
		return 1
	}
	var a, b int64 = 1, 1
	for i := 3; i <= n; i++ {
		a, b = b, a+b
	}
	return b
}

// applyJitter widens the delay by a random value in [-factor, +factor].
func applyJitter(delay, factor float64) time.Duration {
	if factor > 0 {
		jitter := delay * factor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Wait waits for the specified duration or until the context is cancelled.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
