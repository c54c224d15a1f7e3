package ratelimit

import (
	"math/rand"
	"sync"
	"time"

	"gramops/pkg/config"
	"gramops/pkg/logger"
	"gramops/pkg/models"
	"gramops/pkg/retry"
)

const (
	// outcome window bounds for adaptive delay widening
	windowSize     = 50
	windowDuration = 5 * time.Minute

	// error-rate thresholds for widening and shrinking
	widenThreshold  = 0.30
	shrinkThreshold = 0.05
)

// Controller computes inter-request delays for one executor run. It holds a
// small sliding window of recent call outcomes and widens delays when the
// recent error rate climbs. One controller per operation; it is safe for the
// operation's goroutine plus status readers.
type Controller struct {
	mu       sync.Mutex
	profile  config.RateProfile
	buffer   time.Duration
	scale    float64
	outcomes []outcome
	logger   logger.Logger

	exp *retry.ExponentialBackoff
	fib *retry.FibonacciBackoff

	now func() time.Time
}

type outcome struct {
	at time.Time
	ok bool
}

// NewController creates a rate controller for the given profile.
// floodBuffer is added on top of every server-mandated wait.
func NewController(profile config.RateProfile, floodBuffer time.Duration, log logger.Logger) *Controller {
	return &Controller{
		profile: profile,
		buffer:  floodBuffer,
		scale:   1.0,
		logger:  log,
		exp: &retry.ExponentialBackoff{
			BaseDelay:    1 * time.Second,
			MaxDelay:     maxOr(profile.AbsoluteMaxDelay, 60*time.Second),
			Multiplier:   2.0,
			JitterFactor: profile.JitterFactor,
		},
		fib: &retry.FibonacciBackoff{
			BaseDelay:    1 * time.Second,
			MaxDelay:     maxOr(profile.AbsoluteMaxDelay, 60*time.Second),
			JitterFactor: profile.JitterFactor,
		},
		now: time.Now,
	}
}

func maxOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// RecordOutcome feeds one call result into the sliding window.
func (c *Controller) RecordOutcome(ok bool) {
	if c.profile.FastMode {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.outcomes = append(c.outcomes, outcome{at: c.now(), ok: ok})
	c.trim()
}

// trim drops outcomes outside the window. Caller holds the mutex.
func (c *Controller) trim() {
	cutoff := c.now().Add(-windowDuration)
	i := 0
	for i < len(c.outcomes) && c.outcomes[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		c.outcomes = append(c.outcomes[:0], c.outcomes[i:]...)
	}
	if len(c.outcomes) > windowSize {
		c.outcomes = c.outcomes[len(c.outcomes)-windowSize:]
	}
}

// errorRate returns the failure fraction in the current window.
// Caller holds the mutex.
func (c *Controller) errorRate() (float64, int) {
	if len(c.outcomes) == 0 {
		return 0, 0
	}
	failures := 0
	for _, o := range c.outcomes {
		if !o.ok {
			failures++
		}
	}
	return float64(failures) / float64(len(c.outcomes)), len(c.outcomes)
}

// NextDelay returns the delay to apply before the next request of the given
// kind. The delay is drawn uniformly from the profile's [min,max] range,
// widened by jitter, and scaled up when the recent error rate exceeds the
// widening threshold. In fast mode the profile minimum is returned unchanged.
func (c *Controller) NextDelay(kind models.OperationKind) time.Duration {
	rate := c.profile.ForKind(kind)

	if c.profile.FastMode {
		return rate.MinDelay
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.trim()
	errRate, samples := c.errorRate()

	// Need a handful of samples before trusting the rate
	if samples >= 10 {
		if errRate > widenThreshold {
			c.scale *= c.profile.BackoffMultiplier
			c.logger.WarnWithFields("High error rate, widening delays", map[string]interface{}{
				"kind":       string(kind),
				"error_rate": errRate,
				"scale":      c.scale,
			})
		} else if errRate < shrinkThreshold && c.scale > 1.0 {
			c.scale /= c.profile.BackoffMultiplier
			if c.scale < 1.0 {
				c.scale = 1.0
			}
		}
	}

	base := rate.MinDelay
	if spread := rate.MaxDelay - rate.MinDelay; spread > 0 {
		base += time.Duration(rand.Int63n(int64(spread)))
	}

	delay := time.Duration(float64(base) * c.scale)
	if c.profile.JitterFactor > 0 {
		jitter := float64(delay) * c.profile.JitterFactor
		delay += time.Duration((rand.Float64() * 2 * jitter) - jitter)
	}

	if max := c.profile.AbsoluteMaxDelay; max > 0 && delay > max {
		delay = max
	}
	if delay < rate.MinDelay {
		delay = rate.MinDelay
	}
	return delay
}

// FloodWaitDelay converts a server-mandated wait into the delay the executor
// should sleep: the server's seconds plus a small safety buffer. This always
// takes precedence over the adaptive delay.
func (c *Controller) FloodWaitDelay(serverSeconds int) time.Duration {
	if serverSeconds < 0 {
		serverSeconds = 0
	}
	return time.Duration(serverSeconds)*time.Second + c.buffer
}

// ExponentialBackoff returns the retry delay for the given attempt, capped at
// the profile's absolute maximum.
func (c *Controller) ExponentialBackoff(attempt int) time.Duration {
	return c.exp.NextDelay(attempt)
}

// FibonacciBackoff returns the Fibonacci retry delay for the given attempt,
// capped at the profile's absolute maximum.
func (c *Controller) FibonacciBackoff(attempt int) time.Duration {
	return c.fib.NextDelay(attempt)
}

// Profile returns the controller's profile.
func (c *Controller) Profile() config.RateProfile {
	return c.profile
}
