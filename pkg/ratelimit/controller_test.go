package ratelimit

import (
	"testing"
	"time"

	"gramops/pkg/config"
	"gramops/pkg/logger"
	"gramops/pkg/models"
)

func mustProfile(t *testing.T, name string) config.RateProfile {
	t.Helper()
	profile, err := config.ProfileByName(name)
	if err != nil {
		t.Fatalf("ProfileByName(%q): %v", name, err)
	}
	return profile
}

func TestFastModeReturnsMinDelay(t *testing.T) {
	c := NewController(mustProfile(t, "fast"), 0, logger.NewTestLogger())

	for _, kind := range models.Kinds {
		if got := c.NextDelay(kind); got != 0 {
			t.Errorf("NextDelay(%s) = %v in fast mode, want 0", kind, got)
		}
	}
}

func TestFastModeIgnoresOutcomes(t *testing.T) {
	c := NewController(mustProfile(t, "fast"), 0, logger.NewTestLogger())

	for i := 0; i < 20; i++ {
		c.RecordOutcome(false)
	}
	if got := c.NextDelay(models.KindScrape); got != 0 {
		t.Errorf("NextDelay = %v after failures in fast mode, want 0", got)
	}
}

func TestNextDelayStaysWithinBounds(t *testing.T) {
	profile := mustProfile(t, "normal")
	c := NewController(profile, 0, logger.NewTestLogger())

	rate := profile.ForKind(models.KindInvite)
	for i := 0; i < 50; i++ {
		delay := c.NextDelay(models.KindInvite)
		if delay < rate.MinDelay {
			t.Fatalf("delay %v below minimum %v", delay, rate.MinDelay)
		}
		if delay > profile.AbsoluteMaxDelay {
			t.Fatalf("delay %v above absolute maximum %v", delay, profile.AbsoluteMaxDelay)
		}
	}
}

func TestHighErrorRateWidensDelays(t *testing.T) {
	c := NewController(mustProfile(t, "normal"), 0, logger.NewTestLogger())

	for i := 0; i < 10; i++ {
		c.RecordOutcome(false)
	}
	c.NextDelay(models.KindScrape)

	c.mu.Lock()
	scale := c.scale
	c.mu.Unlock()
	if scale <= 1.0 {
		t.Errorf("scale = %v after sustained failures, want > 1.0", scale)
	}
}

func TestLowErrorRateShrinksScale(t *testing.T) {
	c := NewController(mustProfile(t, "normal"), 0, logger.NewTestLogger())

	c.mu.Lock()
	c.scale = 4.0
	c.mu.Unlock()

	for i := 0; i < 30; i++ {
		c.RecordOutcome(true)
	}
	// Each call with a clean window shrinks the scale one step
	for i := 0; i < 10; i++ {
		c.NextDelay(models.KindScrape)
	}

	c.mu.Lock()
	scale := c.scale
	c.mu.Unlock()
	if scale != 1.0 {
		t.Errorf("scale = %v after clean window, want 1.0", scale)
	}
}

func TestFewSamplesDoNotAdjustScale(t *testing.T) {
	c := NewController(mustProfile(t, "normal"), 0, logger.NewTestLogger())

	for i := 0; i < 5; i++ {
		c.RecordOutcome(false)
	}
	c.NextDelay(models.KindScrape)

	c.mu.Lock()
	scale := c.scale
	c.mu.Unlock()
	if scale != 1.0 {
		t.Errorf("scale = %v with only 5 samples, want 1.0", scale)
	}
}

func TestWindowTrimsOldOutcomes(t *testing.T) {
	c := NewController(mustProfile(t, "normal"), 0, logger.NewTestLogger())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	for i := 0; i < 20; i++ {
		c.RecordOutcome(false)
	}

	// Move past the window; old failures should no longer count
	c.now = func() time.Time { return base.Add(windowDuration + time.Second) }
	c.NextDelay(models.KindScrape)

	c.mu.Lock()
	remaining := len(c.outcomes)
	scale := c.scale
	c.mu.Unlock()

	if remaining != 0 {
		t.Errorf("window holds %d outcomes after expiry, want 0", remaining)
	}
	if scale != 1.0 {
		t.Errorf("scale = %v after window expiry, want 1.0", scale)
	}
}

func TestFloodWaitDelayAddsBuffer(t *testing.T) {
	c := NewController(mustProfile(t, "normal"), 5*time.Second, logger.NewTestLogger())

	if got := c.FloodWaitDelay(10); got != 15*time.Second {
		t.Errorf("FloodWaitDelay(10) = %v, want 15s", got)
	}
	if got := c.FloodWaitDelay(0); got != 5*time.Second {
		t.Errorf("FloodWaitDelay(0) = %v, want 5s", got)
	}
	if got := c.FloodWaitDelay(-3); got != 5*time.Second {
		t.Errorf("FloodWaitDelay(-3) = %v, want 5s", got)
	}
}

func TestBackoffDelaysCappedByProfile(t *testing.T) {
	profile := mustProfile(t, "aggressive")
	c := NewController(profile, 0, logger.NewTestLogger())

	for attempt := 1; attempt <= 30; attempt++ {
		exp := c.ExponentialBackoff(attempt)
		fib := c.FibonacciBackoff(attempt)
		// jitter can push slightly above the cap
		limit := profile.AbsoluteMaxDelay + time.Duration(float64(profile.AbsoluteMaxDelay)*profile.JitterFactor)
		if exp > limit {
			t.Fatalf("exponential delay %v for attempt %d above cap", exp, attempt)
		}
		if fib > limit {
			t.Fatalf("fibonacci delay %v for attempt %d above cap", fib, attempt)
		}
	}
}
