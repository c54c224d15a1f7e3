// Package ratelimit computes inter-request delays for bulk operations.
//
// A Controller is created per operation run from a named RateProfile. Each
// delay is drawn from the profile's per-kind [min,max] range and widened by
// jitter. A sliding window of recent call outcomes (last 50 within 5 minutes)
// drives adaptation: when the error rate exceeds 30% the delay scale is
// multiplied by the profile's backoff multiplier, capped at the absolute
// maximum; when it drops under 5% the scale shrinks back toward 1.
//
// Server-mandated flood waits bypass all of this: FloodWaitDelay returns the
// server's seconds plus a small buffer and always takes precedence.
//
// The "fast" profile disables adaptation and jitter entirely and returns only
// the configured minimum delay. It exists as an explicit switch for tests and
// dry runs, not as a silent code path.
package ratelimit
