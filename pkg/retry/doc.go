// Package retry provides backoff strategies for spacing retry attempts.
//
// Available strategies:
//
//   - ExponentialBackoff: delay doubles (configurable multiplier) per attempt
//   - FibonacciBackoff: delay grows along the Fibonacci sequence
//   - ConstantBackoff: fixed delay between attempts
//
// All strategies cap at a configured maximum delay and apply multiplicative
// jitter so that independent operations do not retry in lockstep.
//
// Wait blocks for a computed delay while honoring context cancellation; it is
// the only sleep primitive the operation engine uses.
package retry
