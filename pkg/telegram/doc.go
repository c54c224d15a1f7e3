// Package telegram defines the boundary between the operation engine and the
// remote client that actually talks to the platform.
//
// The engine never issues network calls itself. It drives a ClientAdapter and
// reacts to the closed Outcome result type:
//
//   - StatusOK - the call succeeded
//   - StatusRateLimited - the server imposed a flood wait of RetryAfter seconds
//   - StatusPolicyRejected - an item-level rejection (privacy settings etc.),
//     expected and non-fatal
//   - StatusTransient - a retryable failure
//   - StatusAuthFailed - credentials are invalid or expired; the account is
//     excluded for the rest of the run
//   - StatusNotFound - the target does not exist
//
// Adapter implementations live outside this module and are injected into the
// engine at construction time.
package telegram
