package telegram

import (
	"context"
	"fmt"

	"gramops/pkg/models"
)

// Status classifies the result of a remote call. The executor pattern-matches
// on it instead of unwrapping a hierarchy of error types.
type Status string

const (
	StatusOK             Status = "ok"
	StatusRateLimited    Status = "rate_limited"
	StatusPolicyRejected Status = "policy_rejected"
	StatusTransient      Status = "transient"
	StatusAuthFailed     Status = "auth_failed"
	StatusNotFound       Status = "not_found"
)

// Outcome is the closed result type returned by every adapter call.
//
// RetryAfter is only meaningful for StatusRateLimited and carries the
// server-mandated wait in seconds. Err carries diagnostics for
// StatusTransient and StatusAuthFailed; it is never inspected for control
// flow.
type Outcome struct {
	Status     Status
	RetryAfter int
	Err        error
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool {
	return o.Status == StatusOK
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusRateLimited:
		return fmt.Sprintf("rate limited for %ds", o.RetryAfter)
	case StatusTransient, StatusAuthFailed:
		if o.Err != nil {
			return fmt.Sprintf("%s: %v", o.Status, o.Err)
		}
	}
	return string(o.Status)
}

// Ok is the success outcome.
func Ok() Outcome { return Outcome{Status: StatusOK} }

// RateLimited builds a flood-wait outcome with the server-mandated seconds.
func RateLimited(seconds int) Outcome {
	return Outcome{Status: StatusRateLimited, RetryAfter: seconds}
}

// PolicyRejected builds an item-level rejection outcome (privacy settings,
// not-mutual-contact and similar). These are expected and non-fatal.
func PolicyRejected() Outcome { return Outcome{Status: StatusPolicyRejected} }

// Transient builds a retryable failure outcome.
func Transient(err error) Outcome {
	return Outcome{Status: StatusTransient, Err: err}
}

// AuthFailed builds an outcome for invalid or expired credentials.
func AuthFailed(err error) Outcome {
	return Outcome{Status: StatusAuthFailed, Err: err}
}

// MemberPage is one batch of a paginated member enumeration.
type MemberPage struct {
	Members []models.Member
	// NextOffset is the opaque cursor for the following page. Empty when the
	// enumeration is exhausted.
	NextOffset string
	HasMore    bool
}

// Client is an established session for one account.
type Client interface {
	// IsAuthorized reports whether the underlying session is still valid.
	IsAuthorized(ctx context.Context) bool
	// Close releases the session's connection resources.
	Close() error
}

// ClientAdapter abstracts the network client that performs remote calls.
// Implementations own connection and session lifecycle; every call must
// return rather than hang, or the engine wraps it in its own timeout.
type ClientAdapter interface {
	// Connect establishes a session for the given account.
	Connect(ctx context.Context, account *models.Account) (Client, Outcome)

	// ListMembers fetches one page of members from a group. The offset is the
	// opaque cursor from the previous page, empty for the first page.
	ListMembers(ctx context.Context, client Client, groupRef, query, offset string, limit int) (MemberPage, Outcome)

	// InviteUser invites one user into a group.
	InviteUser(ctx context.Context, client Client, groupRef string, user models.Member) Outcome

	// SendMessage sends one direct message.
	SendMessage(ctx context.Context, client Client, user models.Member, text string) Outcome
}
