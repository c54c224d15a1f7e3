package models

import "time"

// OperationKind identifies the type of bulk operation an account performs.
type OperationKind string

const (
	KindScrape  OperationKind = "scrape"
	KindInvite  OperationKind = "invite"
	KindMessage OperationKind = "message"
)

// Kinds lists every operation kind. Used for quota maps and rotation cursors.
var Kinds = []OperationKind{KindScrape, KindInvite, KindMessage}

// OperationStatus represents the lifecycle state of a bulk operation.
type OperationStatus string

const (
	StatusPending   OperationStatus = "pending"
	StatusRunning   OperationStatus = "running"
	StatusPaused    OperationStatus = "paused"
	StatusCompleted OperationStatus = "completed"
	StatusFailed    OperationStatus = "failed"
)

// IsTerminal reports whether the status is a final state.
func (s OperationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ProxyKind identifies the proxy protocol.
type ProxyKind string

const (
	ProxySOCKS5 ProxyKind = "socks5"
	ProxyHTTP   ProxyKind = "http"
)

// Proxy describes an optional per-account proxy endpoint.
type Proxy struct {
	Kind     ProxyKind `yaml:"kind" json:"kind"`
	Host     string    `yaml:"host" json:"host"`
	Port     int       `yaml:"port" json:"port"`
	Username string    `yaml:"username,omitempty" json:"username,omitempty"`
	Password string    `yaml:"password,omitempty" json:"password,omitempty"`
}

// Account represents one credentialed session usable for remote calls.
// Credentials are opaque to the engine; only the client adapter interprets them.
type Account struct {
	Name           string    `yaml:"name" json:"name"`
	Phone          string    `yaml:"phone" json:"phone"`
	Credentials    string    `yaml:"credentials,omitempty" json:"-"`
	Proxy          *Proxy    `yaml:"proxy,omitempty" json:"proxy,omitempty"`
	IsActive       bool      `yaml:"is_active" json:"is_active"`
	FloodWaitUntil time.Time `yaml:"-" json:"flood_wait_until,omitempty"`
	LastUsed       time.Time `yaml:"-" json:"last_used,omitempty"`
}

// HasProxy reports whether the account has a configured proxy.
func (a *Account) HasProxy() bool {
	return a.Proxy != nil && a.Proxy.Host != ""
}

// InFloodWait reports whether the account is still serving a server-imposed wait.
func (a *Account) InFloodWait(now time.Time) bool {
	return !a.FloodWaitUntil.IsZero() && now.Before(a.FloodWaitUntil)
}

// UsageKey identifies a per-account, per-day, per-kind request counter.
type UsageKey struct {
	Account string
	Day     string // calendar day, formatted 2006-01-02
	Kind    OperationKind
}

// Member is one enumerated group member. ID is the natural key used for
// idempotent result storage.
type Member struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// OperationState is the persisted record of one long-running batch job.
type OperationState struct {
	ID              string          `json:"id"`
	Kind            OperationKind   `json:"kind"`
	Target          string          `json:"target"`
	SourceGroup     string          `json:"source_group,omitempty"`
	MessageTemplate string          `json:"message_template,omitempty"`
	TotalItems      int             `json:"total_items"`
	CompletedItems  int             `json:"completed_items"`
	FailedItems     int             `json:"failed_items"`
	ErrorCount      int             `json:"error_count"`
	Status          OperationStatus `json:"status"`
	Cursor          string          `json:"cursor"`
	LastError       string          `json:"last_error,omitempty"`
	RequireProxy    bool            `json:"require_proxy"`
	Profile         string          `json:"profile"`
	StartedAt       time.Time       `json:"started_at"`
	LastCheckpoint  time.Time       `json:"last_checkpoint"`
}

// CanTransitionTo reports whether the status change is a legal lifecycle
// transition: Pending -> Running -> {Completed, Failed, Paused}, and
// Paused -> Running on resume.
func (s *OperationState) CanTransitionTo(next OperationStatus) bool {
	switch s.Status {
	case StatusPending:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed || next == StatusPaused
	case StatusPaused:
		return next == StatusRunning
	default:
		return false
	}
}
