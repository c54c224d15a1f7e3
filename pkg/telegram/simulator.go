package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"gramops/pkg/models"
)

// Simulator implements ClientAdapter against an in-memory group directory.
// It backs dry runs and tests: operations execute end to end with real
// pagination and checkpointing but no network traffic. Outcome injection
// fields let callers rehearse rate-limit and rejection handling.
type Simulator struct {
	mu     sync.Mutex
	groups map[string][]models.Member
	// invited and messaged record item calls by member ID
	invited  map[string][]int64
	messaged map[int64]string
	calls    int

	// RateLimitEvery injects RateLimited(RetryAfterSeconds) on every Nth
	// call; zero disables injection
	RateLimitEvery    int
	RetryAfterSeconds int
	// RejectEvery injects PolicyRejected on every Nth item call
	RejectEvery int
	// TransientEvery injects a transient failure on every Nth call
	TransientEvery int
}

// NewSimulator creates an empty simulator.
func NewSimulator() *Simulator {
	return &Simulator{
		groups:            make(map[string][]models.Member),
		invited:           make(map[string][]int64),
		messaged:          make(map[int64]string),
		RetryAfterSeconds: 1,
	}
}

// Seed registers a group's member list.
func (s *Simulator) Seed(groupRef string, members []models.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[groupRef] = members
}

// SeedSynthetic registers a group populated with n generated members.
func (s *Simulator) SeedSynthetic(groupRef string, n int) {
	members := make([]models.Member, 0, n)
	for i := 0; i < n; i++ {
		members = append(members, models.Member{
			ID:        int64(i + 1),
			Username:  fmt.Sprintf("user%04d", i+1),
			FirstName: fmt.Sprintf("User %d", i+1),
		})
	}
	s.Seed(groupRef, members)
}

type simClient struct{}

func (simClient) IsAuthorized(ctx context.Context) bool { return true }
func (simClient) Close() error                          { return nil }

// Connect always succeeds; the simulator has no sessions to establish.
func (s *Simulator) Connect(ctx context.Context, account *models.Account) (Client, Outcome) {
	if err := ctx.Err(); err != nil {
		return nil, Transient(err)
	}
	return simClient{}, Ok()
}

// inject applies the outcome-injection counters. Caller holds the mutex.
func (s *Simulator) inject(itemCall bool) (Outcome, bool) {
	s.calls++
	if s.RateLimitEvery > 0 && s.calls%s.RateLimitEvery == 0 {
		return RateLimited(s.RetryAfterSeconds), true
	}
	if s.TransientEvery > 0 && s.calls%s.TransientEvery == 0 {
		return Transient(fmt.Errorf("simulated transient failure on call %d", s.calls)), true
	}
	if itemCall && s.RejectEvery > 0 && s.calls%s.RejectEvery == 0 {
		return PolicyRejected(), true
	}
	return Outcome{}, false
}

// ListMembers pages through the seeded group. The offset cursor is the
// decimal index into the member list.
func (s *Simulator) ListMembers(ctx context.Context, client Client, groupRef, query, offset string, limit int) (MemberPage, Outcome) {
	if err := ctx.Err(); err != nil {
		return MemberPage{}, Transient(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if out, injected := s.inject(false); injected {
		return MemberPage{}, out
	}

	members, ok := s.groups[groupRef]
	if !ok {
		return MemberPage{}, Outcome{Status: StatusNotFound}
	}

	start := 0
	if offset != "" {
		parsed, err := strconv.Atoi(offset)
		if err != nil {
			return MemberPage{}, Transient(fmt.Errorf("bad offset %q", offset))
		}
		start = parsed
	}
	if start >= len(members) {
		return MemberPage{HasMore: false}, Ok()
	}

	end := start + limit
	if end > len(members) {
		end = len(members)
	}

	return MemberPage{
		Members:    members[start:end],
		NextOffset: strconv.Itoa(end),
		HasMore:    end < len(members),
	}, Ok()
}

// InviteUser records the invitation.
func (s *Simulator) InviteUser(ctx context.Context, client Client, groupRef string, user models.Member) Outcome {
	if err := ctx.Err(); err != nil {
		return Transient(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if out, injected := s.inject(true); injected {
		return out
	}
	s.invited[groupRef] = append(s.invited[groupRef], user.ID)
	return Ok()
}

// SendMessage records the delivered text.
func (s *Simulator) SendMessage(ctx context.Context, client Client, user models.Member, text string) Outcome {
	if err := ctx.Err(); err != nil {
		return Transient(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if out, injected := s.inject(true); injected {
		return out
	}
	s.messaged[user.ID] = text
	return Ok()
}

// Invited returns the member IDs invited into a group.
func (s *Simulator) Invited(groupRef string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int64, len(s.invited[groupRef]))
	copy(out, s.invited[groupRef])
	return out
}

// MessageTo returns the text delivered to a member, if any.
func (s *Simulator) MessageTo(id int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text, ok := s.messaged[id]
	return text, ok
}

// Calls returns the total number of adapter calls made.
func (s *Simulator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
