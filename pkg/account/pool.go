package account

import (
	"sync"
	"time"

	"gramops/pkg/config"
	"gramops/pkg/logger"
	"gramops/pkg/models"
)

const dayKeyLayout = "2006-01-02"

// Pool owns the set of credentialed accounts, their reservations, flood-wait
// state and daily usage counters. All mutation goes through one mutex so two
// operations can never reserve the same account at the same time.
type Pool struct {
	mu           sync.Mutex
	accounts     []*models.Account
	index        map[string]*models.Account
	cursors      map[models.OperationKind]int
	reservations map[string]models.OperationKind
	usage        map[models.UsageKey]int
	quotas       config.QuotaConfig
	logger       logger.Logger

	// now is swappable in tests
	now func() time.Time
}

// NewPool creates a pool over the given accounts.
func NewPool(accounts []models.Account, quotas config.QuotaConfig, log logger.Logger) *Pool {
	p := &Pool{
		accounts:     make([]*models.Account, 0, len(accounts)),
		index:        make(map[string]*models.Account, len(accounts)),
		cursors:      make(map[models.OperationKind]int),
		reservations: make(map[string]models.OperationKind),
		usage:        make(map[models.UsageKey]int),
		quotas:       quotas,
		logger:       log,
		now:          time.Now,
	}
	for i := range accounts {
		acc := accounts[i]
		p.accounts = append(p.accounts, &acc)
		p.index[acc.Name] = &acc
	}
	return p
}

// Size returns the number of accounts in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accounts)
}

// SelectAccount returns an eligible account for the given operation kind,
// visiting accounts in round-robin order with a separate rotation cursor per
// kind. The cursor advances by one position even when nothing is eligible so
// repeated scans do not always start from the same account.
//
// Absence of an eligible account is a normal result, reported by ok=false.
func (p *Pool) SelectAccount(kind models.OperationKind, requireProxy bool) (models.Account, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.accounts)
	if n == 0 {
		return models.Account{}, false
	}

	now := p.now()
	start := p.cursors[kind] % n

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		acc := p.accounts[idx]
		if !p.eligible(acc, kind, requireProxy, now) {
			continue
		}
		p.cursors[kind] = (idx + 1) % n
		return *acc, true
	}

	p.cursors[kind] = (start + 1) % n
	return models.Account{}, false
}

// eligible applies every selection constraint. Caller holds the mutex.
func (p *Pool) eligible(acc *models.Account, kind models.OperationKind, requireProxy bool, now time.Time) bool {
	if !acc.IsActive {
		return false
	}
	if _, ok := p.reservations[acc.Name]; ok {
		return false
	}
	if acc.InFloodWait(now) {
		return false
	}
	if requireProxy && !acc.HasProxy() {
		return false
	}
	if limit := p.quotas.ForKind(kind); limit > 0 {
		key := models.UsageKey{Account: acc.Name, Day: now.Format(dayKeyLayout), Kind: kind}
		if p.usage[key] >= limit {
			return false
		}
	}
	return true
}

// Reserve marks the account as busy with the given kind. Idempotent.
func (p *Pool) Reserve(name string, kind models.OperationKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reservations[name] = kind
}

// Release unmarks the account. Idempotent.
func (p *Pool) Release(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.reservations, name)
}

// RecordFloodWait excludes the account from selection until the given time.
func (p *Pool) RecordFloodWait(name string, until time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.index[name]
	if !ok {
		return
	}
	acc.FloodWaitUntil = until

	p.logger.WarnWithFields("Account entering flood wait", map[string]interface{}{
		"account": name,
		"until":   until,
	})
}

// RecordUsage increments today's usage counter for (account, kind) and stamps
// the account's last-used time.
func (p *Pool) RecordUsage(name string, kind models.OperationKind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.index[name]
	if !ok {
		return
	}

	now := p.now()
	acc.LastUsed = now
	key := models.UsageKey{Account: name, Day: now.Format(dayKeyLayout), Kind: kind}
	p.usage[key]++
}

// UsageToday returns today's usage count for (account, kind).
func (p *Pool) UsageToday(name string, kind models.OperationKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := models.UsageKey{Account: name, Day: p.now().Format(dayKeyLayout), Kind: kind}
	return p.usage[key]
}

// QuotaExhausted reports whether the account has no quota left today for the
// given kind. A zero or negative limit means unlimited.
func (p *Pool) QuotaExhausted(name string, kind models.OperationKind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	limit := p.quotas.ForKind(kind)
	if limit <= 0 {
		return false
	}
	key := models.UsageKey{Account: name, Day: p.now().Format(dayKeyLayout), Kind: kind}
	return p.usage[key] >= limit
}

// MarkAuthFailed deactivates an account whose credentials were rejected. The
// account is excluded for the remainder of the run and requires manual
// re-authentication.
func (p *Pool) MarkAuthFailed(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.index[name]
	if !ok {
		return
	}
	acc.IsActive = false

	p.logger.ErrorWithFields("Account credentials rejected, deactivating", map[string]interface{}{
		"account": name,
	})
}

// Accounts returns a snapshot of every account's current state.
func (p *Pool) Accounts() []models.Account {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.Account, 0, len(p.accounts))
	for _, acc := range p.accounts {
		out = append(out, *acc)
	}
	return out
}

// Reserved reports the kind an account is currently reserved for, if any.
func (p *Pool) Reserved(name string) (models.OperationKind, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kind, ok := p.reservations[name]
	return kind, ok
}
