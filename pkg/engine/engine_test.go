package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gramops/pkg/account"
	"gramops/pkg/config"
	"gramops/pkg/logger"
	"gramops/pkg/models"
	"gramops/pkg/store"
	"gramops/pkg/telegram"
)

// testConfig returns a config tuned so tests run in milliseconds.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Output.Directory = t.TempDir()
	cfg.RateLimit.Profile = "fast"
	cfg.RateLimit.FloodWaitBuffer = 0
	cfg.Engine.CheckpointInterval = 2
	cfg.Engine.MaxRetries = 2
	cfg.Engine.MaxFloodWait = 2 * time.Second
	cfg.Engine.NoAccountWait = 5 * time.Millisecond
	cfg.Engine.NoAccountRetries = 2
	cfg.Engine.CallTimeout = time.Second
	return cfg
}

func activeAccounts(names ...string) []models.Account {
	out := make([]models.Account, 0, len(names))
	for _, name := range names {
		out = append(out, models.Account{Name: name, IsActive: true})
	}
	return out
}

// newTestEngine wires an engine over an in-memory store and the given adapter.
func newTestEngine(t *testing.T, adapter telegram.ClientAdapter, accounts []models.Account) (*Engine, *account.Pool, *config.Config, store.OperationStore) {
	t.Helper()
	cfg := testConfig(t)
	eng, pool, st := newTestEngineCfg(t, cfg, adapter, accounts)
	return eng, pool, cfg, st
}

// newTestEngineCfg is newTestEngine for tests that tune the config (quotas,
// intervals) before the pool is built.
func newTestEngineCfg(t *testing.T, cfg *config.Config, adapter telegram.ClientAdapter, accounts []models.Account) (*Engine, *account.Pool, store.OperationStore) {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := logger.NewTestLogger()
	pool := account.NewPool(accounts, cfg.Quotas, log)
	return New(cfg, pool, st, adapter, log), pool, st
}

// writeAudience writes a plain members file and returns its path.
func writeAudience(t *testing.T, members []models.Member) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audience.json")
	raw, err := json.Marshal(members)
	if err != nil {
		t.Fatalf("marshal audience: %v", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write audience: %v", err)
	}
	return path
}

func audienceOf(n int) []models.Member {
	out := make([]models.Member, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, models.Member{ID: int64(i), Username: fmt.Sprintf("m%d", i)})
	}
	return out
}

// scriptedAdapter returns canned outcomes for item calls in order, defaulting
// to success once the script runs out. Connect outcomes script separately.
type scriptedAdapter struct {
	mu             sync.Mutex
	connectScript  []telegram.Outcome
	itemScript     []telegram.Outcome
	connects       []string
	invited        []int64
	sent           map[int64]string
	started        chan struct{}
	gate           chan struct{}
	signalledStart bool
}

type fakeClient struct{}

func (fakeClient) IsAuthorized(ctx context.Context) bool { return true }
func (fakeClient) Close() error                          { return nil }

func newScriptedAdapter() *scriptedAdapter {
	return &scriptedAdapter{sent: make(map[int64]string)}
}

func (a *scriptedAdapter) Connect(ctx context.Context, acc *models.Account) (telegram.Client, telegram.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.connects = append(a.connects, acc.Name)
	if len(a.connectScript) > 0 {
		out := a.connectScript[0]
		a.connectScript = a.connectScript[1:]
		if !out.OK() {
			return nil, out
		}
	}
	return fakeClient{}, telegram.Ok()
}

func (a *scriptedAdapter) nextItemOutcome() telegram.Outcome {
	if a.started != nil && !a.signalledStart {
		a.signalledStart = true
		a.started <- struct{}{}
	}
	if a.gate != nil {
		a.mu.Unlock()
		<-a.gate
		a.mu.Lock()
	}
	if len(a.itemScript) > 0 {
		out := a.itemScript[0]
		a.itemScript = a.itemScript[1:]
		return out
	}
	return telegram.Ok()
}

func (a *scriptedAdapter) ListMembers(ctx context.Context, client telegram.Client, groupRef, query, offset string, limit int) (telegram.MemberPage, telegram.Outcome) {
	return telegram.MemberPage{}, telegram.Transient(fmt.Errorf("not scripted"))
}

func (a *scriptedAdapter) InviteUser(ctx context.Context, client telegram.Client, groupRef string, user models.Member) telegram.Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.nextItemOutcome()
	if out.OK() {
		a.invited = append(a.invited, user.ID)
	}
	return out
}

func (a *scriptedAdapter) SendMessage(ctx context.Context, client telegram.Client, user models.Member, text string) telegram.Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.nextItemOutcome()
	if out.OK() {
		a.sent[user.ID] = text
	}
	return out
}

func (a *scriptedAdapter) connectCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.connects)
}

func (a *scriptedAdapter) invitedIDs() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int64, len(a.invited))
	copy(out, a.invited)
	return out
}

// mustFinish waits for the engine and returns the operation's final state.
func mustFinish(t *testing.T, eng *Engine, id string) *models.OperationState {
	t.Helper()
	eng.Wait()
	state, err := eng.GetStatus(id)
	if err != nil {
		t.Fatalf("GetStatus(%s): %v", id, err)
	}
	return state
}

func TestStartScrapeValidation(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, newScriptedAdapter(), activeAccounts("a"))

	if _, err := eng.StartScrape("", 10, "", StartOptions{}); err == nil {
		t.Error("empty group reference should be rejected")
	}
	if _, err := eng.StartScrape("grp", 0, "", StartOptions{}); err == nil {
		t.Error("non-positive max items should be rejected")
	}
	if _, err := eng.StartScrape("grp", 10, "", StartOptions{Profile: "warp"}); err == nil {
		t.Error("unknown profile should be rejected")
	}
}

func TestStartMessageRequiresTemplate(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, newScriptedAdapter(), activeAccounts("a"))

	audience := writeAudience(t, audienceOf(1))
	if _, err := eng.StartMessage("", audience, StartOptions{}); err == nil {
		t.Error("empty template should be rejected")
	}
}

func TestStartInviteRejectsMissingAudience(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, newScriptedAdapter(), activeAccounts("a"))

	if _, err := eng.StartInvite("grp", filepath.Join(t.TempDir(), "absent.json"), StartOptions{}); err == nil {
		t.Error("unresolvable audience selector should be rejected")
	}
}

func TestGetStatusUnknownOperation(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, newScriptedAdapter(), activeAccounts("a"))

	if _, err := eng.GetStatus("nope"); err != ErrUnknownOperation {
		t.Errorf("GetStatus = %v, want ErrUnknownOperation", err)
	}
	if err := eng.Resume("nope"); err != ErrUnknownOperation {
		t.Errorf("Resume = %v, want ErrUnknownOperation", err)
	}
}

func TestResumeRejectsTerminalOperation(t *testing.T) {
	eng, _, _, st := newTestEngine(t, newScriptedAdapter(), activeAccounts("a"))

	done := &models.OperationState{
		ID:      "invite-done",
		Kind:    models.KindInvite,
		Target:  "grp",
		Status:  models.StatusCompleted,
		Profile: "fast",
	}
	if err := st.Create(context.Background(), done); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := eng.Resume("invite-done"); err != ErrNotResumable {
		t.Errorf("Resume = %v, want ErrNotResumable", err)
	}
}

func TestStartFailureIsNotLeftRunning(t *testing.T) {
	sim := telegram.NewSimulator()
	sim.SeedSynthetic("grp", 5)

	eng, _, cfg, _ := newTestEngine(t, sim, activeAccounts("a"))

	// A regular file where the results directory should go makes the sink
	// creation in launch fail after the state row is already persisted
	blocked := filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(blocked, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg.Output.Directory = blocked

	if _, err := eng.StartScrape("grp", 5, "", StartOptions{}); err == nil {
		t.Fatal("StartScrape should fail when the results directory cannot be created")
	}

	resumable, err := eng.ListResumable()
	if err != nil {
		t.Fatalf("ListResumable: %v", err)
	}
	if len(resumable) != 0 {
		t.Errorf("failed launch left %d operations looking resumable", len(resumable))
	}
}

func TestCancelUnknownOperation(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, newScriptedAdapter(), activeAccounts("a"))

	if err := eng.Cancel("nope"); err != ErrNotRunning {
		t.Errorf("Cancel = %v, want ErrNotRunning", err)
	}
}
