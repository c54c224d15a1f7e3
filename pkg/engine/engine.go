package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"gramops/pkg/account"
	"gramops/pkg/config"
	"gramops/pkg/logger"
	"gramops/pkg/models"
	"gramops/pkg/ratelimit"
	"gramops/pkg/results"
	"gramops/pkg/store"
	"gramops/pkg/telegram"
)

// Common engine errors.
var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrNotRunning       = errors.New("operation is not running")
	ErrNotResumable     = errors.New("operation is not resumable")
)

// StartOptions tunes one operation start.
type StartOptions struct {
	// Profile names the rate profile; empty uses the configured default
	Profile string
	// RequireProxy restricts account selection to proxied accounts
	RequireProxy bool
	// RotateAccounts switches to the next eligible account after every
	// successful item instead of sticking with one session
	RotateAccounts bool
}

// Engine owns the account pool and the set of active operations. Each
// operation runs as one goroutine processing items strictly sequentially;
// different operations run concurrently against the shared pool.
type Engine struct {
	cfg     *config.Config
	pool    *account.Pool
	store   store.OperationStore
	adapter telegram.ClientAdapter
	logger  logger.Logger

	mu      sync.Mutex
	running map[string]*activeRun
	wg      sync.WaitGroup
}

type activeRun struct {
	cancel context.CancelFunc
	exec   *executor
}

// New creates an engine over the given collaborators.
func New(cfg *config.Config, pool *account.Pool, st store.OperationStore, adapter telegram.ClientAdapter, log logger.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		pool:    pool,
		store:   st,
		adapter: adapter,
		logger:  log,
		running: make(map[string]*activeRun),
	}
}

// StartScrape begins enumerating members of a group, up to maxItems. The
// query string seeds the enumeration strategy (empty scans the full list).
func (e *Engine) StartScrape(groupRef string, maxItems int, query string, opts StartOptions) (string, error) {
	if groupRef == "" {
		return "", errors.New("group reference is required")
	}
	if maxItems <= 0 {
		return "", errors.New("max items must be positive")
	}

	state := &models.OperationState{
		ID:          newOperationID(models.KindScrape),
		Kind:        models.KindScrape,
		Target:      groupRef,
		SourceGroup: query,
		TotalItems:  maxItems,
	}
	return e.start(state, opts, nil)
}

// StartInvite begins inviting members into targetGroup. The source selector
// names a members file or the id of a completed scrape operation whose
// results supply the audience.
func (e *Engine) StartInvite(targetGroup, sourceSelector string, opts StartOptions) (string, error) {
	if targetGroup == "" {
		return "", errors.New("target group is required")
	}

	audience, err := e.loadAudience(sourceSelector)
	if err != nil {
		return "", err
	}

	state := &models.OperationState{
		ID:          newOperationID(models.KindInvite),
		Kind:        models.KindInvite,
		Target:      targetGroup,
		SourceGroup: sourceSelector,
		TotalItems:  len(audience),
	}
	return e.start(state, opts, audience)
}

// StartMessage begins sending the template as a direct message to every
// member selected by the audience selector. Templates may reference
// {first_name}, {last_name} and {username}.
func (e *Engine) StartMessage(template, audienceSelector string, opts StartOptions) (string, error) {
	if template == "" {
		return "", errors.New("message template is required")
	}

	audience, err := e.loadAudience(audienceSelector)
	if err != nil {
		return "", err
	}

	state := &models.OperationState{
		ID:              newOperationID(models.KindMessage),
		Kind:            models.KindMessage,
		Target:          audienceSelector,
		MessageTemplate: template,
		TotalItems:      len(audience),
	}
	return e.start(state, opts, audience)
}

// start persists the pending state and launches the executor goroutine.
func (e *Engine) start(state *models.OperationState, opts StartOptions, audience []models.Member) (string, error) {
	profileName := opts.Profile
	if profileName == "" {
		profileName = e.cfg.RateLimit.Profile
	}
	profile, err := config.ProfileByName(profileName)
	if err != nil {
		return "", err
	}

	state.Status = models.StatusPending
	state.Profile = profileName
	state.RequireProxy = opts.RequireProxy
	state.StartedAt = time.Now()
	state.LastCheckpoint = time.Now()

	ctx := context.Background()
	if err := e.store.Create(ctx, state); err != nil {
		return "", fmt.Errorf("failed to persist operation: %w", err)
	}

	state.Status = models.StatusRunning
	if err := e.store.Update(ctx, state); err != nil {
		return "", fmt.Errorf("failed to mark operation running: %w", err)
	}

	if err := e.launch(state, profile, opts, audience); err != nil {
		e.markLaunchFailed(ctx, state, models.StatusFailed, err)
		return "", err
	}
	return state.ID, nil
}

// markLaunchFailed persists a final status for a state whose executor never
// started, so the row is not left Running with no goroutine behind it.
func (e *Engine) markLaunchFailed(ctx context.Context, state *models.OperationState, status models.OperationStatus, cause error) {
	state.Status = status
	state.LastError = cause.Error()
	if err := e.store.Update(ctx, state); err != nil {
		e.logger.WithError(err).ErrorWithFields("Failed to record launch failure", map[string]interface{}{
			"operation_id": state.ID,
		})
	}
}

// launch spawns the executor goroutine for a running state.
func (e *Engine) launch(state *models.OperationState, profile config.RateProfile, opts StartOptions, audience []models.Member) error {
	var sink *results.Sink
	if state.Kind == models.KindScrape {
		var err error
		sink, err = results.NewSink(e.cfg.Output.Directory, state.ID, e.logger)
		if err != nil {
			return err
		}
	}

	controller := ratelimit.NewController(profile, e.cfg.RateLimit.FloodWaitBuffer, e.logger)

	exec := &executor{
		cfg:        &e.cfg.Engine,
		pool:       e.pool,
		store:      e.store,
		adapter:    e.adapter,
		controller: controller,
		sink:       sink,
		audience:   audience,
		rotate:     opts.RotateAccounts,
		state:      state,
		stopStatus: models.StatusPaused,
		logger: e.logger.WithFields(map[string]interface{}{
			"operation_id": state.ID,
			"kind":         string(state.Kind),
		}),
	}

	runCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.running[state.ID] = &activeRun{cancel: cancel, exec: exec}
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.running, state.ID)
			e.mu.Unlock()
			cancel()
		}()
		exec.run(runCtx)
	}()

	return nil
}

// GetStatus returns the current persisted state of an operation.
func (e *Engine) GetStatus(operationID string) (*models.OperationState, error) {
	state, err := e.store.Get(context.Background(), operationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownOperation
		}
		return nil, err
	}
	return state, nil
}

// Cancel stops an operation cooperatively. The executor observes the signal
// within one loop iteration, lets any in-flight call finish, and persists a
// Completed state with the partial results.
func (e *Engine) Cancel(operationID string) error {
	return e.signalStop(operationID, models.StatusCompleted)
}

// Pause stops an operation cooperatively, leaving it resumable.
func (e *Engine) Pause(operationID string) error {
	return e.signalStop(operationID, models.StatusPaused)
}

func (e *Engine) signalStop(operationID string, status models.OperationStatus) error {
	e.mu.Lock()
	run, ok := e.running[operationID]
	e.mu.Unlock()

	if !ok {
		return ErrNotRunning
	}
	run.exec.setStopStatus(status)
	run.cancel()
	return nil
}

// StopAll pauses every active operation. Used at shutdown; paused operations
// show up in ListResumable on the next start.
func (e *Engine) StopAll() {
	e.mu.Lock()
	runs := make([]*activeRun, 0, len(e.running))
	for _, run := range e.running {
		runs = append(runs, run)
	}
	e.mu.Unlock()

	for _, run := range runs {
		run.exec.setStopStatus(models.StatusPaused)
		run.cancel()
	}
}

// ListResumable returns operations left Running or Paused by a prior run.
func (e *Engine) ListResumable() ([]*models.OperationState, error) {
	return e.store.ListByStatus(context.Background(), models.StatusRunning, models.StatusPaused)
}

// Resume re-enters the item loop of a Running or Paused operation using its
// persisted cursor. Items already reflected in completedItems are never
// re-emitted; the result sink's natural-key dedup absorbs a partially
// re-fetched batch.
func (e *Engine) Resume(operationID string) error {
	ctx := context.Background()

	state, err := e.store.Get(ctx, operationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownOperation
		}
		return err
	}

	if state.Status != models.StatusRunning && state.Status != models.StatusPaused {
		return ErrNotResumable
	}

	e.mu.Lock()
	_, active := e.running[operationID]
	e.mu.Unlock()
	if active {
		return errors.New("operation is already active")
	}

	profile, err := config.ProfileByName(state.Profile)
	if err != nil {
		return err
	}

	var audience []models.Member
	if state.Kind != models.KindScrape {
		source := state.SourceGroup
		if state.Kind == models.KindMessage {
			source = state.Target
		}
		audience, err = e.loadAudience(source)
		if err != nil {
			return err
		}
	}

	state.Status = models.StatusRunning
	if err := e.store.Update(ctx, state); err != nil {
		return fmt.Errorf("failed to mark operation running: %w", err)
	}

	e.logger.InfoWithFields("Resuming operation", map[string]interface{}{
		"operation_id": state.ID,
		"kind":         string(state.Kind),
		"completed":    state.CompletedItems,
		"cursor":       state.Cursor,
	})

	if err := e.launch(state, profile, StartOptions{RequireProxy: state.RequireProxy}, audience); err != nil {
		// Back to Paused so the operation stays resumable once the cause
		// (typically the results directory) is fixed
		e.markLaunchFailed(ctx, state, models.StatusPaused, err)
		return err
	}
	return nil
}

// Wait blocks until every active operation has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// loadAudience resolves a source selector into a member list. The selector
// is either a path to a members file or a scrape operation id whose result
// sink is looked up in the output directory.
func (e *Engine) loadAudience(selector string) ([]models.Member, error) {
	if selector == "" {
		return nil, errors.New("audience selector is required")
	}

	members, err := results.LoadMembers(selector)
	if err == nil {
		return members, nil
	}

	sinkPath := fmt.Sprintf("%s/%s.members.json", e.cfg.Output.Directory, selector)
	members, err = results.LoadMembers(sinkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load audience from %q: %w", selector, err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("audience %q is empty", selector)
	}
	return members, nil
}

// newOperationID builds a unique, kind-prefixed operation id.
func newOperationID(kind models.OperationKind) string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s-%s", kind, hex.EncodeToString(buf))
}
