package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"gramops/pkg/account"
	"gramops/pkg/config"
	"gramops/pkg/logger"
	"gramops/pkg/models"
	"gramops/pkg/ratelimit"
	"gramops/pkg/results"
	"gramops/pkg/retry"
	"gramops/pkg/store"
	"gramops/pkg/telegram"
)

// ErrNoEligibleAccount is reported when the bounded wait for a free account
// runs out. The operation fails resumably; it can be retried once quotas
// reset or flood waits expire.
var ErrNoEligibleAccount = errors.New("no eligible account available")

// executor drives one operation's item loop on its own goroutine. Items are
// processed strictly sequentially; all cross-operation coordination happens
// through the shared account pool.
type executor struct {
	cfg        *config.EngineConfig
	pool       *account.Pool
	store      store.OperationStore
	adapter    telegram.ClientAdapter
	controller *ratelimit.Controller
	sink       *results.Sink
	audience   []models.Member
	rotate     bool
	state      *models.OperationState
	logger     logger.Logger

	sinceCheckpoint int

	mu         sync.Mutex
	stopStatus models.OperationStatus
}

// session is one connected account held under reservation.
type session struct {
	account models.Account
	client  telegram.Client
}

// setStopStatus records the status a cooperative stop should finalize with.
func (x *executor) setStopStatus(status models.OperationStatus) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.stopStatus = status
}

func (x *executor) getStopStatus() models.OperationStatus {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.stopStatus
}

// run executes the operation to a terminal or paused state and persists the
// final checkpoint. It never panics the process; every exit path releases the
// reserved account.
func (x *executor) run(ctx context.Context) {
	x.logger.InfoWithFields("Operation starting", map[string]interface{}{
		"target":    x.state.Target,
		"total":     x.state.TotalItems,
		"completed": x.state.CompletedItems,
		"profile":   x.state.Profile,
	})

	var final models.OperationStatus
	var lastErr string

	switch x.state.Kind {
	case models.KindScrape:
		final, lastErr = x.runScrape(ctx)
	default:
		final, lastErr = x.runAudience(ctx)
	}

	x.state.Status = final
	x.state.LastError = lastErr
	x.checkpoint()

	x.logger.InfoWithFields("Operation finished", map[string]interface{}{
		"status":    string(final),
		"completed": x.state.CompletedItems,
		"failed":    x.state.FailedItems,
		"error":     lastErr,
	})
}

// runScrape enumerates group members page by page, feeding the result sink.
// The persisted cursor is the remote enumeration offset.
func (x *executor) runScrape(ctx context.Context) (models.OperationStatus, string) {
	sess, err := x.acquireSession(ctx)
	if err != nil {
		return x.abortStatus(ctx, err)
	}
	defer func() { x.releaseSession(sess) }()

	profile := x.controller.Profile()
	batch := profile.ForKind(models.KindScrape).BatchSize
	if batch <= 0 {
		batch = 100
	}

	for {
		if ctx.Err() != nil {
			return x.getStopStatus(), ""
		}
		if x.state.CompletedItems >= x.state.TotalItems {
			return models.StatusCompleted, ""
		}

		limit := batch
		if remaining := x.state.TotalItems - x.state.CompletedItems; remaining < limit {
			limit = remaining
		}

		callCtx, cancel := context.WithTimeout(ctx, x.cfg.CallTimeout)
		page, out := x.adapter.ListMembers(callCtx, sess.client, x.state.Target, x.state.SourceGroup, x.state.Cursor, limit)
		cancel()

		switch out.Status {
		case telegram.StatusOK:
			x.controller.RecordOutcome(true)
			x.pool.RecordUsage(sess.account.Name, models.KindScrape)

			added := 0
			for _, m := range page.Members {
				if x.sink.Add(m) {
					added++
				}
			}
			x.state.CompletedItems += added
			x.state.Cursor = page.NextOffset
			x.state.ErrorCount = 0
			x.maybeCheckpoint()

			if !page.HasMore {
				return models.StatusCompleted, ""
			}
			if x.state.CompletedItems >= x.state.TotalItems {
				return models.StatusCompleted, ""
			}
			if x.pool.QuotaExhausted(sess.account.Name, models.KindScrape) {
				logger.LogAccountSwitch(x.state.ID, sess.account.Name, "daily quota reached")
				x.releaseSession(sess)
				if sess, err = x.acquireSession(ctx); err != nil {
					return x.abortStatus(ctx, err)
				}
			}
			if err := retry.Wait(ctx, x.controller.NextDelay(models.KindScrape)); err != nil {
				return x.getStopStatus(), ""
			}

		case telegram.StatusRateLimited:
			x.controller.RecordOutcome(false)
			sess, err = x.handleFloodWait(ctx, sess, out)
			if err != nil {
				return x.abortStatus(ctx, err)
			}

		case telegram.StatusAuthFailed:
			x.controller.RecordOutcome(false)
			sess, err = x.replaceFailedSession(ctx, sess, out)
			if err != nil {
				return x.abortStatus(ctx, err)
			}

		case telegram.StatusNotFound:
			return models.StatusFailed, fmt.Sprintf("group %q not found", x.state.Target)

		default:
			// transient and unexpected statuses retry with backoff
			x.controller.RecordOutcome(false)
			x.state.ErrorCount++
			if x.state.ErrorCount > x.cfg.MaxRetries {
				return models.StatusFailed, fmt.Sprintf("too many errors: %s", out)
			}
			if err := retry.Wait(ctx, x.controller.ExponentialBackoff(x.state.ErrorCount)); err != nil {
				return x.getStopStatus(), ""
			}
		}
	}
}

// runAudience processes a fixed member list one item at a time, inviting or
// messaging depending on the operation kind. The persisted cursor is the
// decimal index of the next unprocessed member.
func (x *executor) runAudience(ctx context.Context) (models.OperationStatus, string) {
	index := 0
	if x.state.Cursor != "" {
		parsed, err := strconv.Atoi(x.state.Cursor)
		if err != nil {
			return models.StatusFailed, fmt.Sprintf("corrupt cursor %q", x.state.Cursor)
		}
		index = parsed
	}

	sess, err := x.acquireSession(ctx)
	if err != nil {
		return x.abortStatus(ctx, err)
	}
	defer func() { x.releaseSession(sess) }()

	for index < len(x.audience) {
		if ctx.Err() != nil {
			return x.getStopStatus(), ""
		}

		member := x.audience[index]

		callCtx, cancel := context.WithTimeout(ctx, x.cfg.CallTimeout)
		var out telegram.Outcome
		if x.state.Kind == models.KindInvite {
			out = x.adapter.InviteUser(callCtx, sess.client, x.state.Target, member)
		} else {
			out = x.adapter.SendMessage(callCtx, sess.client, member, renderTemplate(x.state.MessageTemplate, member))
		}
		cancel()

		switch out.Status {
		case telegram.StatusOK:
			x.controller.RecordOutcome(true)
			x.pool.RecordUsage(sess.account.Name, x.state.Kind)
			x.state.CompletedItems++
			x.state.ErrorCount = 0
			index++
			x.state.Cursor = strconv.Itoa(index)
			x.maybeCheckpoint()

			if index >= len(x.audience) {
				return models.StatusCompleted, ""
			}
			if x.pool.QuotaExhausted(sess.account.Name, x.state.Kind) {
				logger.LogAccountSwitch(x.state.ID, sess.account.Name, "daily quota reached")
				x.releaseSession(sess)
				if sess, err = x.acquireSession(ctx); err != nil {
					return x.abortStatus(ctx, err)
				}
			} else if x.rotate {
				sess, err = x.rotateSession(ctx, sess)
				if err != nil {
					return x.abortStatus(ctx, err)
				}
			}
			if err := retry.Wait(ctx, x.controller.NextDelay(x.state.Kind)); err != nil {
				return x.getStopStatus(), ""
			}

		case telegram.StatusPolicyRejected:
			// Expected per-item rejection: count it, move on, no extra
			// sleeping and no account switch
			x.controller.RecordOutcome(true)
			x.state.FailedItems++
			index++
			x.state.Cursor = strconv.Itoa(index)
			x.maybeCheckpoint()

		case telegram.StatusNotFound:
			// The member is gone; treat like a rejection
			x.state.FailedItems++
			index++
			x.state.Cursor = strconv.Itoa(index)
			x.maybeCheckpoint()

		case telegram.StatusRateLimited:
			x.controller.RecordOutcome(false)
			sess, err = x.handleFloodWait(ctx, sess, out)
			if err != nil {
				return x.abortStatus(ctx, err)
			}

		case telegram.StatusAuthFailed:
			x.controller.RecordOutcome(false)
			sess, err = x.replaceFailedSession(ctx, sess, out)
			if err != nil {
				return x.abortStatus(ctx, err)
			}

		default:
			x.controller.RecordOutcome(false)
			x.state.ErrorCount++
			if x.state.ErrorCount > x.cfg.MaxRetries {
				return models.StatusFailed, fmt.Sprintf("too many errors: %s", out)
			}
			if err := retry.Wait(ctx, x.controller.ExponentialBackoff(x.state.ErrorCount)); err != nil {
				return x.getStopStatus(), ""
			}
		}
	}

	return models.StatusCompleted, ""
}

// acquireSession selects, reserves and connects an eligible account. Accounts
// whose credentials are rejected are deactivated and the next candidate is
// tried; connect-level flood waits park the account and move on.
func (x *executor) acquireSession(ctx context.Context) (*session, error) {
	for {
		acc, err := x.selectAccount(ctx)
		if err != nil {
			return nil, err
		}
		x.pool.Reserve(acc.Name, x.state.Kind)

		callCtx, cancel := context.WithTimeout(ctx, x.cfg.CallTimeout)
		client, out := x.adapter.Connect(callCtx, &acc)
		cancel()

		switch out.Status {
		case telegram.StatusOK:
			x.logger.InfoWithFields("Account connected", map[string]interface{}{
				"account": acc.Name,
			})
			return &session{account: acc, client: client}, nil

		case telegram.StatusAuthFailed:
			x.pool.MarkAuthFailed(acc.Name)
			x.pool.Release(acc.Name)

		case telegram.StatusRateLimited:
			until := time.Now().Add(x.controller.FloodWaitDelay(out.RetryAfter))
			x.pool.RecordFloodWait(acc.Name, until)
			x.pool.Release(acc.Name)

		default:
			x.pool.Release(acc.Name)
			x.state.ErrorCount++
			if x.state.ErrorCount > x.cfg.MaxRetries {
				return nil, fmt.Errorf("failed to connect: %s", out)
			}
			if err := retry.Wait(ctx, x.controller.ExponentialBackoff(x.state.ErrorCount)); err != nil {
				return nil, err
			}
		}
	}
}

// selectAccount polls the pool with a bounded wait until an account is free.
func (x *executor) selectAccount(ctx context.Context) (models.Account, error) {
	for attempt := 0; ; attempt++ {
		acc, ok := x.pool.SelectAccount(x.state.Kind, x.state.RequireProxy)
		if ok {
			return acc, nil
		}
		if attempt >= x.cfg.NoAccountRetries {
			return models.Account{}, ErrNoEligibleAccount
		}

		x.logger.WarnWithFields("No eligible account, waiting", map[string]interface{}{
			"attempt": attempt + 1,
			"wait":    x.cfg.NoAccountWait,
		})
		if err := retry.Wait(ctx, x.cfg.NoAccountWait); err != nil {
			return models.Account{}, err
		}
	}
}

// releaseSession closes the client and releases the reservation.
func (x *executor) releaseSession(sess *session) {
	if sess == nil {
		return
	}
	if sess.client != nil {
		_ = sess.client.Close()
	}
	x.pool.Release(sess.account.Name)
}

// rotateSession hands the current account back and picks the next one.
func (x *executor) rotateSession(ctx context.Context, sess *session) (*session, error) {
	logger.LogAccountSwitch(x.state.ID, sess.account.Name, "rotation")
	x.releaseSession(sess)
	return x.acquireSession(ctx)
}

// handleFloodWait parks the rate-limited account until the server-mandated
// wait expires. Short waits are sat out on the same session so the current
// item is retried; waits beyond MaxFloodWait abandon the account for the next
// eligible one.
func (x *executor) handleFloodWait(ctx context.Context, sess *session, out telegram.Outcome) (*session, error) {
	wait := x.controller.FloodWaitDelay(out.RetryAfter)
	x.pool.RecordFloodWait(sess.account.Name, time.Now().Add(wait))
	logger.LogFloodWait(sess.account.Name, x.state.Kind, out.RetryAfter)
	x.checkpoint()

	if time.Duration(out.RetryAfter)*time.Second > x.cfg.MaxFloodWait {
		logger.LogAccountSwitch(x.state.ID, sess.account.Name, "flood wait exceeds maximum")
		x.releaseSession(sess)
		return x.acquireSession(ctx)
	}

	if err := retry.Wait(ctx, wait); err != nil {
		return sess, err
	}
	return sess, nil
}

// replaceFailedSession deactivates an account whose session died mid-run and
// connects a replacement.
func (x *executor) replaceFailedSession(ctx context.Context, sess *session, out telegram.Outcome) (*session, error) {
	x.logger.WithError(out.Err).ErrorWithFields("Session auth failure", map[string]interface{}{
		"account": sess.account.Name,
	})
	x.pool.MarkAuthFailed(sess.account.Name)
	x.releaseSession(sess)
	x.checkpoint()
	return x.acquireSession(ctx)
}

// maybeCheckpoint persists state once enough items have been processed since
// the last checkpoint.
func (x *executor) maybeCheckpoint() {
	x.sinceCheckpoint++
	if x.sinceCheckpoint < x.cfg.CheckpointInterval {
		return
	}
	x.checkpoint()
	logger.LogOperationProgress(x.state.ID, x.state.CompletedItems, x.state.FailedItems, x.state.TotalItems)
}

// checkpoint persists the current state and result sink unconditionally.
// Results are flushed before the state row so a crash between the two writes
// leaves extra results behind rather than a cursor past unsaved ones.
func (x *executor) checkpoint() {
	x.sinceCheckpoint = 0
	x.state.LastCheckpoint = time.Now()

	if x.sink != nil {
		if err := x.sink.Save(x.state.ID); err != nil {
			x.logger.WithError(err).Error("Failed to save results")
		}
	}
	if err := x.store.Update(context.Background(), x.state); err != nil {
		x.logger.WithError(err).Error("Failed to persist checkpoint")
	}

	logger.LogCheckpoint(x.state.ID, x.state.Cursor, x.state.CompletedItems)
}

// abortStatus maps a loop-terminating error to the final status. A stop
// signal finalizes with the requested status; real failures keep the message.
func (x *executor) abortStatus(ctx context.Context, err error) (models.OperationStatus, string) {
	if ctx.Err() != nil {
		return x.getStopStatus(), ""
	}
	return models.StatusFailed, err.Error()
}

// renderTemplate substitutes member placeholders into a message template.
func renderTemplate(template string, m models.Member) string {
	r := strings.NewReplacer(
		"{first_name}", m.FirstName,
		"{last_name}", m.LastName,
		"{username}", m.Username,
	)
	return r.Replace(template)
}
