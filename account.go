package accredit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/store"
	"github.com/xraph/accredit/window"
)

// EnsureAccount returns the user's account, creating the default free
// record if none exists.
func (e *Engine) EnsureAccount(ctx context.Context, userID string) (*entitlement.Account, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ValidationError{Field: "user_id", Message: "is required"}
	}

	acct := entitlement.NewAccount(userID, e.now())
	err := e.store.CreateAccount(ctx, acct)
	switch {
	case err == nil:
		e.logger.Info("account created", "user_id", userID)
		return acct, nil
	case errors.Is(err, ErrAlreadyExists):
		return e.store.GetAccount(ctx, userID)
	default:
		return nil, err
	}
}

// Account returns the user's account with its tier evaluated at read time.
// The stored record is not rewritten.
func (e *Engine) Account(ctx context.Context, userID string) (*entitlement.Account, error) {
	acct, err := e.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	acct.Tier = entitlement.Evaluate(acct, e.now())
	return acct, nil
}

// ──────────────────────────────────────────────────
// Accreditation windows
// ──────────────────────────────────────────────────

// PutWindow creates or replaces an accreditation window. A window that
// would overlap another is rejected with ErrWindowOverlap.
//
// Window writes are a single-writer admin operation: calls through one
// Engine are serialized, but two processes writing windows to the same
// store at once can still both pass the overlap check.
func (e *Engine) PutWindow(ctx context.Context, w *window.Window) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	e.windowMu.Lock()
	defer e.windowMu.Unlock()

	existing, err := e.store.ListWindows(ctx)
	if err != nil {
		return err
	}
	if err := window.ValidateNonOverlap(window.Upsert(existing, w)); err != nil {
		return fmt.Errorf("%w: %w", ErrWindowOverlap, err)
	}

	if err := e.store.PutWindow(ctx, w); err != nil {
		return err
	}

	e.logger.Info("window stored",
		"year_id", w.ID,
		"start", w.StartDate,
		"end", w.EndDate,
	)
	return nil
}

// ActiveWindow returns the window containing the current time.
func (e *Engine) ActiveWindow(ctx context.Context) (*window.Window, error) {
	windows, err := e.store.ListWindows(ctx)
	if err != nil {
		return nil, err
	}

	w, ok := window.Resolve(windows, e.now())
	if !ok {
		return nil, ErrNoActiveWindow
	}
	return w, nil
}

// ──────────────────────────────────────────────────
// Tier sweep
// ──────────────────────────────────────────────────

// SweepResult summarizes one tier sweep.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
}

// SweepTiers rewrites the stored tier of accounts whose paid access has
// lapsed since their last write.
func (e *Engine) SweepTiers(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	now := e.now()

	stale, err := e.store.ListStaleAccounts(ctx, now, e.sweepBatch)
	if err != nil {
		return nil, err
	}

	res := &SweepResult{Scanned: len(stale)}
	for _, candidate := range stale {
		userID := candidate.UserID

		var (
			prevTier entitlement.Tier
			nextTier entitlement.Tier
			changed  bool
		)
		err := e.runTx(ctx, "sweep_tier", func(ctx context.Context, tx store.Tx) error {
			acct, err := tx.GetAccount(ctx, userID)
			if err != nil {
				return err
			}
			prevTier, changed = acct.Refresh(now)
			nextTier = acct.Tier
			if !changed {
				return nil
			}
			return tx.PutAccount(ctx, acct)
		})
		if err != nil {
			e.logger.Warn("tier sweep failed for account",
				"user_id", userID,
				"error", err,
			)
			continue
		}

		if changed {
			res.Changed++
			e.plugins.EmitTierChanged(ctx, userID, prevTier, nextTier)
		}
	}

	elapsed := time.Since(start)
	e.plugins.EmitTierSweep(ctx, res.Scanned, res.Changed, elapsed)

	if res.Scanned > 0 {
		e.logger.Info("tier sweep completed",
			"scanned", res.Scanned,
			"changed", res.Changed,
			"elapsed", elapsed,
		)
	}

	return res, nil
}

// sweepWorker runs SweepTiers on a ticker until Stop.
func (e *Engine) sweepWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			if _, err := e.SweepTiers(ctx); err != nil {
				e.logger.Error("tier sweep failed", "error", err)
			}
		}
	}
}
