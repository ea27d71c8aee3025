package accredit

import (
	"context"
	"strings"
	"time"

	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/id"
	"github.com/xraph/accredit/store"
	"github.com/xraph/accredit/types"
)

// ClaimInput is a request to claim credits.
type ClaimInput struct {
	UserID   string         `json:"user_id"`
	Amount   types.Credits  `json:"amount"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ClaimResult reports a committed claim.
type ClaimResult struct {
	Success          bool             `json:"success"`
	ClaimReference   string           `json:"claim_reference"`
	Claim            *claim.Claim     `json:"claim"`
	CreditsAvailable types.Credits    `json:"credits_available"`
	Tier             entitlement.Tier `json:"tier"`
}

// ClaimCredits records a claim of amount credits. Holders of a live CME
// annual subscription claim without touching their balance; everyone else
// must have at least amount available.
func (e *Engine) ClaimCredits(ctx context.Context, in ClaimInput) (*ClaimResult, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, ValidationError{Field: "user_id", Message: "is required"}
	}
	if !in.Amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	}

	var (
		result   *ClaimResult
		prevTier entitlement.Tier
		changed  bool
	)
	err := e.runTx(ctx, "claim_credits", func(ctx context.Context, tx store.Tx) error {
		now := e.now()

		acct, err := tx.GetAccount(ctx, in.UserID)
		if err != nil {
			return err
		}

		via := acct.CME.Live(now)
		if !via && acct.CreditsAvailable.LessThan(in.Amount) {
			return &InsufficientCreditsError{
				Available: acct.CreditsAvailable,
				Requested: in.Amount,
			}
		}

		c := claim.New(in.UserID, in.Amount, in.Metadata, via, now)
		if err := tx.AppendClaim(ctx, c); err != nil {
			return err
		}

		acct.Stats.CreditsClaimed = acct.Stats.CreditsClaimed.Add(in.Amount)
		if !via {
			acct.CreditsAvailable = acct.CreditsAvailable.Sub(in.Amount)
		}
		prevTier, changed = acct.Refresh(now)

		if err := tx.PutAccount(ctx, acct); err != nil {
			return err
		}

		result = &ClaimResult{
			Success:          true,
			ClaimReference:   c.ID.String(),
			Claim:            c,
			CreditsAvailable: acct.CreditsAvailable,
			Tier:             acct.Tier,
		}
		return nil
	})
	if err != nil {
		e.logger.Warn("claim credits failed",
			"user_id", in.UserID,
			"amount", in.Amount,
			"error", err,
		)
		return nil, err
	}

	e.plugins.EmitCreditsClaimed(ctx, result.Claim)
	if changed {
		e.plugins.EmitTierChanged(ctx, in.UserID, prevTier, result.Tier)
	}
	e.enqueueArtifact(result.Claim)

	e.logger.Info("credits claimed",
		"user_id", in.UserID,
		"claim_id", result.ClaimReference,
		"amount", in.Amount,
		"via_subscription", result.Claim.ViaSubscription,
	)

	return result, nil
}

// Claims returns a user's claim history ordered by claim time.
func (e *Engine) Claims(ctx context.Context, userID string, opts claim.ListOpts) ([]*claim.Claim, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ValidationError{Field: "user_id", Message: "is required"}
	}
	return e.store.ListClaims(ctx, userID, opts)
}

// ──────────────────────────────────────────────────
// Certificate worker
// ──────────────────────────────────────────────────

type artifactJob struct {
	id    id.JobID
	claim *claim.Claim
}

// enqueueArtifact queues a certificate job. A full queue drops the job.
func (e *Engine) enqueueArtifact(c *claim.Claim) {
	if e.publisher == nil {
		return
	}

	cp := *c
	job := &artifactJob{id: id.NewJobID(), claim: &cp}
	select {
	case e.artifactJobs <- job:
	default:
		e.logger.Warn("certificate queue full, dropping job",
			"job_id", job.id.String(),
			"claim_id", c.ID.String(),
		)
	}
}

// artifactWorker publishes queued certificates until Stop. Jobs still
// queued at shutdown are drained first.
func (e *Engine) artifactWorker(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopChan:
			for {
				select {
				case job := <-e.artifactJobs:
					e.publishArtifact(ctx, job)
				default:
					return
				}
			}
		case job := <-e.artifactJobs:
			e.publishArtifact(ctx, job)
		}
	}
}

func (e *Engine) publishArtifact(ctx context.Context, job *artifactJob) {
	start := time.Now()
	c := job.claim

	path, err := e.publisher.Publish(ctx, c)
	if err == nil {
		err = e.store.AttachClaimArtifact(ctx, c.UserID, c.ID, path)
	}
	if err != nil {
		e.logger.Warn("certificate publish failed",
			"job_id", job.id.String(),
			"claim_id", c.ID.String(),
			"user_id", c.UserID,
			"error", err,
		)
		e.plugins.EmitArtifactAttached(ctx, c, "", err)
		return
	}

	c.FilePath = path
	e.plugins.EmitArtifactAttached(ctx, c, path, nil)
	e.logger.Debug("certificate attached",
		"job_id", job.id.String(),
		"claim_id", c.ID.String(),
		"path", path,
		"elapsed", time.Since(start),
	)
}
