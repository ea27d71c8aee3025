package accredit

import (
	"context"
	"errors"
	"strings"

	"github.com/xraph/accredit/answer"
	"github.com/xraph/accredit/credit"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/store"
	"github.com/xraph/accredit/types"
)

// AnswerStatus is the outcome of recording an answer.
type AnswerStatus string

const (
	AnswerSuccess        AnswerStatus = "success"
	AnswerNoChange       AnswerStatus = "no_change"
	AnswerAccuracyLow    AnswerStatus = "accuracy_low"
	AnswerLimitReached   AnswerStatus = "limit_reached"
	AnswerAlreadyCorrect AnswerStatus = "already_correct"
	AnswerStillIncorrect AnswerStatus = "still_incorrect"
	AnswerNoActiveYear   AnswerStatus = "no_active_year"
	AnswerTierIneligible AnswerStatus = "tier_ineligible"
)

// AnswerInput is a single question submission.
type AnswerInput struct {
	UserID    string `json:"user_id"`
	Question  string `json:"question"`
	Category  string `json:"category,omitempty"`
	IsCorrect bool   `json:"is_correct"`
}

// AnswerResult reports the effect of a submission on the active year.
type AnswerResult struct {
	Status              AnswerStatus     `json:"status"`
	CreditedDelta       types.Credits    `json:"credited_delta"`
	YearTotal           types.Credits    `json:"year_total"`
	TotalAnsweredInYear int              `json:"total_answered_in_year"`
	TotalCorrectInYear  int              `json:"total_correct_in_year"`
	ActiveYearID        string           `json:"active_year_id,omitempty"`
	Tier                entitlement.Tier `json:"tier,omitempty"`
}

// RecordAnswer records a question answer against the active accreditation
// year and accrues credit. The answer record, year counters and account are
// updated in a single transaction.
func (e *Engine) RecordAnswer(ctx context.Context, in AnswerInput) (*AnswerResult, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, ValidationError{Field: "user_id", Message: "is required"}
	}
	if strings.TrimSpace(in.Question) == "" {
		return nil, ValidationError{Field: "question", Message: "is required"}
	}

	now := e.now()
	win, err := e.ActiveWindow(ctx)
	if errors.Is(err, ErrNoActiveWindow) {
		return &AnswerResult{Status: AnswerNoActiveYear}, nil
	}
	if err != nil {
		return nil, err
	}

	sub := answer.Submission{
		UserID:       in.UserID,
		YearID:       win.ID,
		QuestionHash: answer.Hash(in.Question),
		Category:     in.Category,
		IsCorrect:    in.IsCorrect,
	}

	var (
		result   *AnswerResult
		prevTier entitlement.Tier
		changed  bool
	)
	err = e.runTx(ctx, "record_answer", func(ctx context.Context, tx store.Tx) error {
		result = &AnswerResult{ActiveYearID: win.ID}
		changed = false

		acct, err := tx.GetAccount(ctx, in.UserID)
		if err != nil {
			return err
		}

		result.Tier = entitlement.Evaluate(acct, now)
		if !entitlement.EarnsCredits(result.Tier) {
			result.Status = AnswerTierIneligible
			return nil
		}

		stats, err := tx.GetYearStats(ctx, in.UserID, win.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			stats = credit.NewYearStats(in.UserID, win.ID, now)
		case err != nil:
			return err
		}

		prior, err := tx.GetAnswer(ctx, in.UserID, win.ID, sub.QuestionHash)
		switch {
		case errors.Is(err, ErrNotFound):
			prior = nil
		case err != nil:
			return err
		}

		rec, transition := answer.Apply(prior, sub, now)
		if !transition.Counts() {
			result.Status = AnswerAlreadyCorrect
			if transition == answer.StillIncorrect {
				result.Status = AnswerStillIncorrect
			}
			fillYear(result, stats)
			return nil
		}

		if transition == answer.Created {
			stats.TotalAnswered++
			acct.Stats.TotalAnswered++
		}
		if rec.IsCorrect {
			stats.TotalCorrect++
			acct.Stats.TotalCorrect++
		}

		before := stats.CreditsEarned
		delta := stats.Recompute(e.policy)
		stats.TouchAt(now)
		acct.Stats.CreditsEarned = acct.Stats.CreditsEarned.Add(delta)

		switch e.policy.Classify(stats.TotalAnswered, stats.TotalCorrect, before, stats.CreditsEarned) {
		case credit.OutcomeCredited:
			result.Status = AnswerSuccess
		case credit.OutcomeAccuracyLow:
			result.Status = AnswerAccuracyLow
		case credit.OutcomeLimitReached:
			result.Status = AnswerLimitReached
		default:
			result.Status = AnswerNoChange
		}
		result.CreditedDelta = delta
		fillYear(result, stats)

		prevTier, changed = acct.Refresh(now)
		result.Tier = acct.Tier

		if err := tx.PutAnswer(ctx, rec); err != nil {
			return err
		}
		if err := tx.PutYearStats(ctx, stats); err != nil {
			return err
		}
		return tx.PutAccount(ctx, acct)
	})
	if err != nil {
		e.logger.Error("record answer failed",
			"user_id", in.UserID,
			"year_id", win.ID,
			"error", err,
		)
		return nil, err
	}

	e.plugins.EmitAnswerRecorded(ctx, in.UserID, win.ID, string(result.Status), result.CreditedDelta)
	if result.CreditedDelta.IsPositive() && result.YearTotal >= e.policy.MaxPerYear {
		e.plugins.EmitAccrualCapped(ctx, in.UserID, win.ID, result.YearTotal)
	}
	if changed {
		e.plugins.EmitTierChanged(ctx, in.UserID, prevTier, result.Tier)
	}

	e.logger.Debug("answer recorded",
		"user_id", in.UserID,
		"year_id", win.ID,
		"status", result.Status,
		"delta", result.CreditedDelta,
	)

	return result, nil
}

func fillYear(r *AnswerResult, s *credit.YearStats) {
	r.YearTotal = s.CreditsEarned
	r.TotalAnsweredInYear = s.TotalAnswered
	r.TotalCorrectInYear = s.TotalCorrect
}
