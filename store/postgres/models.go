package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/accredit/answer"
	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/credit"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/subscription"
	"github.com/xraph/accredit/window"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ==================== Accounts ====================

const accountColumns = `user_id, tier, board_review, cme, credits_available, customer_id,
	total_answered, total_correct, credits_earned, credits_claimed,
	last_event_at, created_at, updated_at, version`

func scanAccount(row rowScanner) (*entitlement.Account, error) {
	var (
		a           entitlement.Account
		boardReview []byte
		cme         []byte
		lastEventAt sql.NullTime
	)

	err := row.Scan(
		&a.UserID, &a.Tier, &boardReview, &cme, &a.CreditsAvailable, &a.CustomerID,
		&a.Stats.TotalAnswered, &a.Stats.TotalCorrect, &a.Stats.CreditsEarned, &a.Stats.CreditsClaimed,
		&lastEventAt, &a.CreatedAt, &a.UpdatedAt, &a.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeState(boardReview, &a.BoardReview); err != nil {
		return nil, fmt.Errorf("decode board_review: %w", err)
	}
	if err := decodeState(cme, &a.CME); err != nil {
		return nil, fmt.Errorf("decode cme: %w", err)
	}
	a.LastEventAt = fromNullTime(lastEventAt)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()

	return &a, nil
}

// accountArgs returns the insert arguments in accountColumns order, with the
// derived live-until columns appended and the version left out.
func accountArgs(a *entitlement.Account) ([]any, error) {
	boardReview, err := json.Marshal(a.BoardReview)
	if err != nil {
		return nil, err
	}
	cme, err := json.Marshal(a.CME)
	if err != nil {
		return nil, err
	}

	return []any{
		a.UserID, string(a.Tier), boardReview, cme, a.CreditsAvailable.Quarters(), a.CustomerID,
		a.Stats.TotalAnswered, a.Stats.TotalCorrect, a.Stats.CreditsEarned.Quarters(), a.Stats.CreditsClaimed.Quarters(),
		a.LastEventAt, a.CreatedAt, a.UpdatedAt,
		liveUntil(a.BoardReview), liveUntil(a.CME),
	}, nil
}

// liveUntil is the instant a subscription stops granting access, or nil if
// it grants none. ListStaleAccounts filters on it.
func liveUntil(s subscription.State) *time.Time {
	if !s.Active || s.EndDate == nil {
		return nil
	}
	t := s.EndDate.UTC()
	return &t
}

func decodeState(raw []byte, s *subscription.State) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, s)
}

// ==================== Year stats ====================

func scanYearStats(row rowScanner) (*credit.YearStats, error) {
	var ys credit.YearStats
	err := row.Scan(
		&ys.UserID, &ys.YearID, &ys.TotalAnswered, &ys.TotalCorrect, &ys.CreditsEarned,
		&ys.CreatedAt, &ys.UpdatedAt, &ys.Version,
	)
	if err != nil {
		return nil, err
	}
	ys.CreatedAt = ys.CreatedAt.UTC()
	ys.UpdatedAt = ys.UpdatedAt.UTC()
	return &ys, nil
}

// ==================== Answers ====================

func scanAnswer(row rowScanner) (*answer.Record, error) {
	var (
		r           answer.Record
		correctedAt sql.NullTime
	)
	err := row.Scan(&r.UserID, &r.YearID, &r.QuestionHash, &r.Category, &r.IsCorrect, &r.AnsweredAt, &correctedAt)
	if err != nil {
		return nil, err
	}
	r.AnsweredAt = r.AnsweredAt.UTC()
	r.CorrectedAt = fromNullTime(correctedAt)
	return &r, nil
}

// ==================== Claims ====================

func scanClaim(row rowScanner) (*claim.Claim, error) {
	var (
		c          claim.Claim
		evaluation []byte
	)
	err := row.Scan(&c.ID, &c.UserID, &c.ClaimedAt, &c.Credits, &evaluation, &c.ViaSubscription, &c.FilePath)
	if err != nil {
		return nil, err
	}
	c.ClaimedAt = c.ClaimedAt.UTC()

	if len(evaluation) > 0 && string(evaluation) != "null" {
		if err := json.Unmarshal(evaluation, &c.Evaluation); err != nil {
			return nil, fmt.Errorf("decode evaluation: %w", err)
		}
	}
	return &c, nil
}

func encodeEvaluation(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// ==================== Windows ====================

func scanWindow(row rowScanner) (*window.Window, error) {
	var w window.Window
	if err := row.Scan(&w.ID, &w.StartDate, &w.EndDate); err != nil {
		return nil, err
	}
	w.StartDate = w.StartDate.UTC()
	w.EndDate = w.EndDate.UTC()
	return &w, nil
}

func fromNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
