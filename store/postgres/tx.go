package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/answer"
	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/credit"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/id"
	"github.com/xraph/accredit/store"
)

const accountInsertColumns = `user_id, tier, board_review, cme, credits_available, customer_id,
	total_answered, total_correct, credits_earned, credits_claimed,
	last_event_at, created_at, updated_at, board_review_live_until, cme_live_until`

const insertAccount = `INSERT INTO accredit_accounts (` + accountInsertColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	RETURNING version`

const upsertAccount = `INSERT INTO accredit_accounts (` + accountInsertColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (user_id) DO UPDATE SET
		tier = EXCLUDED.tier,
		board_review = EXCLUDED.board_review,
		cme = EXCLUDED.cme,
		credits_available = EXCLUDED.credits_available,
		customer_id = EXCLUDED.customer_id,
		total_answered = EXCLUDED.total_answered,
		total_correct = EXCLUDED.total_correct,
		credits_earned = EXCLUDED.credits_earned,
		credits_claimed = EXCLUDED.credits_claimed,
		last_event_at = EXCLUDED.last_event_at,
		updated_at = EXCLUDED.updated_at,
		board_review_live_until = EXCLUDED.board_review_live_until,
		cme_live_until = EXCLUDED.cme_live_until,
		version = accredit_accounts.version + 1
	RETURNING version`

const claimColumns = `id, user_id, claimed_at, credits, evaluation, via_subscription, file_path`

// tx is the store.Tx view over one SERIALIZABLE transaction. Every read
// locks the row it returns.
type tx struct {
	tx *sql.Tx
}

var _ store.Tx = (*tx)(nil)

func (t *tx) GetAccount(ctx context.Context, userID string) (*entitlement.Account, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accredit_accounts WHERE user_id = $1 FOR UPDATE`, userID)

	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, accredit.ErrAccountNotFound
	}
	return a, mapErr(err)
}

func (t *tx) PutAccount(ctx context.Context, a *entitlement.Account) error {
	args, err := accountArgs(a)
	if err != nil {
		return err
	}
	return mapErr(t.tx.QueryRowContext(ctx, upsertAccount, args...).Scan(&a.Version))
}

func (t *tx) GetYearStats(ctx context.Context, userID, yearID string) (*credit.YearStats, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT user_id, year_id, total_answered, total_correct, credits_earned,
		created_at, updated_at, version
		FROM accredit_year_stats WHERE user_id = $1 AND year_id = $2 FOR UPDATE`, userID, yearID)

	ys, err := scanYearStats(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, accredit.ErrNotFound
	}
	return ys, mapErr(err)
}

func (t *tx) PutYearStats(ctx context.Context, ys *credit.YearStats) error {
	row := t.tx.QueryRowContext(ctx, `INSERT INTO accredit_year_stats
		(user_id, year_id, total_answered, total_correct, credits_earned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, year_id) DO UPDATE SET
			total_answered = EXCLUDED.total_answered,
			total_correct = EXCLUDED.total_correct,
			credits_earned = EXCLUDED.credits_earned,
			updated_at = EXCLUDED.updated_at,
			version = accredit_year_stats.version + 1
		RETURNING version`,
		ys.UserID, ys.YearID, ys.TotalAnswered, ys.TotalCorrect, ys.CreditsEarned.Quarters(),
		ys.CreatedAt, ys.UpdatedAt)
	return mapErr(row.Scan(&ys.Version))
}

func (t *tx) GetAnswer(ctx context.Context, userID, yearID, questionHash string) (*answer.Record, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT user_id, year_id, question_hash, category, is_correct, answered_at, corrected_at
		FROM accredit_answers WHERE user_id = $1 AND year_id = $2 AND question_hash = $3 FOR UPDATE`,
		userID, yearID, questionHash)

	r, err := scanAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, accredit.ErrNotFound
	}
	return r, mapErr(err)
}

func (t *tx) PutAnswer(ctx context.Context, r *answer.Record) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO accredit_answers
		(user_id, year_id, question_hash, category, is_correct, answered_at, corrected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, year_id, question_hash) DO UPDATE SET
			category = EXCLUDED.category,
			is_correct = EXCLUDED.is_correct,
			corrected_at = EXCLUDED.corrected_at`,
		r.UserID, r.YearID, r.QuestionHash, r.Category, r.IsCorrect, r.AnsweredAt, r.CorrectedAt)
	return mapErr(err)
}

func (t *tx) AppendClaim(ctx context.Context, c *claim.Claim) error {
	evaluation, err := encodeEvaluation(c.Evaluation)
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx, `INSERT INTO accredit_claims (`+claimColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID.String(), c.UserID, c.ClaimedAt, c.Credits.Quarters(), evaluation, c.ViaSubscription, c.FilePath)
	return mapErr(err)
}

func (t *tx) MarkEventProcessed(ctx context.Context, eventID, eventType string, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `INSERT INTO accredit_processed_events (event_id, receipt_id, event_type, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING`,
		eventID, id.NewReceiptID().String(), eventType, at.UTC())
	if err != nil {
		return false, mapErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
