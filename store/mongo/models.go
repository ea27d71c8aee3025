package mongo

import (
	"time"

	"github.com/xraph/accredit/answer"
	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/credit"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/id"
	"github.com/xraph/accredit/subscription"
	"github.com/xraph/accredit/types"
	"github.com/xraph/accredit/window"
)

// ==================== Account models ====================

type stateModel struct {
	Active            bool       `bson:"active"`
	Plan              string     `bson:"plan,omitempty"`
	SubscriptionID    string     `bson:"subscription_id,omitempty"`
	Status            string     `bson:"status,omitempty"`
	StartDate         *time.Time `bson:"start_date,omitempty"`
	EndDate           *time.Time `bson:"end_date,omitempty"`
	CancelAtPeriodEnd bool       `bson:"cancel_at_period_end"`
	TrialEnd          *time.Time `bson:"trial_end,omitempty"`
	DerivedFrom       string     `bson:"derived_from,omitempty"`
}

type accountModel struct {
	UserID           string     `bson:"_id"`
	Tier             string     `bson:"tier"`
	BoardReview      stateModel `bson:"board_review"`
	CME              stateModel `bson:"cme"`
	BoardReviewUntil *time.Time `bson:"board_review_live_until"`
	CMEUntil         *time.Time `bson:"cme_live_until"`
	CreditsAvailable int64      `bson:"credits_available"`
	CustomerID       string     `bson:"customer_id"`
	TotalAnswered    int        `bson:"total_answered"`
	TotalCorrect     int        `bson:"total_correct"`
	CreditsEarned    int64      `bson:"credits_earned"`
	CreditsClaimed   int64      `bson:"credits_claimed"`
	LastEventAt      *time.Time `bson:"last_event_at,omitempty"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
	Version          int64      `bson:"version"`
}

func toStateModel(s subscription.State) stateModel {
	return stateModel{
		Active:            s.Active,
		Plan:              s.Plan,
		SubscriptionID:    s.SubscriptionID,
		Status:            string(s.Status),
		StartDate:         s.StartDate,
		EndDate:           s.EndDate,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		TrialEnd:          s.TrialEnd,
		DerivedFrom:       string(s.DerivedFrom),
	}
}

func fromStateModel(m stateModel) subscription.State {
	return subscription.State{
		Active:            m.Active,
		Plan:              m.Plan,
		SubscriptionID:    m.SubscriptionID,
		Status:            subscription.Status(m.Status),
		StartDate:         utcPtr(m.StartDate),
		EndDate:           utcPtr(m.EndDate),
		CancelAtPeriodEnd: m.CancelAtPeriodEnd,
		TrialEnd:          utcPtr(m.TrialEnd),
		DerivedFrom:       subscription.Kind(m.DerivedFrom),
	}
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

func toAccountModel(a *entitlement.Account) *accountModel {
	return &accountModel{
		UserID:           a.UserID,
		Tier:             string(a.Tier),
		BoardReview:      toStateModel(a.BoardReview),
		CME:              toStateModel(a.CME),
		BoardReviewUntil: liveUntil(a.BoardReview),
		CMEUntil:         liveUntil(a.CME),
		CreditsAvailable: a.CreditsAvailable.Quarters(),
		CustomerID:       a.CustomerID,
		TotalAnswered:    a.Stats.TotalAnswered,
		TotalCorrect:     a.Stats.TotalCorrect,
		CreditsEarned:    a.Stats.CreditsEarned.Quarters(),
		CreditsClaimed:   a.Stats.CreditsClaimed.Quarters(),
		LastEventAt:      a.LastEventAt,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
		Version:          a.Version,
	}
}

func fromAccountModel(m *accountModel) *entitlement.Account {
	return &entitlement.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		UserID:           m.UserID,
		Tier:             entitlement.Tier(m.Tier),
		BoardReview:      fromStateModel(m.BoardReview),
		CME:              fromStateModel(m.CME),
		CreditsAvailable: types.Quarters(m.CreditsAvailable),
		CustomerID:       m.CustomerID,
		Stats: entitlement.LifetimeStats{
			TotalAnswered:  m.TotalAnswered,
			TotalCorrect:   m.TotalCorrect,
			CreditsEarned:  types.Quarters(m.CreditsEarned),
			CreditsClaimed: types.Quarters(m.CreditsClaimed),
		},
		LastEventAt: utcPtr(m.LastEventAt),
		Version:     m.Version,
	}
}

// ==================== Year stats models ====================

type yearStatsModel struct {
	ID            string    `bson:"_id"`
	UserID        string    `bson:"user_id"`
	YearID        string    `bson:"year_id"`
	TotalAnswered int       `bson:"total_answered"`
	TotalCorrect  int       `bson:"total_correct"`
	CreditsEarned int64     `bson:"credits_earned"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
	Version       int64     `bson:"version"`
}

func statsID(userID, yearID string) string { return userID + "/" + yearID }

func toYearStatsModel(ys *credit.YearStats) *yearStatsModel {
	return &yearStatsModel{
		ID:            statsID(ys.UserID, ys.YearID),
		UserID:        ys.UserID,
		YearID:        ys.YearID,
		TotalAnswered: ys.TotalAnswered,
		TotalCorrect:  ys.TotalCorrect,
		CreditsEarned: ys.CreditsEarned.Quarters(),
		CreatedAt:     ys.CreatedAt,
		UpdatedAt:     ys.UpdatedAt,
		Version:       ys.Version,
	}
}

func fromYearStatsModel(m *yearStatsModel) *credit.YearStats {
	return &credit.YearStats{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		UserID:        m.UserID,
		YearID:        m.YearID,
		TotalAnswered: m.TotalAnswered,
		TotalCorrect:  m.TotalCorrect,
		CreditsEarned: types.Quarters(m.CreditsEarned),
		Version:       m.Version,
	}
}

// ==================== Answer models ====================

type answerModel struct {
	ID           string     `bson:"_id"`
	UserID       string     `bson:"user_id"`
	YearID       string     `bson:"year_id"`
	QuestionHash string     `bson:"question_hash"`
	Category     string     `bson:"category,omitempty"`
	IsCorrect    bool       `bson:"is_correct"`
	AnsweredAt   time.Time  `bson:"answered_at"`
	CorrectedAt  *time.Time `bson:"corrected_at,omitempty"`
}

func answerID(userID, yearID, hash string) string { return userID + "/" + yearID + "/" + hash }

func toAnswerModel(r *answer.Record) *answerModel {
	return &answerModel{
		ID:           answerID(r.UserID, r.YearID, r.QuestionHash),
		UserID:       r.UserID,
		YearID:       r.YearID,
		QuestionHash: r.QuestionHash,
		Category:     r.Category,
		IsCorrect:    r.IsCorrect,
		AnsweredAt:   r.AnsweredAt,
		CorrectedAt:  r.CorrectedAt,
	}
}

func fromAnswerModel(m *answerModel) *answer.Record {
	return &answer.Record{
		UserID:       m.UserID,
		YearID:       m.YearID,
		QuestionHash: m.QuestionHash,
		Category:     m.Category,
		IsCorrect:    m.IsCorrect,
		AnsweredAt:   m.AnsweredAt.UTC(),
		CorrectedAt:  utcPtr(m.CorrectedAt),
	}
}

// ==================== Claim models ====================

type claimModel struct {
	ID              string         `bson:"_id"`
	UserID          string         `bson:"user_id"`
	ClaimedAt       time.Time      `bson:"claimed_at"`
	Credits         int64          `bson:"credits"`
	Evaluation      map[string]any `bson:"evaluation,omitempty"`
	ViaSubscription bool           `bson:"via_subscription"`
	FilePath        string         `bson:"file_path"`
}

func toClaimModel(c *claim.Claim) *claimModel {
	return &claimModel{
		ID:              c.ID.String(),
		UserID:          c.UserID,
		ClaimedAt:       c.ClaimedAt,
		Credits:         c.Credits.Quarters(),
		Evaluation:      c.Evaluation,
		ViaSubscription: c.ViaSubscription,
		FilePath:        c.FilePath,
	}
}

func fromClaimModel(m *claimModel) (*claim.Claim, error) {
	claimID, err := id.ParseClaimID(m.ID)
	if err != nil {
		return nil, err
	}
	return &claim.Claim{
		ID:              claimID,
		UserID:          m.UserID,
		ClaimedAt:       m.ClaimedAt.UTC(),
		Credits:         types.Quarters(m.Credits),
		Evaluation:      m.Evaluation,
		ViaSubscription: m.ViaSubscription,
		FilePath:        m.FilePath,
	}, nil
}

// ==================== Event and window models ====================

type eventModel struct {
	EventID     string    `bson:"_id"`
	ReceiptID   string    `bson:"receipt_id"`
	EventType   string    `bson:"event_type"`
	ProcessedAt time.Time `bson:"processed_at"`
}

type windowModel struct {
	ID        string    `bson:"_id"`
	StartDate time.Time `bson:"start_date"`
	EndDate   time.Time `bson:"end_date"`
}

func fromWindowModel(m *windowModel) *window.Window {
	return &window.Window{
		ID:        m.ID,
		StartDate: m.StartDate.UTC(),
		EndDate:   m.EndDate.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
