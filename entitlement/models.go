// Package entitlement holds the per-user entitlement record and the pure
// function that derives a user's access tier from it.
package entitlement

import (
	"time"

	"github.com/xraph/accredit/subscription"
	"github.com/xraph/accredit/types"
)

// LifetimeStats are the cumulative counters kept on the account across all
// accreditation years.
type LifetimeStats struct {
	TotalAnswered  int           `json:"total_answered"`
	TotalCorrect   int           `json:"total_correct"`
	CreditsEarned  types.Credits `json:"credits_earned"`
	CreditsClaimed types.Credits `json:"credits_claimed"`
}

// Account is the entitlement record of one user.
type Account struct {
	types.Entity

	UserID           string             `json:"user_id"`
	Tier             Tier               `json:"tier"`
	BoardReview      subscription.State `json:"board_review"`
	CME              subscription.State `json:"cme"`
	CreditsAvailable types.Credits      `json:"credits_available"`
	CustomerID       string             `json:"customer_id,omitempty"`
	Stats            LifetimeStats      `json:"stats"`
	LastEventAt      *time.Time         `json:"last_event_at,omitempty"`

	// Version is maintained by stores for optimistic concurrency.
	Version int64 `json:"-"`
}

// NewAccount returns the default record for a user who has never paid.
func NewAccount(userID string, now time.Time) *Account {
	return &Account{
		Entity: types.NewEntityAt(now),
		UserID: userID,
		Tier:   TierFreeGuest,
	}
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.BoardReview = cloneState(a.BoardReview)
	c.CME = cloneState(a.CME)
	c.LastEventAt = cloneTime(a.LastEventAt)
	return &c
}

// Subscription returns a pointer to the state of the given product.
func (a *Account) Subscription(kind subscription.Kind) *subscription.State {
	if kind == subscription.KindCMEAnnual {
		return &a.CME
	}
	return &a.BoardReview
}

// Refresh re-evaluates the tier at now and stores it. It reports the
// previous tier and whether it changed.
func (a *Account) Refresh(now time.Time) (Tier, bool) {
	prev := a.Tier
	a.Tier = Evaluate(a, now)
	a.TouchAt(now)
	return prev, prev != a.Tier
}

func cloneState(s subscription.State) subscription.State {
	s.StartDate = cloneTime(s.StartDate)
	s.EndDate = cloneTime(s.EndDate)
	s.TrialEnd = cloneTime(s.TrialEnd)
	return s
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
