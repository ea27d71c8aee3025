package entitlement

import "time"

// Tier is the access level derived from an account's entitlement fields.
type Tier string

const (
	TierFreeGuest      Tier = "free_guest"
	TierCMECreditsOnly Tier = "cme_credits_only"
	TierBoardReview    Tier = "board_review"
	TierCMEAnnual      Tier = "cme_annual"
)

// Evaluate derives the tier of a at now. The first matching rule wins:
//
//  1. live CME annual subscription: cme_annual
//  2. live board review subscription: board_review
//  3. positive one-time credit balance: cme_credits_only
//  4. otherwise: free_guest
//
// Evaluate is pure; it reads nothing but its arguments.
func Evaluate(a *Account, now time.Time) Tier {
	switch {
	case a == nil:
		return TierFreeGuest
	case a.CME.Live(now):
		return TierCMEAnnual
	case a.BoardReview.Live(now):
		return TierBoardReview
	case a.CreditsAvailable.IsPositive():
		return TierCMECreditsOnly
	default:
		return TierFreeGuest
	}
}

// EarnsCredits reports whether answering questions accrues credit at t.
func EarnsCredits(t Tier) bool {
	return t == TierCMEAnnual || t == TierCMECreditsOnly
}

// Paid reports whether t is backed by a subscription with an end date.
func Paid(t Tier) bool {
	return t == TierCMEAnnual || t == TierBoardReview
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFreeGuest, TierCMECreditsOnly, TierBoardReview, TierCMEAnnual:
		return true
	}
	return false
}
