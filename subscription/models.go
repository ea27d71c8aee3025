// Package subscription models the paid-plan state mirrored from the payment
// processor onto a user's entitlement record.
package subscription

import "time"

// Status is the processor-reported lifecycle status of a subscription.
type Status string

const (
	StatusActive            Status = "active"
	StatusTrialing          Status = "trialing"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusPaused            Status = "paused"
)

// IsActive reports whether the status grants access. Only active and
// trialing subscriptions do.
func (s Status) IsActive() bool {
	return s == StatusActive || s == StatusTrialing
}

// Kind names the two subscription products a user can hold.
type Kind string

const (
	KindBoardReview Kind = "board_review"
	KindCMEAnnual   Kind = "cme_annual"
)

// State is one subscription product's mirrored state on an account.
type State struct {
	Active            bool       `json:"active"`
	Plan              string     `json:"plan,omitempty"`
	SubscriptionID    string     `json:"subscription_id,omitempty"`
	Status            Status     `json:"status,omitempty"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	TrialEnd          *time.Time `json:"trial_end,omitempty"`

	// DerivedFrom is set when this state was granted as a side effect of
	// another product (board review included with the annual plan).
	DerivedFrom Kind `json:"derived_from,omitempty"`
}

// Live reports whether the subscription currently grants access: it must be
// flagged active and have an end date strictly after now.
func (s State) Live(now time.Time) bool {
	return s.Active && s.EndDate != nil && s.EndDate.After(now)
}

// Lapsed reports whether the state still claims to be active but its end
// date has passed.
func (s State) Lapsed(now time.Time) bool {
	return s.Active && s.EndDate != nil && !s.EndDate.After(now)
}

// Period is the billing period reported by the processor.
type Period struct {
	Start             *time.Time
	End               *time.Time
	CancelAtPeriodEnd bool
	TrialEnd          *time.Time
}

// Apply overwrites the state with processor-reported values. Active is
// derived from the status. TrialEnd is cleared once the subscription is no
// longer trialing.
func (s *State) Apply(subscriptionID, plan string, status Status, p Period) {
	if subscriptionID != "" {
		s.SubscriptionID = subscriptionID
	}
	if plan != "" {
		s.Plan = plan
	}
	s.Status = status
	s.Active = status.IsActive()
	if p.Start != nil {
		s.StartDate = p.Start
	}
	s.EndDate = p.End
	s.CancelAtPeriodEnd = p.CancelAtPeriodEnd
	if status == StatusTrialing {
		s.TrialEnd = p.TrialEnd
	} else {
		s.TrialEnd = nil
	}
}

// Deactivate marks the subscription as no longer granting access.
func (s *State) Deactivate(status Status) {
	s.Active = false
	s.Status = status
}

// MirrorFrom copies the effective dates and activity of src, marking the
// state as derived from kind. Plan and subscription id follow src.
func (s *State) MirrorFrom(src State, kind Kind) {
	s.Active = src.Active
	s.Plan = src.Plan
	s.SubscriptionID = src.SubscriptionID
	s.Status = src.Status
	s.StartDate = src.StartDate
	s.EndDate = src.EndDate
	s.CancelAtPeriodEnd = src.CancelAtPeriodEnd
	s.TrialEnd = src.TrialEnd
	s.DerivedFrom = kind
}

// AcceptsMirror reports whether the state is either unset or was itself
// derived by mirroring, so overwriting it with another product's state is
// safe. A state derived from an earlier subscription is replaced on renewal.
func (s State) AcceptsMirror() bool {
	return s.SubscriptionID == "" || s.DerivedFrom != ""
}
