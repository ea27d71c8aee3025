package credit

import (
	"time"

	"github.com/xraph/accredit/types"
)

// YearStats are a user's counters for one accreditation window.
type YearStats struct {
	types.Entity

	UserID        string        `json:"user_id"`
	YearID        string        `json:"year_id"`
	TotalAnswered int           `json:"total_answered"`
	TotalCorrect  int           `json:"total_correct"`
	CreditsEarned types.Credits `json:"credits_earned"`

	Version int64 `json:"-"`
}

// NewYearStats returns empty counters for a user's window.
func NewYearStats(userID, yearID string, now time.Time) *YearStats {
	return &YearStats{
		Entity: types.NewEntityAt(now),
		UserID: userID,
		YearID: yearID,
	}
}

// Recompute sets CreditsEarned from the current counts and returns the
// delta against the previous total.
func (s *YearStats) Recompute(p Policy) types.Credits {
	prior := s.CreditsEarned
	s.CreditsEarned = p.Compute(s.TotalAnswered, s.TotalCorrect, prior)
	return s.CreditsEarned.Sub(prior)
}

// Accuracy returns the window's correct ratio.
func (s *YearStats) Accuracy() float64 {
	return Accuracy(s.TotalAnswered, s.TotalCorrect)
}
