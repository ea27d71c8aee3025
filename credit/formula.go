// Package credit converts per-year answer counts into earned credit.
package credit

import (
	"errors"
	"math"

	"github.com/xraph/accredit/types"
)

// Defaults for the accreditation policy.
const (
	DefaultAccuracyThreshold       = 0.70
	DefaultMinutesPerQuestion      = 4.8
	DefaultMinutesPerQuarterCredit = 15.0
)

// DefaultMaxPerYear is the yearly credit cap.
var DefaultMaxPerYear = types.Whole(24)

// Policy holds the accrual parameters.
type Policy struct {
	AccuracyThreshold       float64       `json:"accuracy_threshold"`
	MinutesPerQuestion      float64       `json:"minutes_per_question"`
	MinutesPerQuarterCredit float64       `json:"minutes_per_quarter_credit"`
	MaxPerYear              types.Credits `json:"max_per_year"`
}

// DefaultPolicy returns the standard accrual parameters.
func DefaultPolicy() Policy {
	return Policy{
		AccuracyThreshold:       DefaultAccuracyThreshold,
		MinutesPerQuestion:      DefaultMinutesPerQuestion,
		MinutesPerQuarterCredit: DefaultMinutesPerQuarterCredit,
		MaxPerYear:              DefaultMaxPerYear,
	}
}

// Validate rejects parameters that would make Compute meaningless.
func (p Policy) Validate() error {
	var errs []error
	if p.AccuracyThreshold < 0 || p.AccuracyThreshold > 1 {
		errs = append(errs, errors.New("credit: accuracy threshold must be within [0, 1]"))
	}
	if p.MinutesPerQuestion <= 0 {
		errs = append(errs, errors.New("credit: minutes per question must be positive"))
	}
	if p.MinutesPerQuarterCredit <= 0 {
		errs = append(errs, errors.New("credit: minutes per quarter credit must be positive"))
	}
	if !p.MaxPerYear.IsPositive() {
		errs = append(errs, errors.New("credit: yearly cap must be positive"))
	}
	return errors.Join(errs...)
}

// Accuracy returns correct/answered, or 0 when nothing was answered.
func Accuracy(answered, correct int) float64 {
	if answered <= 0 {
		return 0
	}
	return float64(correct) / float64(answered)
}

// MeetsThreshold reports whether the pair qualifies for credit.
func (p Policy) MeetsThreshold(answered, correct int) bool {
	return Accuracy(answered, correct) >= p.AccuracyThreshold
}

// Compute returns the year's credit total for the given counts.
//
// Below the accuracy threshold the prior total is kept. Otherwise the
// answered count is converted to minutes, rounded to the nearest quarter
// credit and capped. The result is never below prior.
func (p Policy) Compute(answered, correct int, prior types.Credits) types.Credits {
	if !p.MeetsThreshold(answered, correct) {
		return prior
	}

	minutes := float64(answered) * p.MinutesPerQuestion
	quarters := types.Quarters(int64(math.Round(minutes / p.MinutesPerQuarterCredit)))

	return quarters.Min(p.MaxPerYear).Max(prior)
}

// Outcome classifies a recomputation that produced no new credit.
type Outcome int

const (
	// OutcomeCredited means the total increased.
	OutcomeCredited Outcome = iota
	// OutcomeAccuracyLow means accuracy is below the threshold.
	OutcomeAccuracyLow
	// OutcomeLimitReached means the yearly cap has been hit.
	OutcomeLimitReached
	// OutcomeUnchanged means rounding produced the same total.
	OutcomeUnchanged
)

// Classify explains the change from prior to next for the given counts.
func (p Policy) Classify(answered, correct int, prior, next types.Credits) Outcome {
	switch {
	case next.GreaterThan(prior):
		return OutcomeCredited
	case !p.MeetsThreshold(answered, correct):
		return OutcomeAccuracyLow
	case next >= p.MaxPerYear:
		return OutcomeLimitReached
	default:
		return OutcomeUnchanged
	}
}
