package answer

import "time"

// Transition is the effect of submitting an answer against the prior record.
type Transition int

const (
	// Created means no prior record existed; one was written.
	Created Transition = iota
	// Corrected means an incorrect record flipped to correct.
	Corrected
	// AlreadyCorrect means the prior record was correct; nothing changes.
	AlreadyCorrect
	// StillIncorrect means an incorrect record was answered incorrectly again.
	StillIncorrect
)

// String returns the transition name.
func (t Transition) String() string {
	switch t {
	case Created:
		return "created"
	case Corrected:
		return "corrected"
	case AlreadyCorrect:
		return "already_correct"
	case StillIncorrect:
		return "still_incorrect"
	default:
		return "unknown"
	}
}

// Counts reports whether the transition changes any counter.
func (t Transition) Counts() bool {
	return t == Created || t == Corrected
}

// Submission is an answer being recorded.
type Submission struct {
	UserID       string
	YearID       string
	QuestionHash string
	Category     string
	IsCorrect    bool
}

// Apply decides the effect of s against prior (nil when absent) and returns
// the record to persist, or nil when nothing is written. IsCorrect never
// goes from true to false.
func Apply(prior *Record, s Submission, now time.Time) (*Record, Transition) {
	if prior == nil {
		return &Record{
			UserID:       s.UserID,
			YearID:       s.YearID,
			QuestionHash: s.QuestionHash,
			Category:     s.Category,
			IsCorrect:    s.IsCorrect,
			AnsweredAt:   now.UTC(),
		}, Created
	}

	if prior.IsCorrect {
		return nil, AlreadyCorrect
	}
	if !s.IsCorrect {
		return nil, StillIncorrect
	}

	next := *prior
	next.IsCorrect = true
	corrected := now.UTC()
	next.CorrectedAt = &corrected
	if next.Category == "" {
		next.Category = s.Category
	}
	return &next, Corrected
}
