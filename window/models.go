// Package window models accreditation windows, the externally configured
// date ranges ("2025-2026") that credit earning is bucketed into.
package window

import (
	"fmt"
	"time"
)

// Window is one accreditation year. It contains instants in [StartDate, EndDate).
type Window struct {
	ID        string    `json:"id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Contains reports whether t falls within the window.
func (w *Window) Contains(t time.Time) bool {
	return !t.Before(w.StartDate) && t.Before(w.EndDate)
}

// Overlaps reports whether w and other share any instant.
func (w *Window) Overlaps(other *Window) bool {
	return w.StartDate.Before(other.EndDate) && other.StartDate.Before(w.EndDate)
}

// Validate checks that the window is well formed.
func (w *Window) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("window: id is required")
	}
	if w.StartDate.IsZero() || w.EndDate.IsZero() {
		return fmt.Errorf("window %s: start and end dates are required", w.ID)
	}
	if !w.StartDate.Before(w.EndDate) {
		return fmt.Errorf("window %s: start date must be before end date", w.ID)
	}
	return nil
}
