package window

import (
	"fmt"
	"sort"
	"time"
)

// Resolve returns the window containing now. Windows are examined in start
// date order with ties broken by id, so the result is deterministic even if
// overlapping windows were stored.
func Resolve(windows []*Window, now time.Time) (*Window, bool) {
	for _, w := range sorted(windows) {
		if w.Contains(now) {
			return w, true
		}
	}
	return nil, false
}

// ValidateNonOverlap returns an error naming the first pair of windows that
// share an instant. Windows with the same id are treated as one.
func ValidateNonOverlap(windows []*Window) error {
	ordered := sorted(windows)
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if prev.ID == cur.ID {
			continue
		}
		if prev.Overlaps(cur) {
			return fmt.Errorf("window: %s overlaps %s", prev.ID, cur.ID)
		}
	}
	return nil
}

// Upsert returns windows with w replacing any window that has the same id.
func Upsert(windows []*Window, w *Window) []*Window {
	out := make([]*Window, 0, len(windows)+1)
	for _, existing := range windows {
		if existing.ID != w.ID {
			out = append(out, existing)
		}
	}
	return append(out, w)
}

func sorted(windows []*Window) []*Window {
	out := make([]*Window, 0, len(windows))
	for _, w := range windows {
		if w != nil {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}
