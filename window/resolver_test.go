package window

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func year(id string, start int) *Window {
	return &Window{ID: id, StartDate: date(start, time.July, 1), EndDate: date(start+1, time.July, 1)}
}

func TestResolve(t *testing.T) {
	windows := []*Window{year("2025-2026", 2025), year("2024-2025", 2024)}

	tests := []struct {
		name   string
		now    time.Time
		wantID string
		found  bool
	}{
		{"inside current", date(2025, time.November, 3), "2025-2026", true},
		{"inside previous", date(2025, time.January, 3), "2024-2025", true},
		{"start is inclusive", date(2025, time.July, 1), "2025-2026", true},
		{"end is exclusive", date(2026, time.July, 1), "", false},
		{"before all", date(2020, time.January, 1), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, ok := Resolve(windows, tt.now)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if ok && w.ID != tt.wantID {
				t.Errorf("id = %s, want %s", w.ID, tt.wantID)
			}
		})
	}
}

func TestResolveEmpty(t *testing.T) {
	if _, ok := Resolve(nil, date(2025, time.August, 1)); ok {
		t.Error("expected no window from empty configuration")
	}
}

func TestResolveOverlapIsDeterministic(t *testing.T) {
	a := &Window{ID: "b-late", StartDate: date(2025, time.March, 1), EndDate: date(2026, time.March, 1)}
	b := &Window{ID: "a-early", StartDate: date(2025, time.January, 1), EndDate: date(2026, time.January, 1)}

	for _, order := range [][]*Window{{a, b}, {b, a}} {
		w, ok := Resolve(order, date(2025, time.June, 1))
		if !ok || w.ID != "a-early" {
			t.Errorf("Resolve = %v, want a-early regardless of storage order", w)
		}
	}
}

func TestValidateNonOverlap(t *testing.T) {
	ok := []*Window{year("2024-2025", 2024), year("2025-2026", 2025)}
	if err := ValidateNonOverlap(ok); err != nil {
		t.Fatalf("adjacent windows rejected: %v", err)
	}

	bad := append(ok, &Window{ID: "x", StartDate: date(2025, time.December, 1), EndDate: date(2026, time.February, 1)})
	if err := ValidateNonOverlap(bad); err == nil {
		t.Error("expected overlap error")
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	windows := []*Window{year("2025-2026", 2025)}
	replacement := &Window{ID: "2025-2026", StartDate: date(2025, time.August, 1), EndDate: date(2026, time.August, 1)}

	out := Upsert(windows, replacement)
	if len(out) != 1 || out[0] != replacement {
		t.Errorf("Upsert = %v", out)
	}
}

func TestWindowValidate(t *testing.T) {
	if err := (&Window{ID: "x", StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 1)}).Validate(); err == nil {
		t.Error("empty range accepted")
	}
	if err := year("2025-2026", 2025).Validate(); err != nil {
		t.Errorf("valid window rejected: %v", err)
	}
}
