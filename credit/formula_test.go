package credit

import (
	"testing"

	"github.com/xraph/accredit/types"
)

func TestCompute(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name     string
		answered int
		correct  int
		prior    types.Credits
		want     types.Credits
	}{
		{"nothing answered", 0, 0, 0, 0},
		{"one correct question", 1, 1, 0, 0},
		{"four questions round to a quarter", 4, 4, 0, types.Quarter},
		{"ninety six questions", 96, 96, 0, types.Quarters(31)},
		{"exactly at threshold", 10, 7, 0, types.Quarters(3)},
		{"below threshold keeps prior", 100, 69, types.Whole(2), types.Whole(2)},
		{"below threshold with no prior", 10, 6, 0, 0},
		{"capped", 1000, 1000, 0, types.Whole(24)},
		{"never below prior", 4, 4, types.Whole(1), types.Whole(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Compute(tt.answered, tt.correct, tt.prior)
			if got != tt.want {
				t.Errorf("Compute(%d, %d, %v) = %v, want %v", tt.answered, tt.correct, tt.prior, got, tt.want)
			}
		})
	}
}

func TestComputeStaysQuantizedAndBounded(t *testing.T) {
	p := DefaultPolicy()
	var prior types.Credits
	for n := 1; n <= 400; n++ {
		got := p.Compute(n, n, prior)
		if got.IsNegative() || got > p.MaxPerYear {
			t.Fatalf("n=%d: %v outside [0, %v]", n, got, p.MaxPerYear)
		}
		if got < prior {
			t.Fatalf("n=%d: total decreased from %v to %v", n, prior, got)
		}
		prior = got
	}
	if prior != p.MaxPerYear {
		t.Errorf("400 correct answers should reach the cap, got %v", prior)
	}
}

func TestClassify(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name              string
		answered, correct int
		prior, next       types.Credits
		want              Outcome
	}{
		{"credited", 4, 4, 0, types.Quarter, OutcomeCredited},
		{"accuracy low", 10, 5, types.Quarter, types.Quarter, OutcomeAccuracyLow},
		{"limit reached", 500, 500, types.Whole(24), types.Whole(24), OutcomeLimitReached},
		{"unchanged by rounding", 5, 5, types.Quarters(2), types.Quarters(2), OutcomeUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Classify(tt.answered, tt.correct, tt.prior, tt.next); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}

	bad := Policy{AccuracyThreshold: 1.5}
	if err := bad.Validate(); err == nil {
		t.Error("expected validation errors")
	}
}

func TestYearStatsRecompute(t *testing.T) {
	s := &YearStats{TotalAnswered: 96, TotalCorrect: 96}
	delta := s.Recompute(DefaultPolicy())
	if delta != types.Quarters(31) || s.CreditsEarned != types.Quarters(31) {
		t.Fatalf("delta=%v earned=%v", delta, s.CreditsEarned)
	}

	s.TotalAnswered++
	s.TotalCorrect++
	if delta := s.Recompute(DefaultPolicy()); delta != 0 {
		t.Errorf("97 answers should round to the same total, delta=%v", delta)
	}
}
