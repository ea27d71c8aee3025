package types

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func TestCreditsConstructors(t *testing.T) {
	tests := []struct {
		name    string
		credits Credits
		quarter int64
		display string
	}{
		{"Quarter", Quarter, 1, "0.25"},
		{"Quarters", Quarters(31), 31, "7.75"},
		{"Whole", Whole(24), 96, "24.00"},
		{"Zero", Credits(0), 0, "0.00"},
		{"Half", Quarters(2), 2, "0.50"},
		{"Negative", Quarters(-3), -3, "-0.75"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.credits.Quarters() != tt.quarter {
				t.Errorf("Quarters: got %d, want %d", tt.credits.Quarters(), tt.quarter)
			}
			if tt.credits.String() != tt.display {
				t.Errorf("String: got %s, want %s", tt.credits.String(), tt.display)
			}
		})
	}
}

func TestParseCredits(t *testing.T) {
	tests := []struct {
		in      float64
		want    Credits
		wantErr error
	}{
		{0.25, Quarter, nil},
		{1, Whole(1), nil},
		{7.75, Quarters(31), nil},
		{24, Whole(24), nil},
		{0.1, 0, ErrNotQuarter},
		{1.3, 0, ErrNotQuarter},
		{-0.5, Quarters(-2), nil},
		{1 << 50, Quarters(1 << 52), nil},
		{1e300, 0, ErrOutOfRange},
		{3e18, 0, ErrOutOfRange},
		{-1e300, 0, ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(formatFloat(tt.in), func(t *testing.T) {
			got, err := ParseCredits(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseCredits(%v): expected %v, got %v", tt.in, tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCredits(%v): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseCredits(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCreditsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := ParseCredits(f); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("ParseCredits(%v): expected ErrOutOfRange, got %v", f, err)
		}
	}
}

func TestCreditsUnmarshalOutOfRange(t *testing.T) {
	var c Credits
	if err := json.Unmarshal([]byte("3e18"), &c); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Unmarshal(3e18): expected ErrOutOfRange, got %v", err)
	}
	if c != 0 {
		t.Errorf("value = %v after rejected decode", c)
	}
}

func formatFloat(f float64) string {
	b, _ := json.Marshal(f) //nolint:errcheck // finite test inputs
	return string(b)
}

func TestCreditsArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Credits
		expected Credits
	}{
		{"Add", func() Credits { return Whole(1).Add(Quarter) }, Quarters(5)},
		{"Sub", func() Credits { return Whole(2).Sub(Quarters(3)) }, Quarters(5)},
		{"Sub below zero", func() Credits { return Quarter.Sub(Whole(1)) }, Quarters(-3)},
		{"Min", func() Credits { return Whole(30).Min(Whole(24)) }, Whole(24)},
		{"Max", func() Credits { return Quarter.Max(Whole(1)) }, Whole(1)},
		{"Sum", func() Credits { return SumCredits(Quarter, Quarter, Whole(1)) }, Quarters(6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); got != tt.expected {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCreditsPredicates(t *testing.T) {
	tests := []struct {
		name       string
		credits    Credits
		isZero     bool
		isPositive bool
		isNegative bool
	}{
		{"Zero", 0, true, false, false},
		{"Positive", Quarter, false, true, false},
		{"Negative", -Quarter, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.credits.IsZero(); got != tt.isZero {
				t.Errorf("IsZero: got %v, want %v", got, tt.isZero)
			}
			if got := tt.credits.IsPositive(); got != tt.isPositive {
				t.Errorf("IsPositive: got %v, want %v", got, tt.isPositive)
			}
			if got := tt.credits.IsNegative(); got != tt.isNegative {
				t.Errorf("IsNegative: got %v, want %v", got, tt.isNegative)
			}
		})
	}
}

func TestCreditsJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Amount Credits `json:"amount"`
	}{Quarters(31)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"amount":7.75}` {
		t.Errorf("Marshal: got %s", data)
	}

	var in struct {
		Amount Credits `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount":2.5}`), &in); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if in.Amount != Quarters(10) {
		t.Errorf("Unmarshal: got %v, want 2.50", in.Amount)
	}

	if err := json.Unmarshal([]byte(`{"amount":0.3}`), &in); !errors.Is(err, ErrNotQuarter) {
		t.Errorf("Unmarshal 0.3: expected ErrNotQuarter, got %v", err)
	}
}

func TestEntityTouchAt(t *testing.T) {
	var e Entity
	at := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	e.TouchAt(at)
	if !e.CreatedAt.Equal(at) || !e.UpdatedAt.Equal(at) {
		t.Fatalf("TouchAt on zero entity: %+v", e)
	}

	later := at.Add(time.Hour)
	e.TouchAt(later)
	if !e.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt moved: %v", e.CreatedAt)
	}
	if !e.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt: got %v, want %v", e.UpdatedAt, later)
	}
}
