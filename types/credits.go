package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Credits is an amount of continuing-education credit stored as an integer
// count of quarter-credits, so every value is a multiple of 0.25 by
// construction. 7.75 credits is Credits(31).
type Credits int64

// Quarter is the smallest representable credit amount (0.25).
const Quarter Credits = 1

// quartersPerCredit is the number of quarter units in one whole credit.
const quartersPerCredit = 4

// ErrNotQuarter is returned when a decimal amount is not a multiple of 0.25.
var ErrNotQuarter = errors.New("types: credit amount must be a multiple of 0.25")

// ErrOutOfRange is returned when a decimal amount is not finite or has no
// exact quarter-credit representation.
var ErrOutOfRange = errors.New("types: credit amount out of range")

// maxQuarters bounds parsed amounts to the integers a float64 holds exactly.
const maxQuarters = 1 << 53

// Quarters returns n quarter-credits.
func Quarters(n int64) Credits { return Credits(n) }

// Whole returns n whole credits.
func Whole(n int64) Credits { return Credits(n * quartersPerCredit) }

// ParseCredits converts a decimal credit amount into Credits. It rejects
// non-finite or out-of-range values and values that are not an exact
// multiple of 0.25.
func ParseCredits(f float64) (Credits, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", ErrOutOfRange, f)
	}

	q := f * quartersPerCredit
	if math.Abs(q) > maxQuarters {
		return 0, fmt.Errorf("%w: got %v", ErrOutOfRange, f)
	}

	r := math.Round(q)
	if math.Abs(q-r) > 1e-9 {
		return 0, fmt.Errorf("%w: got %v", ErrNotQuarter, f)
	}

	return Credits(r), nil
}

// Quarters returns the raw quarter-credit count.
func (c Credits) Quarters() int64 { return int64(c) }

// Float64 returns the decimal value.
func (c Credits) Float64() float64 { return float64(c) / quartersPerCredit }

// Add returns c + other.
func (c Credits) Add(other Credits) Credits { return c + other }

// Sub returns c - other. The result may be negative.
func (c Credits) Sub(other Credits) Credits { return c - other }

// IsZero returns true if the amount is zero.
func (c Credits) IsZero() bool { return c == 0 }

// IsPositive returns true if the amount is greater than zero.
func (c Credits) IsPositive() bool { return c > 0 }

// IsNegative returns true if the amount is less than zero.
func (c Credits) IsNegative() bool { return c < 0 }

// LessThan returns true if c < other.
func (c Credits) LessThan(other Credits) bool { return c < other }

// GreaterThan returns true if c > other.
func (c Credits) GreaterThan(other Credits) bool { return c > other }

// Min returns the smaller of c and other.
func (c Credits) Min(other Credits) Credits {
	if c < other {
		return c
	}
	return other
}

// Max returns the larger of c and other.
func (c Credits) Max(other Credits) Credits {
	if c > other {
		return c
	}
	return other
}

// String formats the amount with two decimals, e.g. "7.75" or "-0.25".
func (c Credits) String() string {
	n := int64(c)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	return fmt.Sprintf("%s%d.%02d", sign, n/quartersPerCredit, (n%quartersPerCredit)*25)
}

// MarshalJSON encodes the amount as a JSON number.
func (c Credits) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON decodes a JSON number, rejecting non-quarter amounts.
func (c *Credits) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("types: invalid credit amount %s: %w", data, err)
	}

	parsed, err := ParseCredits(f)
	if err != nil {
		return err
	}

	*c = parsed
	return nil
}

// SumCredits adds up values.
func SumCredits(values ...Credits) Credits {
	var total Credits
	for _, v := range values {
		total += v
	}
	return total
}
