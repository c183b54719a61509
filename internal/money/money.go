// Package money implements fixed-point monetary arithmetic in integer
// minor currency units. Totals are computed entirely in minor units and
// converted to 2-decimal strings only at the system boundary.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a monetary value in minor units (e.g. cents).
type Amount int64

// FromMajor converts whole currency units to an Amount.
func FromMajor(v int64) Amount { return Amount(v * 100) }

// ParseDecimal parses a decimal string like "150", "150.5" or "150.00"
// into minor units. More than two fraction digits is rejected.
func ParseDecimal(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than 2 fraction digits", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	v := w*100 + f
	if neg {
		v = -v
	}
	return Amount(v), nil
}

// MulQty multiplies by an item quantity.
func (a Amount) MulQty(qty int) Amount { return a * Amount(qty) }

// MulFloat scales the amount by a float factor, rounding half up.
// Used for distance-based fees (rate per km * fractional kilometers).
func (a Amount) MulFloat(f float64) Amount {
	return Amount(math.Floor(float64(a)*f + 0.5))
}

// Half returns a/2 rounded half up.
func (a Amount) Half() Amount {
	if a >= 0 {
		return (a + 1) / 2
	}
	return -((-a) / 2)
}

// String renders the amount with exactly two decimals.
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON emits the boundary decimal form, e.g. "625.00".
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare number.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := ParseDecimal(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
