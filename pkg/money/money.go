// Package money provides fixed-precision two-decimal currency arithmetic.
// Amounts are held as int64 minor units (paise) so that repeated addition
// and quantity multiplication never accumulate floating-point drift.
package money

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is a monetary amount in minor units (1/100 of the major unit).
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// FromMinor constructs a Money from an amount already in minor units.
func FromMinor(minor int64) Money {
	return Money(minor)
}

// Parse converts a decimal string such as "500", "500.5" or "500.00" into
// a Money. At most two fraction digits are accepted; a third digit is a
// precision the wire format cannot carry and is rejected rather than
// rounded silently.
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse money: empty string")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("parse money %q: no digits", s)
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("parse money %q: more than two fraction digits", s)
	}
	// ParseInt alone is too permissive here: it would accept a sign inside
	// either part, turning "5.-5" into 4.95.
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("parse money %q: not a decimal number", s)
	}
	// Right-pad the fraction to exactly two digits ("5" means 50 minor units).
	frac += strings.Repeat("0", 2-len(frac))

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	var f int64
	if frac != "00" {
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse money %q: %w", s, err)
		}
	}

	m := Money(w*100 + f)
	if neg {
		m = -m
	}
	return m, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustParse is Parse that panics on error. Intended for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Minor returns the amount in minor units.
func (m Money) Minor() int64 {
	return int64(m)
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return m + other
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return m - other
}

// Mul returns the amount multiplied by an integer quantity.
func (m Money) Mul(qty int) Money {
	return m * Money(qty)
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m == 0
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m < 0
}

// String formats the amount with exactly two fraction digits, e.g. "1099.00".
func (m Money) String() string {
	minor := int64(m)
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// MarshalJSON encodes the amount as a JSON number with two fraction digits
// ("1099.00"), matching what the storefront backend expects for totals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts both JSON numbers (500, 500.5) and decimal strings
// ("500.00"); the cart service has historically emitted either.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
