// Package money provides a fixed-point monetary amount stored in minor
// units (cents). Balances and transfer amounts never touch floating point.
package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a monetary value in minor units. 10.50 is stored as 1050.
type Amount int64

// ErrInvalid indicates a string that cannot be parsed as a monetary amount.
var ErrInvalid = errors.New("invalid amount")

// FromMinor builds an Amount from a raw minor-unit count.
func FromMinor(v int64) Amount {
	return Amount(v)
}

// Parse converts a decimal string such as "40", "40.5" or "-40.00" into an
// Amount. More than two decimal places are rejected rather than rounded.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	neg := false
	if len(s) > 0 {
		switch s[0] {
		case '-':
			neg = true
			s = s[1:]
		case '+':
			s = s[1:]
		}
	}
	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return 0, ErrInvalid
	}
	if hasDot && fracPart == "" {
		return 0, fmt.Errorf("%w: trailing decimal point in %q", ErrInvalid, s)
	}
	if intPart == "" {
		intPart = "0"
	}
	whole, err := strconv.ParseUint(intPart, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	if whole > (math.MaxInt64-99)/100 {
		return 0, fmt.Errorf("%w: %q exceeds the representable range", ErrInvalid, s)
	}
	if len(fracPart) > 2 {
		return 0, fmt.Errorf("%w: more than two decimal places in %q", ErrInvalid, s)
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}
	frac, err := strconv.ParseUint(fracPart, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	minor := int64(whole)*100 + int64(frac)
	if neg {
		minor = -minor
	}
	return Amount(minor), nil
}

// String renders the amount with exactly two decimal places.
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON encodes the amount as a plain JSON number with two decimal
// places, e.g. 40.00, so API clients never see minor units.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
