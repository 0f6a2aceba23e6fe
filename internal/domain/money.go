package domain

import (
	"fmt"
	"math"
	"strconv"
)

// All monetary values are int64 cents internally. Commands carry dollar
// strings; conversion happens once at the dispatch boundary so the
// engines only ever do exact integer arithmetic.

// DollarsToCents converts a float64 dollar amount to int64 cents. It
// rejects inputs with more than 2 decimal places. Uses math.Round after
// scaling to absorb floating-point representation artifacts.
func DollarsToCents(f float64) (int64, error) {
	scaled := math.Round(f * 1000)
	if math.Mod(scaled, 10) != 0 {
		return 0, fmt.Errorf("monetary values must have at most 2 decimal places")
	}
	return int64(math.Round(f * 100)), nil
}

// CentsToDollars converts an int64 cents value to a float64 dollar amount.
func CentsToDollars(c int64) float64 {
	return float64(c) / 100.0
}

// ParseCents parses a dollar string from a command line ("63511.53")
// into cents. Negative amounts are rejected; commands never carry them.
func ParseCents(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid dollar amount %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("dollar amount must not be negative, got %q", s)
	}
	return DollarsToCents(f)
}

// FormatCents renders cents as a dollar string with two decimal places,
// the form used in every textual response.
func FormatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
