package domain

import (
	"testing"

	"pgregory.net/rapid"
)

// Money round-trips between cents and the dollar strings used on the
// command wire: cents → FormatCents → ParseCents must be the identity.

func TestProperty_MoneyFormatParseRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cents := rapid.Int64Range(0, 99_999_999_99).Draw(t, "cents")

		s := FormatCents(cents)
		got, err := ParseCents(s)
		if err != nil {
			t.Fatalf("ParseCents(%q) returned error for value formatted from %d cents: %v", s, cents, err)
		}
		if got != cents {
			t.Fatalf("round-trip failed: cents=%d → %q → cents=%d", cents, s, got)
		}
	})
}

func TestProperty_CentsDollarsRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cents := rapid.Int64Range(-99_999_999_99, 99_999_999_99).Draw(t, "cents")

		dollars := CentsToDollars(cents)
		gotCents, err := DollarsToCents(dollars)
		if err != nil {
			t.Fatalf("DollarsToCents(%v) returned error for value derived from %d cents: %v", dollars, cents, err)
		}
		if gotCents != cents {
			t.Fatalf("round-trip failed: cents=%d → dollars=%v → cents=%d", cents, dollars, gotCents)
		}
	})
}
