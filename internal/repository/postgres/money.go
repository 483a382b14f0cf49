package postgres

import (
	"fmt"
	"strconv"
	"strings"
)

// Amounts are stored as NUMERIC(20,2) and carried in the domain as integer
// cents. Parsing works on the decimal text directly; going through float64
// would lose precision on large amounts.
func numericStringToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}

	// Half-up rounding on the third fractional digit. The column scale is 2,
	// so anything longer only shows up in hand-written fixtures.
	roundUp := false
	switch {
	case len(frac) == 0:
		frac = "00"
	case len(frac) == 1:
		frac += "0"
	case len(frac) > 2:
		roundUp = frac[2] >= '5' && frac[2] <= '9'
		frac = frac[:2]
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}

	cents := w*100 + f
	if roundUp {
		cents++
	}
	if neg {
		cents = -cents
	}
	return cents, nil
}

func centsToNumericString(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
