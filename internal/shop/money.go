package shop

import (
	"fmt"
	"math"
)

// FormatCents renders integer cents as a dollar string, e.g. 2499 -> "$24.99".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// DollarsToCents converts a decimal dollar amount (as the model supplies it)
// to integer cents, rounding half away from zero.
func DollarsToCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}
