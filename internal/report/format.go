package report

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// FormatMoney formats an amount with comma separators and two decimals.
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return humanize.CommafWithDigits(math.Round(v*100)/100, 2)
}

// FormatSigned is FormatMoney with an explicit sign for non-negative values.
func FormatSigned(v float64) string {
	s := FormatMoney(v)
	if v >= 0 && s != "-" {
		return "+" + s
	}
	return s
}

// FormatPct formats a ratio as a percentage with one decimal, e.g. 0.4567 as
// "45.7%".
func FormatPct(r float64) string {
	return fmt.Sprintf("%.1f%%", r*100)
}

// FormatRatio formats a ratio such as the profit factor, or "-" when it is
// undefined (reported as zero).
func FormatRatio(r float64) string {
	if r == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", r)
}

// FormatCount formats a count with comma separators.
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// FormatPrice formats a price with up to eight significant decimals, enough
// for crypto quotes.
func FormatPrice(p float64) string {
	if p == 0 {
		return "-"
	}
	return humanize.CommafWithDigits(p, 8)
}
