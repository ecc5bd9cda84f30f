package format

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	priceDecimals   = 6
	maxPlainZeros   = 2
	significantKept = 3
)

var subscriptDigits = []rune("₀₁₂₃₄₅₆₇₈₉")

// Price renders a USD price. Sub-unit prices with more than two leading zeros
// after the decimal point collapse the zero run into a subscript count,
// e.g. 0.0000123 -> $0.0₄123.
func Price(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NA
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return NA
	}
	if d.IsZero() {
		return "$0"
	}
	if d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return "$" + d.Truncate(priceDecimals).StringFixed(priceDecimals)
	}

	frac := strings.TrimPrefix(d.String(), "0.")
	zeros := len(frac) - len(strings.TrimLeft(frac, "0"))
	if zeros <= maxPlainZeros {
		return "$" + d.Truncate(priceDecimals).StringFixed(priceDecimals)
	}

	digits := frac[zeros:]
	if len(digits) > significantKept {
		digits = digits[:significantKept]
	}
	digits = strings.TrimRight(digits, "0")
	return "$0.0" + subscript(zeros) + digits
}

func subscript(n int) string {
	var b strings.Builder
	for _, r := range strconv.Itoa(n) {
		b.WriteRune(subscriptDigits[r-'0'])
	}
	return b.String()
}
