package checkout

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatINR renders an amount the way the storefront displays prices:
// Indian digit grouping, at most two fraction digits, no trailing zeros.
//
//	FormatINR(123456.5) == "₹1,23,456.5"
//	FormatINR(100)      == "₹100"
func FormatINR(amount decimal.Decimal) string {
	amount = amount.Round(2)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	s := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")

	out := sign + "₹" + groupIndian(intPart)
	if frac != "" {
		out += "." + frac
	}
	return out
}

// groupIndian inserts separators after the last three digits and then
// after every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	groups = append([]string{head}, groups...)
	return strings.Join(groups, ",") + "," + tail
}
