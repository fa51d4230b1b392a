// Package money holds peso amounts as decimals and converts them to the
// centavo integers the payment processor expects.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const PHP = "PHP"

var hundred = decimal.NewFromInt(100)

// Centavos rounds half away from zero to two places before converting.
func Centavos(d decimal.Decimal) int64 {
	return d.Round(2).Mul(hundred).IntPart()
}

func FromCentavos(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func Format(d decimal.Decimal, currency string) string {
	switch currency {
	case PHP, "":
		return "₱" + d.StringFixed(2)
	case "USD":
		return "$" + d.StringFixed(2)
	default:
		return fmt.Sprintf("%s %s", d.StringFixed(2), currency)
	}
}
