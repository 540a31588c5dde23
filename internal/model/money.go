package model

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.MustParse("es-CL"))

// FormatMoney форматирует сумму в виде "$50.000" или "$1.234,50".
func FormatMoney(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	if amount.Equal(amount.Truncate(0)) {
		return sign + "$" + moneyPrinter.Sprintf("%d", amount.IntPart())
	}
	f, _ := amount.Round(2).Float64()
	return sign + "$" + moneyPrinter.Sprintf("%.2f", f)
}
