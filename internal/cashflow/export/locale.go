package export

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brazil = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders an amount the way Brazilian reports print currency,
// e.g. "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	return brazil.Sprintf("R$ %.2f", d.Round(2).InexactFloat64())
}
