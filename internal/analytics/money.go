package analytics

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatUSD renders an amount as US dollars, e.g. "$1,234.50".
func FormatUSD(amount decimal.Decimal) string {
	return FormatMoney(amount, money.USD)
}

// FormatMoney renders an amount in the given ISO currency. Amounts are
// rounded to the currency's minor unit.
func FormatMoney(amount decimal.Decimal, currency string) string {
	m := money.New(0, currency)
	minor := amount.Shift(int32(m.Currency().Fraction)).Round(0)
	return money.New(minor.IntPart(), currency).Display()
}
