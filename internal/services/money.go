package services

import "github.com/shopspring/decimal"

// Amounts are stored as float64; arithmetic goes through decimal so that
// repeated merges and sums do not accumulate binary rounding noise.

func addMoney(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}

func subMoney(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).InexactFloat64()
}

// outstanding is max(owed - covered, 0)
func outstanding(owed, covered float64) float64 {
	d := decimal.NewFromFloat(owed).Sub(decimal.NewFromFloat(covered))
	if !d.IsPositive() {
		return 0
	}
	return d.InexactFloat64()
}

// moneySum accumulates amounts exactly
type moneySum struct {
	total decimal.Decimal
}

func (m *moneySum) Add(v float64) {
	m.total = m.total.Add(decimal.NewFromFloat(v))
}

func (m *moneySum) Float() float64 {
	return m.total.InexactFloat64()
}
