package service

import (
	"github.com/shopspring/decimal"
)

var maxMargin = decimal.RequireFromString("0.99")

// Pricer turns supplier cost into a storefront selling price using a margin on the selling price
type Pricer struct {
	margin decimal.Decimal
}

// NewPricer creates a pricer for a margin given in percent; the margin is clamped to [0, 99%]
func NewPricer(marginPercent float64) Pricer {
	m := decimal.NewFromFloat(marginPercent).Div(decimal.NewFromInt(100))
	if m.IsNegative() {
		m = decimal.Zero
	}
	if m.GreaterThan(maxMargin) {
		m = maxMargin
	}
	return Pricer{margin: m}
}

// Margin returns the effective margin as a fraction
func (p Pricer) Margin() decimal.Decimal {
	return p.margin
}

// Price returns cost / (1 - margin), rounded to cents
func (p Pricer) Price(cost decimal.Decimal) decimal.Decimal {
	return cost.Div(decimal.NewFromInt(1).Sub(p.margin)).Round(2)
}

// PriceString formats Price with exactly two decimals, as the storefront expects
func (p Pricer) PriceString(cost decimal.Decimal) string {
	return p.Price(cost).StringFixed(2)
}
