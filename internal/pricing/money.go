// Package pricing computes line-item prices, production time and document
// totals for quotes and orders.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// MaxDiscountPercent is the largest percentage a NUMERIC(4,2) column can hold.
const MaxDiscountPercent = 99.99

// Round2 rounds v half-up to two decimal places.
// Non-finite input yields 0.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampDiscountPercent rounds p and limits it to [0, MaxDiscountPercent].
func ClampDiscountPercent(p float64) float64 {
	return Clamp(Round2(p), 0, MaxDiscountPercent)
}

// LineAmount returns round2(unitPrice * quantity * (1 - discountPercent/100)).
func LineAmount(unitPrice, quantity, discountPercent float64) float64 {
	if !finite(unitPrice) || !finite(quantity) {
		return 0
	}
	d := ClampDiscountPercent(discountPercent)
	gross := decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromFloat(quantity))
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(d).Div(decimal.NewFromInt(100)))
	return gross.Mul(factor).Round(2).InexactFloat64()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
