package pricing

import "github.com/shopspring/decimal"

// DiscountMode tells which representation of the document discount the user
// edited last. That representation is authoritative on every recompute.
type DiscountMode string

const (
	DiscountByPercent DiscountMode = "percent"
	DiscountByAmount  DiscountMode = "amount"
)

// Valid reports whether m is a known mode.
func (m DiscountMode) Valid() bool {
	return m == DiscountByPercent || m == DiscountByAmount
}

// Discount is the document-level discount as entered.
type Discount struct {
	Mode    DiscountMode
	Amount  float64
	Percent float64
}

// Totals are the document-level figures derived from its line items.
type Totals struct {
	Subtotal        float64 `json:"subtotal"`
	DiscountAmount  float64 `json:"discount_amount"`
	DiscountPercent float64 `json:"discount_percent"`
	GrandTotal      float64 `json:"grand_total"`
	TotalHours      float64 `json:"total_hours"`
}

// Diff returns the names of the fields that differ between t and other.
func (t Totals) Diff(other Totals) []string {
	var fields []string
	if Round2(t.Subtotal) != Round2(other.Subtotal) {
		fields = append(fields, "subtotal")
	}
	if Round2(t.DiscountAmount) != Round2(other.DiscountAmount) {
		fields = append(fields, "discount_amount")
	}
	if Round2(t.DiscountPercent) != Round2(other.DiscountPercent) {
		fields = append(fields, "discount_percent")
	}
	if Round2(t.GrandTotal) != Round2(other.GrandTotal) {
		fields = append(fields, "grand_total")
	}
	if Round2(t.TotalHours) != Round2(other.TotalHours) {
		fields = append(fields, "total_hours")
	}
	return fields
}

// Equal reports whether t and other match field by field.
func (t Totals) Equal(other Totals) bool {
	return len(t.Diff(other)) == 0
}

// Discount returns the discount of t in the given mode.
func (t Totals) Discount(mode DiscountMode) Discount {
	return Discount{Mode: mode, Amount: t.DiscountAmount, Percent: t.DiscountPercent}
}

// Aggregate rolls the lines and the document discount up into totals. It is a
// pure function of its arguments.
func Aggregate(lines []Line, d Discount) Totals {
	sub := decimal.Zero
	hours := decimal.Zero
	for _, l := range lines {
		sub = sub.Add(decimal.NewFromFloat(Round2(l.Amount)))
		if finite(l.PrintHours) {
			hours = hours.Add(decimal.NewFromFloat(l.PrintHours))
		}
	}
	subtotal := sub.Round(2).InexactFloat64()

	var discountAmount, discountPercent float64
	switch d.Mode {
	case DiscountByAmount:
		discountAmount = Clamp(Round2(d.Amount), 0, subtotal)
		if subtotal > 0 {
			discountPercent = ClampDiscountPercent(discountAmount / subtotal * 100)
		}
	default:
		discountPercent = ClampDiscountPercent(d.Percent)
		discountAmount = Clamp(Round2(subtotal*discountPercent/100), 0, subtotal)
	}

	grand := decimal.NewFromFloat(subtotal).Sub(decimal.NewFromFloat(discountAmount))
	return Totals{
		Subtotal:        subtotal,
		DiscountAmount:  discountAmount,
		DiscountPercent: discountPercent,
		GrandTotal:      grand.Round(2).InexactFloat64(),
		TotalHours:      hours.Round(2).InexactFloat64(),
	}
}
