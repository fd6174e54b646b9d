package pricing

import "math"

// DefaultBleedInches is the production allowance added to every edge when
// computing material usage.
const DefaultBleedInches = 0.25

// Dimensions are the raw size inputs of a line item. Width and Height are nil
// when the user has not entered them.
type Dimensions struct {
	Width    *float64
	Height   *float64
	Unit     string
	Quantity float64
}

// Complete reports whether width, height and unit are all present.
func (d Dimensions) Complete() bool {
	return d.Width != nil && d.Height != nil && d.Unit != ""
}

// Any reports whether at least one of width, height or unit is present.
func (d Dimensions) Any() bool {
	return d.Width != nil || d.Height != nil || d.Unit != ""
}

// Measurement is the output of the dimension calculator.
type Measurement struct {
	SquareFeet    float64 // billable area of one piece
	MaterialUsage float64 // material consumed for all pieces, allowance included
	Measured      bool
	Fallback      Fallback
}

// Calculator converts dimensions into billable area and material usage.
type Calculator struct {
	Units       UnitTable
	BleedInches float64
}

// NewCalculator returns a Calculator with the default bleed allowance.
func NewCalculator(units UnitTable) Calculator {
	return Calculator{Units: units, BleedInches: DefaultBleedInches}
}

// Measure computes square footage and material usage. Incomplete dimensions
// or an unknown unit yield a zero measurement.
func (c Calculator) Measure(d Dimensions) Measurement {
	if !d.Complete() {
		return Measurement{}
	}
	factor, ok := c.Units[d.Unit]
	if !ok || factor <= 0 {
		return Measurement{Fallback: FallbackUnknownUnit}
	}

	w, h := *d.Width, *d.Height
	if w < 0 || h < 0 || !finite(w) || !finite(h) {
		return Measurement{}
	}
	qty := d.Quantity
	if qty < 0 || !finite(qty) {
		qty = 0
	}

	feetPerUnit := math.Sqrt(factor)
	bleedFt := c.BleedInches / 12
	usage := (w*feetPerUnit + 2*bleedFt) * (h*feetPerUnit + 2*bleedFt) * qty

	return Measurement{
		SquareFeet:    Round2(w * h * factor),
		MaterialUsage: Round2(usage),
		Measured:      true,
	}
}

// QuantityOrDefault returns *q, or 1 when q is absent or not a finite number.
func QuantityOrDefault(q *float64) float64 {
	if q == nil || !finite(*q) {
		return 1
	}
	return *q
}
