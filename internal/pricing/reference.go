package pricing

// UnitTable maps a length unit key to its area factor, in square feet per
// squared unit (e.g. "in" -> 1/144).
type UnitTable map[string]float64

// MaterialTable maps a material key to its print throughput in square feet
// per hour.
type MaterialTable map[string]float64

// DefaultUnits is used when the reference feed has not been loaded yet.
var DefaultUnits = UnitTable{
	"in": 1.0 / 144.0,
	"ft": 1,
	"mm": 1.0 / 92903.04,
	"cm": 1.0 / 929.0304,
	"m":  10.7639104,
}

// Fallback records that a computation degraded to a zero result instead of
// failing.
type Fallback string

const (
	FallbackNone            Fallback = ""
	FallbackUnknownUnit     Fallback = "unknown_unit"
	FallbackUnknownMaterial Fallback = "unknown_material"
)
