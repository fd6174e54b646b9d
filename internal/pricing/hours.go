package pricing

// EstimateHours returns the print time for quantity pieces of squareFeet each.
// A material without a positive throughput entry yields 0 hours.
func EstimateHours(squareFeet, quantity float64, material string, rates MaterialTable) (float64, Fallback) {
	throughput, ok := rates[material]
	if !ok || throughput <= 0 {
		return 0, FallbackUnknownMaterial
	}
	if squareFeet <= 0 || quantity <= 0 {
		return 0, FallbackNone
	}
	return Round2(squareFeet * quantity / throughput), FallbackNone
}
