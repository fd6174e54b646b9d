package pricing

import (
	"fmt"
	"strings"
)

// ValidationError is returned when line-item input is rejected before any
// recomputation takes place.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

// ValidateDimensions rejects a partial dimension set. When any of width,
// height or unit is present, width, height, unit and material are all
// required. Negative sizes and quantities are rejected too.
func ValidateDimensions(d Dimensions, material string) error {
	if d.Quantity < 0 {
		return &ValidationError{Fields: []string{"quantity"}, Reason: "must not be negative"}
	}
	if !d.Any() {
		return nil
	}

	var missing []string
	if d.Width == nil {
		missing = append(missing, "width")
	}
	if d.Height == nil {
		missing = append(missing, "height")
	}
	if d.Unit == "" {
		missing = append(missing, "unit")
	}
	if material == "" {
		missing = append(missing, "material")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: "required with dimensions"}
	}

	var negative []string
	if *d.Width < 0 {
		negative = append(negative, "width")
	}
	if *d.Height < 0 {
		negative = append(negative, "height")
	}
	if len(negative) > 0 {
		return &ValidationError{Fields: negative, Reason: "must not be negative"}
	}
	return nil
}
