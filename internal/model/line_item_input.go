package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FlexNumber is a number field that tolerates junk. A JSON number or a
// numeric string sets Valid; null, an empty string or any other value leaves
// it unset instead of failing the whole request.
type FlexNumber struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	*n = FlexNumber{}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n.Value, n.Valid = f, true
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n FlexNumber) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Ptr returns the value, or nil when unset.
func (n FlexNumber) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// LineItemInput is the request payload for a new line item.
type LineItemInput struct {
	Description     string     `json:"description"`
	Quantity        FlexNumber `json:"quantity"`
	Width           *float64   `json:"width"`
	Height          *float64   `json:"height"`
	Unit            string     `json:"unit"`
	Material        string     `json:"material"`
	PricePerArea    float64    `json:"price_per_area"`
	UnitPrice       float64    `json:"unit_price"`
	DiscountPercent float64    `json:"discount_percent"`
	DisplayOrder    int        `json:"display_order"`
}

// LineItemEdit is an edit of an existing line item. Field is the field the
// user changed and Value its new value, decoded according to Field. Also
// carries other inputs saved in the same edit, e.g. the rest of a dimension
// set; when both prices change, Field decides which one leads.
type LineItemEdit struct {
	Field string                     `json:"field"`
	Value json.RawMessage            `json:"value"`
	Also  map[string]json.RawMessage `json:"also,omitempty"`
}
