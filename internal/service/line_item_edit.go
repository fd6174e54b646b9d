package service

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/printdesk/backend/internal/model"
	"github.com/printdesk/backend/internal/pricing"
)

// fieldDescription is editable but feeds no computation.
const fieldDescription = "description"

// applyEdit writes the edited values onto item and returns the pricing
// fields they touched, lead field first. Fields in Also are applied in name
// order.
func applyEdit(item *model.LineItem, edit *model.LineItemEdit) ([]pricing.Field, error) {
	if edit.Field == "" {
		return nil, &pricing.ValidationError{Fields: []string{"field"}, Reason: "required"}
	}

	var edited []pricing.Field
	apply := func(name string, value json.RawMessage) error {
		f, err := applyField(item, name, value)
		if err != nil {
			return err
		}
		if f != "" {
			edited = append(edited, f)
		}
		return nil
	}

	if err := apply(edit.Field, edit.Value); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(edit.Also))
	for name := range edit.Also {
		if name != edit.Field {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := apply(name, edit.Also[name]); err != nil {
			return nil, err
		}
	}
	return edited, nil
}

// applyField sets one field. It returns "" for fields that feed no
// computation.
func applyField(item *model.LineItem, name string, value json.RawMessage) (pricing.Field, error) {
	edit := &model.LineItemEdit{Field: name, Value: value}
	if name == fieldDescription {
		s, err := decodeString(edit)
		if err != nil {
			return "", err
		}
		item.Description = s
		return "", nil
	}

	field := pricing.Field(name)
	if !pricing.EditableFields[field] {
		return "", &pricing.ValidationError{Fields: []string{name}, Reason: "not an editable field"}
	}

	switch field {
	case pricing.FieldWidth, pricing.FieldHeight:
		v, err := decodeOptionalNumber(edit)
		if err != nil {
			return "", err
		}
		if field == pricing.FieldWidth {
			item.Width = v
		} else {
			item.Height = v
		}
	case pricing.FieldUnit, pricing.FieldMaterial:
		s, err := decodeString(edit)
		if err != nil {
			return "", err
		}
		if field == pricing.FieldUnit {
			item.Unit = s
		} else {
			item.Material = s
		}
	case pricing.FieldQuantity:
		var n model.FlexNumber
		if len(edit.Value) > 0 {
			if err := json.Unmarshal(edit.Value, &n); err != nil {
				return "", invalidValue(edit.Field)
			}
		}
		item.Quantity = pricing.QuantityOrDefault(n.Ptr())
	case pricing.FieldPricePerArea, pricing.FieldUnitPrice, pricing.FieldDiscountPercent:
		v, err := decodeOptionalNumber(edit)
		if err != nil {
			return "", err
		}
		if v == nil {
			return "", &pricing.ValidationError{Fields: []string{edit.Field}, Reason: "required"}
		}
		switch field {
		case pricing.FieldPricePerArea:
			item.PricePerArea = *v
		case pricing.FieldUnitPrice:
			item.UnitPrice = *v
		default:
			item.DiscountPercent = *v
		}
	}
	return field, nil
}

func invalidValue(field string) error {
	return &pricing.ValidationError{Fields: []string{field}, Reason: "invalid value"}
}

func decodeString(edit *model.LineItemEdit) (string, error) {
	if isNull(edit.Value) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(edit.Value, &s); err != nil {
		return "", invalidValue(edit.Field)
	}
	return s, nil
}

// decodeOptionalNumber accepts a number, a numeric string or null.
func decodeOptionalNumber(edit *model.LineItemEdit) (*float64, error) {
	if isNull(edit.Value) {
		return nil, nil
	}
	var n model.FlexNumber
	if err := json.Unmarshal(edit.Value, &n); err != nil || !n.Valid {
		return nil, invalidValue(edit.Field)
	}
	return n.Ptr(), nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// validatePrices rejects negative prices. Discount percentages are clamped
// rather than rejected.
func validatePrices(item *model.LineItem) error {
	var negative []string
	if item.PricePerArea < 0 {
		negative = append(negative, string(pricing.FieldPricePerArea))
	}
	if item.UnitPrice < 0 {
		negative = append(negative, string(pricing.FieldUnitPrice))
	}
	if len(negative) > 0 {
		return &pricing.ValidationError{Fields: negative, Reason: "must not be negative"}
	}
	return nil
}

// validateLineItem runs every input check on item.
func validateLineItem(item *model.LineItem) error {
	l := item.PricingLine()
	if err := pricing.ValidateDimensions(l.Dimensions(), item.Material); err != nil {
		return err
	}
	return validatePrices(item)
}
