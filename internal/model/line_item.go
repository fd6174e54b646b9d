package model

import (
	"time"

	"github.com/printdesk/backend/internal/pricing"
)

// LineItem is one priced row of a quote or order.
type LineItem struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"document_id"`
	Description     string    `json:"description"`
	Quantity        float64   `json:"quantity"`
	Width           *float64  `json:"width"`
	Height          *float64  `json:"height"`
	Unit            string    `json:"unit"`
	Material        string    `json:"material"`
	PricePerArea    float64   `json:"price_per_area"`
	UnitPrice       float64   `json:"unit_price"`
	DiscountPercent float64   `json:"discount_percent"`
	Amount          float64   `json:"amount"`
	SquareFeet      float64   `json:"square_feet"`
	MaterialUsage   float64   `json:"material_usage"`
	PrintHours      float64   `json:"print_hours"`
	DisplayOrder    int       `json:"display_order"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PricingLine returns the pricing state of the item.
func (li *LineItem) PricingLine() pricing.Line {
	return pricing.Line{
		Width:           li.Width,
		Height:          li.Height,
		Unit:            li.Unit,
		Material:        li.Material,
		Quantity:        li.Quantity,
		SquareFeet:      li.SquareFeet,
		MaterialUsage:   li.MaterialUsage,
		PricePerArea:    li.PricePerArea,
		UnitPrice:       li.UnitPrice,
		DiscountPercent: li.DiscountPercent,
		Amount:          li.Amount,
		PrintHours:      li.PrintHours,
	}
}

// SetPricing copies a resolved pricing state onto the item.
func (li *LineItem) SetPricing(l pricing.Line) {
	li.Width = l.Width
	li.Height = l.Height
	li.Unit = l.Unit
	li.Material = l.Material
	li.Quantity = l.Quantity
	li.SquareFeet = l.SquareFeet
	li.MaterialUsage = l.MaterialUsage
	li.PricePerArea = l.PricePerArea
	li.UnitPrice = l.UnitPrice
	li.DiscountPercent = l.DiscountPercent
	li.Amount = l.Amount
	li.PrintHours = l.PrintHours
}

// PricingLines converts items for aggregation.
func PricingLines(items []*LineItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, item.PricingLine())
	}
	return lines
}
