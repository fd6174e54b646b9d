package model

import (
	"slices"
	"time"

	"github.com/printdesk/backend/internal/pricing"
)

// Document kinds.
const (
	KindQuote = "quote"
	KindOrder = "order"
)

// Document statuses in which line items and the discount may still change.
const (
	StatusDraft   = "draft"
	StatusPending = "pending"
	StatusOpen    = "open"
)

// EditableStatuses lists the statuses for which Editable is true. The
// repositories use it to guard writes in SQL.
var EditableStatuses = []string{StatusDraft, StatusPending, StatusOpen}

// Document is a quote or an order together with its persisted totals.
type Document struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"` // "quote" | "order"
	ClientID        string    `json:"client_id"`
	Status          string    `json:"status"`
	DiscountMode    string    `json:"discount_mode"` // "percent" | "amount"
	DiscountAmount  float64   `json:"discount_amount"`
	DiscountPercent float64   `json:"discount_percent"`
	Subtotal        float64   `json:"subtotal"`
	GrandTotal      float64   `json:"grand_total"`
	TotalHours      float64   `json:"total_hours"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Editable reports whether the document still accepts edits.
func (d *Document) Editable() bool {
	return slices.Contains(EditableStatuses, d.Status)
}

// Discount returns the document-level discount as last entered.
func (d *Document) Discount() pricing.Discount {
	mode := pricing.DiscountMode(d.DiscountMode)
	if !mode.Valid() {
		mode = pricing.DiscountByPercent
	}
	return pricing.Discount{Mode: mode, Amount: d.DiscountAmount, Percent: d.DiscountPercent}
}

// Totals returns the persisted totals of the document.
func (d *Document) Totals() pricing.Totals {
	return pricing.Totals{
		Subtotal:        d.Subtotal,
		DiscountAmount:  d.DiscountAmount,
		DiscountPercent: d.DiscountPercent,
		GrandTotal:      d.GrandTotal,
		TotalHours:      d.TotalHours,
	}
}

// DocumentTotals is the document-level figures echoed back by the store after
// a line item was saved.
type DocumentTotals struct {
	Subtotal        float64 `json:"subtotal"`
	DiscountAmount  float64 `json:"discount_amount"`
	DiscountPercent float64 `json:"discount_percent"`
	GrandTotal      float64 `json:"grand_total"`
	TotalHours      float64 `json:"total_hours"`
}

// NewDocumentTotals converts computed totals.
func NewDocumentTotals(t pricing.Totals) *DocumentTotals {
	return &DocumentTotals{
		Subtotal:        t.Subtotal,
		DiscountAmount:  t.DiscountAmount,
		DiscountPercent: t.DiscountPercent,
		GrandTotal:      t.GrandTotal,
		TotalHours:      t.TotalHours,
	}
}

// Totals converts the echo back into computed totals.
func (t *DocumentTotals) Totals() pricing.Totals {
	return pricing.Totals{
		Subtotal:        t.Subtotal,
		DiscountAmount:  t.DiscountAmount,
		DiscountPercent: t.DiscountPercent,
		GrandTotal:      t.GrandTotal,
		TotalHours:      t.TotalHours,
	}
}
