package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/printdesk/backend/internal/model"
)

func f64(v float64) *float64 { return &v }

func TestWorkbook(t *testing.T) {
	doc := &model.Document{
		ID: "0f3a9c2e-1111-2222-3333-444455556666", Kind: model.KindQuote,
		Subtotal: 150, DiscountPercent: 10, DiscountAmount: 15, GrandTotal: 135, TotalHours: 3.2,
	}
	items := []*model.LineItem{
		{DisplayOrder: 1, Description: "Yard sign", Quantity: 2, Width: f64(24), Height: f64(36), Unit: "in", Material: "vinyl",
			SquareFeet: 6, MaterialUsage: 12.42, PricePerArea: 5, UnitPrice: 30, Amount: 60, PrintHours: 2.4},
		{DisplayOrder: 2, Description: "Design fee", Quantity: 1, UnitPrice: 90, Amount: 90},
	}

	data, err := Workbook(doc, items)
	if err != nil {
		t.Fatalf("Workbook() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("result is not valid Excel: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 1 || sheets[0] != "Quote 0f3a9c2e" {
		t.Fatalf("sheets = %v", sheets)
	}
	sheet := sheets[0]

	cells := map[string]string{
		"A1": "#",
		"M1": "Amount",
		"B2": "Yard sign",
		"D2": "24",
		"M2": "60",
		"B3": "Design fee",
		"D3": "",
		"L5": "Subtotal",
		"M5": "150",
		"L8": "Grand Total",
		"M8": "135",
	}
	for cell, want := range cells {
		got, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
		if err != nil {
			t.Fatalf("GetCellValue(%s): %v", cell, err)
		}
		if got != want {
			t.Errorf("%s = %q, want %q", cell, got, want)
		}
	}
}

func TestWorkbook_NoItems(t *testing.T) {
	data, err := Workbook(&model.Document{ID: "x", Kind: model.KindOrder}, nil)
	if err != nil {
		t.Fatalf("Workbook() error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("result is not valid Excel: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); got[0] != "Order x" {
		t.Errorf("sheet = %v", got)
	}
	label, _ := f.GetCellValue("Order x", "L3")
	if label != "Subtotal" {
		t.Errorf("L3 = %q, want Subtotal", label)
	}
}

func TestSheetName(t *testing.T) {
	if got := SheetName(&model.Document{Kind: "", ID: ""}); got != "Document" {
		t.Errorf("SheetName = %q", got)
	}
}
