// Package export renders a document and its line items as a spreadsheet.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/printdesk/backend/internal/model"
)

// ContentType is the MIME type of the workbook produced by Workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{
	"#", "Description", "Qty", "Width", "Height", "Unit", "Material",
	"Sq Ft", "Usage", "Price / Sq Ft", "Unit Price", "Disc %", "Amount", "Hours",
}

// SheetName returns the worksheet name for a document, e.g. "Quote a1b2c3d4".
func SheetName(doc *model.Document) string {
	kind := "Document"
	switch doc.Kind {
	case model.KindQuote:
		kind = "Quote"
	case model.KindOrder:
		kind = "Order"
	}
	id := doc.ID
	if len(id) > 8 {
		id = id[:8]
	}
	name := strings.TrimSpace(kind + " " + id)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

// Workbook builds the spreadsheet: one row per line item in display order,
// followed by the document totals.
func Workbook(doc *model.Document, items []*model.LineItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(doc)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "B", "B", 36); err != nil {
		return nil, fmt.Errorf("set col width: %w", err)
	}
	if err := f.SetColWidth(sheet, "C", lastCol, 12); err != nil {
		return nil, fmt.Errorf("set col width: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	moneyFmt := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return nil, fmt.Errorf("create money style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &moneyFmt})
	if err != nil {
		return nil, fmt.Errorf("create total style: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	row := 2
	for _, item := range items {
		values := []any{
			item.DisplayOrder, item.Description, item.Quantity,
			optional(item.Width), optional(item.Height), item.Unit, item.Material,
			item.SquareFeet, item.MaterialUsage, item.PricePerArea, item.UnitPrice,
			item.DiscountPercent, item.Amount, item.PrintHours,
		}
		cell := fmt.Sprintf("A%d", row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write line %d: %w", item.DisplayOrder, err)
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("J%d", row), fmt.Sprintf("K%d", row), moneyStyle); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("M%d", row), fmt.Sprintf("M%d", row), moneyStyle); err != nil {
			return nil, err
		}
		row++
	}

	row++
	summary := []struct {
		label string
		value float64
	}{
		{"Subtotal", doc.Subtotal},
		{"Discount %", doc.DiscountPercent},
		{"Discount", doc.DiscountAmount},
		{"Grand Total", doc.GrandTotal},
		{"Total Hours", doc.TotalHours},
	}
	for _, s := range summary {
		if err := f.SetCellValue(sheet, fmt.Sprintf("L%d", row), s.label); err != nil {
			return nil, err
		}
		valueCell := fmt.Sprintf("M%d", row)
		if err := f.SetCellValue(sheet, valueCell, s.value); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, valueCell, valueCell, totalStyle); err != nil {
			return nil, err
		}
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
