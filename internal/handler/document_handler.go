package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/printdesk/backend/internal/export"
	"github.com/printdesk/backend/internal/model"
	"github.com/printdesk/backend/internal/pricing"
	"github.com/printdesk/backend/internal/service"
)

// DocumentHandler は見積・受注の明細編集 API の HTTP ハンドラ
type DocumentHandler struct {
	svc service.DocumentEditService
}

// NewDocumentHandler は DocumentHandler を生成する
func NewDocumentHandler(svc service.DocumentEditService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type lineItemResponse struct {
	LineItem *model.LineItem       `json:"line_item"`
	Totals   *model.DocumentTotals `json:"totals"`
}

// ListLineItems handles GET /api/documents/{id}/line-items.
func (h *DocumentHandler) ListLineItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListLineItems(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "line item list", err)
		return
	}
	if items == nil {
		items = []*model.LineItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"line_items": items})
}

// CreateLineItem handles POST /api/documents/{id}/line-items.
func (h *DocumentHandler) CreateLineItem(w http.ResponseWriter, r *http.Request) {
	var input model.LineItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	item, totals, err := h.svc.AddLineItem(r.Context(), r.PathValue("id"), &input)
	if err != nil {
		writeServiceError(w, r, "line item create", err)
		return
	}
	writeJSON(w, http.StatusCreated, lineItemResponse{LineItem: item, Totals: totals})
}

// UpdateLineItem handles PATCH /api/documents/{id}/line-items/{order}.
// The body names one edited field, e.g. {"field":"width","value":24}.
func (h *DocumentHandler) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	order, err := strconv.Atoi(r.PathValue("order"))
	if err != nil || order <= 0 {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:  "validation_failed",
			Fields: []string{"display_order"},
			Reason: "must be a positive integer",
		})
		return
	}

	var edit model.LineItemEdit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if edit.Field == "" {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:  "validation_failed",
			Fields: []string{"field"},
			Reason: "required",
		})
		return
	}

	item, totals, err := h.svc.UpdateLineItem(r.Context(), r.PathValue("id"), order, &edit)
	if err != nil {
		writeServiceError(w, r, "line item update", err)
		return
	}
	writeJSON(w, http.StatusOK, lineItemResponse{LineItem: item, Totals: totals})
}

// DeleteLineItem handles DELETE /api/documents/{id}/line-items/{lineId}.
func (h *DocumentHandler) DeleteLineItem(w http.ResponseWriter, r *http.Request) {
	totals, err := h.svc.DeleteLineItem(r.Context(), r.PathValue("id"), r.PathValue("lineId"))
	if err != nil {
		writeServiceError(w, r, "line item delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"totals": totals})
}

// MoveLineItem handles PUT /api/documents/{id}/line-items/{lineId}/order.
func (h *DocumentHandler) MoveLineItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayOrder int `json:"display_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	items, err := h.svc.MoveLineItem(r.Context(), r.PathValue("id"), r.PathValue("lineId"), req.DisplayOrder)
	if err != nil {
		writeServiceError(w, r, "line item move", err)
		return
	}
	if items == nil {
		items = []*model.LineItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"line_items": items})
}

// SetDiscount handles PUT /api/documents/{id}/discount.
func (h *DocumentHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode  string           `json:"mode"`
		Value model.FlexNumber `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if !req.Value.Valid {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:  "validation_failed",
			Fields: []string{"value"},
			Reason: "must be a number",
		})
		return
	}

	totals, err := h.svc.SetDiscount(r.Context(), r.PathValue("id"), pricing.DiscountMode(req.Mode), req.Value.Value)
	if err != nil {
		writeServiceError(w, r, "discount update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"totals": totals})
}

// Totals handles GET /api/documents/{id}/totals.
func (h *DocumentHandler) Totals(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Totals(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "totals", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Finish handles POST /api/documents/{id}/finish.
func (h *DocumentHandler) Finish(w http.ResponseWriter, r *http.Request) {
	totals, err := h.svc.Finish(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "finish", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"totals": totals})
}

// Export handles GET /api/documents/{id}/export.xlsx.
func (h *DocumentHandler) Export(w http.ResponseWriter, r *http.Request) {
	doc, items, err := h.svc.Export(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "export", err)
		return
	}

	data, err := export.Workbook(doc, items)
	if err != nil {
		slog.Error("workbook build failed", "error", err, "document_id", doc.ID)
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.SheetName(doc)+".xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
