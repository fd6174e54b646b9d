package handler

import (
	"net/http"

	"github.com/printdesk/backend/internal/model"
	"github.com/printdesk/backend/internal/service"
)

// ReferenceHandler は単位・素材マスタの HTTP ハンドラ
type ReferenceHandler struct {
	svc service.ReferenceService
}

// NewReferenceHandler は ReferenceHandler を生成する
func NewReferenceHandler(svc service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{svc: svc}
}

// Units handles GET /api/reference/units.
func (h *ReferenceHandler) Units(w http.ResponseWriter, r *http.Request) {
	units, err := h.svc.Units(r.Context())
	if err != nil {
		writeServiceError(w, r, "unit list", err)
		return
	}
	if units == nil {
		units = []*model.Unit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": units})
}

// Materials handles GET /api/reference/materials.
func (h *ReferenceHandler) Materials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.svc.Materials(r.Context())
	if err != nil {
		writeServiceError(w, r, "material list", err)
		return
	}
	if materials == nil {
		materials = []*model.Material{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"materials": materials})
}
