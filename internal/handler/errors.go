package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/printdesk/backend/internal/logging"
	"github.com/printdesk/backend/internal/pricing"
	"github.com/printdesk/backend/internal/repository"
	"github.com/printdesk/backend/internal/service"
	"github.com/printdesk/backend/internal/totalsync"
)

type validationResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
	Reason string   `json:"reason"`
}

// persistenceResponse names the write that failed when it was not the one
// the request asked for.
type persistenceResponse struct {
	Error  string `json:"error"`
	Source string `json:"source,omitempty"`
}

// writeServiceError maps a service error onto a status code and error code.
// Unexpected errors are logged with op.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *pricing.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:  "validation_failed",
			Fields: verr.Fields,
			Reason: verr.Reason,
		})
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, service.ErrNotEditable), errors.Is(err, totalsync.ErrClosed):
		writeError(w, http.StatusConflict, "not_editable")
	default:
		level := slog.LevelError
		if service.IsPersistenceError(err) {
			level = slog.LevelWarn
		}
		logging.FromContext(r.Context()).Log(r.Context(), level, op+" failed",
			"error", err,
			"document_id", r.PathValue("id"),
		)
		resp := persistenceResponse{Error: "persistence_failed"}
		if errors.Is(err, service.ErrPendingTotals) {
			resp.Source = "totals_flush"
		}
		writeJSON(w, http.StatusBadGateway, resp)
	}
}
