package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apierrors "github.com/juliez8/snake-year-shedding-pond/internal/api/errors"
	"github.com/juliez8/snake-year-shedding-pond/internal/api/middleware"
	"github.com/juliez8/snake-year-shedding-pond/internal/api/openapi"
	"github.com/juliez8/snake-year-shedding-pond/internal/service"
)

// ReportEntry — реализация POST /report.
// Некорректный или отсутствующий entryId — 400, неизвестная запись — 404.
func (h *APIHandler) ReportEntry(w http.ResponseWriter, r *http.Request) {
	var req openapi.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if middleware.IsTooLarge(err) {
			apierrors.PayloadTooLarge(w, middleware.MessageTooLarge)
			return
		}
		apierrors.ValidationError(w, "Invalid entry ID.")
		return
	}
	if req.EntryID == uuid.Nil {
		apierrors.ValidationError(w, "Invalid entry ID.")
		return
	}

	if _, err := h.services.Reports.Report(r.Context(), req.EntryID.String()); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Entry not found.")
			return
		}
		h.logger.Error("Ошибка сохранения жалобы",
			slog.String("entry_id", req.EntryID.String()),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, openapi.SuccessResponse{Success: true})
}
