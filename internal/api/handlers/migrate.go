package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	apierrors "github.com/juliez8/snake-year-shedding-pond/internal/api/errors"
	"github.com/juliez8/snake-year-shedding-pond/internal/api/openapi"
)

// Migrate — реализация POST /migrate. Аутентификация — MigrateAuth на уровне middleware.
func (h *APIHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	res, err := h.services.Eviction.Sweep(r.Context())
	if err != nil {
		h.logger.Error("Ошибка плановой чистки по запросу", slog.String("error", err.Error()))
		apierrors.InternalError(w)
		return
	}

	msg := "No migration needed"
	if res.Migrated {
		msg = fmt.Sprintf("Migrated %d entries to gallery", res.Count)
	}

	writeJSON(w, http.StatusOK, openapi.MigrateResponse{
		Migrated:  res.Migrated,
		Count:     res.Count,
		LiveCount: res.LiveCount,
		Message:   msg,
	})
}
