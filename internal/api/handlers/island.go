package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/juliez8/snake-year-shedding-pond/internal/api/errors"
	"github.com/juliez8/snake-year-shedding-pond/internal/api/openapi"
)

// GetIsland — реализация GET /island. Без кэширования: непрозрачность
// зависит от текущего времени.
func (h *APIHandler) GetIsland(w http.ResponseWriter, r *http.Request) {
	entries, err := h.services.Island.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка чтения острова", slog.String("error", err.Error()))
		apierrors.InternalError(w)
		return
	}

	items := make([]openapi.IslandEntry, 0, len(entries))
	for _, e := range entries {
		items = append(items, openapi.IslandEntry{
			Entry:          e.Entry,
			Opacity:        e.Opacity,
			HoursRemaining: e.HoursRemaining,
		})
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, openapi.IslandResponse{Items: items})
}
