package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/juliez8/snake-year-shedding-pond/internal/api/errors"
	"github.com/juliez8/snake-year-shedding-pond/internal/api/openapi"
)

// galleryCacheControl — галерея меняется только при вытеснении, CDN может
// держать страницу 30 секунд и отдавать устаревшую ещё минуту.
const galleryCacheControl = "public, s-maxage=30, stale-while-revalidate=60"

// GetGallery — реализация GET /gallery.
func (h *APIHandler) GetGallery(w http.ResponseWriter, r *http.Request, params openapi.GetGalleryParams) {
	page, limit := h.services.Gallery.Normalize(params.Page, params.Limit)

	p, err := h.services.Gallery.Page(r.Context(), page, limit)
	if err != nil {
		h.logger.Error("Ошибка чтения галереи",
			slog.Int("page", page),
			slog.Int("limit", limit),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w)
		return
	}

	w.Header().Set("Cache-Control", galleryCacheControl)
	writeJSON(w, http.StatusOK, openapi.GalleryResponse{
		Items: p.Items,
		Pagination: openapi.Pagination{
			Page:       p.Page,
			Limit:      p.Limit,
			TotalCount: p.TotalCount,
			TotalPages: p.TotalPages,
			HasMore:    p.HasMore,
		},
	})
}
