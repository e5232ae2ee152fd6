// handler.go — основной обработчик API, реализующий openapi.ServerInterface.
// Объединяет health и обработчики пруда, делегируя запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/juliez8/snake-year-shedding-pond/internal/api/openapi"
	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
	"github.com/juliez8/snake-year-shedding-pond/internal/service"
)

// Submitter — оркестратор отправки.
type Submitter interface {
	Submit(ctx context.Context, sub service.Submission) (*service.SubmitResult, error)
}

// GalleryReader — постраничная выдача галереи.
type GalleryReader interface {
	Normalize(page, limit *int) (int, int)
	Page(ctx context.Context, page, limit int) (*service.GalleryPage, error)
}

// IslandReader — выдача живого острова.
type IslandReader interface {
	List(ctx context.Context) ([]service.IslandEntry, error)
}

// Reporter — приём жалоб.
type Reporter interface {
	Report(ctx context.Context, entryID string) (*model.Report, error)
}

// Sweeper — плановая чистка острова.
type Sweeper interface {
	Sweep(ctx context.Context) (*service.SweepResult, error)
}

// Services — зависимости обработчика.
type Services struct {
	Submission Submitter
	Gallery    GalleryReader
	Island     IslandReader
	Reports    Reporter
	Eviction   Sweeper
}

// APIHandler — основной обработчик API пруда.
type APIHandler struct {
	health   *HealthHandler
	services Services
	specJSON []byte
	logger   *slog.Logger
}

var _ openapi.ServerInterface = (*APIHandler)(nil)

// NewAPIHandler создаёт основной обработчик API.
// Встроенный OpenAPI документ сериализуется один раз при создании.
func NewAPIHandler(health *HealthHandler, services Services, logger *slog.Logger) (*APIHandler, error) {
	doc, err := openapi.GetSwagger()
	if err != nil {
		return nil, err
	}
	specJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("сериализация OpenAPI документа: %w", err)
	}

	return &APIHandler{
		health:   health,
		services: services,
		specJSON: specJSON,
		logger:   logger.With(slog.String("component", "api_handler")),
	}, nil
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// GetOpenAPI — HTTP-контракт сервиса.
func (h *APIHandler) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.specJSON)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
