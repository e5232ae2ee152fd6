// Пакет openapi — HTTP-контракт сервиса пруда.
//
// openapi.yaml встроен в бинарник: GetSwagger загружает и валидирует его
// (kin-openapi), а /openapi.json отдаёт клиентам. Типы запросов/ответов,
// ServerInterface и регистрация маршрутов повторяют форму контракта;
// соответствие маршрутов документу проверяется тестом.
package openapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
)

//go:embed openapi.yaml
var specYAML []byte

// GetSwagger загружает встроенный документ и проверяет его корректность.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI документа: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI документа: %w", err)
	}
	return doc, nil
}

// --- Типы запросов и ответов ---

// SubmitRequest — тело POST /submit.
// Поля остаются сырыми: отсутствие поля и поле не того типа различаются
// обработчиком и дают разные ответы.
type SubmitRequest struct {
	Drawing json.RawMessage `json:"drawing"`
	Message json.RawMessage `json:"message"`
}

// SubmitResponse — ответ POST /submit.
type SubmitResponse struct {
	Success        bool         `json:"success"`
	Entry          *model.Entry `json:"entry"`
	AddedToGallery bool         `json:"addedToGallery"`
}

// Pagination — метаданные страницы галереи.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalCount int  `json:"totalCount"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// GalleryResponse — ответ GET /gallery.
type GalleryResponse struct {
	Items      []*model.Entry `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// GetGalleryParams — query-параметры GET /gallery.
type GetGalleryParams struct {
	Page  *int `form:"page,omitempty" json:"page,omitempty"`
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// IslandEntry — живая запись с состоянием затухания.
type IslandEntry struct {
	*model.Entry
	Opacity        float64 `json:"opacity"`
	HoursRemaining float64 `json:"hoursRemaining"`
}

// IslandResponse — ответ GET /island.
type IslandResponse struct {
	Items []IslandEntry `json:"items"`
}

// ReportRequest — тело POST /report.
type ReportRequest struct {
	EntryID openapi_types.UUID `json:"entryId"`
}

// SuccessResponse — ответ без данных.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// MigrateResponse — ответ POST /migrate.
type MigrateResponse struct {
	Migrated  bool   `json:"migrated"`
	Count     int    `json:"count"`
	LiveCount int    `json:"liveCount"`
	Message   string `json:"message"`
}

// --- Сервер ---

// ServerInterface — обработчики всех операций контракта.
type ServerInterface interface {
	// (POST /submit)
	SubmitEntry(w http.ResponseWriter, r *http.Request)
	// (GET /gallery)
	GetGallery(w http.ResponseWriter, r *http.Request, params GetGalleryParams)
	// (GET /island)
	GetIsland(w http.ResponseWriter, r *http.Request)
	// (POST /report)
	ReportEntry(w http.ResponseWriter, r *http.Request)
	// (POST /migrate)
	Migrate(w http.ResponseWriter, r *http.Request)
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
	// (GET /openapi.json)
	GetOpenAPI(w http.ResponseWriter, r *http.Request)
}

// MiddlewareFunc — HTTP middleware.
type MiddlewareFunc func(http.Handler) http.Handler

// ChiServerOptions — параметры регистрации маршрутов.
type ChiServerOptions struct {
	// BaseRouter — роутер, в котором регистрируются маршруты (nil — новый)
	BaseRouter chi.Router
	// PublicWriteMiddlewares — для анонимных POST (/submit, /report):
	// rate limit, затем ограничение тела
	PublicWriteMiddlewares []MiddlewareFunc
	// AdminMiddlewares — для POST /migrate
	AdminMiddlewares []MiddlewareFunc
}

// Handler регистрирует маршруты на новом роутере.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerFromMux регистрирует маршруты на переданном роутере.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions регистрирует маршруты с учётом опций.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}

	r.Group(func(r chi.Router) {
		for _, mw := range options.PublicWriteMiddlewares {
			r.Use(mw)
		}
		r.Post("/submit", si.SubmitEntry)
		r.Post("/report", si.ReportEntry)
	})

	r.Group(func(r chi.Router) {
		for _, mw := range options.AdminMiddlewares {
			r.Use(mw)
		}
		r.Post("/migrate", si.Migrate)
	})

	r.Get("/gallery", func(w http.ResponseWriter, req *http.Request) {
		si.GetGallery(w, req, bindGalleryParams(req))
	})
	r.Get("/island", si.GetIsland)
	r.Get("/health/live", si.HealthLive)
	r.Get("/health/ready", si.HealthReady)
	r.Get("/metrics", si.GetMetrics)
	r.Get("/openapi.json", si.GetOpenAPI)

	return r
}

// bindGalleryParams разбирает page и limit. Некорректное значение не является
// ошибкой запроса: параметр считается отсутствующим и заменяется умолчанием.
func bindGalleryParams(r *http.Request) GetGalleryParams {
	var params GetGalleryParams
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "page", query, &params.Page); err != nil {
		params.Page = nil
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		params.Limit = nil
	}
	return params
}
