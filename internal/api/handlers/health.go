// health.go — служебные endpoints: liveness, readiness, Prometheus.
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/juliez8/snake-year-shedding-pond/internal/config"
)

const serviceName = "snake-pond"

// Статусы проверок.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// statusRank — тяжесть статуса; неизвестный статус считается отказом.
var statusRank = map[string]int{statusOK: 0, statusDegraded: 1, statusFail: 2}

// ReadinessChecker — проверка готовности хранилища.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и пояснение.
	CheckReady() (status, message string)
}

// HealthHandler — служебные endpoints.
type HealthHandler struct {
	storage   ReadinessChecker
	metrics   http.Handler
	startedAt time.Time
}

// NewHealthHandler создаёт обработчик. storage может быть nil — тогда
// сервис никогда не готов.
func NewHealthHandler(storage ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		storage:   storage,
		metrics:   promhttp.Handler(),
		startedAt: time.Now(),
	}
}

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status        string                 `json:"status"`
	Service       string                 `json:"service"`
	Version       string                 `json:"version"`
	Timestamp     time.Time              `json:"timestamp"`
	UptimeSeconds int64                  `json:"uptimeSeconds"`
	Checks        map[string]checkResult `json:"checks,omitempty"`
}

func (h *HealthHandler) newResponse() healthResponse {
	now := time.Now()
	return healthResponse{
		Status:        statusOK,
		Service:       serviceName,
		Version:       config.Version,
		Timestamp:     now.UTC().Truncate(time.Second),
		UptimeSeconds: int64(now.Sub(h.startedAt).Seconds()),
	}
}

// HealthLive — процесс жив; зависимости не проверяются.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.newResponse())
}

// HealthReady — 503, если хранилище в статусе fail; degraded остаётся 200,
// чтобы балансировщик не снимал экземпляр при кратком пике нагрузки.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := h.newResponse()

	storage := checkResult{Status: statusFail, Message: "не инициализирован"}
	if h.storage != nil {
		storage.Status, storage.Message = h.storage.CheckReady()
	}
	resp.Checks = map[string]checkResult{"postgresql": storage}
	resp.Status = worstStatus(storage.Status)

	code := http.StatusOK
	if resp.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// GetMetrics отдаёт Prometheus-метрики процесса.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// worstStatus возвращает самый тяжёлый из статусов.
func worstStatus(statuses ...string) string {
	worst := statusOK
	for _, s := range statuses {
		rank, known := statusRank[s]
		if !known {
			return statusFail
		}
		if rank > statusRank[worst] {
			worst = s
		}
	}
	return worst
}
