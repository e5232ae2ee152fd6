// Пакет server — HTTP-сервер пруда с graceful shutdown.
// Без TLS — TLS termination на балансировщике/CDN.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/juliez8/snake-year-shedding-pond/internal/api/errors"
	"github.com/juliez8/snake-year-shedding-pond/internal/api/openapi"
	"github.com/juliez8/snake-year-shedding-pond/internal/config"
)

// Server — HTTP-сервер пруда.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// RouteMiddlewares — middleware отдельных групп маршрутов.
type RouteMiddlewares struct {
	// PublicWrite — POST /submit и /report: rate limit, затем ограничение тела
	PublicWrite []openapi.MiddlewareFunc
	// Admin — POST /migrate: bearer-аутентификация
	Admin []openapi.MiddlewareFunc
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
// handler — реализация openapi.ServerInterface (APIHandler).
// middlewares — общие middleware (metrics, logging), в порядке переданного среза.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	handler openapi.ServerInterface,
	routes RouteMiddlewares,
	middlewares ...func(http.Handler) http.Handler,
) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(cfg, handler, routes, middlewares...),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер. Вынесен отдельно для тестов.
//
// Порядок: RequestID → Recoverer → RealIP (только при SP_TRUST_PROXY_HEADERS,
// иначе заголовки X-Forwarded-For подделываются клиентом и обходят rate limit)
// → общие middleware → middleware групп маршрутов.
func NewRouter(
	cfg *config.Config,
	handler openapi.ServerInterface,
	routes RouteMiddlewares,
	middlewares ...func(http.Handler) http.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	if cfg.TrustProxyHeaders {
		router.Use(chimw.RealIP)
	}
	for _, mw := range middlewares {
		router.Use(mw)
	}

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Not found.")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.MethodNotAllowed(w, "Method not allowed.")
	})

	return openapi.HandlerWithOptions(handler, openapi.ChiServerOptions{
		BaseRouter:             router,
		PublicWriteMiddlewares: routes.PublicWrite,
		AdminMiddlewares:       routes.Admin,
	})
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
