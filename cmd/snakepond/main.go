// Точка входа сервиса пруда змеиных линек.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// собирает ограничитель частоты, модерацию, размещение и сервисный слой,
// запускает плановую чистку острова, topologymetrics
// и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/juliez8/snake-year-shedding-pond/internal/api/handlers"
	"github.com/juliez8/snake-year-shedding-pond/internal/api/middleware"
	"github.com/juliez8/snake-year-shedding-pond/internal/api/openapi"
	"github.com/juliez8/snake-year-shedding-pond/internal/config"
	"github.com/juliez8/snake-year-shedding-pond/internal/database"
	"github.com/juliez8/snake-year-shedding-pond/internal/geometry"
	"github.com/juliez8/snake-year-shedding-pond/internal/moderation"
	"github.com/juliez8/snake-year-shedding-pond/internal/placement"
	"github.com/juliez8/snake-year-shedding-pond/internal/ratelimit"
	"github.com/juliez8/snake-year-shedding-pond/internal/repository"
	"github.com/juliez8/snake-year-shedding-pond/internal/server"
	"github.com/juliez8/snake-year-shedding-pond/internal/service"
)

//nolint:funlen // линейная сборка зависимостей
func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Пруд запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("environment", cfg.Environment),
	)

	if cfg.MigrateSecret == "" {
		logger.Warn("SP_MIGRATE_SECRET не задан, POST /migrate всегда отвечает 401")
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories
	entryRepo := repository.NewEntryRepository(pool)
	reportRepo := repository.NewReportRepository(pool)

	// 6. Ограничитель частоты
	var windowStore ratelimit.Store
	switch cfg.RateLimitBackend {
	case config.RateLimitBackendMemory:
		windowStore = ratelimit.NewMemoryStore(cfg.RateLimitMemoryKeys, cfg.RateLimitWindow)
		logger.Warn("Окна rate limit хранятся в памяти, лимит не разделяется между экземплярами")
	default:
		windowStore = repository.NewRateLimitRepository(pool)
	}

	limiter, err := ratelimit.New(windowStore, ratelimit.Config{
		Max:           cfg.RateLimitMax,
		Window:        cfg.RateLimitWindow,
		FailOpen:      cfg.RateLimitFailOpen,
		Salt:          cfg.RateLimitSalt,
		PurgeInterval: cfg.RateLimitPurgeInterval,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания rate limiter", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Rate limiter инициализирован",
		slog.String("backend", cfg.RateLimitBackend),
		slog.Int("max", cfg.RateLimitMax),
		slog.String("window", cfg.RateLimitWindow.String()),
		slog.Bool("fail_open", cfg.RateLimitFailOpen),
	)

	// 7. Модерация, проверка рисунка, размещение
	words, err := moderation.LoadDefaultWordList("en")
	if err != nil {
		logger.Error("Ошибка загрузки словаря модерации", slog.String("error", err.Error()))
		os.Exit(1)
	}
	moderator := moderation.NewModerator(words)

	policy, err := geometry.NewPolicy(cfg.GeometryPolicy, geometry.DefaultLimits())
	if err != nil {
		logger.Error("Ошибка создания политики рисунка", slog.String("error", err.Error()))
		os.Exit(1)
	}

	placer := placement.NewEngine(cfg.PlacementMinDistance, cfg.PlacementMaxAttempts)

	// 8. Services
	evictionSvc := service.NewEvictionService(entryRepo, service.EvictionConfig{
		Capacity:   cfg.LiveCapacity,
		SweepBatch: cfg.SweepBatchSize,
		Interval:   cfg.SweepInterval,
	}, logger)

	submissionSvc := service.NewSubmissionService(
		entryRepo, evictionSvc, placer, policy, moderator,
		service.SubmissionConfig{
			EvictBatch:  cfg.EvictBatchSize,
			EvictRounds: cfg.EvictMaxRounds,
		},
		logger,
	)

	gallerySvc := service.NewGalleryService(
		entryRepo,
		service.NewPageCache(cfg.GalleryCacheSize, cfg.GalleryCacheTTL),
		service.GalleryConfig{
			DefaultLimit: cfg.GalleryDefaultLimit,
			MaxLimit:     cfg.GalleryMaxLimit,
		},
		logger,
	)

	islandSvc := service.NewIslandService(entryRepo, service.FadeConfig{
		Duration:   cfg.FadeDuration,
		MinOpacity: cfg.FadeMinOpacity,
	})

	reportSvc := service.NewReportService(reportRepo, logger)

	// Любое попадание записи в галерею сбрасывает кэш страниц
	evictionSvc.OnEvict(gallerySvc.Invalidate)
	submissionSvc.OnArchive(gallerySvc.Invalidate)

	// 9. Readiness checker (PostgreSQL)
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker)

	// 10. API handler (реализует openapi.ServerInterface)
	apiHandler, err := handlers.NewAPIHandler(healthHandler, handlers.Services{
		Submission: submissionSvc,
		Gallery:    gallerySvc,
		Island:     islandSvc,
		Reports:    reportSvc,
		Eviction:   evictionSvc,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания API handler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Аутентификация POST /migrate
	migrateAuth := middleware.NewMigrateAuth(cfg.MigrateSecret, cfg.MigrateJWTLeeway, logger)

	// 12. Запуск фоновой чистки острова
	evictionSvc.Start(ctx)

	// 12.1 topologymetrics — мониторинг PostgreSQL
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "snake-pond",
		Group:         cfg.DephealthGroup,
		PgConnURL:     cfg.DatabaseURL(),
		CheckInterval: cfg.DephealthCheckInterval,
		IsEntry:       cfg.DephealthIsEntry,
	}, pgDB, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 13. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler,
		server.RouteMiddlewares{
			// Сначала лимит: отклонённый по частоте запрос не читает тело
			PublicWrite: []openapi.MiddlewareFunc{
				middleware.RateLimit(limiter),
				middleware.BodyLimit(cfg.MaxBodyBytes),
			},
			Admin: []openapi.MiddlewareFunc{
				migrateAuth.Middleware(),
				middleware.BodyLimit(cfg.MaxBodyBytes),
			},
		},
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	// 14. Запуск сервера (блокирующий вызов с graceful shutdown)
	runErr := srv.Run()

	// 15. Остановка фоновых задач
	evictionSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Сервер завершился с ошибкой", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	logger.Info("Пруд остановлен")
}
