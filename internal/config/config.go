// Пакет config — загрузка и валидация конфигурации сервиса пруда
// из переменных окружения (префикс SP_).
package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Окружения.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Хранилища окон rate limit.
const (
	RateLimitBackendPostgres = "postgres"
	RateLimitBackendMemory   = "memory"
)

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Окружение: development или production.
	// Определяет пороги rate limit и поведение при отказе его хранилища.
	Environment string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- Rate limiting ---

	// Хранилище окон: postgres (общее для экземпляров) или memory
	RateLimitBackend string
	// Запросов на клиента в окне
	RateLimitMax int
	// Длительность окна
	RateLimitWindow time.Duration
	// Пропускать запросы при недоступном хранилище
	RateLimitFailOpen bool
	// Соль для хэширования адреса клиента
	RateLimitSalt string
	// Минимальный интервал очистки истёкших окон
	RateLimitPurgeInterval time.Duration
	// Ёмкость in-memory хранилища (клиентов)
	RateLimitMemoryKeys int
	// Брать адрес клиента из X-Forwarded-For / X-Real-IP (только за доверенным прокси)
	TrustProxyHeaders bool

	// --- Пруд ---

	// Bearer-секрет для POST /migrate (пустой — endpoint всегда 401)
	MigrateSecret string
	// Допустимое отклонение часов при проверке HS256-токенов /migrate
	MigrateJWTLeeway time.Duration
	// Максимальный размер тела запроса
	MaxBodyBytes int64
	// Политика проверки рисунка: structural или shape
	GeometryPolicy string
	// Минимальное расстояние между живыми записями (нормализованные координаты)
	PlacementMinDistance float64
	// Попыток размещения на один раунд
	PlacementMaxAttempts int
	// Ёмкость острова
	LiveCapacity int
	// Записей, вытесняемых одной плановой чисткой
	SweepBatchSize int
	// Записей, вытесняемых за раунд при нехватке места для новой
	EvictBatchSize int
	// Раундов вытеснения на одну отправку
	EvictMaxRounds int
	// Интервал плановой чистки (0 — только через POST /migrate)
	SweepInterval time.Duration
	// Время полного затухания записи на острове
	FadeDuration time.Duration
	// Минимальная непрозрачность затухшей записи
	FadeMinOpacity float64

	// --- Галерея ---

	GalleryDefaultLimit int
	GalleryMaxLimit     int
	GalleryCacheTTL     time.Duration
	GalleryCacheSize    int

	// --- topologymetrics ---

	// Группа сервиса в метриках зависимостей
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Лейбл isentry=yes для зависимостей
	DephealthIsEntry bool

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
//
//nolint:gocyclo,cyclop,funlen // линейная загрузка большого числа параметров
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// SP_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("SP_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("SP_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SP_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SP_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SP_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("SP_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SP_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("SP_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SP_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("SP_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SP_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("SP_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SP_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// SP_ENV — окружение (по умолчанию development)
	cfg.Environment = strings.ToLower(getEnvDefault("SP_ENV", EnvDevelopment))
	if cfg.Environment != EnvDevelopment && cfg.Environment != EnvProduction {
		return nil, fmt.Errorf("SP_ENV: недопустимое значение %q, допустимые: development, production", cfg.Environment)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("SP_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("SP_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("SP_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("SP_DB_NAME")
	if err != nil {
		return nil, err
	}
	cfg.DBUser, err = getEnvRequired("SP_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("SP_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("SP_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("SP_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Rate limiting ---
	// Значения по умолчанию зависят от окружения: development — 50 за 10 минут
	// и пропуск при отказе хранилища, production — 60 за час и отказ.

	prod := cfg.IsProduction()
	defaultMax, defaultWindow := 50, 10*time.Minute
	if prod {
		defaultMax, defaultWindow = 60, time.Hour
	}

	cfg.RateLimitBackend = getEnvDefault("SP_RATE_LIMIT_BACKEND", RateLimitBackendPostgres)
	if cfg.RateLimitBackend != RateLimitBackendPostgres && cfg.RateLimitBackend != RateLimitBackendMemory {
		return nil, fmt.Errorf("SP_RATE_LIMIT_BACKEND: недопустимое значение %q, допустимые: postgres, memory", cfg.RateLimitBackend)
	}
	cfg.RateLimitMax, err = getEnvInt("SP_RATE_LIMIT_MAX", defaultMax)
	if err != nil {
		return nil, fmt.Errorf("SP_RATE_LIMIT_MAX: %w", err)
	}
	if cfg.RateLimitMax < 1 {
		return nil, fmt.Errorf("SP_RATE_LIMIT_MAX: значение должно быть >= 1")
	}
	cfg.RateLimitWindow, err = getEnvPositiveDuration("SP_RATE_LIMIT_WINDOW", defaultWindow)
	if err != nil {
		return nil, fmt.Errorf("SP_RATE_LIMIT_WINDOW: %w", err)
	}
	cfg.RateLimitFailOpen, err = getEnvBool("SP_RATE_LIMIT_FAIL_OPEN", !prod)
	if err != nil {
		return nil, fmt.Errorf("SP_RATE_LIMIT_FAIL_OPEN: %w", err)
	}
	cfg.RateLimitSalt = getEnvDefault("SP_RATE_LIMIT_SALT", "")
	if prod && cfg.RateLimitSalt == "" {
		return nil, fmt.Errorf("SP_RATE_LIMIT_SALT: обязательна в production")
	}
	cfg.RateLimitPurgeInterval, err = getEnvDuration("SP_RATE_LIMIT_PURGE_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SP_RATE_LIMIT_PURGE_INTERVAL: %w", err)
	}
	cfg.RateLimitMemoryKeys, err = getEnvInt("SP_RATE_LIMIT_MEMORY_KEYS", 10000)
	if err != nil {
		return nil, fmt.Errorf("SP_RATE_LIMIT_MEMORY_KEYS: %w", err)
	}
	if cfg.RateLimitMemoryKeys < 1 {
		return nil, fmt.Errorf("SP_RATE_LIMIT_MEMORY_KEYS: значение должно быть >= 1")
	}
	cfg.TrustProxyHeaders, err = getEnvBool("SP_TRUST_PROXY_HEADERS", false)
	if err != nil {
		return nil, fmt.Errorf("SP_TRUST_PROXY_HEADERS: %w", err)
	}

	// --- Пруд ---

	cfg.MigrateSecret = getEnvDefault("SP_MIGRATE_SECRET", "")
	cfg.MigrateJWTLeeway, err = getEnvDuration("SP_MIGRATE_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SP_MIGRATE_JWT_LEEWAY: %w", err)
	}

	bodyBytes, err := getEnvInt("SP_MAX_BODY_BYTES", 512*1024)
	if err != nil {
		return nil, fmt.Errorf("SP_MAX_BODY_BYTES: %w", err)
	}
	if bodyBytes < 1024 {
		return nil, fmt.Errorf("SP_MAX_BODY_BYTES: значение %d меньше 1024", bodyBytes)
	}
	cfg.MaxBodyBytes = int64(bodyBytes)

	cfg.GeometryPolicy = strings.ToLower(getEnvDefault("SP_GEOMETRY_POLICY", "structural"))

	cfg.PlacementMinDistance, err = getEnvFloat("SP_PLACEMENT_MIN_DISTANCE", 0.18)
	if err != nil {
		return nil, fmt.Errorf("SP_PLACEMENT_MIN_DISTANCE: %w", err)
	}
	if cfg.PlacementMinDistance <= 0 || cfg.PlacementMinDistance >= 1 {
		return nil, fmt.Errorf("SP_PLACEMENT_MIN_DISTANCE: значение должно быть в (0, 1)")
	}
	cfg.PlacementMaxAttempts, err = getEnvInt("SP_PLACEMENT_MAX_ATTEMPTS", 200)
	if err != nil {
		return nil, fmt.Errorf("SP_PLACEMENT_MAX_ATTEMPTS: %w", err)
	}

	positive := []struct {
		key string
		dst *int
		def int
	}{
		{"SP_LIVE_CAPACITY", &cfg.LiveCapacity, 80},
		{"SP_SWEEP_BATCH_SIZE", &cfg.SweepBatchSize, 20},
		{"SP_EVICT_BATCH_SIZE", &cfg.EvictBatchSize, 3},
		{"SP_EVICT_MAX_ROUNDS", &cfg.EvictMaxRounds, 5},
		{"SP_GALLERY_DEFAULT_LIMIT", &cfg.GalleryDefaultLimit, 60},
		{"SP_GALLERY_MAX_LIMIT", &cfg.GalleryMaxLimit, 120},
		{"SP_GALLERY_CACHE_SIZE", &cfg.GalleryCacheSize, 256},
	}
	for _, p := range positive {
		*p.dst, err = getEnvInt(p.key, p.def)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.key, err)
		}
		if *p.dst < 1 {
			return nil, fmt.Errorf("%s: значение должно быть >= 1", p.key)
		}
	}
	if cfg.PlacementMaxAttempts < 1 {
		return nil, fmt.Errorf("SP_PLACEMENT_MAX_ATTEMPTS: значение должно быть >= 1")
	}
	if cfg.GalleryDefaultLimit > cfg.GalleryMaxLimit {
		return nil, fmt.Errorf("SP_GALLERY_DEFAULT_LIMIT: %d больше SP_GALLERY_MAX_LIMIT (%d)",
			cfg.GalleryDefaultLimit, cfg.GalleryMaxLimit)
	}

	cfg.SweepInterval, err = getEnvDuration("SP_SWEEP_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SP_SWEEP_INTERVAL: %w", err)
	}
	cfg.FadeDuration, err = getEnvPositiveDuration("SP_FADE_DURATION", 8*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("SP_FADE_DURATION: %w", err)
	}
	cfg.FadeMinOpacity, err = getEnvFloat("SP_FADE_MIN_OPACITY", 0.1)
	if err != nil {
		return nil, fmt.Errorf("SP_FADE_MIN_OPACITY: %w", err)
	}
	if cfg.FadeMinOpacity < 0 || cfg.FadeMinOpacity > 1 {
		return nil, fmt.Errorf("SP_FADE_MIN_OPACITY: значение должно быть в [0, 1]")
	}

	cfg.GalleryCacheTTL, err = getEnvDuration("SP_GALLERY_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SP_GALLERY_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("SP_DEPHEALTH_GROUP", "snake-pond")
	cfg.DephealthCheckInterval, err = getEnvDuration("SP_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SP_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("SP_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SP_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// IsProduction сообщает, запущен ли сервис в production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик зависимостей).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvFloat возвращает конечное число с плавающей точкой или значение по умолчанию.
func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d < 0 {
		return 0, fmt.Errorf("значение не может быть отрицательным")
	}
	return d, nil
}

// getEnvPositiveDuration — как getEnvDuration, но значение должно быть > 0.
func getEnvPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
