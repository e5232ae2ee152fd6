package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/juliez8/snake-year-shedding-pond/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMigrationURL(t *testing.T) {
	cfg := &config.Config{
		DBHost:     "db.internal",
		DBPort:     6432,
		DBName:     "pond",
		DBUser:     "snake",
		DBPassword: "p@ss/w:rd?#",
		DBSSLMode:  "require",
	}

	u, err := url.Parse(migrationURL(cfg))
	if err != nil {
		t.Fatalf("URL не разбирается: %v", err)
	}
	if u.Scheme != "pgx5" || u.Host != "db.internal:6432" || u.Path != "/pond" {
		t.Errorf("URL = %s", u)
	}
	if pw, _ := u.User.Password(); pw != cfg.DBPassword {
		t.Errorf("пароль после разбора = %q", pw)
	}
	if got := u.Query().Get("sslmode"); got != "require" {
		t.Errorf("sslmode = %q", got)
	}
}

// startPostgres поднимает PostgreSQL в контейнере и возвращает конфиг для него.
// Пропускает тест без TEST_INTEGRATION.
func startPostgres(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("snakepond_test"),
		postgres.WithUsername("snakepond"),
		postgres.WithPassword("test-password"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("port контейнера: %v", err)
	}

	t.Setenv("SP_DB_HOST", host)
	t.Setenv("SP_DB_PORT", port.Port())
	t.Setenv("SP_DB_NAME", "snakepond_test")
	t.Setenv("SP_DB_USER", "snakepond")
	t.Setenv("SP_DB_PASSWORD", "test-password")
	t.Setenv("SP_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	return cfg
}

// TestSchemaLifecycle: до миграций хранилище не готово, после — готово;
// повторный запуск миграций безвреден, ограничения схемы действуют.
func TestSchemaLifecycle(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()
	logger := discardLogger()

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer pool.Close()

	var appName string
	if err := pool.QueryRow(ctx, `SHOW application_name`).Scan(&appName); err != nil {
		t.Fatalf("application_name: %v", err)
	}
	if appName != applicationName {
		t.Errorf("application_name = %q", appName)
	}

	checker := NewReadinessChecker(pool)
	if status, msg := checker.CheckReady(); status != "fail" {
		t.Errorf("до миграций: %s (%s), ожидался fail", status, msg)
	}

	for i := range 2 {
		if err := Migrate(cfg, logger); err != nil {
			t.Fatalf("Migrate #%d: %v", i+1, err)
		}
	}

	if status, msg := checker.CheckReady(); status != "ok" {
		t.Errorf("после миграций: %s (%s), ожидался ok", status, msg)
	}

	for _, table := range []string{"entries", "reports", "rate_limits"} {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT to_regclass('public.' || $1) IS NOT NULL`, table).Scan(&exists); err != nil {
			t.Fatalf("%s: %v", table, err)
		}
		if !exists {
			t.Errorf("таблица %s не создана", table)
		}
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO entries (id, drawing, message, location, position_x, position_y)
		VALUES (gen_random_uuid(), '{}', 'x', 'island', 0.5, 0.5)`)
	if err == nil {
		t.Error("location = 'island' принят, ожидалось нарушение CHECK")
	}
}

func TestMigrate_DirtySchema(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()
	logger := discardLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `UPDATE schema_migrations SET dirty = true`); err != nil {
		t.Fatalf("пометка dirty: %v", err)
	}

	if err := Migrate(cfg, logger); !errors.Is(err, ErrDirtySchema) {
		t.Errorf("Migrate = %v, ожидалась ErrDirtySchema", err)
	}
}
