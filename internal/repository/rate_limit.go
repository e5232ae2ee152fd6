package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
)

// incrementWindowQuery — атомарный increment-and-fetch окна.
// В SET PostgreSQL видит старые значения строки, поэтому оба CASE
// принимают одинаковое решение о сбросе окна.
const incrementWindowQuery = `
	INSERT INTO rate_limits AS rl (identity_hash, request_count, window_start)
	VALUES ($1, 1, $2)
	ON CONFLICT (identity_hash) DO UPDATE SET
		request_count = CASE
			WHEN rl.window_start + make_interval(secs => $3) <= EXCLUDED.window_start THEN 1
			ELSE rl.request_count + 1
		END,
		window_start = CASE
			WHEN rl.window_start + make_interval(secs => $3) <= EXCLUDED.window_start THEN EXCLUDED.window_start
			ELSE rl.window_start
		END
	RETURNING request_count, window_start`

// RateLimitRepository — окна rate limit в таблице rate_limits.
// Реализует ratelimit.Store; несколько экземпляров сервиса делят одни окна.
type RateLimitRepository struct {
	db DBTX
}

// NewRateLimitRepository создаёт хранилище окон.
func NewRateLimitRepository(db DBTX) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// Increment увеличивает счётчик окна key одним запросом.
func (r *RateLimitRepository) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (model.RateWindow, error) {
	w := model.RateWindow{IdentityHash: key}
	err := r.db.QueryRow(ctx, incrementWindowQuery, key, now, window.Seconds()).
		Scan(&w.Count, &w.WindowStart)
	if err != nil {
		return model.RateWindow{}, fmt.Errorf("ошибка обновления окна rate limit: %w", err)
	}
	return w, nil
}

// PurgeExpired удаляет окна, начатые раньше before.
func (r *RateLimitRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM rate_limits WHERE window_start < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки окон rate limit: %w", err)
	}
	return tag.RowsAffected(), nil
}
