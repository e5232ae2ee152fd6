// Пакет ratelimit — ограничение частоты запросов по клиенту (фиксированное окно).
//
// Идентификатор клиента (адрес) никогда не хранится в открытом виде:
// ключ окна — BLAKE2b-256 с секретной солью, усечённый до 32 hex-символов.
// Счётчик увеличивается одной атомарной операцией хранилища
// (increment-and-fetch), окно сбрасывается, если истекло.
package ratelimit

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/blake2b"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
)

// failClosedRetry — Retry-After при отказе хранилища в режиме fail closed.
const failClosedRetry = 60 * time.Second

// identityHashLen — длина ключа окна в hex-символах.
const identityHashLen = 32

// Prometheus-метрики решений.
var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sp_rate_limit_decisions_total",
		Help: "Решения rate limiter по исходу: allowed, limited, store_error.",
	},
	[]string{"outcome"},
)

// Store — хранилище окон.
type Store interface {
	// Increment атомарно увеличивает счётчик окна key и возвращает его состояние.
	// Если окно истекло (WindowStart + window <= now), счётчик сбрасывается в 1
	// и WindowStart = now.
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (model.RateWindow, error)
	// PurgeExpired удаляет окна, начатые раньше before. Возвращает число удалённых.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Config — параметры ограничителя.
type Config struct {
	// Max — допустимое число запросов в окне.
	Max int
	// Window — длительность окна.
	Window time.Duration
	// FailOpen — пропускать запросы при недоступном хранилище (development).
	FailOpen bool
	// Salt — секрет для хэширования идентификатора клиента.
	Salt string
	// PurgeInterval — минимальный интервал между очистками истёкших окон (0 — не чистить).
	PurgeInterval time.Duration
}

// Result — решение по запросу.
type Result struct {
	Limited        bool
	Remaining      int
	ResetInSeconds int
	Limit          int
}

// Limiter — ограничитель частоты. Безопасен для конкурентного использования.
type Limiter struct {
	store  Store
	cfg    Config
	key    []byte
	logger *slog.Logger
	now    func() time.Time

	// lastPurge — unix-наносекунды последней очистки.
	lastPurge atomic.Int64
}

// New создаёт Limiter.
func New(store Store, cfg Config, logger *slog.Logger) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("хранилище окон не задано")
	}
	if cfg.Max <= 0 {
		return nil, errors.New("максимум запросов должен быть > 0")
	}
	if cfg.Window <= 0 {
		return nil, errors.New("окно должно быть > 0")
	}

	// Соль произвольной длины сводится к 32-байтному ключу BLAKE2b.
	key := blake2b.Sum256([]byte(cfg.Salt))

	return &Limiter{
		store:  store,
		cfg:    cfg,
		key:    key[:],
		logger: logger.With(slog.String("component", "rate_limiter")),
		now:    time.Now,
	}, nil
}

// Limit возвращает максимум запросов в окне.
func (l *Limiter) Limit() int {
	return l.cfg.Max
}

// HashIdentity возвращает ключ окна для идентификатора клиента.
func (l *Limiter) HashIdentity(identity string) string {
	h, err := blake2b.New256(l.key)
	if err != nil {
		// Ключ всегда 32 байта — ошибка невозможна.
		panic(err)
	}
	h.Write([]byte(identity))
	return hex.EncodeToString(h.Sum(nil))[:identityHashLen]
}

// Allow учитывает запрос клиента identity и возвращает решение.
func (l *Limiter) Allow(ctx context.Context, identity string) Result {
	now := l.now()

	w, err := l.store.Increment(ctx, l.HashIdentity(identity), now, l.cfg.Window)
	if err != nil {
		decisionsTotal.WithLabelValues("store_error").Inc()
		l.logger.Error("Ошибка хранилища rate limit",
			slog.Bool("fail_open", l.cfg.FailOpen),
			slog.String("error", err.Error()),
		)
		if l.cfg.FailOpen {
			return Result{
				Limited:        false,
				Remaining:      l.cfg.Max,
				ResetInSeconds: int(l.cfg.Window.Seconds()),
				Limit:          l.cfg.Max,
			}
		}
		return Result{
			Limited:        true,
			Remaining:      0,
			ResetInSeconds: int(failClosedRetry.Seconds()),
			Limit:          l.cfg.Max,
		}
	}

	l.maybePurge(ctx, now)

	res := Result{
		Limited:        w.Count > l.cfg.Max,
		Remaining:      max(0, l.cfg.Max-w.Count),
		ResetInSeconds: resetIn(w.WindowStart.Add(l.cfg.Window), now),
		Limit:          l.cfg.Max,
	}

	if res.Limited {
		decisionsTotal.WithLabelValues("limited").Inc()
	} else {
		decisionsTotal.WithLabelValues("allowed").Inc()
	}
	return res
}

// maybePurge удаляет истёкшие окна не чаще PurgeInterval.
// Очистка — гигиена таблицы, её ошибка на решение не влияет.
func (l *Limiter) maybePurge(ctx context.Context, now time.Time) {
	if l.cfg.PurgeInterval <= 0 {
		return
	}

	last := l.lastPurge.Load()
	if now.UnixNano()-last < l.cfg.PurgeInterval.Nanoseconds() {
		return
	}
	if !l.lastPurge.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	n, err := l.store.PurgeExpired(ctx, now.Add(-l.cfg.Window))
	if err != nil {
		l.logger.Warn("Ошибка очистки истёкших окон", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		l.logger.Debug("Истёкшие окна удалены", slog.Int64("count", n))
	}
}

// resetIn возвращает секунды до сброса окна, не меньше 1.
func resetIn(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	return max(1, secs)
}
