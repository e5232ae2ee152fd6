// eviction.go — вытеснение старейших записей с острова в галерею.
//
// Два режима, одна логика:
//  1. Плановая чистка (Sweep): если живых больше Capacity — одна партия SweepBatch.
//     Запускается тикером (SP_SWEEP_INTERVAL) и через POST /migrate.
//  2. По требованию (EvictOldest): оркестратор отправки освобождает место,
//     когда Placement Engine не нашёл позицию.
//
// Перевод партии — один UPDATE, поэтому партия либо переходит целиком,
// либо не переходит. Возвращается фактическое число перемещённых записей.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
	"github.com/juliez8/snake-year-shedding-pond/internal/repository"
)

// Источники вытеснения (лейбл метрики).
const (
	TriggerSweep      = "sweep"
	TriggerSubmission = "submission"
)

// Prometheus-метрики вытеснения.
var (
	evictedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sp_evicted_entries_total",
			Help: "Количество записей, переведённых с острова в галерею.",
		},
		[]string{"trigger"},
	)
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sp_sweep_runs_total",
		Help: "Общее количество запусков плановой чистки.",
	})
	liveEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sp_live_entries",
		Help: "Количество живых записей после последней плановой чистки.",
	})
)

// EvictionConfig — параметры вытеснения.
type EvictionConfig struct {
	// Capacity — ёмкость острова
	Capacity int
	// SweepBatch — размер партии плановой чистки
	SweepBatch int
	// Interval — период тикера (0 — тикер не запускается)
	Interval time.Duration
}

// SweepResult — результат плановой чистки.
type SweepResult struct {
	// Migrated — были ли перемещены записи
	Migrated bool
	// Count — количество перемещённых записей
	Count int
	// LiveCount — живых записей после чистки
	LiveCount int
}

// EvictionService — вытеснение записей в галерею.
type EvictionService struct {
	entries repository.EntryRepository
	cfg     EvictionConfig
	logger  *slog.Logger

	onEvict func() // вызывается после перемещения хотя бы одной записи

	mu     sync.Mutex // сериализация Sweep внутри экземпляра
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEvictionService создаёт сервис вытеснения.
func NewEvictionService(entries repository.EntryRepository, cfg EvictionConfig, logger *slog.Logger) *EvictionService {
	return &EvictionService{
		entries: entries,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "eviction")),
	}
}

// OnEvict задаёт обработчик изменения галереи. Вызывать до Start.
func (s *EvictionService) OnEvict(fn func()) {
	s.onEvict = fn
}

// EvictOldest переводит в архив до n старейших живых записей.
// Возвращает число действительно перемещённых (0 — остров пуст или запись
// уже перенёс конкурентный запрос).
func (s *EvictionService) EvictOldest(ctx context.Context, n int, trigger string) (int, error) {
	ids, err := s.entries.ListOldestLiveIDs(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("выборка старейших записей: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	moved, err := s.entries.ArchiveByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("перевод в архив: %w", err)
	}

	evictedTotal.WithLabelValues(trigger).Add(float64(moved))
	if moved > 0 && s.onEvict != nil {
		s.onEvict()
	}
	s.logger.Info("Записи переведены в галерею",
		slog.String("trigger", trigger),
		slog.Int("requested", n),
		slog.Int64("moved", moved),
	)
	return int(moved), nil
}

// Sweep — плановая чистка. Если живых не больше Capacity — ничего не делает.
func (s *EvictionService) Sweep(ctx context.Context) (*SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sweepRunsTotal.Inc()

	live, err := s.entries.Count(ctx, model.LocationLive)
	if err != nil {
		return nil, fmt.Errorf("подсчёт живых записей: %w", err)
	}
	if live <= s.cfg.Capacity {
		liveEntries.Set(float64(live))
		s.logger.Debug("Чистка не требуется",
			slog.Int("live", live),
			slog.Int("capacity", s.cfg.Capacity),
		)
		return &SweepResult{LiveCount: live}, nil
	}

	moved, err := s.EvictOldest(ctx, s.cfg.SweepBatch, TriggerSweep)
	if err != nil {
		return nil, err
	}

	liveEntries.Set(float64(live - moved))
	return &SweepResult{
		Migrated:  moved > 0,
		Count:     moved,
		LiveCount: live - moved,
	}, nil
}

// Start запускает фоновую чистку с периодическим тикером.
// При Interval <= 0 ничего не делает.
func (s *EvictionService) Start(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		s.logger.Info("Плановая чистка отключена, доступна через POST /migrate")
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(sweepCtx)

	s.logger.Info("Плановая чистка запущена",
		slog.String("interval", s.cfg.Interval.String()),
		slog.Int("capacity", s.cfg.Capacity),
		slog.Int("batch", s.cfg.SweepBatch),
	)
}

// Stop останавливает фоновую чистку и ждёт завершения текущего прохода.
func (s *EvictionService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Плановая чистка остановлена")
}

// run — основной цикл фоновой горутины.
func (s *EvictionService) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Ошибка плановой чистки", slog.String("error", err.Error()))
			}
		}
	}
}
