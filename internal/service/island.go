// island.go — живой остров: записи старые первыми с затуханием.
// Запись теряет непрозрачность линейно за FadeDuration, но не ниже MinOpacity.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
	"github.com/juliez8/snake-year-shedding-pond/internal/repository"
)

// FadeConfig — параметры затухания.
type FadeConfig struct {
	Duration   time.Duration
	MinOpacity float64
}

// IslandEntry — живая запись с состоянием затухания.
type IslandEntry struct {
	*model.Entry
	Opacity        float64
	HoursRemaining float64
}

// IslandService — выдача живого острова.
type IslandService struct {
	entries repository.EntryRepository
	fade    FadeConfig
	now     func() time.Time
}

// NewIslandService создаёт сервис острова.
func NewIslandService(entries repository.EntryRepository, fade FadeConfig) *IslandService {
	return &IslandService{
		entries: entries,
		fade:    fade,
		now:     time.Now,
	}
}

// List возвращает живые записи (старые первыми) с непрозрачностью.
func (s *IslandService) List(ctx context.Context) ([]IslandEntry, error) {
	items, err := s.entries.List(ctx, repository.ListParams{
		Location: model.LocationLive,
		Order:    repository.OrderAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("чтение острова: %w", err)
	}

	now := s.now()
	result := make([]IslandEntry, 0, len(items))
	for _, e := range items {
		opacity, remaining := s.fade.At(e.CreatedAt, now)
		result = append(result, IslandEntry{Entry: e, Opacity: opacity, HoursRemaining: remaining})
	}
	return result, nil
}

// At возвращает непрозрачность и часы до полного затухания записи,
// созданной в createdAt, на момент now.
func (f FadeConfig) At(createdAt, now time.Time) (opacity, hoursRemaining float64) {
	fadeHours := f.Duration.Hours()
	passed := now.Sub(createdAt).Hours()

	opacity = min(1, max(1-passed/fadeHours, f.MinOpacity))
	hoursRemaining = max(fadeHours-passed, 0)
	return opacity, hoursRemaining
}
