// gallery.go — постраничная выдача галереи (архивные записи, новые первыми).
// Список и общее количество читаются параллельно (errgroup).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
	"github.com/juliez8/snake-year-shedding-pond/internal/repository"
)

// GalleryConfig — параметры пагинации и кэша.
type GalleryConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// GalleryPage — страница галереи с метаданными пагинации.
type GalleryPage struct {
	Items      []*model.Entry
	Page       int
	Limit      int
	TotalCount int
	TotalPages int
	HasMore    bool
}

// GalleryService — выдача галереи.
type GalleryService struct {
	entries repository.EntryRepository
	cache   *PageCache
	cfg     GalleryConfig
	logger  *slog.Logger
}

// NewGalleryService создаёт сервис галереи. cache может быть nil.
func NewGalleryService(
	entries repository.EntryRepository,
	cache *PageCache,
	cfg GalleryConfig,
	logger *slog.Logger,
) *GalleryService {
	return &GalleryService{
		entries: entries,
		cache:   cache,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "gallery_service")),
	}
}

// Normalize приводит параметры к допустимым: 1 <= page <= maxPage(limit),
// 1 <= limit <= MaxLimit. Отсутствующие (nil) или некорректные (< 1) значения
// заменяются умолчаниями.
func (s *GalleryService) Normalize(page, limit *int) (pageVal, limitVal int) {
	pageVal, limitVal = 1, s.cfg.DefaultLimit

	if limit != nil && *limit >= 1 {
		limitVal = min(*limit, s.cfg.MaxLimit)
	}
	if page != nil && *page >= 1 {
		pageVal = min(*page, maxPage(limitVal))
	}
	return pageVal, limitVal
}

// maxPage — наибольшая страница, для которой смещение (page-1)*limit не переполняет int.
func maxPage(limit int) int {
	return math.MaxInt/limit + 1
}

// Page возвращает страницу галереи. page и limit должны быть нормализованы.
func (s *GalleryService) Page(ctx context.Context, page, limit int) (*GalleryPage, error) {
	if limit < 1 || page < 1 || page > maxPage(limit) {
		return nil, fmt.Errorf("некорректные параметры страницы: page=%d limit=%d", page, limit)
	}

	if s.cache != nil {
		if p, ok := s.cache.Get(page, limit); ok {
			return p, nil
		}
	}

	var (
		items []*model.Entry
		total int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.entries.List(gctx, repository.ListParams{
			Location: model.LocationArchived,
			Order:    repository.OrderDesc,
			Limit:    limit,
			Offset:   (page - 1) * limit,
		})
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.entries.Count(gctx, model.LocationArchived)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("чтение галереи: %w", err)
	}

	if items == nil {
		items = []*model.Entry{}
	}

	totalPages := (total + limit - 1) / limit
	p := &GalleryPage{
		Items:      items,
		Page:       page,
		Limit:      limit,
		TotalCount: total,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}

	if s.cache != nil {
		s.cache.Set(page, limit, p)
	}
	return p, nil
}

// Invalidate сбрасывает кэш страниц.
func (s *GalleryService) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}
