package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
	"github.com/juliez8/snake-year-shedding-pond/internal/repository"
)

// ReportService — жалобы на записи. Повторные жалобы допустимы:
// больше жалоб — выше срочность для модератора.
type ReportService struct {
	reports repository.ReportRepository
	logger  *slog.Logger
}

// NewReportService создаёт сервис жалоб.
func NewReportService(reports repository.ReportRepository, logger *slog.Logger) *ReportService {
	return &ReportService{
		reports: reports,
		logger:  logger.With(slog.String("component", "report_service")),
	}
}

// Report сохраняет жалобу на запись entryID. ErrNotFound — записи нет.
func (s *ReportService) Report(ctx context.Context, entryID string) (*model.Report, error) {
	rep, err := s.reports.Insert(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("сохранение жалобы: %w", err)
	}

	s.logger.Info("Жалоба принята",
		slog.String("entry_id", entryID),
		slog.Int64("report_id", rep.ID),
	)
	return rep, nil
}
