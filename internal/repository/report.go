package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
)

// ReportRepository — запись жалоб на записи пруда.
type ReportRepository interface {
	// Insert создаёт жалобу на запись entryID, копируя её текущее сообщение.
	// Возвращает ErrNotFound, если записи нет.
	Insert(ctx context.Context, entryID string) (*model.Report, error)
}

// reportRepo — реализация ReportRepository через pgx.
type reportRepo struct {
	db DBTX
}

// NewReportRepository создаёт репозиторий жалоб.
func NewReportRepository(db DBTX) ReportRepository {
	return &reportRepo{db: db}
}

// Insert — проверка существования и вставка одним запросом:
// INSERT ... SELECT не вставит ничего, если записи нет.
func (r *reportRepo) Insert(ctx context.Context, entryID string) (*model.Report, error) {
	query := `
		INSERT INTO reports (entry_id, message)
		SELECT id, message FROM entries WHERE id = $1
		RETURNING id, message, created_at`

	rep := &model.Report{EntryID: entryID}
	err := r.db.QueryRow(ctx, query, entryID).Scan(&rep.ID, &rep.Message, &rep.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сохранения жалобы: %w", err)
	}
	return rep, nil
}
