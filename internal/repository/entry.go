package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
)

// entryColumns — столбцы entries для SELECT-запросов.
const entryColumns = `id, drawing, message, location, position_x, position_y, created_at`

// Направления сортировки по created_at.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ListParams — параметры выборки записей.
type ListParams struct {
	// Location — фильтр по расположению (обязателен)
	Location model.Location
	// Order — asc (старые первыми) или desc; иное значение трактуется как asc
	Order string
	// Limit — количество записей (0 — без ограничения)
	Limit int
	// Offset — смещение
	Offset int
}

// EntryRepository — доступ к записям пруда.
type EntryRepository interface {
	// Insert сохраняет запись. Пустой ID заполняется новым UUID,
	// CreatedAt берётся из БД.
	Insert(ctx context.Context, e *model.Entry) error
	// GetByID возвращает запись по UUID или ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.Entry, error)
	// List возвращает записи по фильтру с сортировкой по created_at.
	List(ctx context.Context, params ListParams) ([]*model.Entry, error)
	// Count возвращает количество записей с указанным расположением.
	Count(ctx context.Context, loc model.Location) (int, error)
	// ListPositions возвращает позиции всех записей с указанным расположением.
	ListPositions(ctx context.Context, loc model.Location) ([]model.Position, error)
	// ListOldestLiveIDs возвращает ID n самых старых живых записей.
	ListOldestLiveIDs(ctx context.Context, n int) ([]string, error)
	// ArchiveByIDs переводит живые записи из ids в архив одним UPDATE.
	// Возвращает количество действительно перемещённых записей.
	ArchiveByIDs(ctx context.Context, ids []string) (int64, error)
}

// entryRepo — реализация EntryRepository через pgx.
type entryRepo struct {
	db DBTX
}

// NewEntryRepository создаёт репозиторий записей.
func NewEntryRepository(db DBTX) EntryRepository {
	return &entryRepo{db: db}
}

// Insert сохраняет запись и заполняет ID/CreatedAt.
func (r *entryRepo) Insert(ctx context.Context, e *model.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	drawing, err := json.Marshal(e.Drawing)
	if err != nil {
		return fmt.Errorf("ошибка сериализации рисунка: %w", err)
	}

	query := `
		INSERT INTO entries (id, drawing, message, location, position_x, position_y)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err = r.db.QueryRow(ctx, query,
		e.ID, drawing, e.Message, string(e.Location), e.Position.X, e.Position.Y,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи: %w", err)
	}
	return nil
}

// GetByID возвращает запись по UUID или ErrNotFound.
// Некорректный UUID также даёт ErrNotFound.
func (r *entryRepo) GetByID(ctx context.Context, id string) (*model.Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM entries WHERE id = $1`, entryColumns)

	e, err := scanEntry(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return e, nil
}

// List возвращает записи с фильтром по location, сортировкой и пагинацией.
func (r *entryRepo) List(ctx context.Context, params ListParams) ([]*model.Entry, error) {
	query, args := buildListQuery(params)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки записей: %w", err)
	}
	defer rows.Close()

	var result []*model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

// Count возвращает количество записей с указанным расположением.
func (r *entryRepo) Count(ctx context.Context, loc model.Location) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM entries WHERE location = $1`, string(loc)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return n, nil
}

// ListPositions возвращает позиции записей с указанным расположением.
func (r *entryRepo) ListPositions(ctx context.Context, loc model.Location) ([]model.Position, error) {
	rows, err := r.db.Query(ctx,
		`SELECT position_x, position_y FROM entries WHERE location = $1`, string(loc))
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки позиций: %w", err)
	}
	defer rows.Close()

	var result []model.Position
	for rows.Next() {
		var p model.Position
		if err := rows.Scan(&p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("ошибка сканирования позиции: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации позиций: %w", err)
	}
	return result, nil
}

// ListOldestLiveIDs возвращает ID n самых старых живых записей.
func (r *entryRepo) ListOldestLiveIDs(ctx context.Context, n int) ([]string, error) {
	query := `
		SELECT id FROM entries
		WHERE location = 'live'
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки старейших записей: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ID: %w", err)
		}
		ids = append(ids, id.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации ID: %w", err)
	}
	return ids, nil
}

// ArchiveByIDs переводит записи в архив. Уже архивные записи не считаются:
// при гонке двух вытеснений RowsAffected показывает реальное число перемещённых.
func (r *entryRepo) ArchiveByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE entries
		SET location = 'archived'
		WHERE id = ANY($1::uuid[]) AND location = 'live'`

	tag, err := r.db.Exec(ctx, query, ids)
	if err != nil {
		return 0, fmt.Errorf("ошибка перевода записей в архив: %w", err)
	}
	return tag.RowsAffected(), nil
}

// buildListQuery строит SELECT для List. Направление сортировки — из whitelist.
func buildListQuery(params ListParams) (query string, args []any) {
	order := "ASC"
	if params.Order == OrderDesc {
		order = "DESC"
	}

	args = []any{string(params.Location)}
	query = fmt.Sprintf(
		`SELECT %s FROM entries WHERE location = $1 ORDER BY created_at %s, id %s`,
		entryColumns, order, order,
	)

	if params.Limit > 0 {
		args = append(args, params.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if params.Offset > 0 {
		args = append(args, params.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

// scanEntry сканирует строку entries (порядок — entryColumns).
func scanEntry(row pgx.Row) (*model.Entry, error) {
	var (
		e        model.Entry
		id       uuid.UUID
		drawing  []byte
		location string
	)
	if err := row.Scan(
		&id, &drawing, &e.Message, &location, &e.Position.X, &e.Position.Y, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(drawing, &e.Drawing); err != nil {
		return nil, fmt.Errorf("некорректный рисунок записи %s: %w", id, err)
	}
	e.ID = id.String()
	e.Location = model.Location(location)
	return &e, nil
}
