package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
	"github.com/juliez8/snake-year-shedding-pond/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memEntryRepo — EntryRepository в памяти для unit-тестов.
// fn-поля позволяют подменить отдельные методы (например, для имитации ошибок).
type memEntryRepo struct {
	mu      sync.Mutex
	entries []*model.Entry
	seq     int
	clock   time.Time

	insertFn        func(ctx context.Context, e *model.Entry) error
	listPositionsFn func(ctx context.Context, loc model.Location) ([]model.Position, error)
	archiveByIDsFn  func(ctx context.Context, ids []string) (int64, error)
	countFn         func(ctx context.Context, loc model.Location) (int, error)
	// listFn наблюдает параметры List, результат не подменяет
	listFn func(params repository.ListParams)

	inserts int
}

func newMemEntryRepo() *memEntryRepo {
	return &memEntryRepo{clock: time.Date(2025, 1, 29, 0, 0, 0, 0, time.UTC)}
}

// seed добавляет n записей с возрастающим created_at (шаг — минута).
func (m *memEntryRepo) seed(n int, loc model.Location) []*model.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var added []*model.Entry
	for range n {
		e := m.newEntryLocked(loc)
		e.Position = model.Position{X: 0.5, Y: 0.5}
		m.entries = append(m.entries, e)
		added = append(added, e)
	}
	return added
}

func (m *memEntryRepo) newEntryLocked(loc model.Location) *model.Entry {
	m.seq++
	m.clock = m.clock.Add(time.Minute)
	return &model.Entry{
		ID:        fmt.Sprintf("00000000-0000-0000-0000-%012d", m.seq),
		Message:   fmt.Sprintf("entry %d", m.seq),
		Location:  loc,
		CreatedAt: m.clock,
	}
}

func (m *memEntryRepo) Insert(ctx context.Context, e *model.Entry) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inserts++
	m.seq++
	m.clock = m.clock.Add(time.Minute)
	if e.ID == "" {
		e.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", m.seq)
	}
	e.CreatedAt = m.clock
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memEntryRepo) GetByID(_ context.Context, id string) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memEntryRepo) List(_ context.Context, params repository.ListParams) ([]*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listFn != nil {
		m.listFn(params)
	}

	var res []*model.Entry
	for _, e := range m.entries {
		if e.Location == params.Location {
			cp := *e
			res = append(res, &cp)
		}
	}
	slices.SortFunc(res, func(a, b *model.Entry) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if params.Order == repository.OrderDesc {
		slices.Reverse(res)
	}
	if params.Offset >= len(res) {
		return nil, nil
	}
	res = res[params.Offset:]
	if params.Limit > 0 && params.Limit < len(res) {
		res = res[:params.Limit]
	}
	return res, nil
}

func (m *memEntryRepo) Count(ctx context.Context, loc model.Location) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, loc)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Location == loc {
			n++
		}
	}
	return n, nil
}

func (m *memEntryRepo) ListPositions(ctx context.Context, loc model.Location) ([]model.Position, error) {
	if m.listPositionsFn != nil {
		return m.listPositionsFn(ctx, loc)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []model.Position
	for _, e := range m.entries {
		if e.Location == loc {
			res = append(res, e.Position)
		}
	}
	return res, nil
}

func (m *memEntryRepo) ListOldestLiveIDs(ctx context.Context, n int) ([]string, error) {
	live, _ := m.List(ctx, repository.ListParams{Location: model.LocationLive, Order: repository.OrderAsc, Limit: n})
	ids := make([]string, 0, len(live))
	for _, e := range live {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (m *memEntryRepo) ArchiveByIDs(ctx context.Context, ids []string) (int64, error) {
	if m.archiveByIDsFn != nil {
		return m.archiveByIDsFn(ctx, ids)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var moved int64
	for _, e := range m.entries {
		if e.Location == model.LocationLive && slices.Contains(ids, e.ID) {
			e.Location = model.LocationArchived
			moved++
		}
	}
	return moved, nil
}

// locationOf возвращает текущее расположение записи по ID.
func (m *memEntryRepo) locationOf(id string) model.Location {
	e, err := m.GetByID(context.Background(), id)
	if err != nil {
		return ""
	}
	return e.Location
}

// mockReportRepo — мок ReportRepository с fn-полем.
type mockReportRepo struct {
	insertFn func(ctx context.Context, entryID string) (*model.Report, error)
}

func (m *mockReportRepo) Insert(ctx context.Context, entryID string) (*model.Report, error) {
	return m.insertFn(ctx, entryID)
}
