package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
	"github.com/juliez8/snake-year-shedding-pond/internal/geometry"
	"github.com/juliez8/snake-year-shedding-pond/internal/moderation"
	"github.com/juliez8/snake-year-shedding-pond/internal/placement"
	"github.com/juliez8/snake-year-shedding-pond/internal/repository"
)

// --- Моки ---

type mockPlacer struct {
	placeFn func(existing []model.Position) (model.Position, bool)
	calls   int
}

func (m *mockPlacer) Place(existing []model.Position) (model.Position, bool) {
	m.calls++
	return m.placeFn(existing)
}

type mockEvictor struct {
	evictFn func(ctx context.Context, n int, trigger string) (int, error)
	calls   int
}

func (m *mockEvictor) EvictOldest(ctx context.Context, n int, trigger string) (int, error) {
	m.calls++
	return m.evictFn(ctx, n, trigger)
}

// validDrawing — 10 точек, два цвета, холст 400×400.
func validDrawing() *model.Drawing {
	return &model.Drawing{
		Width:  400,
		Height: 400,
		Strokes: []model.Stroke{
			{Color: "#2f855a", Points: []model.Point{
				{X: 50, Y: 200}, {X: 100, Y: 150}, {X: 150, Y: 200}, {X: 200, Y: 250}, {X: 250, Y: 200},
			}},
			{Color: "#c05621", Points: []model.Point{
				{X: 250, Y: 200}, {X: 300, Y: 150}, {X: 320, Y: 170}, {X: 340, Y: 160}, {X: 360, Y: 180},
			}},
		},
	}
}

func strPtr(s string) *string { return &s }

func newTestSubmissionService(
	t *testing.T,
	repo *memEntryRepo,
	evictor Evictor,
	placer Placer,
) *SubmissionService {
	t.Helper()
	wl, err := moderation.LoadDefaultWordList("en")
	if err != nil {
		t.Fatalf("LoadDefaultWordList ошибка: %v", err)
	}
	return NewSubmissionService(
		repo,
		evictor,
		placer,
		geometry.NewStructural(geometry.DefaultLimits()),
		moderation.NewModerator(wl),
		SubmissionConfig{EvictBatch: 3, EvictRounds: 5},
		testLogger(),
	)
}

// --- Тесты ---

func TestSubmissionService_SubmitLive(t *testing.T) {
	repo := newMemEntryRepo()
	eviction := NewEvictionService(repo, EvictionConfig{Capacity: 80, SweepBatch: 20}, testLogger())
	svc := newTestSubmissionService(t, repo, eviction, placement.NewEngine(0, 0))

	res, err := svc.Submit(context.Background(), Submission{
		Drawing: validDrawing(),
		Message: strPtr("  letting go of 2024  "),
	})
	if err != nil {
		t.Fatalf("Submit ошибка: %v", err)
	}

	if !res.Placed || res.Entry.Location != model.LocationLive {
		t.Errorf("ожидалась живая запись, получено %+v", res)
	}
	if res.Entry.ID == "" {
		t.Error("ID не назначен")
	}
	if res.Entry.Message != "letting go of 2024" {
		t.Errorf("Message = %q", res.Entry.Message)
	}
	pos := res.Entry.Position
	if pos.X < placement.MinCoord || pos.X > placement.MaxCoord ||
		pos.Y < placement.MinCoord || pos.Y > placement.MaxCoord {
		t.Errorf("позиция %+v вне границ", pos)
	}

	// Запись на острове, в галерее её нет
	gallery := NewGalleryService(repo, nil, GalleryConfig{DefaultLimit: 60, MaxLimit: 120}, testLogger())
	page, err := gallery.Page(context.Background(), 1, 60)
	if err != nil {
		t.Fatalf("Page ошибка: %v", err)
	}
	if page.TotalCount != 0 || len(page.Items) != 0 {
		t.Errorf("галерея не пуста: %+v", page)
	}

	island := NewIslandService(repo, FadeConfig{Duration: 8 * time.Hour, MinOpacity: 0.1})
	live, err := island.List(context.Background())
	if err != nil {
		t.Fatalf("List ошибка: %v", err)
	}
	if len(live) != 1 || live[0].ID != res.Entry.ID {
		t.Errorf("на острове %d записей, ожидалась одна новая", len(live))
	}
}

// TestSubmissionService_ArchivedFallback — места нет, вытеснение не помогает:
// ровно одна запись сразу в галерее с позицией (0.5, 0.5).
func TestSubmissionService_ArchivedFallback(t *testing.T) {
	repo := newMemEntryRepo()
	placer := &mockPlacer{placeFn: func(_ []model.Position) (model.Position, bool) {
		return model.Position{}, false
	}}
	evictor := &mockEvictor{evictFn: func(_ context.Context, _ int, _ string) (int, error) {
		return 0, errors.New("database unavailable")
	}}
	svc := newTestSubmissionService(t, repo, evictor, placer)

	archived := 0
	svc.OnArchive(func() { archived++ })

	res, err := svc.Submit(context.Background(), Submission{
		Drawing: validDrawing(),
		Message: strPtr("letting go of 2024"),
	})
	if err != nil {
		t.Fatalf("Submit ошибка: %v", err)
	}

	if res.Placed || res.Entry.Location != model.LocationArchived {
		t.Errorf("ожидалась запись в галерее, получено %+v", res.Entry)
	}
	if res.Entry.Position != model.CentroidPosition {
		t.Errorf("Position = %+v, ожидалось %+v", res.Entry.Position, model.CentroidPosition)
	}
	if repo.inserts != 1 {
		t.Errorf("вставок: %d, ожидалась 1", repo.inserts)
	}
	if evictor.calls != 1 {
		t.Errorf("вытеснений: %d, ожидалось 1 (ошибка прерывает цикл)", evictor.calls)
	}
	if archived != 1 {
		t.Errorf("OnArchive вызван %d раз", archived)
	}
}

// TestSubmissionService_EvictRounds — вытеснение успешно, но место не появляется:
// EvictRounds раундов, затем галерея.
func TestSubmissionService_EvictRounds(t *testing.T) {
	repo := newMemEntryRepo()
	placer := &mockPlacer{placeFn: func(_ []model.Position) (model.Position, bool) {
		return model.Position{}, false
	}}
	evictor := &mockEvictor{evictFn: func(_ context.Context, n int, trigger string) (int, error) {
		if n != 3 || trigger != TriggerSubmission {
			t.Errorf("EvictOldest(%d, %q)", n, trigger)
		}
		return n, nil
	}}
	svc := newTestSubmissionService(t, repo, evictor, placer)

	res, err := svc.Submit(context.Background(), Submission{
		Drawing: validDrawing(),
		Message: strPtr("goodbye doubt"),
	})
	if err != nil {
		t.Fatalf("Submit ошибка: %v", err)
	}
	if res.Placed {
		t.Error("запись не должна быть размещена")
	}
	if evictor.calls != 5 {
		t.Errorf("раундов вытеснения: %d, ожидалось 5", evictor.calls)
	}
	if placer.calls != 6 {
		t.Errorf("попыток размещения: %d, ожидалось 6", placer.calls)
	}
}

// TestSubmissionService_EvictThenPlace — после одного раунда вытеснения место появилось.
func TestSubmissionService_EvictThenPlace(t *testing.T) {
	repo := newMemEntryRepo()
	placer := &mockPlacer{}
	placer.placeFn = func(_ []model.Position) (model.Position, bool) {
		if placer.calls == 1 {
			return model.Position{}, false
		}
		return model.Position{X: 0.3, Y: 0.7}, true
	}
	evictor := &mockEvictor{evictFn: func(_ context.Context, n int, _ string) (int, error) {
		return n, nil
	}}
	svc := newTestSubmissionService(t, repo, evictor, placer)

	res, err := svc.Submit(context.Background(), Submission{
		Drawing: validDrawing(),
		Message: strPtr("goodbye doubt"),
	})
	if err != nil {
		t.Fatalf("Submit ошибка: %v", err)
	}
	if !res.Placed || res.Entry.Position != (model.Position{X: 0.3, Y: 0.7}) {
		t.Errorf("результат = %+v", res.Entry)
	}
	if evictor.calls != 1 {
		t.Errorf("вытеснений: %d, ожидалось 1", evictor.calls)
	}
}

func TestSubmissionService_PositionsReadError(t *testing.T) {
	repo := newMemEntryRepo()
	repo.listPositionsFn = func(_ context.Context, _ model.Location) ([]model.Position, error) {
		return nil, errors.New("timeout")
	}
	placer := &mockPlacer{placeFn: func(_ []model.Position) (model.Position, bool) {
		t.Fatal("Place не должен вызываться")
		return model.Position{}, false
	}}
	svc := newTestSubmissionService(t, repo, &mockEvictor{}, placer)

	res, err := svc.Submit(context.Background(), Submission{
		Drawing: validDrawing(),
		Message: strPtr("goodbye doubt"),
	})
	if err != nil {
		t.Fatalf("Submit ошибка: %v", err)
	}
	if res.Entry.Location != model.LocationArchived {
		t.Errorf("Location = %q, ожидалось archived", res.Entry.Location)
	}
}

func TestSubmissionService_Rejections(t *testing.T) {
	tooFew := validDrawing()
	tooFew.Strokes = tooFew.Strokes[:1]
	tooFew.Strokes[0].Points = tooFew.Strokes[0].Points[:3]

	badColor := validDrawing()
	badColor.Strokes[1].Color = "red"

	tests := []struct {
		name       string
		sub        Submission
		wantStage  Stage
		wantReason string
	}{
		{"no message", Submission{Drawing: validDrawing()}, StageMessage, moderation.ErrMessageRequired.Error()},
		{"blank message", Submission{Drawing: validDrawing(), Message: strPtr(" \u200b ")}, StageMessage, moderation.ErrMessageEmpty.Error()},
		{"profanity", Submission{Drawing: validDrawing(), Message: strPtr("s.h.1.t")}, StageModeration, moderation.ErrInappropriate.Error()},
		{"no drawing", Submission{Message: strPtr("hello")}, StageGeometry, ReasonDrawingRequired},
		{"no strokes", Submission{Drawing: &model.Drawing{Width: 400, Height: 400}, Message: strPtr("hello")}, StageGeometry, geometry.ReasonTooLittle},
		{"too few points", Submission{Drawing: tooFew, Message: strPtr("hello")}, StageGeometry, geometry.ReasonTooLittle},
		{"bad color", Submission{Drawing: badColor, Message: strPtr("hello")}, StageGeometry, geometry.ReasonColor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemEntryRepo()
			repo.insertFn = func(_ context.Context, _ *model.Entry) error {
				t.Fatal("Insert не должен вызываться")
				return nil
			}
			svc := newTestSubmissionService(t, repo, &mockEvictor{}, placement.NewEngine(0, 0))

			_, err := svc.Submit(context.Background(), tt.sub)
			var rej *RejectionError
			if !errors.As(err, &rej) {
				t.Fatalf("ожидался *RejectionError, получено %v", err)
			}
			if rej.Stage != tt.wantStage {
				t.Errorf("Stage = %q, ожидалось %q", rej.Stage, tt.wantStage)
			}
			if rej.Reason != tt.wantReason {
				t.Errorf("Reason = %q, ожидалось %q", rej.Reason, tt.wantReason)
			}
		})
	}
}

func TestSubmissionService_InsertError(t *testing.T) {
	repo := newMemEntryRepo()
	repo.insertFn = func(_ context.Context, _ *model.Entry) error {
		return errors.New("disk full")
	}
	svc := newTestSubmissionService(t, repo, &mockEvictor{}, placement.NewEngine(0, 0))

	_, err := svc.Submit(context.Background(), Submission{
		Drawing: validDrawing(),
		Message: strPtr("hello"),
	})
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	var rej *RejectionError
	if errors.As(err, &rej) {
		t.Error("ошибка сохранения не должна быть отказом проверки")
	}
	if errors.Is(err, repository.ErrNotFound) {
		t.Error("неожиданная ErrNotFound")
	}
}
