// submission.go — оркестратор отправки: решение «принять/отклонить» и сохранение.
//
// Этапы (линейно, без возврата):
//
//	сообщение очищено → модерация → геометрия → размещение → сохранение
//
// Rate limit, размер тела и разбор JSON проверяются раньше, на HTTP-слое.
// Любой отказ — *RejectionError с текстом для пользователя.
//
// Размещение: свежее чтение живых позиций перед каждой попыткой; если места
// нет — вытеснение EvictBatch старейших и повтор, до EvictRounds раундов.
// Если место так и не нашлось, запись сразу уходит в галерею с позицией
// (0.5, 0.5): успешная отправка никогда не теряется. Сохраняется ровно одна
// запись на отправку.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
	"github.com/juliez8/snake-year-shedding-pond/internal/geometry"
	"github.com/juliez8/snake-year-shedding-pond/internal/moderation"
	"github.com/juliez8/snake-year-shedding-pond/internal/repository"
)

// Prometheus-метрики отправок.
var submissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sp_submissions_total",
		Help: "Отправки по исходу: live, archived, rejected_<stage>, error.",
	},
	[]string{"outcome"},
)

// Placer — поиск свободной позиции на острове.
type Placer interface {
	Place(existing []model.Position) (model.Position, bool)
}

// ContentChecker — проверка очищенного текста на недопустимую лексику.
type ContentChecker interface {
	Check(text string) error
}

// Evictor — вытеснение старейших живых записей.
type Evictor interface {
	EvictOldest(ctx context.Context, n int, trigger string) (int, error)
}

// Submission — входные данные отправки после разбора JSON.
// nil Message означает, что поле отсутствовало или не было строкой;
// nil Drawing — что рисунка в запросе нет.
type Submission struct {
	Drawing *model.Drawing
	Message *string
}

// SubmitResult — результат успешной отправки.
type SubmitResult struct {
	Entry *model.Entry
	// Placed — запись на острове; false — сразу в галерее (места не нашлось)
	Placed bool
}

// SubmissionConfig — параметры цикла размещения.
type SubmissionConfig struct {
	// EvictBatch — записей, вытесняемых за раунд
	EvictBatch int
	// EvictRounds — максимум раундов вытеснения
	EvictRounds int
}

// SubmissionService — оркестратор отправки.
type SubmissionService struct {
	entries   repository.EntryRepository
	evictor   Evictor
	placer    Placer
	policy    geometry.Policy
	moderator ContentChecker
	cfg       SubmissionConfig
	logger    *slog.Logger

	onArchive func()
}

// NewSubmissionService создаёт оркестратор отправки.
func NewSubmissionService(
	entries repository.EntryRepository,
	evictor Evictor,
	placer Placer,
	policy geometry.Policy,
	moderator ContentChecker,
	cfg SubmissionConfig,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		entries:   entries,
		evictor:   evictor,
		placer:    placer,
		policy:    policy,
		moderator: moderator,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "submission")),
	}
}

// OnArchive задаёт обработчик, вызываемый, когда запись сразу ушла в галерею.
func (s *SubmissionService) OnArchive(fn func()) {
	s.onArchive = fn
}

// Submit проверяет, размещает и сохраняет отправку.
// Ошибки проверки — *RejectionError; прочие ошибки — инфраструктурные.
func (s *SubmissionService) Submit(ctx context.Context, sub Submission) (*SubmitResult, error) {
	msg, err := moderation.Sanitize(sub.Message)
	if err != nil {
		return nil, s.reject(StageMessage, err.Error())
	}

	if err := s.moderator.Check(msg); err != nil {
		return nil, s.reject(StageModeration, err.Error())
	}

	if sub.Drawing == nil {
		return nil, s.reject(StageGeometry, ReasonDrawingRequired)
	}
	if res := s.policy.Validate(sub.Drawing); !res.Valid {
		return nil, s.reject(StageGeometry, res.Reason)
	}

	pos, placed := s.place(ctx)

	entry := &model.Entry{
		Drawing:  *sub.Drawing,
		Message:  msg,
		Location: model.LocationLive,
		Position: pos,
	}
	if !placed {
		entry.Location = model.LocationArchived
		entry.Position = model.CentroidPosition
	}

	if err := s.entries.Insert(ctx, entry); err != nil {
		submissionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("сохранение записи: %w", err)
	}

	submissionsTotal.WithLabelValues(string(entry.Location)).Inc()
	if !placed && s.onArchive != nil {
		s.onArchive()
	}
	s.logger.Info("Запись принята",
		slog.String("entry_id", entry.ID),
		slog.String("location", string(entry.Location)),
		slog.Int("points", entry.Drawing.PointCount()),
	)

	return &SubmitResult{Entry: entry, Placed: placed}, nil
}

// place ищет позицию на острове, освобождая место вытеснением.
// Ошибка чтения или вытеснения, как и пустой раунд вытеснения,
// прерывает цикл: вызывающий уходит в галерею.
func (s *SubmissionService) place(ctx context.Context) (model.Position, bool) {
	for round := 0; ; round++ {
		existing, err := s.entries.ListPositions(ctx, model.LocationLive)
		if err != nil {
			s.logger.Warn("Не удалось прочитать позиции острова",
				slog.Int("round", round),
				slog.String("error", err.Error()),
			)
			return model.Position{}, false
		}

		if pos, ok := s.placer.Place(existing); ok {
			return pos, true
		}

		if round >= s.cfg.EvictRounds {
			break
		}

		moved, err := s.evictor.EvictOldest(ctx, s.cfg.EvictBatch, TriggerSubmission)
		if err != nil {
			s.logger.Warn("Вытеснение не удалось",
				slog.Int("round", round),
				slog.String("error", err.Error()),
			)
			break
		}
		if moved == 0 {
			break
		}
	}

	s.logger.Info("Место на острове не найдено, запись уходит в галерею",
		slog.Int("rounds", s.cfg.EvictRounds),
	)
	return model.Position{}, false
}

// reject учитывает отказ в метриках и возвращает RejectionError.
func (s *SubmissionService) reject(stage Stage, reason string) error {
	submissionsTotal.WithLabelValues("rejected_" + string(stage)).Inc()
	s.logger.Debug("Отправка отклонена",
		slog.String("stage", string(stage)),
		slog.String("reason", reason),
	)
	return &RejectionError{Stage: stage, Reason: reason}
}
