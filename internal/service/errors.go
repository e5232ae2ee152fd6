package service

import "errors"

// Ошибки сервисного слоя.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
)

// Stage — этап обработки отправки, на котором она отклонена.
type Stage string

// Этапы проверки отправки.
const (
	StageMessage    Stage = "message"
	StageModeration Stage = "moderation"
	StageGeometry   Stage = "geometry"
)

// ReasonDrawingRequired — в запросе нет рисунка.
const ReasonDrawingRequired = "Drawing data is required"

// RejectionError — отказ на этапе проверки. Reason показывается пользователю как есть.
type RejectionError struct {
	Stage  Stage
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}
