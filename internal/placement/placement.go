// Пакет placement — поиск свободной точки для новой записи среди живых.
//
// Случайная выборка с отказом: до MaxAttempts равномерных точек в
// [MinCoord, MaxCoord]², первая точка, удалённая от всех существующих
// не ближе MinDistance, принимается. Если бюджет исчерпан — found=false,
// решение о запасном варианте принимает вызывающий.
package placement

import (
	"math"
	"math/rand/v2"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
)

// Границы области размещения в нормализованных координатах.
const (
	MinCoord = 0.1
	MaxCoord = 0.9
)

// Значения по умолчанию.
const (
	DefaultMinDistance = 0.18
	DefaultMaxAttempts = 200
)

// Engine — генератор позиций. Безопасен для конкурентного использования,
// если безопасен источник случайных чисел (по умолчанию — да).
type Engine struct {
	minDistance float64
	maxAttempts int
	rand        func() float64
}

// Option — опция Engine.
type Option func(*Engine)

// WithRand подменяет источник случайных чисел в [0, 1). Для тестов.
func WithRand(fn func() float64) Option {
	return func(e *Engine) {
		e.rand = fn
	}
}

// NewEngine создаёт Engine. Неположительные параметры заменяются значениями по умолчанию.
func NewEngine(minDistance float64, maxAttempts int, opts ...Option) *Engine {
	if minDistance <= 0 || math.IsNaN(minDistance) {
		minDistance = DefaultMinDistance
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	e := &Engine{
		minDistance: minDistance,
		maxAttempts: maxAttempts,
		rand:        rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MinDistance возвращает минимальное расстояние между позициями.
func (e *Engine) MinDistance() float64 {
	return e.minDistance
}

// Place ищет позицию, удалённую от всех existing не ближе MinDistance.
func (e *Engine) Place(existing []model.Position) (model.Position, bool) {
	span := MaxCoord - MinCoord

	for range e.maxAttempts {
		candidate := model.Position{
			X: MinCoord + e.rand()*span,
			Y: MinCoord + e.rand()*span,
		}
		if e.fits(candidate, existing) {
			return candidate, true
		}
	}
	return model.Position{}, false
}

// fits проверяет расстояние до всех существующих позиций.
func (e *Engine) fits(p model.Position, existing []model.Position) bool {
	for _, q := range existing {
		if math.Hypot(p.X-q.X, p.Y-q.Y) < e.minDistance {
			return false
		}
	}
	return true
}
