// Пакет geometry — проверка присланного рисунка.
//
// Проверки структурные (защита от злоупотреблений), а не художественные:
// строгость задаётся политикой (Policy), которую можно заменить, не трогая
// оркестратор отправки. Результат — всё или ничего, первая нарушенная проверка
// определяет причину отказа.
package geometry

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/juliez8/snake-year-shedding-pond/internal/domain/model"
)

// Причины отказа, показываемые пользователю.
const (
	ReasonTooLittle      = "Give your snake a little more slither."
	ReasonTooManyStrokes = "Drawing has too many strokes."
	ReasonDimensions     = "Invalid drawing dimensions."
	ReasonStrokeData     = "Invalid stroke data."
	ReasonColor          = "Invalid stroke color."
	ReasonCoordinates    = "Invalid point coordinates."
	ReasonTooComplex     = "Drawing is too complex."
)

// Имена политик для конфигурации.
const (
	PolicyStructural = "structural"
	PolicyShape      = "shape"
)

// hexColor — строгая грамматика цвета: # и 3/4/6/8 hex-цифр.
var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Result — итог проверки.
type Result struct {
	Valid  bool
	Reason string
}

func ok() Result { return Result{Valid: true} }

func reject(reason string) Result { return Result{Reason: reason} }

// Policy — стратегия проверки рисунка.
type Policy interface {
	// Name возвращает имя политики (для логов и метрик).
	Name() string
	// Validate проверяет рисунок. nil — некорректный рисунок.
	Validate(d *model.Drawing) Result
}

// Limits — пороги структурной проверки.
type Limits struct {
	// MaxStrokes — максимум штрихов
	MaxStrokes int
	// MaxCanvasDimension — максимум ширины/высоты холста
	MaxCanvasDimension float64
	// CoordinateTolerance — допустимый выход точек за границы холста
	CoordinateTolerance float64
	// MinTotalPoints — минимум точек во всех штрихах
	MinTotalPoints int
	// MaxTotalPoints — максимум точек во всех штрихах
	MaxTotalPoints int
}

// DefaultLimits возвращает пороги по умолчанию.
func DefaultLimits() Limits {
	return Limits{
		MaxStrokes:          100,
		MaxCanvasDimension:  1000,
		CoordinateTolerance: 50,
		MinTotalPoints:      6,
		MaxTotalPoints:      20000,
	}
}

// Structural — политика по умолчанию: размер, числа, цвета, границы.
type Structural struct {
	limits Limits
}

// NewStructural создаёт структурную политику.
func NewStructural(limits Limits) *Structural {
	return &Structural{limits: limits}
}

// Name возвращает имя политики.
func (p *Structural) Name() string { return PolicyStructural }

// Validate выполняет проверки по порядку, останавливаясь на первой ошибке.
func (p *Structural) Validate(d *model.Drawing) Result {
	// 1. Рисунок и непустой список штрихов
	if d == nil || len(d.Strokes) == 0 {
		return reject(ReasonTooLittle)
	}

	// 2. Верхняя граница количества штрихов
	if len(d.Strokes) > p.limits.MaxStrokes {
		return reject(ReasonTooManyStrokes)
	}

	// 3. Размер холста: конечные числа в (0, MaxCanvasDimension]
	if !inCanvasRange(d.Width, p.limits.MaxCanvasDimension) ||
		!inCanvasRange(d.Height, p.limits.MaxCanvasDimension) {
		return reject(ReasonDimensions)
	}

	// 4. Цвета штрихов
	for _, s := range d.Strokes {
		if s.Points == nil {
			return reject(ReasonStrokeData)
		}
		if !hexColor.MatchString(s.Color) {
			return reject(ReasonColor)
		}
	}

	// 5. Координаты точек с допуском вокруг холста
	tol := p.limits.CoordinateTolerance
	for _, s := range d.Strokes {
		for _, pt := range s.Points {
			if !within(pt.X, -tol, d.Width+tol) || !within(pt.Y, -tol, d.Height+tol) {
				return reject(ReasonCoordinates)
			}
		}
	}

	// 6. Общее количество точек
	total := d.PointCount()
	if total < p.limits.MinTotalPoints {
		return reject(ReasonTooLittle)
	}
	if total > p.limits.MaxTotalPoints {
		return reject(ReasonTooComplex)
	}

	return ok()
}

// ShapeThresholds — пороги строгой эвристики «похоже на змею».
type ShapeThresholds struct {
	// MinPathRatio — минимальная длина пути относительно диагонали холста
	MinPathRatio float64
	// MinAreaRatio — минимальная площадь bounding box относительно площади холста
	MinAreaRatio float64
	// MaxAspect — максимальное отношение длинной стороны bounding box к короткой
	MaxAspect float64
}

// DefaultShapeThresholds возвращает пороги эвристики по умолчанию.
func DefaultShapeThresholds() ShapeThresholds {
	return ShapeThresholds{
		MinPathRatio: 0.5,
		MinAreaRatio: 0.02,
		MaxAspect:    20,
	}
}

// Shape — строгая политика: структурные проверки плюс эвристика формы.
type Shape struct {
	base       *Structural
	thresholds ShapeThresholds
}

// NewShape создаёт строгую политику поверх структурной.
func NewShape(limits Limits, thresholds ShapeThresholds) *Shape {
	return &Shape{base: NewStructural(limits), thresholds: thresholds}
}

// Name возвращает имя политики.
func (p *Shape) Name() string { return PolicyShape }

// Validate выполняет структурные проверки, затем проверку формы.
func (p *Shape) Validate(d *model.Drawing) Result {
	if res := p.base.Validate(d); !res.Valid {
		return res
	}

	diagonal := math.Hypot(d.Width, d.Height)
	if pathLength(d) < p.thresholds.MinPathRatio*diagonal {
		return reject(ReasonTooLittle)
	}

	minX, minY, maxX, maxY := bounds(d)
	w, h := maxX-minX, maxY-minY
	if w*h < p.thresholds.MinAreaRatio*d.Width*d.Height {
		return reject(ReasonTooLittle)
	}

	long, short := math.Max(w, h), math.Min(w, h)
	if short == 0 || long/short > p.thresholds.MaxAspect {
		return reject(ReasonTooLittle)
	}

	return ok()
}

// NewPolicy создаёт политику по имени из конфигурации.
func NewPolicy(name string, limits Limits) (Policy, error) {
	switch strings.ToLower(name) {
	case "", PolicyStructural:
		return NewStructural(limits), nil
	case PolicyShape:
		return NewShape(limits, DefaultShapeThresholds()), nil
	default:
		return nil, fmt.Errorf("неизвестная политика проверки рисунка %q, допустимые: %s, %s",
			name, PolicyStructural, PolicyShape)
	}
}

// --- Вспомогательные функции ---

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func inCanvasRange(v, maxDim float64) bool {
	return isFinite(v) && v > 0 && v <= maxDim
}

func within(v, lo, hi float64) bool {
	return isFinite(v) && v >= lo && v <= hi
}

// pathLength — суммарная длина ломаных всех штрихов.
func pathLength(d *model.Drawing) float64 {
	var total float64
	for _, s := range d.Strokes {
		for i := 1; i < len(s.Points); i++ {
			total += math.Hypot(s.Points[i].X-s.Points[i-1].X, s.Points[i].Y-s.Points[i-1].Y)
		}
	}
	return total
}

// bounds — bounding box всех точек. Вызывается только после структурной проверки,
// поэтому точек хотя бы MinTotalPoints.
func bounds(d *model.Drawing) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, s := range d.Strokes {
		for _, pt := range s.Points {
			minX = math.Min(minX, pt.X)
			minY = math.Min(minY, pt.Y)
			maxX = math.Max(maxX, pt.X)
			maxY = math.Max(maxY, pt.Y)
		}
	}
	return minX, minY, maxX, maxY
}
