// Пакет model — доменные модели пруда.
// Entry — выпущенный рисунок змеи с сообщением (таблица entries).
package model

import "time"

// Location — где сейчас находится запись.
type Location string

const (
	// LocationLive — запись на острове (живой пруд), участвует в размещении.
	LocationLive Location = "live"
	// LocationArchived — запись в галерее. Обратного перехода нет.
	LocationArchived Location = "archived"
)

// Valid проверяет, что значение — одно из допустимых.
func (l Location) Valid() bool {
	return l == LocationLive || l == LocationArchived
}

// Point — точка штриха в координатах холста, на котором рисовали.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke — один штрих: цвет (#rgb, #rgba, #rrggbb, #rrggbbaa) и упорядоченные точки.
type Stroke struct {
	Color  string  `json:"color"`
	Points []Point `json:"points"`
}

// Drawing — рисунок целиком. Width/Height — размер исходного холста,
// нужен клиенту для масштабирования при отображении.
type Drawing struct {
	Strokes []Stroke `json:"strokes"`
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
}

// PointCount возвращает общее количество точек во всех штрихах.
func (d *Drawing) PointCount() int {
	n := 0
	for _, s := range d.Strokes {
		n += len(s.Points)
	}
	return n
}

// Position — координаты записи в нормализованном пространстве [0,1]×[0,1].
// Имеет смысл только пока запись live.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CentroidPosition — позиция записи, для которой не нашлось места на острове.
var CentroidPosition = Position{X: 0.5, Y: 0.5}

// Entry — запись пруда.
// Неизменяема после сохранения, кроме единственного перехода live → archived.
type Entry struct {
	// ID — UUID, назначается при создании
	ID string `json:"id"`
	// Drawing — провалидированный рисунок (jsonb)
	Drawing Drawing `json:"drawing"`
	// Message — очищенное сообщение, не длиннее 140 символов
	Message string `json:"message"`
	// CreatedAt — время создания, задаёт порядок вытеснения и затухание
	CreatedAt time.Time `json:"createdAt"`
	// Location — live или archived
	Location Location `json:"location"`
	// Position — позиция на острове
	Position Position `json:"position"`
}

// IsLive сообщает, находится ли запись на острове.
func (e *Entry) IsLive() bool {
	return e.Location == LocationLive
}
