package scene

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// ============================================================
// Scene Objects
// ============================================================

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

func (k Kind) Valid() bool {
	return k == KindText || k == KindImage
}

// Handle — внутренняя идентичность объекта в движке. Не сохраняется и не
// переживает Load: после загрузки все объекты получают новые хендлы.
type Handle uint64

type Geometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	ScaleX float64 `json:"scaleX"`
	ScaleY float64 `json:"scaleY"`
	Angle  float64 `json:"angle"` // градусы, по часовой
}

type Style struct {
	Fill       string  `json:"fill,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
	Opacity    float64 `json:"opacity,omitempty"`
}

// Object — один отрисовываемый элемент. Visible/Selectable — флаги движка,
// в структурный экспорт не попадают.
type Object struct {
	Handle     Handle   `json:"-"`
	Kind       Kind     `json:"kind"`
	Text       string   `json:"text,omitempty"`
	Src        string   `json:"src,omitempty"`
	Geometry   Geometry `json:"geometry"`
	Style      Style    `json:"style"`
	Visible    bool     `json:"-"`
	Selectable bool     `json:"-"`
}

// Size returns the unscaled bounding box of the object.
func (o Object) Size() (float64, float64) {
	switch o.Kind {
	case KindText:
		fontSize := o.Style.FontSize
		if fontSize <= 0 {
			fontSize = DefaultFontSize
		}
		// approximate advance of a proportional font
		return float64(utf8.RuneCountInString(o.Text)) * fontSize * 0.6, fontSize * 1.2
	case KindImage:
		return o.Style.Width, o.Style.Height
	}
	return 0, 0
}

// Contains проверяет попадание точки канваса в объект с учётом поворота и масштаба.
func (o Object) Contains(x, y float64) bool {
	w, h := o.Size()
	sx, sy := scaleOrOne(o.Geometry.ScaleX), scaleOrOne(o.Geometry.ScaleY)

	dx := x - o.Geometry.X
	dy := y - o.Geometry.Y

	rad := -o.Geometry.Angle * math.Pi / 180
	lx := (dx*math.Cos(rad) - dy*math.Sin(rad)) / sx
	ly := (dx*math.Sin(rad) + dy*math.Cos(rad)) / sy

	return lx >= 0 && lx <= w && ly >= 0 && ly <= h
}

func (o Object) validate() error {
	if !o.Kind.Valid() {
		return &ObjectError{Reason: "unknown kind " + string(o.Kind)}
	}
	g := o.Geometry
	for _, v := range []float64{g.X, g.Y, g.ScaleX, g.ScaleY, g.Angle, o.Style.FontSize, o.Style.Width, o.Style.Height, o.Style.Opacity} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ObjectError{Reason: "non-finite geometry"}
		}
	}
	return nil
}

func scaleOrOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// ObjectError описывает объект, который движок отказался принять.
type ObjectError struct {
	Index  int
	Reason string
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("scene: object %d: %s", e.Index, e.Reason)
}
