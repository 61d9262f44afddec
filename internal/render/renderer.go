package render

import (
	"errors"
	"fmt"
	"sync"

	"garment-studio/internal/common/logger"
	"garment-studio/internal/editor"
	"garment-studio/internal/editor/scene"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// ============================================================
// Renderer
// ============================================================

const (
	lineHeight = 1.2
	// fetchConcurrency — сколько картинок скачивается параллельно для одного PNG.
	fetchConcurrency = 4
)

var ErrInvalidSide = errors.New("render: side must be front or back")

// Options — параметры отрисовки одной стороны.
type Options struct {
	// Background — цвет изделия (#rrggbb); пустой — прозрачный фон.
	Background string
	// Scale — множитель разрешения PNG; 0 означает 1.
	Scale float64
}

type Renderer struct {
	source ImageSource
	log    *logger.Logger
	font   *truetype.Font

	mu    sync.Mutex
	faces map[float64]font.Face
}

// NewRenderer создаёт рендерер. source может быть nil: тогда картинки в PNG
// рисуются заглушками.
func NewRenderer(source ImageSource, log *logger.Logger) (*Renderer, error) {
	if log == nil {
		log = logger.Nop()
	}
	parsed, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Renderer{
		source: source,
		log:    log.With("component", "Renderer"),
		font:   parsed,
		faces:  make(map[float64]font.Face),
	}, nil
}

// face кэширует начертание по размеру; truetype.Face не потокобезопасен,
// поэтому кэш используется только внутри одного вызова PNG под мьютексом.
func (r *Renderer) face(size float64) font.Face {
	if f, ok := r.faces[size]; ok {
		return f
	}
	f := truetype.NewFace(r.font, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	r.faces[size] = f
	return f
}

// prepare валидирует документ и отбирает объекты стороны.
func prepare(doc editor.Document, side editor.Side) ([]editor.ObjectRecord, float64, float64, error) {
	if !side.Valid() {
		return nil, 0, 0, ErrInvalidSide
	}
	if err := doc.Validate(); err != nil {
		return nil, 0, 0, err
	}
	width, height := doc.Width, doc.Height
	if width <= 0 {
		width = scene.DefaultWidth
	}
	if height <= 0 {
		height = scene.DefaultHeight
	}
	return doc.SideObjects(side), width, height, nil
}
