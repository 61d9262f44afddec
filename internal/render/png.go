package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"garment-studio/internal/editor"
	"garment-studio/internal/editor/scene"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// PNG Renderer
// ============================================================

var ErrInvalidColor = errors.New("render: invalid hex color")

var placeholderFill = color.NRGBA{R: 0xd9, G: 0xd9, B: 0xd9, A: 0xff}
var placeholderStroke = color.NRGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}

// PNG растеризует одну сторону документа. Используется как превью проекта
// и как изображение изделия для примерки.
func (r *Renderer) PNG(ctx context.Context, doc editor.Document, side editor.Side, opts Options) ([]byte, error) {
	objects, width, height, err := prepare(doc, side)
	if err != nil {
		return nil, err
	}

	var background color.Color
	if opts.Background != "" {
		bg, err := parseHexColor(opts.Background, 1)
		if err != nil {
			return nil, err
		}
		background = bg
	}

	images := r.fetchImages(ctx, objects)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	dc := gg.NewContext(int(math.Ceil(width*scale)), int(math.Ceil(height*scale)))
	if background != nil {
		dc.SetColor(background)
		dc.Clear()
	}
	dc.Scale(scale, scale)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rec := range objects {
		g := rec.Geometry
		dc.Push()
		dc.Translate(g.X, g.Y)
		dc.Rotate(gg.Radians(g.Angle))
		dc.Scale(scaleOrOne(g.ScaleX), scaleOrOne(g.ScaleY))
		switch rec.Kind {
		case scene.KindText:
			r.drawText(dc, rec)
		case scene.KindImage:
			drawImage(dc, rec, images[i])
		}
		dc.Pop()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawText(dc *gg.Context, rec editor.ObjectRecord) {
	fontSize := rec.Style.FontSize
	if fontSize <= 0 {
		fontSize = scene.DefaultFontSize
	}
	fill, err := parseHexColor(rec.Style.Fill, rec.Style.Opacity)
	if err != nil {
		fill, _ = parseHexColor(editor.DefaultTextFill, rec.Style.Opacity)
	}

	dc.SetFontFace(r.face(fontSize))
	dc.SetColor(fill)
	for i, line := range strings.Split(rec.Text, "\n") {
		dc.DrawStringAnchored(line, 0, float64(i)*fontSize*lineHeight, 0, 1)
	}
}

func drawImage(dc *gg.Context, rec editor.ObjectRecord, img image.Image) {
	w, h := rec.Style.Width, rec.Style.Height
	if w <= 0 || h <= 0 {
		return
	}

	if img == nil {
		dc.DrawRectangle(0, 0, w, h)
		dc.SetColor(placeholderFill)
		dc.FillPreserve()
		dc.SetColor(placeholderStroke)
		dc.SetLineWidth(2)
		dc.Stroke()
		return
	}

	dst := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(w)), int(math.Ceil(h))))
	var opts *draw.Options
	if a := alpha(rec.Style.Opacity); a < 0xff {
		opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha{A: a})}
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, opts)
	dc.DrawImage(dst, 0, 0)
}

// fetchImages скачивает картинки стороны параллельно. Неудачная загрузка
// не ломает рендер: на её месте рисуется заглушка.
func (r *Renderer) fetchImages(ctx context.Context, objects []editor.ObjectRecord) []image.Image {
	images := make([]image.Image, len(objects))
	if r.source == nil {
		return images
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, rec := range objects {
		if rec.Kind != scene.KindImage {
			continue
		}
		g.Go(func() error {
			data, err := r.source.Fetch(gctx, rec.Src)
			if err != nil {
				r.log.Warn("image fetch failed, drawing placeholder", "src", rec.Src, "error", err)
				return nil
			}
			img, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				r.log.Warn("image decode failed, drawing placeholder", "src", rec.Src, "error", err)
				return nil
			}
			images[i] = img
			return nil
		})
	}
	_ = g.Wait()
	return images
}

// parseHexColor разбирает #rgb и #rrggbb. opacity 0 трактуется как непрозрачный.
func parseHexColor(raw string, opacity float64) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, raw)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, raw)
	}

	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: alpha(opacity)}, nil
}

// alpha: 0 в документе — «не задано», то есть непрозрачный.
func alpha(opacity float64) uint8 {
	if opacity > 0 && opacity < 1 {
		return uint8(math.Round(opacity * 255))
	}
	return 0xff
}
