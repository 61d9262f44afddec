package render

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"garment-studio/internal/editor"
	"garment-studio/internal/editor/scene"
)

// ============================================================
// SVG Renderer
// ============================================================

// SVG собирает SVG одной стороны документа. Объекты идут снизу вверх.
func (r *Renderer) SVG(doc editor.Document, side editor.Side, opts Options) (string, error) {
	objects, width, height, err := prepare(doc, side)
	if err != nil {
		return "", err
	}

	var elements []string
	if opts.Background != "" {
		elements = append(elements, fmt.Sprintf(`<rect width="100%%" height="100%%" fill="%s"/>`, html.EscapeString(opts.Background)))
	}
	for _, rec := range objects {
		switch rec.Kind {
		case scene.KindText:
			elements = append(elements, renderText(rec))
		case scene.KindImage:
			elements = append(elements, renderImage(rec))
		}
	}

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%s" height="%s" viewBox="0 0 %s %s">`,
		formatFloat(width), formatFloat(height), formatFloat(width), formatFloat(height)))
	builder.WriteString("\n")

	for _, elem := range elements {
		builder.WriteString("  ")
		builder.WriteString(elem)
		builder.WriteString("\n")
	}

	builder.WriteString(`</svg>`)
	return builder.String(), nil
}

// ============================================================
// Element renderers
// ============================================================

func renderText(rec editor.ObjectRecord) string {
	fontSize := rec.Style.FontSize
	if fontSize <= 0 {
		fontSize = scene.DefaultFontSize
	}
	fill := rec.Style.Fill
	if fill == "" {
		fill = editor.DefaultTextFill
	}
	family := rec.Style.FontFamily
	if family == "" {
		family = editor.DefaultFontFamily
	}

	var tspans strings.Builder
	for i, line := range strings.Split(rec.Text, "\n") {
		dy := "0"
		if i > 0 {
			dy = formatFloat(fontSize * lineHeight)
		}
		tspans.WriteString(fmt.Sprintf(`<tspan x="0" dy="%s">%s</tspan>`, dy, html.EscapeString(line)))
	}

	return fmt.Sprintf(`<text id="%s" font-family="%s" font-size="%s" fill="%s"%s dominant-baseline="text-before-edge" transform="%s">%s</text>`,
		html.EscapeString(string(rec.Tag.ID)),
		html.EscapeString(family),
		formatFloat(fontSize),
		html.EscapeString(fill),
		opacityAttr(rec.Style.Opacity),
		transform(rec.Geometry),
		tspans.String())
}

func renderImage(rec editor.ObjectRecord) string {
	return fmt.Sprintf(`<image id="%s" href="%s" xlink:href="%s" width="%s" height="%s"%s preserveAspectRatio="none" transform="%s"/>`,
		html.EscapeString(string(rec.Tag.ID)),
		html.EscapeString(rec.Src),
		html.EscapeString(rec.Src),
		formatFloat(rec.Style.Width),
		formatFloat(rec.Style.Height),
		opacityAttr(rec.Style.Opacity),
		transform(rec.Geometry))
}

func transform(g scene.Geometry) string {
	sx, sy := scaleOrOne(g.ScaleX), scaleOrOne(g.ScaleY)
	return fmt.Sprintf("translate(%s %s) rotate(%s) scale(%s %s)",
		formatFloat(g.X), formatFloat(g.Y), formatFloat(g.Angle), formatFloat(sx), formatFloat(sy))
}

// opacityAttr: 0 в документе означает «не задано».
func opacityAttr(opacity float64) string {
	if opacity <= 0 || opacity >= 1 {
		return ""
	}
	return fmt.Sprintf(` opacity="%s"`, formatFloat(opacity))
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

func scaleOrOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
