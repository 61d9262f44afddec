package editor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"garment-studio/internal/editor/scene"
)

// ============================================================
// Layer Projector
// ============================================================

const (
	imageLayerTitle = "Image"
	emptyTextTitle  = "Text"
	maxTitleRunes   = 32
)

// Layer — описание слоя для UI. Не меняется на месте: при каждом изменении
// сцены список строится заново.
type Layer struct {
	ID      ObjectID   `json:"id"`
	Type    scene.Kind `json:"type"`
	Title   string     `json:"title"`
	Side    Side       `json:"side"`
	Visible bool       `json:"visible"`
	Locked  bool       `json:"locked"`
}

// Project строит список слоёв по всей сцене: верхний объект первым. Сторона
// не фильтруется. Объекты без тега пропускаются и возвращаются как нарушения.
func Project(objects []scene.Object, tags TagLookup) ([]Layer, []*InvariantViolation) {
	layers := make([]Layer, 0, len(objects))
	var violations []*InvariantViolation

	for i := len(objects) - 1; i >= 0; i-- {
		obj := objects[i]
		tag, ok := tags.TagFor(obj.Handle)
		if !ok {
			violations = append(violations, &InvariantViolation{
				Invariant: "object-has-tag",
				Detail:    fmt.Sprintf("%s object with handle %d has no tag", obj.Kind, obj.Handle),
			})
			continue
		}
		layers = append(layers, Layer{
			ID:      tag.ID,
			Type:    obj.Kind,
			Title:   layerTitle(obj),
			Side:    tag.Side,
			Visible: obj.Visible,
			Locked:  tag.Locked,
		})
	}
	return layers, violations
}

// FilterSide оставляет слои одной стороны, сохраняя порядок.
func FilterSide(layers []Layer, side Side) []Layer {
	out := make([]Layer, 0, len(layers))
	for _, l := range layers {
		if l.Side == side {
			out = append(out, l)
		}
	}
	return out
}

func layerTitle(obj scene.Object) string {
	if obj.Kind == scene.KindImage {
		return imageLayerTitle
	}
	title := strings.TrimSpace(obj.Text)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if title == "" {
		return emptyTextTitle
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		runes := []rune(title)
		title = string(runes[:maxTitleRunes]) + "…"
	}
	return title
}
