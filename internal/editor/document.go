package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"garment-studio/internal/editor/scene"
)

// ============================================================
// Project Document
// ============================================================

const (
	SchemaName    = "garment-scene"
	SchemaVersion = 1
)

// Document — сериализованная сцена обеих сторон. Объекты идут снизу вверх
// по z-порядку, у каждого полный тег.
type Document struct {
	Schema  string         `json:"schema"`
	Version int            `json:"version"`
	Width   float64        `json:"width"`
	Height  float64        `json:"height"`
	Objects []ObjectRecord `json:"objects"`
}

type ObjectRecord struct {
	Tag *Tag `json:"tag"`
	scene.Object
}

// IsEmpty — в документе нет ни одного объекта.
func (d Document) IsEmpty() bool {
	return len(d.Objects) == 0
}

// SideObjects возвращает объекты одной стороны в z-порядке.
func (d Document) SideObjects(side Side) []ObjectRecord {
	var out []ObjectRecord
	for _, rec := range d.Objects {
		if rec.Tag != nil && rec.Tag.Side == side {
			out = append(out, rec)
		}
	}
	return out
}

// Validate проверяет документ целиком до того, как что-либо будет изменено.
func (d Document) Validate() error {
	if d.Schema != SchemaName {
		return &DeserializationError{Index: -1, Reason: fmt.Sprintf("unknown schema %q", d.Schema)}
	}
	if d.Version < 1 || d.Version > SchemaVersion {
		return &DeserializationError{Index: -1, Reason: fmt.Sprintf("unsupported version %d", d.Version)}
	}

	seen := make(map[ObjectID]struct{}, len(d.Objects))
	for i, rec := range d.Objects {
		if rec.Tag == nil {
			return &DeserializationError{Index: i, Reason: "missing tag"}
		}
		if strings.TrimSpace(string(rec.Tag.ID)) == "" {
			return &DeserializationError{Index: i, Reason: "missing tag id"}
		}
		if !rec.Tag.Side.Valid() {
			return &DeserializationError{Index: i, Reason: fmt.Sprintf("invalid side %q", rec.Tag.Side)}
		}
		if _, dup := seen[rec.Tag.ID]; dup {
			return &DeserializationError{Index: i, Reason: fmt.Sprintf("duplicate id %s", rec.Tag.ID)}
		}
		seen[rec.Tag.ID] = struct{}{}

		switch rec.Kind {
		case scene.KindText:
		case scene.KindImage:
			if strings.TrimSpace(rec.Src) == "" {
				return &DeserializationError{Index: i, Reason: "image without src"}
			}
		default:
			return &DeserializationError{Index: i, Reason: fmt.Sprintf("unknown kind %q", rec.Kind)}
		}
	}
	return nil
}

// EncodeDocument сериализует документ в JSON.
func EncodeDocument(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// DecodeDocument разбирает и валидирует JSON документа.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, &DeserializationError{Index: -1, Reason: "malformed json", Err: err}
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// ============================================================
// Serializer
// ============================================================

// serialize проходит по всем объектам движка, включая скрытые стороны.
func serialize(engine *scene.Engine, tags TagLookup) (Document, error) {
	width, height := engine.Size()
	objects := engine.Export(scene.ExportOptions{IncludeHidden: true})

	doc := Document{
		Schema:  SchemaName,
		Version: SchemaVersion,
		Width:   width,
		Height:  height,
		Objects: make([]ObjectRecord, 0, len(objects)),
	}
	for _, obj := range objects {
		tag, ok := tags.TagFor(obj.Handle)
		if !ok {
			return Document{}, &InvariantViolation{
				Invariant: "object-has-tag",
				Detail:    fmt.Sprintf("cannot serialize handle %d without tag", obj.Handle),
			}
		}
		t := tag
		doc.Objects = append(doc.Objects, ObjectRecord{Tag: &t, Object: obj})
	}
	return doc, nil
}

// deserialize строит новую сцену в движке (движок подменяет её атомарно) и
// возвращает новую таблицу тегов. При ошибке сцена не меняется.
func deserialize(engine *scene.Engine, doc Document) (*tagTable, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	objects := make([]scene.Object, 0, len(doc.Objects))
	for _, rec := range doc.Objects {
		objects = append(objects, rec.Object)
	}

	handles, err := engine.Load(objects)
	if err != nil {
		idx := -1
		var objErr *scene.ObjectError
		if errors.As(err, &objErr) {
			idx = objErr.Index
		}
		return nil, &DeserializationError{Index: idx, Reason: "scene rejected object", Err: err}
	}

	tags := newTagTable()
	for i, rec := range doc.Objects {
		tags.bind(*rec.Tag, handles[i])
	}
	return tags, nil
}
