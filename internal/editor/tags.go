package editor

import (
	"garment-studio/internal/editor/scene"

	"github.com/google/uuid"
)

// ============================================================
// Object Tags
// ============================================================

type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

func (s Side) Valid() bool {
	return s == SideFront || s == SideBack
}

// ParseSide разбирает сторону из запроса; пустая строка — ошибка.
func ParseSide(raw string) (Side, error) {
	side := Side(raw)
	if !side.Valid() {
		return "", invalid("side", "must be front or back")
	}
	return side, nil
}

type ObjectID string

// NewObjectID выдаёт UUID: уникальность по построению, без проверок коллизий.
func NewObjectID() ObjectID {
	return ObjectID(uuid.NewString())
}

// Tag — метаданные объекта, которых нет в движке. Side неизменна.
type Tag struct {
	ID     ObjectID `json:"id"`
	Side   Side     `json:"side"`
	Locked bool     `json:"isLocked"`
}

// TagLookup — то, что нужно проектору слоёв от таблицы тегов.
type TagLookup interface {
	TagFor(h scene.Handle) (Tag, bool)
}

// tagTable — типизированная таблица рядом с движком: id -> тег и хендл.
type tagTable struct {
	tags    map[ObjectID]Tag
	handles map[ObjectID]scene.Handle
	ids     map[scene.Handle]ObjectID
}

func newTagTable() *tagTable {
	return &tagTable{
		tags:    make(map[ObjectID]Tag),
		handles: make(map[ObjectID]scene.Handle),
		ids:     make(map[scene.Handle]ObjectID),
	}
}

func (t *tagTable) bind(tag Tag, h scene.Handle) {
	t.tags[tag.ID] = tag
	t.handles[tag.ID] = h
	t.ids[h] = tag.ID
}

func (t *tagTable) unbind(id ObjectID) {
	if h, ok := t.handles[id]; ok {
		delete(t.ids, h)
	}
	delete(t.handles, id)
	delete(t.tags, id)
}

func (t *tagTable) lookup(id ObjectID) (Tag, scene.Handle, bool) {
	tag, ok := t.tags[id]
	if !ok {
		return Tag{}, 0, false
	}
	return tag, t.handles[id], true
}

func (t *tagTable) setLocked(id ObjectID, locked bool) {
	tag := t.tags[id]
	tag.Locked = locked
	t.tags[id] = tag
}

func (t *tagTable) TagFor(h scene.Handle) (Tag, bool) {
	id, ok := t.ids[h]
	if !ok {
		return Tag{}, false
	}
	return t.tags[id], true
}

func (t *tagTable) len() int {
	return len(t.tags)
}
