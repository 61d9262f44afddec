package editor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"garment-studio/internal/common/logger"
	"garment-studio/internal/editor/scene"
)

// ============================================================
// Session Context
// ============================================================

const (
	// DuplicateOffset — сдвиг копии по обеим осям, чтобы она не совпадала с оригиналом.
	DuplicateOffset = 10.0

	DefaultTextFill   = "#000000"
	DefaultFontFamily = "Arial"
	DefaultImageSize  = 200.0
)

type Options struct {
	Width        float64
	Height       float64
	HistoryLimit int
	// Strict — паниковать на нарушениях инвариантов (development).
	Strict bool
	Logger *logger.Logger
}

// Session владеет движком сцены, таблицей тегов, состоянием вида и историей.
// Один экземпляр на редактор; методы не потокобезопасны.
type Session struct {
	engine     *scene.Engine
	tags       *tagTable
	history    *History
	activeSide Side
	view       View
	layers     []Layer
	dragging   bool
	generation uint64
	strict     bool
	log        *logger.Logger
}

func NewSession(opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	s := &Session{
		engine:     scene.New(opts.Width, opts.Height),
		tags:       newTagTable(),
		activeSide: SideFront,
		view:       defaultView(),
		strict:     opts.Strict,
		log:        log,
	}
	s.engine.Subscribe(s.onSceneEvent)
	s.history = NewHistory(s.mustSnapshot(), opts.HistoryLimit)
	return s
}

// State — всё, что UI читает из сессии.
type State struct {
	ActiveSide       Side      `json:"activeSide"`
	Layers           []Layer   `json:"layers"`
	SelectedObjectID *ObjectID `json:"selectedObjectId"`
	View             View      `json:"view"`
	CanUndo          bool      `json:"canUndo"`
	CanRedo          bool      `json:"canRedo"`
	ObjectCount      int       `json:"objectCount"`
}

func (s *Session) State() State {
	st := State{
		ActiveSide:  s.activeSide,
		Layers:      s.Layers(),
		View:        s.view,
		CanUndo:     s.history.CanUndo(),
		CanRedo:     s.history.CanRedo(),
		ObjectCount: s.engine.Len(),
	}
	if id, ok := s.Selection(); ok {
		st.SelectedObjectID = &id
	}
	return st
}

// ============================================================
// Read surface
// ============================================================

// Layers — слои активной стороны, верхний первым.
func (s *Session) Layers() []Layer {
	return FilterSide(s.layers, s.activeSide)
}

// AllLayers — слои обеих сторон.
func (s *Session) AllLayers() []Layer {
	return append([]Layer(nil), s.layers...)
}

func (s *Session) ActiveSide() Side { return s.activeSide }

func (s *Session) View() View { return s.view }

func (s *Session) Zoom() float64 { return s.view.Zoom }

func (s *Session) CanUndo() bool { return s.history.CanUndo() }

func (s *Session) CanRedo() bool { return s.history.CanRedo() }

func (s *Session) IsEmpty() bool { return s.engine.Len() == 0 }

func (s *Session) Generation() uint64 { return s.generation }

func (s *Session) Selection() (ObjectID, bool) {
	h, ok := s.engine.Selected()
	if !ok {
		return "", false
	}
	tag, ok := s.tags.TagFor(h)
	if !ok {
		return "", false
	}
	return tag.ID, true
}

// Object возвращает объект сцены вместе с тегом.
func (s *Session) Object(id ObjectID) (scene.Object, Tag, bool) {
	tag, h, ok := s.tags.lookup(id)
	if !ok {
		return scene.Object{}, Tag{}, false
	}
	obj, ok := s.engine.Get(h)
	return obj, tag, ok
}

// VisibleObjects — объекты, которые сейчас видны и выбираются, в z-порядке.
func (s *Session) VisibleObjects() []scene.Object {
	return s.engine.Export(scene.ExportOptions{})
}

// ============================================================
// Creation
// ============================================================

func (s *Session) AddText(content string) (ObjectID, error) {
	if strings.TrimSpace(content) == "" {
		return "", invalid("content", "text is empty")
	}
	w, h := s.engine.Size()
	obj := scene.Object{
		Kind:     scene.KindText,
		Text:     content,
		Geometry: scene.Geometry{X: w / 4, Y: h / 3, ScaleX: 1, ScaleY: 1},
		Style: scene.Style{
			Fill:       DefaultTextFill,
			FontSize:   scene.DefaultFontSize,
			FontFamily: DefaultFontFamily,
			Opacity:    1,
		},
	}
	return s.create(obj, 0, Tag{ID: NewObjectID(), Side: s.activeSide})
}

func (s *Session) AddImage(src string) (ObjectID, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", invalid("src", "image url is empty")
	}
	u, err := url.Parse(src)
	if err != nil {
		return "", &ValidationError{Field: "src", Reason: "invalid url", Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", invalid("src", "must be an absolute http(s) url")
	}
	w, h := s.engine.Size()
	obj := scene.Object{
		Kind: scene.KindImage,
		Src:  src,
		Geometry: scene.Geometry{
			X:      (w - DefaultImageSize) / 2,
			Y:      (h - DefaultImageSize) / 2,
			ScaleX: 1,
			ScaleY: 1,
		},
		Style: scene.Style{Width: DefaultImageSize, Height: DefaultImageSize, Opacity: 1},
	}
	return s.create(obj, 0, Tag{ID: NewObjectID(), Side: s.activeSide})
}

// Duplicate создаёт копию над оригиналом: новый id, та же сторона и блокировка.
func (s *Session) Duplicate(id ObjectID) (ObjectID, error) {
	tag, h, ok := s.tags.lookup(id)
	if !ok {
		return "", fmt.Errorf("duplicate %s: %w", id, ErrNotFound)
	}
	obj, _ := s.engine.Get(h)
	obj.Geometry.X += DuplicateOffset
	obj.Geometry.Y += DuplicateOffset
	return s.create(obj, h, Tag{ID: NewObjectID(), Side: tag.Side, Locked: tag.Locked})
}

func (s *Session) create(obj scene.Object, above scene.Handle, tag Tag) (ObjectID, error) {
	var err error
	s.engine.Batch(func() {
		var h scene.Handle
		if above != 0 {
			h, err = s.engine.AddAbove(obj, above)
		} else {
			h, err = s.engine.Add(obj)
		}
		if err != nil {
			return
		}
		s.tags.bind(tag, h)
		on := tag.Side == s.activeSide
		_ = s.engine.SetFlags(h, on, on)
		if on {
			_ = s.engine.Select(h)
		}
	})
	if err != nil {
		return "", &ValidationError{Field: "object", Reason: "rejected by scene", Err: err}
	}
	if err := s.commit(); err != nil {
		return "", err
	}
	return tag.ID, nil
}

// ============================================================
// Mutation
// ============================================================

func (s *Session) Delete(id ObjectID) error {
	_, h, ok := s.tags.lookup(id)
	if !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	s.engine.Batch(func() {
		_ = s.engine.Remove(h)
		s.tags.unbind(id)
	})
	return s.commit()
}

func (s *Session) UpdateText(id ObjectID, content string) error {
	h, err := s.editable(id)
	if err != nil {
		return err
	}
	obj, _ := s.engine.Get(h)
	if obj.Kind != scene.KindText {
		return invalid("id", "not a text object")
	}
	if strings.TrimSpace(content) == "" {
		return invalid("content", "text is empty")
	}
	if err := s.engine.Modify(h, func(o *scene.Object) { o.Text = content }); err != nil {
		return &ValidationError{Field: "content", Reason: "rejected by scene", Err: err}
	}
	return s.commit()
}

// StylePatch — частичное обновление стиля; nil-поля не трогаются.
type StylePatch struct {
	Fill       *string  `json:"fill,omitempty"`
	FontSize   *float64 `json:"fontSize,omitempty"`
	FontFamily *string  `json:"fontFamily,omitempty"`
	Width      *float64 `json:"width,omitempty"`
	Height     *float64 `json:"height,omitempty"`
	Opacity    *float64 `json:"opacity,omitempty"`
}

func (p StylePatch) validate() error {
	if p.FontSize != nil && *p.FontSize <= 0 {
		return invalid("fontSize", "must be positive")
	}
	if p.Width != nil && *p.Width <= 0 {
		return invalid("width", "must be positive")
	}
	if p.Height != nil && *p.Height <= 0 {
		return invalid("height", "must be positive")
	}
	// 0 в документе означает «не задано», поэтому полностью прозрачный объект запрещён
	if p.Opacity != nil && (*p.Opacity <= 0 || *p.Opacity > 1) {
		return invalid("opacity", "must be within (0, 1]")
	}
	return nil
}

func (s *Session) UpdateStyle(id ObjectID, patch StylePatch) error {
	h, err := s.editable(id)
	if err != nil {
		return err
	}
	if err := patch.validate(); err != nil {
		return err
	}
	err = s.engine.Modify(h, func(o *scene.Object) {
		if patch.Fill != nil {
			o.Style.Fill = *patch.Fill
		}
		if patch.FontSize != nil {
			o.Style.FontSize = *patch.FontSize
		}
		if patch.FontFamily != nil {
			o.Style.FontFamily = *patch.FontFamily
		}
		if patch.Width != nil {
			o.Style.Width = *patch.Width
		}
		if patch.Height != nil {
			o.Style.Height = *patch.Height
		}
		if patch.Opacity != nil {
			o.Style.Opacity = *patch.Opacity
		}
	})
	if err != nil {
		return &ValidationError{Field: "style", Reason: "rejected by scene", Err: err}
	}
	return s.commit()
}

// Drag — промежуточный кадр перетаскивания/масштабирования. В историю не
// попадает до EndDrag.
func (s *Session) Drag(id ObjectID, g scene.Geometry) error {
	h, err := s.editable(id)
	if err != nil {
		return err
	}
	if g.ScaleX == 0 || g.ScaleY == 0 {
		return invalid("geometry", "scale must be non-zero")
	}
	if err := s.engine.Modify(h, func(o *scene.Object) { o.Geometry = g }); err != nil {
		return &ValidationError{Field: "geometry", Reason: "rejected by scene", Err: err}
	}
	s.dragging = true
	return nil
}

// EndDrag фиксирует перетаскивание одним снимком истории.
func (s *Session) EndDrag() error {
	if !s.dragging {
		return nil
	}
	return s.commit()
}

func (s *Session) SetLocked(id ObjectID, locked bool) error {
	tag, _, ok := s.tags.lookup(id)
	if !ok {
		return fmt.Errorf("lock %s: %w", id, ErrNotFound)
	}
	if tag.Locked == locked {
		return nil
	}
	s.tags.setLocked(id, locked)
	s.reproject()
	return s.commit()
}

func (s *Session) BringForward(id ObjectID) error { return s.reorder(id, 1) }

func (s *Session) SendBackward(id ObjectID) error { return s.reorder(id, -1) }

func (s *Session) reorder(id ObjectID, delta int) error {
	_, h, ok := s.tags.lookup(id)
	if !ok {
		return fmt.Errorf("reorder %s: %w", id, ErrNotFound)
	}
	moved, err := s.engine.Move(h, delta)
	if err != nil || !moved {
		return err
	}
	return s.commit()
}

func (s *Session) editable(id ObjectID) (scene.Handle, error) {
	tag, h, ok := s.tags.lookup(id)
	if !ok {
		return 0, fmt.Errorf("edit %s: %w", id, ErrNotFound)
	}
	if tag.Locked {
		return 0, &ValidationError{Field: "id", Reason: "object is locked", Err: ErrLocked}
	}
	return h, nil
}

// ============================================================
// Selection
// ============================================================

// Select выделяет объект активной стороны.
func (s *Session) Select(id ObjectID) error {
	tag, h, ok := s.tags.lookup(id)
	if !ok {
		return fmt.Errorf("select %s: %w", id, ErrNotFound)
	}
	if tag.Side != s.activeSide {
		return invalid("id", "object is on the hidden side")
	}
	if err := s.engine.Select(h); err != nil {
		return &ValidationError{Field: "id", Reason: "not selectable", Err: err}
	}
	return nil
}

func (s *Session) ClearSelection() {
	s.engine.Deselect()
}

// HitTest ищет верхний выбираемый объект под экранной точкой.
func (s *Session) HitTest(x, y float64) (ObjectID, bool) {
	cx, cy := s.engine.Viewport().ToCanvas(x, y)
	h, ok := s.engine.HitTest(cx, cy)
	if !ok {
		return "", false
	}
	tag, ok := s.tags.TagFor(h)
	return tag.ID, ok
}

// ============================================================
// History
// ============================================================

// Undo возвращает false, если отменять нечего. Незафиксированное
// перетаскивание сначала фиксируется, и отменяется именно оно.
func (s *Session) Undo() (bool, error) {
	if err := s.EndDrag(); err != nil {
		return false, err
	}
	data, ok := s.history.Undo()
	if !ok {
		return false, nil
	}
	if err := s.restore(data); err != nil {
		s.history.Redo()
		return false, err
	}
	return true, nil
}

func (s *Session) Redo() (bool, error) {
	if err := s.EndDrag(); err != nil {
		return false, err
	}
	data, ok := s.history.Redo()
	if !ok {
		return false, nil
	}
	if err := s.restore(data); err != nil {
		s.history.Undo()
		return false, err
	}
	return true, nil
}

func (s *Session) restore(data []byte) error {
	doc, err := DecodeDocument(data)
	if err != nil {
		return err
	}
	s.dragging = false
	return s.apply(doc)
}

func (s *Session) commit() error {
	snap, err := s.snapshot()
	if err != nil {
		return s.fail(err)
	}
	s.history.Commit(snap)
	s.dragging = false
	return nil
}

func (s *Session) snapshot() ([]byte, error) {
	doc, err := serialize(s.engine, s.tags)
	if err != nil {
		return nil, err
	}
	return EncodeDocument(doc)
}

func (s *Session) mustSnapshot() []byte {
	snap, err := s.snapshot()
	if err != nil {
		panic(err)
	}
	return snap
}

// ============================================================
// Persistence
// ============================================================

// SerializeProject возвращает документ обеих сторон, включая скрытую.
func (s *Session) SerializeProject() (Document, error) {
	doc, err := serialize(s.engine, s.tags)
	if err != nil {
		return Document{}, s.fail(err)
	}
	return doc, nil
}

// LoadProject заменяет сцену документом. Активная сторона сохраняется,
// история начинается заново с загруженного состояния.
func (s *Session) LoadProject(doc Document) error {
	if err := s.apply(doc); err != nil {
		return err
	}
	s.dragging = false
	s.history.Reset(s.mustSnapshot())
	s.log.Debug("project loaded", "objects", len(doc.Objects), "side", s.activeSide)
	return nil
}

// BeginLoad помечает начало асинхронной загрузки и возвращает токен для
// LoadProjectFor. Более поздний BeginLoad или Reset делает токен устаревшим.
func (s *Session) BeginLoad() uint64 {
	s.generation++
	return s.generation
}

func (s *Session) LoadProjectFor(token uint64, doc Document) error {
	if token != s.generation {
		return ErrStale
	}
	return s.LoadProject(doc)
}

// apply подменяет сцену и таблицу тегов и заново применяет активную сторону.
// Слушатели видят одно уведомление, уже после согласования.
func (s *Session) apply(doc Document) error {
	var err error
	s.engine.Batch(func() {
		var tags *tagTable
		tags, err = deserialize(s.engine, doc)
		if err != nil {
			return
		}
		s.tags = tags
		s.applySide(s.activeSide)
	})
	return err
}

// Reset — новый проект: пустая сцена, сторона front, вид по умолчанию.
func (s *Session) Reset() {
	s.engine.Batch(func() {
		s.engine.Clear()
		s.tags = newTagTable()
		s.activeSide = SideFront
	})
	s.view = defaultView()
	s.syncViewport()
	s.dragging = false
	s.generation++
	s.history.Reset(s.mustSnapshot())
}

// ============================================================
// View
// ============================================================

// SetZoom умножает текущий зум на factor и ограничивает [MinZoom, MaxZoom].
func (s *Session) SetZoom(factor float64) error {
	if !validFactor(factor) {
		return invalid("factor", "must be a positive number")
	}
	s.view.Zoom = clampZoom(s.view.Zoom * factor)
	s.syncViewport()
	return nil
}

func (s *Session) Pan(dx, dy float64) {
	s.view.PanX += dx
	s.view.PanY += dy
	s.syncViewport()
}

func (s *Session) ResetView() {
	s.view = defaultView()
	s.syncViewport()
}

func (s *Session) syncViewport() {
	s.engine.SetViewport(scene.Viewport{Zoom: s.view.Zoom, PanX: s.view.PanX, PanY: s.view.PanY})
}

// ============================================================
// Projection
// ============================================================

func (s *Session) onSceneEvent(scene.Event) {
	s.reproject()
}

func (s *Session) reproject() {
	layers, violations := Project(s.engine.Objects(), s.tags)
	for _, v := range violations {
		if s.strict {
			panic(v)
		}
		s.log.Warn("layer projection skipped object", "invariant", v.Invariant, "detail", v.Detail)
	}
	s.layers = layers
}

func (s *Session) fail(err error) error {
	var iv *InvariantViolation
	if s.strict && errors.As(err, &iv) {
		panic(iv)
	}
	return err
}
