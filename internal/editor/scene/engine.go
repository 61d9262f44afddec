package scene

import (
	"errors"
	"fmt"
)

// ============================================================
// Scene Graph Engine
// ============================================================

const (
	DefaultWidth    = 600.0
	DefaultHeight   = 700.0
	DefaultFontSize = 32.0
)

var (
	ErrNoObject      = errors.New("scene: object not found")
	ErrNotSelectable = errors.New("scene: object is not selectable")
)

type EventType int

const (
	EventAdded EventType = iota
	EventRemoved
	EventModified
	EventSelected
	EventDeselected
	EventCleared
	EventLoaded
	// EventBatch закрывает Batch, внутри которого были изменения.
	EventBatch
)

type Event struct {
	Type   EventType
	Handle Handle
}

type Listener func(Event)

// Viewport — трансформация экрана: screen = canvas*Zoom + Pan.
type Viewport struct {
	Zoom float64
	PanX float64
	PanY float64
}

// ToCanvas переводит экранную точку в координаты канваса.
func (v Viewport) ToCanvas(x, y float64) (float64, float64) {
	zoom := v.Zoom
	if zoom == 0 {
		zoom = 1
	}
	return (x - v.PanX) / zoom, (y - v.PanY) / zoom
}

// Engine хранит объекты в z-порядке (снизу вверх). Не потокобезопасен:
// все мутации идут из одного обработчика событий.
type Engine struct {
	width    float64
	height   float64
	objects  []*Object
	index    map[Handle]*Object
	next     Handle
	selected Handle
	viewport Viewport

	listeners    map[int]Listener
	nextListener int
	batchDepth   int
	batchDirty   bool
}

func New(width, height float64) *Engine {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Engine{
		width:     width,
		height:    height,
		index:     make(map[Handle]*Object),
		viewport:  Viewport{Zoom: 1},
		listeners: make(map[int]Listener),
	}
}

func (e *Engine) Size() (float64, float64) {
	return e.width, e.height
}

// Subscribe регистрирует слушателя изменений и возвращает функцию отписки.
func (e *Engine) Subscribe(fn Listener) func() {
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	return func() { delete(e.listeners, id) }
}

// Batch выполняет fn, подавляя уведомления; по завершении, если что-то
// изменилось, слушатели получают один EventBatch.
func (e *Engine) Batch(fn func()) {
	e.batchDepth++
	defer func() {
		e.batchDepth--
		if e.batchDepth == 0 && e.batchDirty {
			e.batchDirty = false
			e.emit(Event{Type: EventBatch})
		}
	}()
	fn()
}

func (e *Engine) emit(ev Event) {
	if e.batchDepth > 0 {
		e.batchDirty = true
		return
	}
	for _, l := range e.listeners {
		l(ev)
	}
}

// ============================================================
// Mutations
// ============================================================

// Add кладёт объект на вершину z-порядка. Объект становится видимым и выбираемым.
func (e *Engine) Add(o Object) (Handle, error) {
	return e.insert(o, len(e.objects))
}

// AddAbove кладёт объект сразу над ref.
func (e *Engine) AddAbove(o Object, ref Handle) (Handle, error) {
	pos := e.position(ref)
	if pos < 0 {
		return 0, ErrNoObject
	}
	return e.insert(o, pos+1)
}

func (e *Engine) insert(o Object, pos int) (Handle, error) {
	if err := o.validate(); err != nil {
		return 0, err
	}
	e.next++
	o.Handle = e.next
	o.Visible = true
	o.Selectable = true

	obj := &o
	e.objects = append(e.objects, nil)
	copy(e.objects[pos+1:], e.objects[pos:])
	e.objects[pos] = obj
	e.index[obj.Handle] = obj

	e.emit(Event{Type: EventAdded, Handle: obj.Handle})
	return obj.Handle, nil
}

func (e *Engine) Remove(h Handle) error {
	pos := e.position(h)
	if pos < 0 {
		return ErrNoObject
	}
	e.objects = append(e.objects[:pos], e.objects[pos+1:]...)
	delete(e.index, h)
	if e.selected == h {
		e.selected = 0
	}
	e.emit(Event{Type: EventRemoved, Handle: h})
	return nil
}

// Modify применяет fn к копии объекта и сохраняет результат, если он валиден.
// Хендл и флаги видимости через Modify не меняются.
func (e *Engine) Modify(h Handle, fn func(*Object)) error {
	obj, ok := e.index[h]
	if !ok {
		return ErrNoObject
	}
	next := *obj
	fn(&next)
	if err := next.validate(); err != nil {
		return err
	}
	next.Handle = obj.Handle
	next.Visible = obj.Visible
	next.Selectable = obj.Selectable
	*obj = next
	e.emit(Event{Type: EventModified, Handle: h})
	return nil
}

// SetFlags меняет флаги отрисовки/выбора. Снятие Selectable снимает и выделение.
func (e *Engine) SetFlags(h Handle, visible, selectable bool) error {
	obj, ok := e.index[h]
	if !ok {
		return ErrNoObject
	}
	if obj.Visible == visible && obj.Selectable == selectable {
		return nil
	}
	obj.Visible = visible
	obj.Selectable = selectable
	if e.selected == h && !(visible && selectable) {
		e.selected = 0
		e.emit(Event{Type: EventDeselected, Handle: h})
	}
	e.emit(Event{Type: EventModified, Handle: h})
	return nil
}

// Move сдвигает объект по z-порядку на delta позиций (положительное — вверх).
// Возвращает false, если позиция не изменилась.
func (e *Engine) Move(h Handle, delta int) (bool, error) {
	pos := e.position(h)
	if pos < 0 {
		return false, ErrNoObject
	}
	target := pos + delta
	if target < 0 {
		target = 0
	}
	if target > len(e.objects)-1 {
		target = len(e.objects) - 1
	}
	if target == pos {
		return false, nil
	}
	obj := e.objects[pos]
	e.objects = append(e.objects[:pos], e.objects[pos+1:]...)
	e.objects = append(e.objects, nil)
	copy(e.objects[target+1:], e.objects[target:])
	e.objects[target] = obj
	e.emit(Event{Type: EventModified, Handle: h})
	return true, nil
}

func (e *Engine) Clear() {
	e.objects = nil
	e.index = make(map[Handle]*Object)
	e.selected = 0
	e.emit(Event{Type: EventCleared})
}

// ============================================================
// Selection
// ============================================================

func (e *Engine) Select(h Handle) error {
	obj, ok := e.index[h]
	if !ok {
		return ErrNoObject
	}
	if !obj.Visible || !obj.Selectable {
		return ErrNotSelectable
	}
	if e.selected == h {
		return nil
	}
	e.selected = h
	e.emit(Event{Type: EventSelected, Handle: h})
	return nil
}

func (e *Engine) Deselect() {
	if e.selected == 0 {
		return
	}
	h := e.selected
	e.selected = 0
	e.emit(Event{Type: EventDeselected, Handle: h})
}

func (e *Engine) Selected() (Handle, bool) {
	return e.selected, e.selected != 0
}

// HitTest возвращает верхний видимый и выбираемый объект под точкой канваса.
func (e *Engine) HitTest(x, y float64) (Handle, bool) {
	for i := len(e.objects) - 1; i >= 0; i-- {
		obj := e.objects[i]
		if !obj.Visible || !obj.Selectable {
			continue
		}
		if obj.Contains(x, y) {
			return obj.Handle, true
		}
	}
	return 0, false
}

// ============================================================
// Viewport
// ============================================================

func (e *Engine) Viewport() Viewport {
	return e.viewport
}

func (e *Engine) SetViewport(v Viewport) {
	e.viewport = v
}

// ============================================================
// Read access & structural export
// ============================================================

func (e *Engine) Get(h Handle) (Object, bool) {
	obj, ok := e.index[h]
	if !ok {
		return Object{}, false
	}
	return *obj, true
}

func (e *Engine) Len() int {
	return len(e.objects)
}

// Objects возвращает копии всех объектов в z-порядке, включая скрытые.
func (e *Engine) Objects() []Object {
	out := make([]Object, 0, len(e.objects))
	for _, obj := range e.objects {
		out = append(out, *obj)
	}
	return out
}

type ExportOptions struct {
	// IncludeHidden включает объекты со снятым Visible.
	IncludeHidden bool
}

// Export — структурный экспорт сцены. По умолчанию, как и рендер, видит
// только видимые объекты.
func (e *Engine) Export(opts ExportOptions) []Object {
	out := make([]Object, 0, len(e.objects))
	for _, obj := range e.objects {
		if !obj.Visible && !opts.IncludeHidden {
			continue
		}
		out = append(out, *obj)
	}
	return out
}

// Load заменяет содержимое сцены объектами в переданном порядке. Сначала
// строится новая сцена, и только если все объекты валидны, она подменяет
// текущую. Флаги видимости сбрасываются в true, выделение снимается.
// Возвращает новые хендлы в порядке objects.
func (e *Engine) Load(objects []Object) ([]Handle, error) {
	staged := make([]*Object, 0, len(objects))
	index := make(map[Handle]*Object, len(objects))
	handles := make([]Handle, 0, len(objects))

	next := e.next
	for i, o := range objects {
		if err := o.validate(); err != nil {
			var objErr *ObjectError
			if errors.As(err, &objErr) {
				objErr.Index = i
			}
			return nil, fmt.Errorf("load: %w", err)
		}
		next++
		o.Handle = next
		o.Visible = true
		o.Selectable = true
		obj := o
		staged = append(staged, &obj)
		index[obj.Handle] = &obj
		handles = append(handles, obj.Handle)
	}

	e.next = next
	e.objects = staged
	e.index = index
	e.selected = 0
	e.emit(Event{Type: EventLoaded})
	return handles, nil
}

func (e *Engine) position(h Handle) int {
	for i, obj := range e.objects {
		if obj.Handle == h {
			return i
		}
	}
	return -1
}
