package scene

import (
	"errors"
	"math"
	"testing"
)

func textObject(s string) Object {
	return Object{
		Kind:     KindText,
		Text:     s,
		Geometry: Geometry{ScaleX: 1, ScaleY: 1},
		Style:    Style{FontSize: 10},
	}
}

func imageObject(x, y, w, h float64) Object {
	return Object{
		Kind:     KindImage,
		Src:      "https://example.com/a.png",
		Geometry: Geometry{X: x, Y: y, ScaleX: 1, ScaleY: 1},
		Style:    Style{Width: w, Height: h},
	}
}

func texts(e *Engine) []string {
	var out []string
	for _, o := range e.Objects() {
		out = append(out, o.Text)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEngineZOrder(t *testing.T) {
	e := New(0, 0)
	a, _ := e.Add(textObject("a"))
	_, _ = e.Add(textObject("b"))
	if _, err := e.AddAbove(textObject("a2"), a); err != nil {
		t.Fatalf("add above: %v", err)
	}

	want := []string{"a", "a2", "b"}
	if got := texts(e); !equalStrings(got, want) {
		t.Fatalf("z-order: want=%v got=%v", want, got)
	}

	moved, err := e.Move(a, 5)
	if err != nil || !moved {
		t.Fatalf("move: moved=%v err=%v", moved, err)
	}
	want = []string{"a2", "b", "a"}
	if got := texts(e); !equalStrings(got, want) {
		t.Fatalf("after move: want=%v got=%v", want, got)
	}

	moved, _ = e.Move(a, 1)
	if moved {
		t.Fatalf("move past top should be a no-op")
	}
}

func TestEngineDefaults(t *testing.T) {
	e := New(0, -1)
	w, h := e.Size()
	if w != DefaultWidth || h != DefaultHeight {
		t.Fatalf("size: want=%vx%v got=%vx%v", DefaultWidth, DefaultHeight, w, h)
	}
}

func TestEngineRejectsNonFinite(t *testing.T) {
	e := New(0, 0)
	o := textObject("x")
	o.Geometry.X = math.NaN()
	if _, err := e.Add(o); err == nil {
		t.Fatalf("expected error for NaN geometry")
	}
	if e.Len() != 0 {
		t.Fatalf("len: want=0 got=%d", e.Len())
	}
}

func TestEngineLoadIsAtomic(t *testing.T) {
	e := New(0, 0)
	_, _ = e.Add(textObject("keep"))

	bad := imageObject(0, 0, 10, 10)
	bad.Geometry.Angle = math.Inf(1)

	_, err := e.Load([]Object{textObject("new"), bad})
	var objErr *ObjectError
	if !errors.As(err, &objErr) {
		t.Fatalf("load: want ObjectError got=%v", err)
	}
	if objErr.Index != 1 {
		t.Fatalf("index: want=1 got=%d", objErr.Index)
	}
	if got := texts(e); !equalStrings(got, []string{"keep"}) {
		t.Fatalf("scene changed on failed load: %v", got)
	}

	handles, err := e.Load([]Object{textObject("x"), textObject("y")})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("handles: want=2 got=%d", len(handles))
	}
	for _, o := range e.Objects() {
		if !o.Visible || !o.Selectable {
			t.Fatalf("loaded object %q should be visible and selectable", o.Text)
		}
	}
}

func TestEngineBatchEmitsOnce(t *testing.T) {
	e := New(0, 0)
	var events []Event
	unsubscribe := e.Subscribe(func(ev Event) { events = append(events, ev) })

	e.Batch(func() {
		_, _ = e.Add(textObject("a"))
		_, _ = e.Add(textObject("b"))
	})
	if len(events) != 1 || events[0].Type != EventBatch {
		t.Fatalf("events: want one batch event got=%v", events)
	}

	e.Batch(func() {})
	if len(events) != 1 {
		t.Fatalf("empty batch should not notify, got=%d events", len(events))
	}

	unsubscribe()
	_, _ = e.Add(textObject("c"))
	if len(events) != 1 {
		t.Fatalf("unsubscribed listener was notified")
	}
}

func TestEngineSelection(t *testing.T) {
	e := New(0, 0)
	h, _ := e.Add(textObject("a"))
	if err := e.Select(h); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := e.SetFlags(h, false, false); err != nil {
		t.Fatalf("set flags: %v", err)
	}
	if _, ok := e.Selected(); ok {
		t.Fatalf("hidden object should not stay selected")
	}
	if err := e.Select(h); !errors.Is(err, ErrNotSelectable) {
		t.Fatalf("select hidden: want=%v got=%v", ErrNotSelectable, err)
	}
	if err := e.Select(999); !errors.Is(err, ErrNoObject) {
		t.Fatalf("select missing: want=%v got=%v", ErrNoObject, err)
	}
}

func TestEngineHitTest(t *testing.T) {
	e := New(0, 0)
	bottom, _ := e.Add(imageObject(100, 100, 100, 100))
	top, _ := e.Add(imageObject(150, 150, 100, 100))

	if h, ok := e.HitTest(175, 175); !ok || h != top {
		t.Fatalf("overlap: want=%d got=%d ok=%v", top, h, ok)
	}
	if h, ok := e.HitTest(110, 110); !ok || h != bottom {
		t.Fatalf("bottom: want=%d got=%d ok=%v", bottom, h, ok)
	}
	if _, ok := e.HitTest(50, 50); ok {
		t.Fatalf("empty area should not hit")
	}

	_ = e.SetFlags(top, true, false)
	if h, _ := e.HitTest(175, 175); h != bottom {
		t.Fatalf("unselectable top: want=%d got=%d", bottom, h)
	}
}

func TestObjectContainsRotated(t *testing.T) {
	o := imageObject(0, 0, 100, 10)
	o.Geometry.Angle = 90
	if !o.Contains(-5, 50) {
		t.Fatalf("rotated box should contain (-5, 50)")
	}
	if o.Contains(50, 5) {
		t.Fatalf("rotated box should not contain (50, 5)")
	}
}

func TestExportSkipsHidden(t *testing.T) {
	e := New(0, 0)
	h, _ := e.Add(textObject("hidden"))
	_, _ = e.Add(textObject("shown"))
	_ = e.SetFlags(h, false, false)

	if got := len(e.Export(ExportOptions{})); got != 1 {
		t.Fatalf("export: want=1 got=%d", got)
	}
	if got := len(e.Export(ExportOptions{IncludeHidden: true})); got != 2 {
		t.Fatalf("export hidden: want=2 got=%d", got)
	}
}

func TestViewportToCanvas(t *testing.T) {
	v := Viewport{Zoom: 2, PanX: 10, PanY: 20}
	x, y := v.ToCanvas(30, 60)
	if x != 10 || y != 20 {
		t.Fatalf("to canvas: want=(10,20) got=(%v,%v)", x, y)
	}
}
