package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"garment-studio/internal/editor"
	"garment-studio/internal/editor/scene"
)

func testDocument() editor.Document {
	return editor.Document{
		Schema:  editor.SchemaName,
		Version: editor.SchemaVersion,
		Width:   100,
		Height:  80,
		Objects: []editor.ObjectRecord{
			{
				Tag: &editor.Tag{ID: "front-text", Side: editor.SideFront},
				Object: scene.Object{
					Kind:     scene.KindText,
					Text:     "Hi <there>\nsecond",
					Geometry: scene.Geometry{X: 10, Y: 20, ScaleX: 1, ScaleY: 1, Angle: 15},
					Style:    scene.Style{Fill: "#ff0000", FontSize: 12},
				},
			},
			{
				Tag: &editor.Tag{ID: "back-image", Side: editor.SideBack},
				Object: scene.Object{
					Kind:     scene.KindImage,
					Src:      "https://cdn.example.com/a.png?x=1&y=2",
					Geometry: scene.Geometry{X: 0, Y: 0, ScaleX: 1, ScaleY: 1},
					Style:    scene.Style{Width: 40, Height: 40},
				},
			},
		},
	}
}

func newTestRenderer(t *testing.T, source ImageSource) *Renderer {
	t.Helper()
	r, err := NewRenderer(source, nil)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	return r
}

type failingSource struct{}

func (failingSource) Fetch(context.Context, string) ([]byte, error) {
	return nil, errors.New("offline")
}

type staticSource struct{ data []byte }

func (s staticSource) Fetch(context.Context, string) ([]byte, error) {
	return s.data, nil
}

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestSVGRendersOnlyRequestedSide(t *testing.T) {
	r := newTestRenderer(t, nil)

	front, err := r.SVG(testDocument(), editor.SideFront, Options{Background: "#ffffff"})
	if err != nil {
		t.Fatalf("svg: %v", err)
	}
	if !strings.Contains(front, `id="front-text"`) || strings.Contains(front, `id="back-image"`) {
		t.Fatalf("front svg has wrong objects:\n%s", front)
	}
	if !strings.Contains(front, "Hi &lt;there&gt;") {
		t.Fatalf("text should be escaped:\n%s", front)
	}
	if !strings.Contains(front, `transform="translate(10 20) rotate(15) scale(1 1)"`) {
		t.Fatalf("missing transform:\n%s", front)
	}
	if !strings.Contains(front, `viewBox="0 0 100 80"`) || !strings.Contains(front, `fill="#ffffff"`) {
		t.Fatalf("missing canvas attributes:\n%s", front)
	}

	back, err := r.SVG(testDocument(), editor.SideBack, Options{})
	if err != nil {
		t.Fatalf("svg: %v", err)
	}
	if !strings.Contains(back, `href="https://cdn.example.com/a.png?x=1&amp;y=2"`) {
		t.Fatalf("image href missing or unescaped:\n%s", back)
	}
	if strings.Contains(back, "front-text") {
		t.Fatalf("back svg should not contain front objects")
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	r := newTestRenderer(t, nil)
	if _, err := r.SVG(testDocument(), "top", Options{}); !errors.Is(err, ErrInvalidSide) {
		t.Fatalf("side: want=%v got=%v", ErrInvalidSide, err)
	}

	doc := testDocument()
	doc.Schema = "other"
	var derr *editor.DeserializationError
	if _, err := r.SVG(doc, editor.SideFront, Options{}); !errors.As(err, &derr) {
		t.Fatalf("schema: want DeserializationError got=%v", err)
	}

	if _, err := r.PNG(context.Background(), testDocument(), editor.SideFront, Options{Background: "blue"}); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("color: want=%v got=%v", ErrInvalidColor, err)
	}
}

func TestPNGSizeAndBackground(t *testing.T) {
	r := newTestRenderer(t, nil)
	data, err := r.PNG(context.Background(), testDocument(), editor.SideFront, Options{Background: "#00ff00", Scale: 2})
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 160 {
		t.Fatalf("size: want=200x160 got=%dx%d", b.Dx(), b.Dy())
	}
	rr, g, bb, _ := img.At(199, 159).RGBA()
	if rr != 0 || g != 0xffff || bb != 0 {
		t.Fatalf("background: got r=%x g=%x b=%x", rr, g, bb)
	}
}

func TestPNGDrawsPlaceholderForMissingImage(t *testing.T) {
	r := newTestRenderer(t, failingSource{})
	data, err := r.PNG(context.Background(), testDocument(), editor.SideBack, Options{})
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	img, _ := png.Decode(bytes.NewReader(data))
	rr, g, b, a := img.At(20, 20).RGBA()
	if a == 0 || rr != g || g != b {
		t.Fatalf("placeholder should be opaque grey: r=%x g=%x b=%x a=%x", rr, g, b, a)
	}
}

func TestPNGDrawsFetchedImage(t *testing.T) {
	r := newTestRenderer(t, staticSource{data: solidPNG(t, color.RGBA{B: 0xff, A: 0xff})})
	data, err := r.PNG(context.Background(), testDocument(), editor.SideBack, Options{})
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	img, _ := png.Decode(bytes.NewReader(data))
	rr, g, b, _ := img.At(20, 20).RGBA()
	if rr > 0x1000 || g > 0x1000 || b < 0xf000 {
		t.Fatalf("image pixel: want blue got r=%x g=%x b=%x", rr, g, b)
	}
	if _, _, _, a := img.At(60, 60).RGBA(); a != 0 {
		t.Fatalf("outside the image should stay transparent, alpha=%x", a)
	}
}

func TestPNGAppliesImageOpacity(t *testing.T) {
	doc := testDocument()
	doc.Objects[1].Style.Opacity = 0.5
	r := newTestRenderer(t, staticSource{data: solidPNG(t, color.RGBA{B: 0xff, A: 0xff})})
	data, err := r.PNG(context.Background(), doc, editor.SideBack, Options{})
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	img, _ := png.Decode(bytes.NewReader(data))
	if _, _, _, a := img.At(20, 20).RGBA(); a < 0x7000 || a > 0x9000 {
		t.Fatalf("half-transparent image: want alpha~0x8000 got=%x", a)
	}

	svg, err := r.SVG(doc, editor.SideBack, Options{})
	if err != nil {
		t.Fatalf("svg: %v", err)
	}
	if !strings.Contains(svg, `opacity="0.5"`) {
		t.Fatalf("svg image opacity missing:\n%s", svg)
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := parseHexColor("#0f8", 0.5)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := color.NRGBA{R: 0x00, G: 0xff, B: 0x88, A: 128}
	if c != want {
		t.Fatalf("color: want=%v got=%v", want, c)
	}
	if _, err := parseHexColor("#zzzzzz", 1); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("invalid: want=%v got=%v", ErrInvalidColor, err)
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			_, _ = w.Write([]byte("0123456789"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(time.Second, 10)
	src.allowPrivate = true
	data, err := src.Fetch(context.Background(), srv.URL+"/ok.png")
	if err != nil || string(data) != "0123456789" {
		t.Fatalf("fetch: data=%q err=%v", data, err)
	}
	if _, err := src.Fetch(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Fatalf("404 should fail")
	}
	small := NewHTTPSource(time.Second, 5)
	small.allowPrivate = true
	if _, err := small.Fetch(context.Background(), srv.URL+"/ok.png"); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("limit: want=%v got=%v", ErrImageTooLarge, err)
	}
	if _, err := src.Fetch(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatalf("file scheme should be rejected")
	}
}

func TestHTTPSourceRefusesInternalAddresses(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("secret"))
	}))
	defer srv.Close()

	src := NewHTTPSource(time.Second, 1<<10)
	if _, err := src.Fetch(context.Background(), srv.URL+"/latest/meta-data"); !errors.Is(err, ErrBlockedHost) {
		t.Fatalf("loopback: want=%v got=%v", ErrBlockedHost, err)
	}
	if hits != 0 {
		t.Fatalf("request reached the server: hits=%d", hits)
	}

	only := NewHTTPSource(time.Second, 1<<10, "cdn.example.com")
	if _, err := only.Fetch(context.Background(), "https://evil.example.org/a.png"); !errors.Is(err, ErrBlockedHost) {
		t.Fatalf("allow-list: want=%v got=%v", ErrBlockedHost, err)
	}
}

func TestPublicAddr(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1":        false,
		"10.1.2.3":         false,
		"192.168.0.10":     false,
		"169.254.169.254":  false,
		"0.0.0.0":          false,
		"::1":              false,
		"fe80::1":          false,
		"::ffff:127.0.0.1": false,
		"93.184.216.34":    true,
		"2606:4700::1111":  true,
	}
	for addr, want := range cases {
		if got := publicAddr(netip.MustParseAddr(addr)); got != want {
			t.Fatalf("publicAddr(%s): want=%v got=%v", addr, want, got)
		}
	}
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "u1"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "u1", "a.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src := NewDirSource("http://localhost:3002/files", root, staticSource{data: []byte("remote")})
	data, err := src.Fetch(context.Background(), "http://localhost:3002/files/u1/a.png")
	if err != nil || string(data) != "png" {
		t.Fatalf("local: data=%q err=%v", data, err)
	}
	data, err = src.Fetch(context.Background(), "https://cdn.example.com/b.png")
	if err != nil || string(data) != "remote" {
		t.Fatalf("fallback: data=%q err=%v", data, err)
	}
	if _, err := src.Fetch(context.Background(), "http://localhost:3002/files/../../etc/passwd"); err == nil {
		t.Fatalf("path escaping the root should not be readable")
	}
}
