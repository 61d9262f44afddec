package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"garment-studio/internal/editor"
	"garment-studio/internal/render"
	"garment-studio/internal/studio/models"
	"garment-studio/internal/studio/repository"

	"github.com/google/uuid"
)

// ============================================================
// Fakes
// ============================================================

type memoryStore struct {
	mu       sync.Mutex
	projects map[string]*models.Project
	onGet    func(id string)
	fail     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{projects: make(map[string]*models.Project)}
}

func (m *memoryStore) CreateProject(_ context.Context, p *models.Project) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	cp := *p
	cp.ID = uuid.NewString()
	m.projects[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memoryStore) UpdateProject(_ context.Context, id string, patch models.ProjectPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if len(patch.Scene) > 0 {
		p.Scene = patch.Scene
	}
	if patch.Garment != nil {
		p.Garment = *patch.Garment
	}
	if patch.PreviewURL != nil {
		p.PreviewURL = *patch.PreviewURL
	}
	return nil
}

func (m *memoryStore) ListProjects(_ context.Context, userID string) ([]models.ProjectSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ProjectSummary{}
	for _, p := range m.projects {
		if p.UserID == userID {
			out = append(out, models.ProjectSummary{ID: p.ID, Title: p.Title, Garment: p.Garment})
		}
	}
	return out, nil
}

func (m *memoryStore) GetProject(_ context.Context, id string) (*models.Project, error) {
	if m.onGet != nil {
		m.onGet(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryStore) DeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

type recordingUploader struct {
	mu    sync.Mutex
	calls []string
	err   error
	// started/block задерживают первую загрузку
	started chan struct{}
	block   chan struct{}
}

func (u *recordingUploader) Upload(_ context.Context, userID, category string, data []byte) (string, error) {
	u.mu.Lock()
	started, block := u.started, u.block
	u.started, u.block = nil, nil
	u.mu.Unlock()
	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return "", u.err
	}
	u.calls = append(u.calls, category)
	return "https://cdn.test/" + userID + "/" + category + "/" + uuid.NewString() + ".png", nil
}

type recordingTryOn struct {
	garment []byte
	pose    string
	started chan struct{}
	block   chan struct{}
}

func (g *recordingTryOn) Generate(_ context.Context, _, garment []byte, pose string) (TryOnResult, error) {
	if g.started != nil {
		close(g.started)
	}
	if g.block != nil {
		<-g.block
	}
	g.garment = garment
	g.pose = pose
	return TryOnResult{Image: []byte{1}, ContentType: "image/png"}, nil
}

func solidPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

type fixture struct {
	studio   *Studio
	store    *memoryStore
	uploader *recordingUploader
	tryOn    *recordingTryOn
	editorID string
}

const testUser = "user-1"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	renderer, err := render.NewRenderer(nil, nil)
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	f := &fixture{
		store:    newMemoryStore(),
		uploader: &recordingUploader{},
		tryOn:    &recordingTryOn{},
	}
	registry := NewEditorRegistry(editor.Options{Strict: true}, DefaultGarment(catalog), time.Hour, nil)
	f.studio = NewStudio(Deps{
		Store:         f.store,
		Editors:       registry,
		Catalog:       catalog,
		Renderer:      renderer,
		Uploader:      f.uploader,
		TryOn:         f.tryOn,
		MaxUploadSize: 1 << 20,
	})
	f.editorID = registry.Open(testUser).ID
	return f
}

func (f *fixture) do(t *testing.T, fn func(s *editor.Session) error) {
	t.Helper()
	err := f.studio.Editors().Do(f.editorID, testUser, func(ed *Editor) error {
		return fn(ed.Session)
	})
	if err != nil {
		t.Fatalf("editor op: %v", err)
	}
}

func (f *fixture) addText(t *testing.T, content string) {
	t.Helper()
	f.do(t, func(s *editor.Session) error {
		_, err := s.AddText(content)
		return err
	})
}

// ============================================================
// Catalog
// ============================================================

func TestDefaultCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.Validate(models.Garment{Type: "tshirt", Color: "white", Size: "M"}); err != nil {
		t.Fatalf("valid garment rejected: %v", err)
	}
	cases := []models.Garment{
		{Type: "cap", Color: "white", Size: "M"},
		{Type: "tshirt", Color: "pink", Size: "M"},
		{Type: "tshirt", Color: "white", Size: "XXXL"},
	}
	for _, g := range cases {
		var verr *editor.ValidationError
		if err := c.Validate(g); !errors.As(err, &verr) {
			t.Fatalf("%+v: want=ValidationError got=%v", g, err)
		}
	}
	if got := c.ColorHex(models.Garment{Type: "tshirt", Color: "black"}); got != "#1a1a1a" {
		t.Fatalf("color hex: want=#1a1a1a got=%s", got)
	}
	if !c.HasPose("front") || c.HasPose("handstand") {
		t.Fatalf("poses: %v", c.Poses)
	}
}

func TestCatalogFileMatchesBuiltIn(t *testing.T) {
	fromFile, err := LoadCatalog("../../../config/catalog.yaml")
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	builtIn, _ := LoadCatalog("")
	if len(fromFile.Garments) != len(builtIn.Garments) || len(fromFile.Poses) != len(builtIn.Poses) {
		t.Fatalf("catalog file drifted from built-in default")
	}
}

func TestParseCatalogRejectsIncomplete(t *testing.T) {
	if _, err := ParseCatalog([]byte("garments: []")); err == nil {
		t.Fatalf("empty catalog accepted")
	}
	if _, err := ParseCatalog([]byte("garments:\n  - type: tshirt\n    sizes: [M]\n")); err == nil {
		t.Fatalf("garment without colors accepted")
	}
	if _, err := ParseCatalog([]byte("garments: [")); err == nil {
		t.Fatalf("malformed yaml accepted")
	}
}

// ============================================================
// Sessions / Registry
// ============================================================

func TestSessionManagerExpires(t *testing.T) {
	m := NewSessionManager(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	token := m.Issue("u1")
	if uid, ok := m.Resolve(token); !ok || uid != "u1" {
		t.Fatalf("resolve: want=u1 got=%s ok=%v", uid, ok)
	}
	now = now.Add(50 * time.Second)
	if _, ok := m.Resolve(token); !ok {
		t.Fatalf("token expired too early")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := m.Resolve(token); ok {
		t.Fatalf("idle token still valid")
	}

	token = m.Issue("u1")
	m.Revoke(token)
	if _, ok := m.Resolve(token); ok {
		t.Fatalf("revoked token still valid")
	}
}

func TestRegistryOwnershipAndClose(t *testing.T) {
	r := NewEditorRegistry(editor.Options{}, models.Garment{}, time.Hour, nil)
	ed := r.Open("owner")

	if err := r.Do(ed.ID, "intruder", func(*Editor) error { return nil }); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign user: want=%v got=%v", ErrForbidden, err)
	}
	if err := r.Do("missing", "owner", func(*Editor) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing editor: want=%v got=%v", ErrNotFound, err)
	}
	if err := r.Close(ed.ID, "owner"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.Do(ed.ID, "owner", func(*Editor) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("closed editor: want=%v got=%v", ErrNotFound, err)
	}
}

func TestRegistryGuardRefusesDuplicate(t *testing.T) {
	r := NewEditorRegistry(editor.Options{}, models.Garment{}, time.Hour, nil)
	ed := r.Open("u")

	release, err := r.Guard(ed.ID, "u", ActionSave)
	if err != nil {
		t.Fatalf("first guard: %v", err)
	}
	if _, err := r.Guard(ed.ID, "u", ActionSave); !errors.Is(err, ErrBusy) {
		t.Fatalf("duplicate: want=%v got=%v", ErrBusy, err)
	}
	other, err := r.Guard(ed.ID, "u", ActionUpload)
	if err != nil {
		t.Fatalf("other action must not be blocked: %v", err)
	}
	other()
	release()
	again, err := r.Guard(ed.ID, "u", ActionSave)
	if err != nil {
		t.Fatalf("guard after release: %v", err)
	}
	again()
}

func TestRegistryReapsIdleEditors(t *testing.T) {
	r := NewEditorRegistry(editor.Options{}, models.Garment{}, 10*time.Minute, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	idle := r.Open("u")
	active := r.Open("u")
	now = now.Add(8 * time.Minute)
	_ = r.Do(active.ID, "u", func(*Editor) error { return nil })
	now = now.Add(5 * time.Minute)

	if n := r.Reap(); n != 1 {
		t.Fatalf("reaped: want=1 got=%d", n)
	}
	if err := r.Do(idle.ID, "u", func(*Editor) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("idle editor: want=%v got=%v", ErrNotFound, err)
	}
	if r.Len() != 1 {
		t.Fatalf("len: want=1 got=%d", r.Len())
	}
}

// ============================================================
// Storage
// ============================================================

func TestDetectImageType(t *testing.T) {
	cases := []struct {
		data []byte
		ext  string
		err  error
	}{
		{solidPNG(t), ".png", nil},
		{[]byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"></svg>`), ".svg", nil},
		{[]byte("plain text"), "", ErrUnsupportedType},
		{nil, "", ErrEmptyFile},
	}
	for i, tc := range cases {
		_, ext, err := DetectImageType(tc.data)
		if !errors.Is(err, tc.err) || ext != tc.ext {
			t.Fatalf("case %d: want=%s/%v got=%s/%v", i, tc.ext, tc.err, ext, err)
		}
	}
}

func TestFileStorageUpload(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStorage(root, "http://localhost:3000/files/")

	url, err := fs.Upload(context.Background(), "u1", "images", solidPNG(t))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	prefix := "http://localhost:3000/files/u1/images/"
	if !strings.HasPrefix(url, prefix) || !strings.HasSuffix(url, ".png") {
		t.Fatalf("url: got=%s", url)
	}
	name := strings.TrimPrefix(url, prefix)
	if _, err := os.Stat(filepath.Join(root, "u1", "images", name)); err != nil {
		t.Fatalf("file not written: %v", err)
	}
}

// ============================================================
// Studio
// ============================================================

func TestSaveValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var verr *editor.ValidationError
	if _, err := f.studio.Save(ctx, f.editorID, testUser, SaveRequest{Title: "x"}); !errors.As(err, &verr) || verr.Field != "scene" {
		t.Fatalf("empty scene: want=ValidationError(scene) got=%v", err)
	}

	f.addText(t, "hello")
	if _, err := f.studio.Save(ctx, f.editorID, testUser, SaveRequest{Title: "  "}); !errors.As(err, &verr) || verr.Field != "title" {
		t.Fatalf("blank title: want=ValidationError(title) got=%v", err)
	}
	bad := models.Garment{Type: "tshirt", Color: "pink", Size: "M"}
	if _, err := f.studio.Save(ctx, f.editorID, testUser, SaveRequest{Title: "x", Garment: &bad}); !errors.As(err, &verr) {
		t.Fatalf("bad garment: want=ValidationError got=%v", err)
	}
	if len(f.store.projects) != 0 {
		t.Fatalf("invalid save must not create a document, got %d", len(f.store.projects))
	}
}

func TestSaveCreatesThenUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addText(t, "front text")

	first, err := f.studio.Save(ctx, f.editorID, testUser, SaveRequest{Title: "Mine"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.PreviewURL == "" || len(f.uploader.calls) != 1 || f.uploader.calls[0] != categoryPreviews {
		t.Fatalf("preview: url=%q calls=%v", first.PreviewURL, f.uploader.calls)
	}

	f.addText(t, "second")
	second, err := f.studio.Save(ctx, f.editorID, testUser, SaveRequest{Title: "Renamed"})
	if err != nil {
		t.Fatalf("re-save: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("re-save must update: want=%s got=%s", first.ID, second.ID)
	}
	if second.Title != "Renamed" || len(f.store.projects) != 1 {
		t.Fatalf("update: title=%s projects=%d", second.Title, len(f.store.projects))
	}
	doc, err := editor.DecodeDocument(second.Scene)
	if err != nil || len(doc.Objects) != 2 {
		t.Fatalf("saved scene: objects=%d err=%v", len(doc.Objects), err)
	}

	copyProject, err := f.studio.Save(ctx, f.editorID, testUser, SaveRequest{Title: "Copy", AsNew: true})
	if err != nil {
		t.Fatalf("save as new: %v", err)
	}
	if copyProject.ID == first.ID || len(f.store.projects) != 2 {
		t.Fatalf("save as new must create another project")
	}

	// после копии сессия редактирует уже копию
	f.addText(t, "third")
	again, err := f.studio.Save(ctx, f.editorID, testUser, SaveRequest{Title: "Copy v2"})
	if err != nil {
		t.Fatalf("save after copy: %v", err)
	}
	if again.ID != copyProject.ID || len(f.store.projects) != 2 {
		t.Fatalf("save after copy: want=%s got=%s projects=%d", copyProject.ID, again.ID, len(f.store.projects))
	}
	if original, _ := f.store.GetProject(ctx, first.ID); original.Title != "Renamed" {
		t.Fatalf("original must stay untouched: title=%s", original.Title)
	}
}

func TestSaveDoesNotLinkAfterNewProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addText(t, "first design")

	f.uploader.started = make(chan struct{})
	f.uploader.block = make(chan struct{})
	started, block := f.uploader.started, f.uploader.block

	type result struct {
		project *models.Project
		err     error
	}
	done := make(chan result, 1)
	go func() {
		p, err := f.studio.Save(ctx, f.editorID, testUser, SaveRequest{Title: "First"})
		done <- result{p, err}
	}()

	<-started
	if _, err := f.studio.NewProject(f.editorID, testUser); err != nil {
		t.Fatalf("new project: %v", err)
	}
	f.addText(t, "unrelated new design")
	close(block)

	res := <-done
	if res.err != nil {
		t.Fatalf("first save: %v", res.err)
	}
	var linked string
	_ = f.studio.Editors().Do(f.editorID, testUser, func(ed *Editor) error {
		linked = ed.ProjectID
		return nil
	})
	if linked != "" {
		t.Fatalf("new project must stay unsaved: linked=%s", linked)
	}

	second, err := f.studio.Save(ctx, f.editorID, testUser, SaveRequest{Title: "Second"})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if second.ID == res.project.ID || len(f.store.projects) != 2 {
		t.Fatalf("second save must create a project: projects=%d", len(f.store.projects))
	}
	first, _ := f.store.GetProject(ctx, res.project.ID)
	if first.Title != "First" {
		t.Fatalf("first project overwritten: title=%s", first.Title)
	}
}

func TestSaveSurvivesPreviewFailure(t *testing.T) {
	f := newFixture(t)
	f.uploader.err = errors.New("bucket unavailable")
	f.addText(t, "x")

	p, err := f.studio.Save(context.Background(), f.editorID, testUser, SaveRequest{Title: "t"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if p.PreviewURL != "" {
		t.Fatalf("preview url: want empty got=%s", p.PreviewURL)
	}
}

func TestSaveStoreFailureIsTransient(t *testing.T) {
	f := newFixture(t)
	f.store.fail = errors.New("disk full")
	f.addText(t, "x")

	_, err := f.studio.Save(context.Background(), f.editorID, testUser, SaveRequest{Title: "t"})
	var terr *TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("want=TransientError got=%v", err)
	}
	// контрол снова доступен
	release, err := f.studio.Editors().Guard(f.editorID, testUser, ActionSave)
	if err != nil {
		t.Fatalf("guard after failure: %v", err)
	}
	release()
}

func TestSaveRefusesConcurrentDuplicate(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "x")

	release, err := f.studio.Editors().Guard(f.editorID, testUser, ActionSave)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	defer release()
	if _, err := f.studio.Save(context.Background(), f.editorID, testUser, SaveRequest{Title: "t"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("want=%v got=%v", ErrBusy, err)
	}
}

func TestLoadAppliesProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addText(t, "saved")
	f.do(t, func(s *editor.Session) error { return s.SetActiveSide(editor.SideBack) })
	f.addText(t, "back")
	saved, err := f.studio.Save(ctx, f.editorID, testUser, SaveRequest{Title: "p"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := f.studio.NewProject(f.editorID, testUser); err != nil {
		t.Fatalf("new project: %v", err)
	}
	state, err := f.studio.Load(ctx, f.editorID, testUser, saved.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.ActiveSide != editor.SideFront || len(state.Layers) != 1 || state.Layers[0].Title != "saved" {
		t.Fatalf("loaded state: side=%s layers=%+v", state.ActiveSide, state.Layers)
	}
	if state.ObjectCount != 2 || state.CanUndo {
		t.Fatalf("loaded: objects=%d canUndo=%v", state.ObjectCount, state.CanUndo)
	}
}

func TestLoadDiscardsStaleResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addText(t, "saved")
	saved, err := f.studio.Save(ctx, f.editorID, testUser, SaveRequest{Title: "p"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := f.studio.NewProject(f.editorID, testUser); err != nil {
		t.Fatalf("new project: %v", err)
	}

	// пока проект едет из хранилища, пользователь начинает новый проект
	f.store.onGet = func(string) {
		f.store.onGet = nil
		if _, err := f.studio.NewProject(f.editorID, testUser); err != nil {
			t.Errorf("reset during load: %v", err)
		}
	}
	if _, err := f.studio.Load(ctx, f.editorID, testUser, saved.ID); !errors.Is(err, ErrStale) {
		t.Fatalf("want=%v got=%v", ErrStale, err)
	}
	f.do(t, func(s *editor.Session) error {
		if !s.IsEmpty() {
			t.Fatalf("stale project applied")
		}
		return nil
	})
}

func TestProjectOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addText(t, "x")
	saved, err := f.studio.Save(ctx, f.editorID, testUser, SaveRequest{Title: "p"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := f.studio.GetProject(ctx, "someone-else", saved.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("get: want=%v got=%v", ErrForbidden, err)
	}
	if err := f.studio.DeleteProject(ctx, "someone-else", saved.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("delete: want=%v got=%v", ErrForbidden, err)
	}
	renamed, err := f.studio.RenameProject(ctx, testUser, saved.ID, "New title")
	if err != nil || renamed.Title != "New title" {
		t.Fatalf("rename: title=%v err=%v", renamed, err)
	}
	if err := f.studio.DeleteProject(ctx, testUser, saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.studio.GetProject(ctx, testUser, saved.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete: want=%v got=%v", ErrNotFound, err)
	}
}

func TestUploadImageAddsToActiveSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, url, err := f.studio.UploadImage(ctx, f.editorID, testUser, solidPNG(t))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	f.do(t, func(s *editor.Session) error {
		obj, tag, ok := s.Object(id)
		if !ok || obj.Src != url || tag.Side != editor.SideFront {
			t.Fatalf("image object: ok=%v src=%s side=%s", ok, obj.Src, tag.Side)
		}
		return nil
	})

	var verr *editor.ValidationError
	if _, _, err := f.studio.UploadImage(ctx, f.editorID, testUser, []byte("not an image")); !errors.As(err, &verr) {
		t.Fatalf("bad type: want=ValidationError got=%v", err)
	}
	big := append(solidPNG(t), make([]byte, 2<<20)...)
	if _, _, err := f.studio.UploadImage(ctx, f.editorID, testUser, big); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("too large: want=%v got=%v", ErrTooLarge, err)
	}
}

func TestTryOnRendersActiveSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.do(t, func(s *editor.Session) error { return s.SetActiveSide(editor.SideBack) })
	f.addText(t, "back print")

	if _, err := f.studio.TryOn(ctx, f.editorID, testUser, solidPNG(t), "handstand"); err == nil {
		t.Fatalf("unknown pose accepted")
	}
	result, err := f.studio.TryOn(ctx, f.editorID, testUser, solidPNG(t), "back")
	if err != nil {
		t.Fatalf("try-on: %v", err)
	}
	if !result.HasImage() || f.tryOn.pose != "back" {
		t.Fatalf("result: image=%v pose=%s", result.HasImage(), f.tryOn.pose)
	}
	img, err := png.Decode(bytes.NewReader(f.tryOn.garment))
	if err != nil {
		t.Fatalf("garment render is not png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 600 || b.Dy() != 700 {
		t.Fatalf("garment size: want=600x700 got=%dx%d", b.Dx(), b.Dy())
	}
}

func TestTryOnRefusesConcurrentDuplicate(t *testing.T) {
	f := newFixture(t)
	f.tryOn.started = make(chan struct{})
	f.tryOn.block = make(chan struct{})
	f.addText(t, "x")
	photo := solidPNG(t)

	done := make(chan error, 1)
	go func() {
		_, err := f.studio.TryOn(context.Background(), f.editorID, testUser, photo, "front")
		done <- err
	}()
	<-f.tryOn.started

	if _, err := f.studio.TryOn(context.Background(), f.editorID, testUser, photo, "front"); !errors.Is(err, ErrBusy) {
		t.Fatalf("duplicate: want=%v got=%v", ErrBusy, err)
	}
	close(f.tryOn.block)
	if err := <-done; err != nil {
		t.Fatalf("first try-on: %v", err)
	}
}
