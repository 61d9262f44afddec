package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"garment-studio/internal/common/logger"
	"garment-studio/internal/editor"
	"garment-studio/internal/render"
	"garment-studio/internal/studio/models"
	"garment-studio/internal/studio/repository"
)

// ============================================================
// Studio Service
// ============================================================

const (
	categoryPreviews = "previews"
	categoryImages   = "images"
)

// ProjectStore — облачное хранилище проектов.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) (string, error)
	UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) error
	ListProjects(ctx context.Context, userID string) ([]models.ProjectSummary, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// Studio связывает сессии редактора с хранилищем проектов, загрузкой
// картинок и примеркой.
type Studio struct {
	store     ProjectStore
	editors   *EditorRegistry
	catalog   *Catalog
	renderer  *render.Renderer
	uploader  Uploader
	tryOn     TryOnGenerator
	maxUpload int64
	log       *logger.Logger
}

type Deps struct {
	Store         ProjectStore
	Editors       *EditorRegistry
	Catalog       *Catalog
	Renderer      *render.Renderer
	Uploader      Uploader
	TryOn         TryOnGenerator
	MaxUploadSize int64
	Logger        *logger.Logger
}

func NewStudio(d Deps) *Studio {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Studio{
		store:     d.Store,
		editors:   d.Editors,
		catalog:   d.Catalog,
		renderer:  d.Renderer,
		uploader:  d.Uploader,
		tryOn:     d.TryOn,
		maxUpload: d.MaxUploadSize,
		log:       log.With("service", "Studio"),
	}
}

func (s *Studio) Editors() *EditorRegistry { return s.editors }

func (s *Studio) Catalog() *Catalog { return s.catalog }

// DefaultGarment — первое изделие каталога в первом цвете и среднем размере.
func DefaultGarment(c *Catalog) models.Garment {
	g := c.Garments[0]
	return models.Garment{
		Type:  g.Type,
		Color: g.Colors[0].Name,
		Size:  g.Sizes[len(g.Sizes)/2],
	}
}

// SelectGarment меняет изделие, к которому привязан дизайн.
func (s *Studio) SelectGarment(editorID, userID string, g models.Garment) error {
	if err := s.catalog.Validate(g); err != nil {
		return err
	}
	return s.editors.Do(editorID, userID, func(ed *Editor) error {
		ed.Garment = g
		return nil
	})
}

// ============================================================
// Save / Load
// ============================================================

type SaveRequest struct {
	Title   string
	Garment *models.Garment
	// AsNew — сохранить копией, даже если сессия уже привязана к проекту.
	AsNew bool
}

type saveSnapshot struct {
	doc       editor.Document
	projectID string
	garment   models.Garment
	// generation сессии на момент снимка; New/Load её меняют.
	generation uint64
}

// Save сериализует сессию и создаёт или обновляет проект. Превью рисуется
// по лицевой стороне; если его не удалось загрузить, проект всё равно
// сохраняется.
func (s *Studio) Save(ctx context.Context, editorID, userID string, req SaveRequest) (*models.Project, error) {
	release, err := s.editors.Guard(editorID, userID, ActionSave)
	if err != nil {
		return nil, err
	}
	defer release()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, &editor.ValidationError{Field: "title", Reason: "title is required"}
	}

	var snap saveSnapshot
	err = s.editors.Do(editorID, userID, func(ed *Editor) error {
		doc, err := ed.Session.SerializeProject()
		if err != nil {
			return err
		}
		snap = saveSnapshot{
			doc:        doc,
			projectID:  ed.ProjectID,
			garment:    ed.Garment,
			generation: ed.Session.Generation(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if req.Garment != nil {
		snap.garment = *req.Garment
	}
	if req.AsNew {
		snap.projectID = ""
	}

	if snap.doc.IsEmpty() {
		return nil, &editor.ValidationError{Field: "scene", Reason: "nothing to save"}
	}
	if err := s.catalog.Validate(snap.garment); err != nil {
		return nil, err
	}
	sceneJSON, err := editor.EncodeDocument(snap.doc)
	if err != nil {
		return nil, err
	}

	previewURL := s.preview(ctx, userID, snap.doc, snap.garment)

	id, err := s.persist(ctx, userID, title, snap, sceneJSON, previewURL)
	if err != nil {
		return nil, err
	}

	// Сессия могла начать новый проект, пока шло сохранение: тогда
	// сохранённый проект к ней уже не относится. Копия (AsNew) становится
	// текущим проектом сессии.
	_ = s.editors.Do(editorID, userID, func(ed *Editor) error {
		if ed.Session.Generation() == snap.generation {
			ed.ProjectID = id
			ed.Garment = snap.garment
		}
		return nil
	})

	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, transient("save", err)
	}
	s.log.Info("project saved", "project_id", id, "user_id", userID, "objects", len(snap.doc.Objects))
	return project, nil
}

func (s *Studio) persist(ctx context.Context, userID, title string, snap saveSnapshot, sceneJSON []byte, previewURL string) (string, error) {
	if snap.projectID != "" {
		existing, err := s.store.GetProject(ctx, snap.projectID)
		switch {
		case err == nil:
			if existing.UserID != userID {
				return "", ErrForbidden
			}
			patch := models.ProjectPatch{
				Title:   &title,
				Scene:   sceneJSON,
				Garment: &snap.garment,
			}
			if previewURL != "" {
				patch.PreviewURL = &previewURL
			}
			if err := s.store.UpdateProject(ctx, snap.projectID, patch); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					break
				}
				return "", transient("save", err)
			}
			return snap.projectID, nil
		case errors.Is(err, repository.ErrNotFound):
			// проект удалили в другой вкладке — сохраняем заново
		default:
			return "", transient("save", err)
		}
	}

	id, err := s.store.CreateProject(ctx, &models.Project{
		UserID:     userID,
		Title:      title,
		Scene:      sceneJSON,
		Garment:    snap.garment,
		PreviewURL: previewURL,
	})
	if err != nil {
		return "", transient("save", err)
	}
	return id, nil
}

func (s *Studio) preview(ctx context.Context, userID string, doc editor.Document, g models.Garment) string {
	if s.renderer == nil || s.uploader == nil {
		return ""
	}
	png, err := s.renderer.PNG(ctx, doc, editor.SideFront, render.Options{Background: s.catalog.ColorHex(g)})
	if err != nil {
		s.log.Warn("preview render failed", "user_id", userID, "error", err)
		return ""
	}
	url, err := s.uploader.Upload(ctx, userID, categoryPreviews, png)
	if err != nil {
		s.log.Warn("preview upload failed", "user_id", userID, "error", err)
		return ""
	}
	return url
}

// Load загружает проект в сессию. Ответ применяется, только если сессия
// жива и за время запроса не была сброшена и не начала другую загрузку.
func (s *Studio) Load(ctx context.Context, editorID, userID, projectID string) (editor.State, error) {
	var token uint64
	err := s.editors.Do(editorID, userID, func(ed *Editor) error {
		token = ed.Session.BeginLoad()
		return nil
	})
	if err != nil {
		return editor.State{}, err
	}

	project, err := s.ownedProject(ctx, userID, projectID)
	if err != nil {
		return editor.State{}, err
	}
	doc, err := editor.DecodeDocument(project.Scene)
	if err != nil {
		return editor.State{}, err
	}

	var state editor.State
	err = s.editors.Do(editorID, userID, func(ed *Editor) error {
		if err := ed.Session.LoadProjectFor(token, doc); err != nil {
			return err
		}
		ed.ProjectID = project.ID
		ed.Garment = project.Garment
		state = ed.Session.State()
		return nil
	})
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, editor.ErrStale):
		s.log.Debug("stale load discarded", "editor_id", editorID, "project_id", projectID)
		return editor.State{}, ErrStale
	case err != nil:
		return editor.State{}, err
	}
	return state, nil
}

// NewProject сбрасывает сессию; незавершённые загрузки становятся устаревшими.
func (s *Studio) NewProject(editorID, userID string) (editor.State, error) {
	var state editor.State
	err := s.editors.Do(editorID, userID, func(ed *Editor) error {
		ed.Session.Reset()
		ed.ProjectID = ""
		ed.Garment = s.editors.garment
		state = ed.Session.State()
		return nil
	})
	return state, err
}

// ============================================================
// Projects
// ============================================================

func (s *Studio) ListProjects(ctx context.Context, userID string) ([]models.ProjectSummary, error) {
	list, err := s.store.ListProjects(ctx, userID)
	if err != nil {
		return nil, transient("list projects", err)
	}
	return list, nil
}

func (s *Studio) GetProject(ctx context.Context, userID, projectID string) (*models.Project, error) {
	return s.ownedProject(ctx, userID, projectID)
}

func (s *Studio) RenameProject(ctx context.Context, userID, projectID, title string) (*models.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &editor.ValidationError{Field: "title", Reason: "title is required"}
	}
	if _, err := s.ownedProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProject(ctx, projectID, models.ProjectPatch{Title: &title}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, transient("rename project", err)
	}
	return s.ownedProject(ctx, userID, projectID)
}

func (s *Studio) DeleteProject(ctx context.Context, userID, projectID string) error {
	if _, err := s.ownedProject(ctx, userID, projectID); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return transient("delete project", err)
	}
	return nil
}

func (s *Studio) ownedProject(ctx context.Context, userID, projectID string) (*models.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, transient("load project", err)
	}
	if project.UserID != userID {
		return nil, ErrForbidden
	}
	return project, nil
}

// ============================================================
// Uploads / Try-On
// ============================================================

// UploadImage загружает картинку пользователя и добавляет её на активную
// сторону.
func (s *Studio) UploadImage(ctx context.Context, editorID, userID string, data []byte) (editor.ObjectID, string, error) {
	release, err := s.editors.Guard(editorID, userID, ActionUpload)
	if err != nil {
		return "", "", err
	}
	defer release()

	url, err := s.upload(ctx, userID, categoryImages, data)
	if err != nil {
		return "", "", err
	}

	var id editor.ObjectID
	err = s.editors.Do(editorID, userID, func(ed *Editor) error {
		id, err = ed.Session.AddImage(url)
		return err
	})
	if err != nil {
		return "", "", err
	}
	return id, url, nil
}

func (s *Studio) upload(ctx context.Context, userID, category string, data []byte) (string, error) {
	if s.maxUpload > 0 && int64(len(data)) > s.maxUpload {
		return "", &editor.ValidationError{Field: "file", Reason: fmt.Sprintf("larger than %d bytes", s.maxUpload), Err: ErrTooLarge}
	}
	if _, _, err := DetectImageType(data); err != nil {
		return "", &editor.ValidationError{Field: "file", Reason: err.Error(), Err: err}
	}
	url, err := s.uploader.Upload(ctx, userID, category, data)
	if err != nil {
		return "", transient("upload", err)
	}
	return url, nil
}

// TryOn рисует активную сторону и отправляет её вместе с фото в сервис
// примерки.
func (s *Studio) TryOn(ctx context.Context, editorID, userID string, photo []byte, pose string) (TryOnResult, error) {
	release, err := s.editors.Guard(editorID, userID, ActionTryOn)
	if err != nil {
		return TryOnResult{}, err
	}
	defer release()

	if !s.catalog.HasPose(pose) {
		return TryOnResult{}, &editor.ValidationError{Field: "pose", Reason: fmt.Sprintf("unknown pose %q", pose)}
	}
	if s.maxUpload > 0 && int64(len(photo)) > s.maxUpload {
		return TryOnResult{}, &editor.ValidationError{Field: "photo", Reason: fmt.Sprintf("larger than %d bytes", s.maxUpload), Err: ErrTooLarge}
	}
	if _, _, err := DetectImageType(photo); err != nil {
		return TryOnResult{}, &editor.ValidationError{Field: "photo", Reason: err.Error(), Err: err}
	}

	var (
		doc     editor.Document
		side    editor.Side
		garment models.Garment
	)
	err = s.editors.Do(editorID, userID, func(ed *Editor) error {
		var err error
		doc, err = ed.Session.SerializeProject()
		side = ed.Session.ActiveSide()
		garment = ed.Garment
		return err
	})
	if err != nil {
		return TryOnResult{}, err
	}

	garmentPNG, err := s.renderer.PNG(ctx, doc, side, render.Options{Background: s.catalog.ColorHex(garment)})
	if err != nil {
		return TryOnResult{}, err
	}
	result, err := s.tryOn.Generate(ctx, photo, garmentPNG, pose)
	if err != nil {
		s.log.Warn("try-on failed", "editor_id", editorID, "error", err)
		return TryOnResult{}, err
	}
	s.log.Info("try-on finished", "editor_id", editorID, "side", side, "pose", pose, "image", result.HasImage())
	return result, nil
}

// ============================================================
// Render
// ============================================================

// Render рисует сторону сессии на фоне цвета изделия. Пустая сторона —
// активная.
func (s *Studio) Render(ctx context.Context, editorID, userID string, side editor.Side, format string) ([]byte, string, error) {
	var (
		doc     editor.Document
		garment models.Garment
	)
	err := s.editors.Do(editorID, userID, func(ed *Editor) error {
		var err error
		doc, err = ed.Session.SerializeProject()
		if side == "" {
			side = ed.Session.ActiveSide()
		}
		garment = ed.Garment
		return err
	})
	if err != nil {
		return nil, "", err
	}

	opts := render.Options{Background: s.catalog.ColorHex(garment)}
	switch format {
	case "", "png":
		data, err := s.renderer.PNG(ctx, doc, side, opts)
		return data, "image/png", err
	case "svg":
		svg, err := s.renderer.SVG(doc, side, opts)
		return []byte(svg), "image/svg+xml", err
	}
	return nil, "", &editor.ValidationError{Field: "format", Reason: "must be png or svg"}
}
