package handlers

import (
	"io"
	"net/http"

	"garment-studio/internal/common/logger"
	"garment-studio/internal/editor"
	"garment-studio/internal/editor/scene"
	"garment-studio/internal/studio/models"
	"garment-studio/internal/studio/service"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Editor Handler
// ============================================================

type EditorHandler struct {
	studio *service.Studio
	log    *logger.Logger
}

func NewEditorHandler(studio *service.Studio, log *logger.Logger) *EditorHandler {
	return &EditorHandler{studio: studio, log: log.With("handler", "editor")}
}

type editorResponse struct {
	EditorID  string         `json:"editor_id"`
	ProjectID string         `json:"project_id,omitempty"`
	Garment   models.Garment `json:"garment"`
	State     editor.State   `json:"state"`
}

type objectResponse struct {
	ObjectID editor.ObjectID `json:"object_id"`
	URL      string          `json:"url,omitempty"`
	State    editor.State    `json:"state"`
}

type textRequest struct {
	Content string `json:"content"`
}

type imageRequest struct {
	URL string `json:"url"`
}

type objectPatchRequest struct {
	Text   *string            `json:"text,omitempty"`
	Style  *editor.StylePatch `json:"style,omitempty"`
	Locked *bool              `json:"locked,omitempty"`
}

type dragRequest struct {
	Geometry scene.Geometry `json:"geometry"`
	// End — последний кадр перетаскивания, фиксируется в истории.
	End bool `json:"end"`
}

type selectRequest struct {
	ID *editor.ObjectID `json:"id"`
}

type pointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type sideRequest struct {
	Side string `json:"side"`
}

type zoomRequest struct {
	Factor float64 `json:"factor"`
}

type panRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type saveRequest struct {
	Title   string          `json:"title"`
	Garment *models.Garment `json:"garment,omitempty"`
	AsNew   bool            `json:"as_new"`
}

type loadRequest struct {
	ProjectID string `json:"project_id"`
}

// Open создаёт новую сессию редактора.
func (h *EditorHandler) Open(c fiber.Ctx) error {
	ed := h.studio.Editors().Open(currentUser(c))

	var resp editorResponse
	err := h.studio.Editors().Do(ed.ID, ed.UserID, func(ed *service.Editor) error {
		resp = describe(ed)
		return nil
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(http.StatusCreated).JSON(resp)
}

func (h *EditorHandler) Close(c fiber.Ctx) error {
	if err := h.studio.Editors().Close(c.Params("eid"), currentUser(c)); err != nil {
		return respondError(c, h.log, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *EditorHandler) GetState(c fiber.Ctx) error {
	var resp editorResponse
	err := h.do(c, func(ed *service.Editor) error {
		resp = describe(ed)
		return nil
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(resp)
}

// GetLayers — слои активной стороны; ?all=true — обеих сторон.
func (h *EditorHandler) GetLayers(c fiber.Ctx) error {
	all := c.Query("all") == "true"
	var layers []editor.Layer
	err := h.do(c, func(ed *service.Editor) error {
		if all {
			layers = ed.Session.AllLayers()
		} else {
			layers = ed.Session.Layers()
		}
		return nil
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	if layers == nil {
		layers = []editor.Layer{}
	}
	return c.JSON(fiber.Map{"layers": layers})
}

// GetDocument отдаёт сериализованную сцену обеих сторон.
func (h *EditorHandler) GetDocument(c fiber.Ctx) error {
	var doc editor.Document
	err := h.do(c, func(ed *service.Editor) error {
		var err error
		doc, err = ed.Session.SerializeProject()
		return err
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(doc)
}

// ============================================================
// Objects
// ============================================================

func (h *EditorHandler) AddText(c fiber.Ctx) error {
	var req textRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	return h.create(c, func(s *editor.Session) (editor.ObjectID, error) {
		return s.AddText(req.Content)
	})
}

func (h *EditorHandler) AddImage(c fiber.Ctx) error {
	var req imageRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	return h.create(c, func(s *editor.Session) (editor.ObjectID, error) {
		return s.AddImage(req.URL)
	})
}

func (h *EditorHandler) Duplicate(c fiber.Ctx) error {
	id := editor.ObjectID(c.Params("oid"))
	return h.create(c, func(s *editor.Session) (editor.ObjectID, error) {
		return s.Duplicate(id)
	})
}

func (h *EditorHandler) Delete(c fiber.Ctx) error {
	id := editor.ObjectID(c.Params("oid"))
	return h.mutate(c, func(s *editor.Session) error { return s.Delete(id) })
}

// Update меняет текст, стиль и блокировку. Каждое изменение — отдельный
// шаг истории.
func (h *EditorHandler) Update(c fiber.Ctx) error {
	var req objectPatchRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	id := editor.ObjectID(c.Params("oid"))
	return h.mutate(c, func(s *editor.Session) error {
		if req.Locked != nil && !*req.Locked {
			if err := s.SetLocked(id, false); err != nil {
				return err
			}
		}
		if req.Text != nil {
			if err := s.UpdateText(id, *req.Text); err != nil {
				return err
			}
		}
		if req.Style != nil {
			if err := s.UpdateStyle(id, *req.Style); err != nil {
				return err
			}
		}
		if req.Locked != nil && *req.Locked {
			return s.SetLocked(id, true)
		}
		return nil
	})
}

func (h *EditorHandler) Drag(c fiber.Ctx) error {
	var req dragRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	id := editor.ObjectID(c.Params("oid"))
	return h.mutate(c, func(s *editor.Session) error {
		if err := s.Drag(id, req.Geometry); err != nil {
			return err
		}
		if req.End {
			return s.EndDrag()
		}
		return nil
	})
}

func (h *EditorHandler) EndDrag(c fiber.Ctx) error {
	return h.mutate(c, func(s *editor.Session) error { return s.EndDrag() })
}

func (h *EditorHandler) BringForward(c fiber.Ctx) error {
	id := editor.ObjectID(c.Params("oid"))
	return h.mutate(c, func(s *editor.Session) error { return s.BringForward(id) })
}

func (h *EditorHandler) SendBackward(c fiber.Ctx) error {
	id := editor.ObjectID(c.Params("oid"))
	return h.mutate(c, func(s *editor.Session) error { return s.SendBackward(id) })
}

// ============================================================
// Selection / Side / History / View
// ============================================================

// Select выделяет объект; {"id": null} снимает выделение.
func (h *EditorHandler) Select(c fiber.Ctx) error {
	var req selectRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	return h.mutate(c, func(s *editor.Session) error {
		if req.ID == nil {
			s.ClearSelection()
			return nil
		}
		return s.Select(*req.ID)
	})
}

// HitTest ищет верхний объект активной стороны под точкой экрана.
func (h *EditorHandler) HitTest(c fiber.Ctx) error {
	var req pointRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	var (
		id    editor.ObjectID
		found bool
	)
	err := h.do(c, func(ed *service.Editor) error {
		id, found = ed.Session.HitTest(req.X, req.Y)
		return nil
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	if !found {
		return c.JSON(fiber.Map{"object_id": nil})
	}
	return c.JSON(fiber.Map{"object_id": id})
}

func (h *EditorHandler) SetSide(c fiber.Ctx) error {
	var req sideRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	return h.mutate(c, func(s *editor.Session) error {
		side, err := editor.ParseSide(req.Side)
		if err != nil {
			return err
		}
		return s.SetActiveSide(side)
	})
}

func (h *EditorHandler) Undo(c fiber.Ctx) error {
	return h.mutate(c, func(s *editor.Session) error {
		_, err := s.Undo()
		return err
	})
}

func (h *EditorHandler) Redo(c fiber.Ctx) error {
	return h.mutate(c, func(s *editor.Session) error {
		_, err := s.Redo()
		return err
	})
}

func (h *EditorHandler) Zoom(c fiber.Ctx) error {
	var req zoomRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	return h.mutate(c, func(s *editor.Session) error { return s.SetZoom(req.Factor) })
}

func (h *EditorHandler) Pan(c fiber.Ctx) error {
	var req panRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	return h.mutate(c, func(s *editor.Session) error {
		s.Pan(req.DX, req.DY)
		return nil
	})
}

func (h *EditorHandler) ResetView(c fiber.Ctx) error {
	return h.mutate(c, func(s *editor.Session) error {
		s.ResetView()
		return nil
	})
}

// ============================================================
// Projects / Garment
// ============================================================

func (h *EditorHandler) SelectGarment(c fiber.Ctx) error {
	var req models.Garment
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if err := h.studio.SelectGarment(c.Params("eid"), currentUser(c), req); err != nil {
		return respondError(c, h.log, err)
	}
	return h.GetState(c)
}

func (h *EditorHandler) Save(c fiber.Ctx) error {
	var req saveRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	project, err := h.studio.Save(c.Context(), c.Params("eid"), currentUser(c), service.SaveRequest{
		Title:   req.Title,
		Garment: req.Garment,
		AsNew:   req.AsNew,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(project)
}

func (h *EditorHandler) Load(c fiber.Ctx) error {
	var req loadRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.ProjectID == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "project_id required"})
	}
	if _, err := h.studio.Load(c.Context(), c.Params("eid"), currentUser(c), req.ProjectID); err != nil {
		return respondError(c, h.log, err)
	}
	return h.GetState(c)
}

func (h *EditorHandler) NewProject(c fiber.Ctx) error {
	if _, err := h.studio.NewProject(c.Params("eid"), currentUser(c)); err != nil {
		return respondError(c, h.log, err)
	}
	return h.GetState(c)
}

// ============================================================
// Uploads / Try-On / Render
// ============================================================

// UploadImage принимает multipart file и кладёт картинку на активную сторону.
func (h *EditorHandler) UploadImage(c fiber.Ctx) error {
	data, err := formFile(c, "file")
	if err != nil {
		return err
	}
	id, url, err := h.studio.UploadImage(c.Context(), c.Params("eid"), currentUser(c), data)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return h.respondObject(c, http.StatusCreated, id, url)
}

// TryOn — multipart photo + pose. Отдаёт картинку или {"text_error": ...}.
func (h *EditorHandler) TryOn(c fiber.Ctx) error {
	photo, err := formFile(c, "photo")
	if err != nil {
		return err
	}
	result, err := h.studio.TryOn(c.Context(), c.Params("eid"), currentUser(c), photo, c.FormValue("pose"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	if !result.HasImage() {
		return c.JSON(result)
	}
	c.Set("Content-Type", result.ContentType)
	return c.Send(result.Image)
}

// Render — ?side=front|back (по умолчанию активная), ?format=png|svg.
func (h *EditorHandler) Render(c fiber.Ctx) error {
	var side editor.Side
	if raw := c.Query("side"); raw != "" {
		parsed, err := editor.ParseSide(raw)
		if err != nil {
			return respondError(c, h.log, err)
		}
		side = parsed
	}
	data, contentType, err := h.studio.Render(c.Context(), c.Params("eid"), currentUser(c), side, c.Query("format", "png"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	c.Set("Content-Type", contentType)
	return c.Send(data)
}

// ============================================================
// Helpers
// ============================================================

func (h *EditorHandler) do(c fiber.Ctx, fn func(ed *service.Editor) error) error {
	return h.studio.Editors().Do(c.Params("eid"), currentUser(c), fn)
}

// mutate выполняет операцию и отвечает новым состоянием сессии.
func (h *EditorHandler) mutate(c fiber.Ctx, fn func(s *editor.Session) error) error {
	var state editor.State
	err := h.do(c, func(ed *service.Editor) error {
		if err := fn(ed.Session); err != nil {
			return err
		}
		state = ed.Session.State()
		return nil
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"state": state})
}

func (h *EditorHandler) create(c fiber.Ctx, fn func(s *editor.Session) (editor.ObjectID, error)) error {
	var id editor.ObjectID
	err := h.do(c, func(ed *service.Editor) error {
		var err error
		id, err = fn(ed.Session)
		return err
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return h.respondObject(c, http.StatusCreated, id, "")
}

func (h *EditorHandler) respondObject(c fiber.Ctx, status int, id editor.ObjectID, url string) error {
	var state editor.State
	err := h.do(c, func(ed *service.Editor) error {
		state = ed.Session.State()
		return nil
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(status).JSON(objectResponse{ObjectID: id, URL: url, State: state})
}

func describe(ed *service.Editor) editorResponse {
	return editorResponse{
		EditorID:  ed.ID,
		ProjectID: ed.ProjectID,
		Garment:   ed.Garment,
		State:     ed.Session.State(),
	}
}

func formFile(c fiber.Ctx, field string) ([]byte, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, fiber.NewError(http.StatusBadRequest, field+" required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fiber.NewError(http.StatusInternalServerError, "failed to open file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fiber.NewError(http.StatusInternalServerError, "failed to read file")
	}
	return data, nil
}
