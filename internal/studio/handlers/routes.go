package handlers

import (
	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Routes
// ============================================================

type Handlers struct {
	Auth     *AuthHandler
	Editor   *EditorHandler
	Projects *ProjectHandler
	// Files — nil, если файлы лежат не локально (GCS).
	Files *FileHandler
}

// Mount регистрирует маршруты studio. Gateway проксирует их под /api/v1.
func Mount(app *fiber.App, h Handlers) {
	app.Post("/login", h.Auth.Login)
	app.Post("/register", h.Auth.Register)
	app.Get("/catalog", h.Projects.Catalog)
	if h.Files != nil {
		app.Get("/files/:user/:category/:name", h.Files.Get)
	}

	app.Post("/logout", h.Auth.RequireUser, h.Auth.Logout)

	users := app.Group("/users", h.Auth.RequireUser)
	users.Get("/:id", h.Auth.GetUser)

	// Cloud Project Store
	users.Get("/:id/projects", h.Projects.List)
	users.Get("/:id/projects/:pid", h.Projects.Get)
	users.Patch("/:id/projects/:pid", h.Projects.Rename)
	users.Delete("/:id/projects/:pid", h.Projects.Delete)

	// Editor sessions
	ed := app.Group("/editor", h.Auth.RequireUser)
	ed.Post("/", h.Editor.Open)
	ed.Get("/:eid", h.Editor.GetState)
	ed.Delete("/:eid", h.Editor.Close)
	ed.Get("/:eid/layers", h.Editor.GetLayers)
	ed.Get("/:eid/document", h.Editor.GetDocument)
	ed.Get("/:eid/render", h.Editor.Render)

	ed.Post("/:eid/text", h.Editor.AddText)
	ed.Post("/:eid/image", h.Editor.AddImage)
	ed.Post("/:eid/uploads", h.Editor.UploadImage)
	ed.Patch("/:eid/objects/:oid", h.Editor.Update)
	ed.Delete("/:eid/objects/:oid", h.Editor.Delete)
	ed.Post("/:eid/objects/:oid/duplicate", h.Editor.Duplicate)
	ed.Post("/:eid/objects/:oid/drag", h.Editor.Drag)
	ed.Post("/:eid/objects/:oid/forward", h.Editor.BringForward)
	ed.Post("/:eid/objects/:oid/backward", h.Editor.SendBackward)
	ed.Post("/:eid/drag/end", h.Editor.EndDrag)

	ed.Post("/:eid/select", h.Editor.Select)
	ed.Post("/:eid/hit", h.Editor.HitTest)
	ed.Post("/:eid/side", h.Editor.SetSide)
	ed.Post("/:eid/undo", h.Editor.Undo)
	ed.Post("/:eid/redo", h.Editor.Redo)
	ed.Post("/:eid/zoom", h.Editor.Zoom)
	ed.Post("/:eid/pan", h.Editor.Pan)
	ed.Post("/:eid/view/reset", h.Editor.ResetView)

	ed.Post("/:eid/garment", h.Editor.SelectGarment)
	ed.Post("/:eid/save", h.Editor.Save)
	ed.Post("/:eid/load", h.Editor.Load)
	ed.Post("/:eid/new", h.Editor.NewProject)
	ed.Post("/:eid/tryon", h.Editor.TryOn)
}
