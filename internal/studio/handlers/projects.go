package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"garment-studio/internal/common/logger"
	"garment-studio/internal/studio/service"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Project Handler
// ============================================================

type ProjectHandler struct {
	studio *service.Studio
	log    *logger.Logger
}

func NewProjectHandler(studio *service.Studio, log *logger.Logger) *ProjectHandler {
	return &ProjectHandler{studio: studio, log: log.With("handler", "projects")}
}

type renameRequest struct {
	Title string `json:"title"`
}

// List — проекты пользователя, последние изменённые первыми.
func (h *ProjectHandler) List(c fiber.Ctx) error {
	userID, err := ownUserParam(c)
	if err != nil {
		return err
	}
	list, err := h.studio.ListProjects(c.Context(), userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"projects": list})
}

func (h *ProjectHandler) Get(c fiber.Ctx) error {
	userID, err := ownUserParam(c)
	if err != nil {
		return err
	}
	project, err := h.studio.GetProject(c.Context(), userID, c.Params("pid"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(project)
}

func (h *ProjectHandler) Rename(c fiber.Ctx) error {
	userID, err := ownUserParam(c)
	if err != nil {
		return err
	}
	var req renameRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	project, err := h.studio.RenameProject(c.Context(), userID, c.Params("pid"), req.Title)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(project)
}

func (h *ProjectHandler) Delete(c fiber.Ctx) error {
	userID, err := ownUserParam(c)
	if err != nil {
		return err
	}
	if err := h.studio.DeleteProject(c.Context(), userID, c.Params("pid")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Catalog отдаёт изделия, цвета, размеры и позы примерки.
func (h *ProjectHandler) Catalog(c fiber.Ctx) error {
	return c.JSON(h.studio.Catalog())
}

// ============================================================
// File Handler
// ============================================================

var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

// FileHandler раздаёт загруженные файлы локального хранилища:
// /files/:user/:category/:name.
type FileHandler struct {
	storage *service.FileStorage
}

func NewFileHandler(storage *service.FileStorage) *FileHandler {
	return &FileHandler{storage: storage}
}

func (h *FileHandler) Get(c fiber.Ctx) error {
	user, category, name := c.Params("user"), c.Params("category"), c.Params("name")
	for _, part := range []string{user, category, name} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid path"})
		}
	}

	contentType, ok := contentTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "file not found"})
	}

	path := filepath.Join(h.storage.CategoryDir(user, category), name)
	if _, err := os.Stat(path); err != nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "file not found"})
	}

	c.Set("Content-Type", contentType)
	return c.SendFile(path)
}
