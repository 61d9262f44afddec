package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"garment-studio/internal/common/logger"
	"garment-studio/internal/editor"
	"garment-studio/internal/render"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Render Handler
// ============================================================

type RenderHandler struct {
	renderer *render.Renderer
	log      *logger.Logger
}

func NewRenderHandler(renderer *render.Renderer, log *logger.Logger) *RenderHandler {
	return &RenderHandler{renderer: renderer, log: log.With("handler", "render")}
}

// RenderSVG рисует сторону документа из тела запроса в SVG.
func (h *RenderHandler) RenderSVG(c fiber.Ctx) error {
	doc, side, opts, err := h.parse(c)
	if err != nil {
		return err
	}

	svg, err := h.renderer.SVG(doc, side, opts)
	if err != nil {
		return h.fail(c, err)
	}

	c.Set("Content-Type", "image/svg+xml")
	return c.SendString(svg)
}

// RenderPNG рисует сторону документа в PNG.
func (h *RenderHandler) RenderPNG(c fiber.Ctx) error {
	doc, side, opts, err := h.parse(c)
	if err != nil {
		return err
	}

	png, err := h.renderer.PNG(c.Context(), doc, side, opts)
	if err != nil {
		return h.fail(c, err)
	}

	c.Set("Content-Type", "image/png")
	return c.Send(png)
}

// ============================================================
// Helpers
// ============================================================

func (h *RenderHandler) parse(c fiber.Ctx) (editor.Document, editor.Side, render.Options, error) {
	h.log.Debug("render request", "path", c.Path(), "bytes", len(c.Body()))

	if len(c.Body()) == 0 {
		return editor.Document{}, "", render.Options{}, fiber.NewError(http.StatusBadRequest, "body required")
	}

	side := editor.Side(c.Query("side", string(editor.SideFront)))
	if !side.Valid() {
		return editor.Document{}, "", render.Options{}, fiber.NewError(http.StatusBadRequest, "side must be front or back")
	}

	doc, err := editor.DecodeDocument(c.Body())
	if err != nil {
		h.log.Warn("render decode failed", "error", err)
		return editor.Document{}, "", render.Options{}, fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	}

	opts := render.Options{Background: c.Query("background")}
	if raw := c.Query("scale"); raw != "" {
		scale, err := strconv.ParseFloat(raw, 64)
		if err != nil || scale <= 0 || scale > 4 {
			return editor.Document{}, "", render.Options{}, fiber.NewError(http.StatusBadRequest, "scale must be in (0, 4]")
		}
		opts.Scale = scale
	}
	return doc, side, opts, nil
}

func (h *RenderHandler) fail(c fiber.Ctx, err error) error {
	var derr *editor.DeserializationError
	switch {
	case errors.Is(err, render.ErrInvalidColor), errors.Is(err, render.ErrInvalidSide):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &derr):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	h.log.Error("render failed", "error", err)
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "render failed"})
}
