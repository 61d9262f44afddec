package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"garment-studio/internal/common/logger"
	"garment-studio/internal/editor"
	"garment-studio/internal/studio/service"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Error Mapping
// ============================================================

// respondError переводит ошибки редактора и сервиса в HTTP-статус.
func respondError(c fiber.Ctx, log *logger.Logger, err error) error {
	var (
		verr *editor.ValidationError
		derr *editor.DeserializationError
		terr *service.TransientError
		ferr *fiber.Error
	)
	switch {
	case errors.As(err, &ferr):
		return c.Status(ferr.Code).JSON(fiber.Map{"error": ferr.Message})
	case errors.Is(err, service.ErrTooLarge):
		return c.Status(http.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &verr):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error(), "field": verr.Field})
	case errors.As(err, &derr):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, editor.ErrNotFound), errors.Is(err, service.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrBusy), errors.Is(err, service.ErrStale), errors.Is(err, editor.ErrStale):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &terr):
		log.Warn("upstream failure", "op", terr.Op, "error", terr.Err)
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": terr.Op + " failed, try again"})
	}
	log.Error("request failed", "path", c.Path(), "error", err)
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

// decodeBody разбирает JSON-тело; пустое тело — ошибка.
func decodeBody(c fiber.Ctx, dst any) error {
	if len(c.Body()) == 0 {
		return fiber.NewError(http.StatusBadRequest, "empty body")
	}
	if err := json.Unmarshal(c.Body(), dst); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid json")
	}
	return nil
}
