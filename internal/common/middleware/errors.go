package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"
)

// ErrorHandler отдаёт ошибки в общем формате {"error": "..."}.
func ErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
