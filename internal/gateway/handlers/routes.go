package handlers

import (
	"garment-studio/internal/gateway/proxy"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Routes
// ============================================================

const APIPrefix = "/api/v1"

// Mount регистрирует health-пробы и прокси /api/v1 к studio и renderer.
func Mount(app *fiber.App, studio, renderer *proxy.Upstream) {
	app.Get("/health/live", LivenessProbe)
	app.Get("/health/ready", ReadinessProbe(studio, renderer))
	app.Get("/health/startup", StartupProbe)

	// публичные ссылки локального хранилища
	app.Get("/files/*", studio.Handler())

	api := app.Group(APIPrefix)
	api.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Garment Studio API v1",
			"status":  "ok",
		})
	})

	// Renderer Service
	api.Post("/render/svg", renderer.Handler())
	api.Post("/render/png", renderer.Handler())

	// Studio Service
	toStudio := studio.Handler()
	api.Post("/login", toStudio)
	api.Post("/register", toStudio)
	api.Post("/logout", toStudio)
	api.Get("/catalog", toStudio)
	api.All("/users/*", toStudio)
	api.All("/editor", toStudio)
	api.All("/editor/*", toStudio)
}
