package main

import (
	"fmt"
	"os"
	"time"

	"garment-studio/internal/common/config"
	"garment-studio/internal/common/logger"
	"garment-studio/internal/common/middleware"
	"garment-studio/internal/render"
	"garment-studio/internal/render/handlers"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// Renderer Service
// ============================================================

func main() {
	cfg := config.Load()
	if os.Getenv("PORT") == "" {
		cfg.Port = "3001"
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(fmt.Sprintf("init logger: %v", err))
	}
	defer log.Sync()

	// картинки из локального хранилища читаются с диска, остальные — по HTTP
	var source render.ImageSource = render.NewHTTPSource(10*time.Second, cfg.Storage.MaxUploadSize, cfg.Storage.ImageHosts...)
	if cfg.Storage.Mode == "local" {
		source = render.NewDirSource(cfg.Storage.PublicBaseURL, cfg.Storage.Root, source)
	}
	renderer, err := render.NewRenderer(source, log)
	if err != nil {
		log.Fatal("init renderer", "error", err)
	}
	renderHandler := handlers.NewRenderHandler(renderer, log)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Renderer Service",
		ErrorHandler: middleware.ErrorHandler,
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(log))

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})

	app.Get("/health/ready", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ready"})
	})

	// ============================================================
	// Render Routes
	// ============================================================

	app.Post("/render/svg", renderHandler.RenderSVG)
	app.Post("/render/png", renderHandler.RenderPNG)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info("starting Renderer Service", "addr", addr, "env", cfg.Environment)

	if err := app.Listen(addr); err != nil {
		log.Fatal("failed to start server", "error", err)
	}
}
