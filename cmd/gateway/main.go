package main

import (
	"fmt"
	"time"

	"garment-studio/internal/common/config"
	"garment-studio/internal/common/logger"
	"garment-studio/internal/common/middleware"
	"garment-studio/internal/gateway/handlers"
	"garment-studio/internal/gateway/proxy"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// API Gateway
// ============================================================

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(fmt.Sprintf("init logger: %v", err))
	}
	defer log.Sync()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "API Gateway",
		ErrorHandler: middleware.ErrorHandler,
		BodyLimit:    int(cfg.Storage.MaxUploadSize) + 1<<20,
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(log))
	app.Use(middleware.CORS())

	// ============================================================
	// Docs
	// ============================================================

	if spec, err := handlers.SwaggerSpec("docs/openapi.yaml"); err != nil {
		log.Warn("openapi spec not served", "error", err)
	} else {
		app.Get("/docs/openapi.yaml", spec)
		app.Get("/docs", handlers.SwaggerUI)
	}

	// ============================================================
	// Service Routes (Proxy)
	// ============================================================

	upstreamTimeout := time.Duration(cfg.WriteTimeout) * time.Second
	studio := proxy.NewUpstream("studio", cfg.Services.StudioURL, handlers.APIPrefix, upstreamTimeout, log)
	renderer := proxy.NewUpstream("renderer", cfg.Services.RendererURL, handlers.APIPrefix, upstreamTimeout, log)
	handlers.Mount(app, studio, renderer)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info("starting API Gateway", "addr", addr, "env", cfg.Environment,
		"studio", studio.BaseURL(), "renderer", renderer.BaseURL())

	if err := app.Listen(addr); err != nil {
		log.Fatal("failed to start server", "error", err)
	}
}
