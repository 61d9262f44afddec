package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"garment-studio/internal/common/config"
	"garment-studio/internal/common/logger"
	"garment-studio/internal/common/middleware"
	"garment-studio/internal/editor"
	"garment-studio/internal/render"
	"garment-studio/internal/studio/handlers"
	"garment-studio/internal/studio/repository"
	"garment-studio/internal/studio/service"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// ============================================================
// Studio Service
// ============================================================

func main() {
	cfg := config.Load()
	if os.Getenv("PORT") == "" {
		cfg.Port = "3002"
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(fmt.Sprintf("init logger: %v", err))
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.OpenSQLite(cfg.Studio.DBPath)
	if err != nil {
		log.Fatal("open db", "path", cfg.Studio.DBPath, "error", err)
	}
	defer db.Close()

	repo := repository.New(db)
	if err := repo.Init(ctx, cfg.Studio.MigrationsPath); err != nil {
		log.Fatal("init db", "error", err)
	}

	catalog, err := service.LoadCatalog(cfg.Studio.CatalogPath)
	if err != nil {
		log.Fatal("load catalog", "error", err)
	}

	// ============================================================
	// Storage / Rendering
	// ============================================================

	var (
		uploader    service.Uploader
		fileStorage *service.FileStorage
		source      render.ImageSource = render.NewHTTPSource(10*time.Second, cfg.Storage.MaxUploadSize, cfg.Storage.ImageHosts...)
	)
	switch cfg.Storage.Mode {
	case "gcs":
		gcs, err := service.NewGCSUploader(ctx, cfg.Storage, log)
		if err != nil {
			log.Fatal("init gcs", "error", err)
		}
		defer gcs.Close()
		uploader = gcs
	default:
		fileStorage = service.NewFileStorage(cfg.Storage.Root, cfg.Storage.PublicBaseURL)
		uploader = fileStorage
		source = render.NewDirSource(cfg.Storage.PublicBaseURL, cfg.Storage.Root, source)
		log.Info("object storage initialized", "mode", "local", "root", cfg.Storage.Root)
	}

	renderer, err := render.NewRenderer(source, log)
	if err != nil {
		log.Fatal("init renderer", "error", err)
	}

	// ============================================================
	// Editor Sessions
	// ============================================================

	ttl := time.Duration(cfg.Editor.SessionTTLMinutes) * time.Minute
	editors := service.NewEditorRegistry(editor.Options{
		HistoryLimit: cfg.Editor.HistoryLimit,
		Strict:       cfg.Editor.Strict,
		Logger:       log,
	}, service.DefaultGarment(catalog), ttl, log)
	go editors.Run(ctx, time.Minute)

	studio := service.NewStudio(service.Deps{
		Store:         repo,
		Editors:       editors,
		Catalog:       catalog,
		Renderer:      renderer,
		Uploader:      uploader,
		TryOn:         service.NewTryOnClient(cfg.Services.TryOnURL, 2*time.Minute),
		MaxUploadSize: cfg.Storage.MaxUploadSize,
		Logger:        log,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Studio Service",
		ErrorHandler: middleware.ErrorHandler,
		BodyLimit:    int(cfg.Storage.MaxUploadSize) + 1<<20,
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
		if err := db.PingContext(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "db unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ready", "editors": editors.Len()})
	})

	// ============================================================
	// Studio Routes
	// ============================================================

	h := handlers.Handlers{
		Auth:     handlers.NewAuthHandler(repo, service.NewSessionManager(ttl), log),
		Editor:   handlers.NewEditorHandler(studio, log),
		Projects: handlers.NewProjectHandler(studio, log),
	}
	if fileStorage != nil {
		h.Files = handlers.NewFileHandler(fileStorage)
	}
	handlers.Mount(app, h)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info("starting Studio Service", "addr", addr, "env", cfg.Environment,
		"storage", cfg.Storage.Mode, "strict", cfg.Editor.Strict)

	if err := app.Listen(addr); err != nil {
		log.Fatal("failed to start server", "error", err)
	}
}
