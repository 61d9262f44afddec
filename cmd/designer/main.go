package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"garment-studio/internal/cli"
	"garment-studio/internal/common/config"
	"garment-studio/internal/common/logger"
	"garment-studio/internal/editor"
	"garment-studio/internal/render"
	"garment-studio/internal/studio/repository"
	"garment-studio/internal/studio/service"

	"github.com/chzyer/readline"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ============================================================
// Designer — локальный редактор в терминале
// ============================================================

func main() {
	fmt.Println("Welcome to Garment Studio designer! Use 'help' for the list of commands.")

	cfg := config.Load()
	// в терминале логи только о проблемах
	log, err := logger.New("cli")
	if err != nil {
		panic(fmt.Sprintf("init logger: %v", err))
	}
	defer log.Sync()

	ctx := context.Background()

	db, err := repository.OpenSQLite(cfg.Studio.DBPath)
	if err != nil {
		log.Fatal("open db", "path", cfg.Studio.DBPath, "error", err)
	}
	defer db.Close()

	repo := repository.New(db)
	if err := repo.Init(ctx, cfg.Studio.MigrationsPath); err != nil {
		log.Fatal("init db", "error", err)
	}

	userID := repository.DemoUserID
	if cfg.Designer.Login != "" {
		user, err := repo.GetByCredentials(ctx, cfg.Designer.Login, cfg.Designer.Password)
		if err != nil {
			log.Fatal("login", "login", cfg.Designer.Login, "error", err)
		}
		userID = user.ID
	}

	catalog, err := service.LoadCatalog(cfg.Studio.CatalogPath)
	if err != nil {
		log.Fatal("load catalog", "error", err)
	}

	storage := service.NewFileStorage(cfg.Storage.Root, cfg.Storage.PublicBaseURL)
	source := render.NewDirSource(cfg.Storage.PublicBaseURL, cfg.Storage.Root,
		render.NewHTTPSource(10*time.Second, cfg.Storage.MaxUploadSize, cfg.Storage.ImageHosts...))
	renderer, err := render.NewRenderer(source, log)
	if err != nil {
		log.Fatal("init renderer", "error", err)
	}

	editors := service.NewEditorRegistry(editor.Options{
		HistoryLimit: cfg.Editor.HistoryLimit,
		Strict:       cfg.Editor.Strict,
		Logger:       log,
	}, service.DefaultGarment(catalog), 0, log)

	studio := service.NewStudio(service.Deps{
		Store:         repo,
		Editors:       editors,
		Catalog:       catalog,
		Renderer:      renderer,
		Uploader:      storage,
		TryOn:         service.NewTryOnClient(cfg.Services.TryOnURL, 2*time.Minute),
		MaxUploadSize: cfg.Storage.MaxUploadSize,
		Logger:        log,
	})

	if dir := filepath.Dir(cfg.Designer.HistoryFile); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     cfg.Designer.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Fatal("init readline", "error", err)
	}
	defer rl.Close()

	c := cli.NewCLI(studio, userID, rl, rl.Stdout())

	// скрипты из аргументов выполняются до интерактивного режима
	for _, script := range os.Args[1:] {
		if err := c.ExecuteScript(script); err != nil {
			fmt.Fprintf(c.Out, "Error executing script %s: %s\n", script, cli.Describe(err))
		}
	}

	for {
		err := c.Run()
		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			fmt.Fprintln(c.Out, "Use 'exit' or 'quit' to exit the program.")
		case errors.Is(err, io.EOF):
			fmt.Fprintln(c.Out, "Goodbye!")
			return
		default:
			fmt.Fprintln(c.Out, "Error:", cli.Describe(err))
		}
	}
}
