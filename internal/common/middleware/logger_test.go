package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"garment-studio/internal/common/logger"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerWritesAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(Logger(log))
	app.Get("/ok", func(c fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/missing", func(c fiber.Ctx) error { return fiber.NewError(fiber.StatusNotFound, "no such thing") })

	for _, path := range []string{"/ok", "/missing"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries: want=2 got=%d", len(entries))
	}
	ok, missing := entries[0], entries[1]
	if ok.Level != zapcore.InfoLevel || ok.ContextMap()["path"] != "/ok" || ok.ContextMap()["status"] != int64(200) {
		t.Fatalf("ok entry: level=%v ctx=%v", ok.Level, ok.ContextMap())
	}
	if missing.Level != zapcore.WarnLevel || missing.ContextMap()["status"] != int64(404) {
		t.Fatalf("missing entry: level=%v ctx=%v", missing.Level, missing.ContextMap())
	}
}
