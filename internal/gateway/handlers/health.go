package handlers

import (
	"context"
	"net/http"
	"time"

	"garment-studio/internal/gateway/proxy"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Health Check Handlers
// ============================================================

// LivenessProbe проверяет, что приложение работает
func LivenessProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
	})
}

// ReadinessProbe готов, только если отвечают все внутренние сервисы.
func ReadinessProbe(upstreams ...*proxy.Upstream) fiber.Handler {
	client := &http.Client{Timeout: 2 * time.Second}
	return func(c fiber.Ctx) error {
		status := make([]string, len(upstreams))
		g, ctx := errgroup.WithContext(c.Context())
		for i, u := range upstreams {
			g.Go(func() error {
				status[i] = ping(ctx, client, u.BaseURL()+"/health/live")
				return nil
			})
		}
		_ = g.Wait()

		checks := fiber.Map{}
		ready := true
		for i, u := range upstreams {
			checks[u.Name()] = status[i]
			if status[i] != "ok" {
				ready = false
			}
		}
		if !ready {
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "checks": checks})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": checks})
	}
}

// StartupProbe проверяет, что приложение успешно запустилось
func StartupProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "started",
	})
}

func ping(ctx context.Context, client *http.Client, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err.Error()
	}
	resp, err := client.Do(req)
	if err != nil {
		return "unreachable"
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return http.StatusText(resp.StatusCode)
	}
	return "ok"
}
