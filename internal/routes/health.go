package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds liveness/readiness style endpoints.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		checks, healthy := checkBackends(ctx, d)
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    checks,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

// checkBackends checks each configured backend. NATS is reported but never fails
// readiness since event publication is best effort.
func checkBackends(ctx context.Context, d Deps) (map[string]string, bool) {
	checks := map[string]string{"postgres": "memory", "redis": "disabled", "nats": "disabled"}
	healthy := true
	if d.DB != nil {
		checks["postgres"] = "ok"
		if err := d.DB.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		}
	}
	if d.Cache != nil {
		checks["redis"] = "ok"
		if err := d.Cache.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}
	if d.NATS != nil {
		checks["nats"] = d.NATS.Status().String()
	}
	return checks, healthy
}
