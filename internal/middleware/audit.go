package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/merchant_ledger/internal/apierr"
	"github.com/congo-pay/merchant_ledger/internal/authz"
)

// Audit emits structured logs for each request/response lifecycle event.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var (
			apiErr   *apierr.Error
			fiberErr *fiber.Error
		)
		switch {
		case errors.As(err, &apiErr):
			status = apiErr.Status
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
		}
		duration := time.Since(start)
		requestID, _ := c.Locals(RequestIDHeader).(string)

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", duration),
		}
		if requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if caller, ok := authz.CallerFrom(c.UserContext()); ok {
			attrs = append(attrs, slog.String("user_id", caller.UserID.String()))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			logger.Warn("request completed", attrs...)
			return err
		}

		logger.Info("request completed", attrs...)
		return nil
	}
}
