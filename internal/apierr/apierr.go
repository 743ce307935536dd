// Package apierr renders domain failures as JSON bodies with a stable code
// so clients can tell every failure kind apart.
package apierr

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Error is an HTTP-facing failure with a machine readable code.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an Error.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// BadRequest is shorthand for malformed input.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, "bad_request", message)
}

type body struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

// Handler is a fiber.ErrorHandler writing every error in the same envelope.
func Handler(logger *slog.Logger, requestIDKey string) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			out    body
			status = http.StatusInternalServerError
		)
		out.Error.Code = "internal"
		out.Error.Message = "internal server error"

		var apiErr *Error
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &apiErr):
			status = apiErr.Status
			out.Error.Code = apiErr.Code
			out.Error.Message = apiErr.Message
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			out.Error.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(fiberErr.Code), " ", "_"))
			out.Error.Message = fiberErr.Message
		default:
			if logger != nil {
				logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
			}
		}
		out.Error.RequestID, _ = c.Locals(requestIDKey).(string)
		return c.Status(status).JSON(out)
	}
}
