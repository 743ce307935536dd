package posting

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/congo-pay/merchant_ledger/internal/apierr"
	"github.com/congo-pay/merchant_ledger/internal/transfer"
)

// Handler exposes transfer transitions over HTTP.
type Handler struct {
	engine *Engine
}

// NewHandler builds a posting HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type failRequest struct {
	Reason string `json:"reason"`
}

// Post posts a pending transfer.
func (h *Handler) Post(c *fiber.Ctx) error {
	id, err := transferID(c)
	if err != nil {
		return err
	}
	t, err := h.engine.Post(c.UserContext(), id)
	if err != nil {
		return ToAPIError(err)
	}
	return c.JSON(transfer.ToResponse(t))
}

// Fail marks a pending transfer failed.
func (h *Handler) Fail(c *fiber.Ctx) error {
	id, err := transferID(c)
	if err != nil {
		return err
	}
	var req failRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apierr.BadRequest(err.Error())
		}
	}
	t, err := h.engine.Fail(c.UserContext(), id, req.Reason)
	if err != nil {
		return ToAPIError(err)
	}
	return c.JSON(transfer.ToResponse(t))
}

// Cancel cancels a pending transfer.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	id, err := transferID(c)
	if err != nil {
		return err
	}
	t, err := h.engine.Cancel(c.UserContext(), id)
	if err != nil {
		return ToAPIError(err)
	}
	return c.JSON(transfer.ToResponse(t))
}

// Reverse reverses a posted transfer.
func (h *Handler) Reverse(c *fiber.Ctx) error {
	id, err := transferID(c)
	if err != nil {
		return err
	}
	t, err := h.engine.Reverse(c.UserContext(), id)
	if err != nil {
		return ToAPIError(err)
	}
	return c.JSON(transfer.ToResponse(t))
}

func transferID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("transferId"))
	if err != nil {
		return uuid.Nil, apierr.BadRequest("transferId must be a uuid")
	}
	return id, nil
}

// ToAPIError maps posting failures onto HTTP errors, deferring to the
// transfer mapping for everything else.
func ToAPIError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAccount):
		return apierr.New(http.StatusUnprocessableEntity, "invalid_account", err.Error())
	case errors.Is(err, ErrCurrencyMismatch):
		return apierr.New(http.StatusUnprocessableEntity, "currency_mismatch", err.Error())
	default:
		return transfer.ToAPIError(err)
	}
}
