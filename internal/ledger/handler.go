package ledger

import (
	"sort"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/merchant_ledger/internal/money"
)

// Handler exposes the ledger audit endpoint.
type Handler struct {
	store Store
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Totals reports the signed total per currency. Every total is zero on a healthy ledger.
func (h *Handler) Totals(c *fiber.Ctx) error {
	totals, err := h.store.Totals(c.UserContext())
	if err != nil {
		return err
	}
	out := make(map[string]string, len(totals))
	for currency, total := range totals {
		out[currency] = money.Format(total)
	}
	imbalanced := Imbalanced(totals)
	sort.Strings(imbalanced)
	return c.JSON(fiber.Map{
		"totals":     out,
		"balanced":   len(imbalanced) == 0,
		"imbalanced": imbalanced,
	})
}
