package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/merchant_ledger/internal/middleware"
	"github.com/congo-pay/merchant_ledger/internal/posting"
	"github.com/congo-pay/merchant_ledger/internal/transfer"
)

// RegisterTransferRoutes wires transfer creation, reads and transitions.
// Writes are idempotent per caller when Redis is configured.
func RegisterTransferRoutes(r fiber.Router, c Components, d Deps) {
	h := transfer.NewHandler(c.Transfers)
	p := posting.NewHandler(c.Engine)

	g := r.Group("/transfers",
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
		middleware.TransferRateLimit(d.Cache, d.Cfg.TransferRateLimit),
	)

	fromOwner := middleware.RequireAccountAccess(c.Authorizer, middleware.BodyUUID("from_account_id"), transfer.ToAPIError)
	sourceOwner := middleware.RequireTransferAccess(c.Authorizer, c.Transfers.Parties, true, transfer.ToAPIError)
	party := middleware.RequireTransferAccess(c.Authorizer, c.Transfers.Parties, false, transfer.ToAPIError)

	g.Post("", fromOwner, h.Create)
	g.Get("/:transferId", party, h.Get)
	g.Post("/:transferId/post", sourceOwner, p.Post)
	// Admin-only through the engine policy.
	g.Post("/:transferId/fail", p.Fail)
	g.Post("/:transferId/cancel", p.Cancel)
	g.Post("/:transferId/reverse", p.Reverse)
}
