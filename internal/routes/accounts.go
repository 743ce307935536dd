package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/merchant_ledger/internal/account"
	"github.com/congo-pay/merchant_ledger/internal/middleware"
	"github.com/congo-pay/merchant_ledger/internal/transfer"
)

// RegisterAccountRoutes wires account endpoints. Every account-scoped read
// requires ownership or the admin role.
func RegisterAccountRoutes(r fiber.Router, c Components) {
	h := account.NewHandler(c.Accounts, c.Authorizer)
	transfers := transfer.NewHandler(c.Transfers)
	owned := middleware.RequireAccountAccess(c.Authorizer, middleware.ParamUUID("accountId"), transfer.ToAPIError)

	r.Post("/accounts", h.Create)
	r.Get("/accounts", h.ListMine)
	r.Get("/accounts/:accountId", owned, h.Get)
	r.Get("/accounts/:accountId/balance", owned, h.Balance)
	r.Get("/accounts/:accountId/entries", owned, h.Entries)
	r.Get("/accounts/:accountId/transfers", owned, transfers.ListByAccount)
}
