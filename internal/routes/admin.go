package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/merchant_ledger/internal/ledger"
	"github.com/congo-pay/merchant_ledger/internal/middleware"
)

// RegisterAdminRoutes wires operator endpoints.
func RegisterAdminRoutes(r fiber.Router, c Components) {
	admin := r.Group("/admin", middleware.RequireAdmin(c.Authorizer))
	admin.Get("/ledger/totals", ledger.NewHandler(c.Ledger).Totals)
}
