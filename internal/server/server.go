package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/merchant_ledger/internal/apierr"
	"github.com/congo-pay/merchant_ledger/internal/config"
	"github.com/congo-pay/merchant_ledger/internal/middleware"
	"github.com/congo-pay/merchant_ledger/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app        *fiber.App
	cfg        config.Config
	components routes.Components
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, nc *nats.Conn, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: apierr.Handler(logger, middleware.RequestIDHeader),
	})

	components, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, NATS: nc, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, components: components}, nil
}

// App exposes the underlying Fiber application, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Components returns the wired services.
func (s *Server) Components() routes.Components {
	return s.components
}

// EnsureTreasuries provisions a treasury account per configured currency.
func (s *Server) EnsureTreasuries(ctx context.Context) error {
	for _, currency := range s.cfg.TreasuryCurrencies {
		if _, err := s.components.Accounts.EnsureTreasury(ctx, currency); err != nil {
			return err
		}
	}
	return nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
