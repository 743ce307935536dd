package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/merchant_ledger/internal/account"
	"github.com/congo-pay/merchant_ledger/internal/authz"
	"github.com/congo-pay/merchant_ledger/internal/config"
	"github.com/congo-pay/merchant_ledger/internal/ledger"
	"github.com/congo-pay/merchant_ledger/internal/logging"
	"github.com/congo-pay/merchant_ledger/internal/middleware"
	"github.com/congo-pay/merchant_ledger/internal/notification"
	"github.com/congo-pay/merchant_ledger/internal/posting"
	"github.com/congo-pay/merchant_ledger/internal/transfer"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	NATS   *nats.Conn
	Logger *slog.Logger
	// Roles overrides the role store. Defaults to user_roles in Postgres, or
	// an empty in-memory store without a database.
	Roles authz.RoleChecker
}

// Components are the wired services behind the HTTP surface.
type Components struct {
	Accounts   *account.Service
	Transfers  *transfer.Service
	Engine     *posting.Engine
	Ledger     ledger.Store
	Authorizer *authz.Authorizer
}

// Build wires repositories and services on Postgres, or on in-memory stores
// when no database is configured.
func Build(d Deps) Components {
	var (
		accountRepo  account.Repository
		transferRepo transfer.Repository
		ledgerStore  ledger.Store
		postingStore posting.Store
		roles        = d.Roles
	)
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.DB != nil {
		accountRepo = account.NewPostgresRepository(d.DB)
		transferRepo = transfer.NewPostgresRepository(d.DB)
		ledgerStore = ledger.NewPostgresStore(d.DB)
		postingStore = posting.NewPostgresStore(d.DB)
		if roles == nil {
			roles = authz.NewPostgresRoleStore(d.DB)
		}
	} else {
		accountRepo = account.NewMemoryRepository()
		mem := posting.NewMemoryStore(transfer.NewMemoryRepository(), accountRepo, ledger.NewInMemory())
		transferRepo = mem.Transfers()
		ledgerStore = mem.Ledger()
		postingStore = mem
		if roles == nil {
			roles = authz.NewMemoryRoleStore()
		}
	}

	accounts := account.NewService(accountRepo, ledgerStore)
	authorizer := authz.NewAuthorizer(accounts, roles)

	notifiers := notification.Fanout{notification.NewLoggerNotifier(d.Logger)}
	if d.NATS != nil {
		notifiers = append(notifiers, notification.NewNATSNotifier(d.NATS, "ledger"))
	}
	adminOnly := posting.PolicyFunc(func(ctx context.Context, _ posting.Action, _ transfer.Transfer) error {
		return authorizer.RequireAdmin(ctx)
	})

	return Components{
		Accounts:  accounts,
		Transfers: transfer.NewService(transferRepo, accounts),
		Engine: posting.NewEngine(postingStore,
			posting.WithPolicy(adminOnly),
			posting.WithNotifier(notifiers),
			posting.WithLogger(d.Logger),
		),
		Ledger:     ledgerStore,
		Authorizer: authorizer,
	}
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (Components, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return Components{}, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return Components{}, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Cfg.JWTSecret == "" {
		return Components{}, fmt.Errorf("JWT_SECRET is required")
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	c := Build(d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDHeader).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Protected routes
	protected := api.Group("", middleware.JWTAuth([]byte(d.Cfg.JWTSecret)))
	RegisterAccountRoutes(protected, c)
	RegisterTransferRoutes(protected, c, d)
	RegisterAdminRoutes(protected, c)

	return c, nil
}
