package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName            string        `envconfig:"APP_NAME" default:"MerchantLedger"`
	AppEnv             string        `envconfig:"APP_ENV" default:"development"`
	Port               string        `envconfig:"PORT" default:"8080"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL        string        `envconfig:"DATABASE_URL"`
	RedisURL           string        `envconfig:"REDIS_URL"`
	NATSURL            string        `envconfig:"NATS_URL"`
	JWTSecret          string        `envconfig:"JWT_SECRET"`
	AutoMigrate        bool          `envconfig:"AUTO_MIGRATE" default:"false"`
	ShutdownPeriod     time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	IdempotencyTTL     time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	TransferRateLimit  int           `envconfig:"TRANSFER_RATE_LIMIT" default:"30"`
	TreasuryCurrencies []string      `envconfig:"TREASURY_CURRENCIES" default:"USD"`
}

// Load reads configuration values from the environment and populates a Config instance.
// A .env file in the working directory is honoured when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	for i, c := range cfg.TreasuryCurrencies {
		cfg.TreasuryCurrencies[i] = strings.ToUpper(strings.TrimSpace(c))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces mandatory settings. JWT_SECRET is required everywhere
// because every route authenticates; the infrastructure URLs only outside
// of development.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", c.AppEnv)
	}
	if c.IsDev() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

// IsDev reports whether the application runs in a local/development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
