package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("TREASURY_CURRENCIES", "usd, eur")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "MerchantLedger", cfg.AppName)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 10*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, []string{"USD", "EUR"}, cfg.TreasuryCurrencies)
}

func TestLoadRequiresJWTSecretInDev(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadRequiresInfrastructureOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadParsesDurations(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("PORT", ":9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, ":9000", cfg.Address())
	assert.False(t, cfg.IsDev())
}
