package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/marketplace")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := load(nil)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, 120*time.Second, cfg.OTP.Expiry)
	assert.Equal(t, 2*time.Hour, cfg.OTP.ResetTTL)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.False(t, cfg.IsProduction())
}

func TestLoadNestedEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/marketplace")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REDIS_HOST", "redis:6380")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("OTP_EXPIRY", "60s")

	cfg, err := load(nil)
	require.NoError(t, err)

	assert.Equal(t, "redis:6380", cfg.Redis.Host)
	assert.Equal(t, "sk_test_123", cfg.Stripe.SecretKey)
	assert.Equal(t, time.Minute, cfg.OTP.Expiry)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/marketplace")
	t.Setenv("JWT_SECRET", "")

	_, err := load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadShortSecretInProduction(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/marketplace")
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("APP_ENV", "production")

	_, err := load(nil)
	require.Error(t, err)
}
