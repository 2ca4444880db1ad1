package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/storefront")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test_key")
	t.Setenv("RAZORPAY_KEY_SECRET", "rzp_test_secret")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendPostgres, cfg.Database.StoreBackend)
	assert.Equal(t, BackendPostgres, cfg.Database.CartBackend)
	assert.Equal(t, CheckoutGateway, cfg.Checkout.Mode)
	assert.Equal(t, "INR", cfg.Payment.Currency)
	assert.Equal(t, 90*24*time.Hour, cfg.Checkout.CartTTL)
	assert.Equal(t, 24*time.Hour, cfg.Checkout.PendingOrderTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.SMTP.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CART_BACKEND", "mongo")
	t.Setenv("CHECKOUT_MODE", "direct")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PENDING_ORDER_TTL", "2h")
	t.Setenv("CHECKOUT_REQUIRE_ADDRESS", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendMongo, cfg.Database.CartBackend)
	assert.Equal(t, CheckoutDirect, cfg.Checkout.Mode)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Hour, cfg.Checkout.PendingOrderTTL)
	assert.True(t, cfg.Checkout.RequireAddress)
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JANITOR_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.Checkout.JanitorInterval)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{StoreBackend: "mongo", CartBackend: BackendPostgres},
		Checkout: CheckoutConfig{Mode: CheckoutGateway},
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `STORE_BACKEND "mongo"`)
	assert.Contains(t, msg, "DATABASE_URL")
	assert.Contains(t, msg, "RAZORPAY_KEY_ID")
	assert.Contains(t, msg, "JWT_SECRET")
}

func TestValidate_DirectMemoryNeedsNoGatewayOrDatabase(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{StoreBackend: BackendMemory, CartBackend: BackendMemory},
		Checkout: CheckoutConfig{Mode: CheckoutDirect},
		Auth:     AuthConfig{JWTSecret: "secret"},
	}
	assert.NoError(t, cfg.Validate())
}
