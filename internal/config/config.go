package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"

	CheckoutGateway = "gateway"
	CheckoutDirect  = "direct"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Checkout CheckoutConfig
	Payment  PaymentConfig
	Auth     AuthConfig
	SMTP     SMTPConfig
	LogLevel string
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	AllowOrigins string
}

type DatabaseConfig struct {
	URL             string
	Driver          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsPath  string
	StoreBackend    string
	CartBackend     string
}

type MongoConfig struct {
	URI    string
	DBName string
}

// RedisConfig configures the cart cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
}

// KafkaConfig configures order event publishing. With no brokers events
// are only logged.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type CheckoutConfig struct {
	Mode            string
	RequireAddress  bool
	CartTTL         time.Duration
	PendingOrderTTL time.Duration
	JanitorInterval time.Duration
}

type PaymentConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Currency  string
	Timeout   time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	AdminEmail        string
	AdminPasswordHash string
}

type SMTPConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	FromEmail string
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.User != "" && c.Password != "" && c.FromEmail != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	storeBackend := getEnv("STORE_BACKEND", BackendPostgres)
	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("SERVER_ADDR", ":8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Driver:          getEnv("DATABASE_DRIVER", "pgx"),
			MaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
			StoreBackend:    storeBackend,
			CartBackend:     getEnv("CART_BACKEND", storeBackend),
		},
		Mongo: MongoConfig{
			URI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
			DBName: getEnv("MONGO_DB_NAME", "storefront"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "storefront-orders"),
		},
		Checkout: CheckoutConfig{
			Mode:            getEnv("CHECKOUT_MODE", CheckoutGateway),
			RequireAddress:  getEnvBool("CHECKOUT_REQUIRE_ADDRESS", false),
			CartTTL:         getEnvDuration("CART_TTL", 90*24*time.Hour),
			PendingOrderTTL: getEnvDuration("PENDING_ORDER_TTL", 24*time.Hour),
			JanitorInterval: getEnvDuration("JANITOR_INTERVAL", time.Hour),
		},
		Payment: PaymentConfig{
			KeyID:     os.Getenv("RAZORPAY_KEY_ID"),
			KeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
			BaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
			Currency:  getEnv("PAYMENT_CURRENCY", "INR"),
			Timeout:   getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:         os.Getenv("JWT_SECRET"),
			AdminEmail:        os.Getenv("ADMIN_EMAIL"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		},
		SMTP: SMTPConfig{
			Host:      os.Getenv("SMTP_HOST"),
			Port:      getEnvInt("SMTP_PORT", 465),
			User:      os.Getenv("SMTP_USER"),
			Password:  os.Getenv("SMTP_PASSWORD"),
			FromEmail: os.Getenv("SMTP_FROM_EMAIL"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.StoreBackend {
	case BackendPostgres, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q is not supported", c.Database.StoreBackend))
	}
	switch c.Database.CartBackend {
	case BackendPostgres, BackendMongo, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("CART_BACKEND %q is not supported", c.Database.CartBackend))
	}
	if c.Database.StoreBackend == BackendPostgres || c.Database.CartBackend == BackendPostgres {
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is not set"))
		}
	}

	switch c.Checkout.Mode {
	case CheckoutGateway:
		if c.Payment.KeyID == "" || c.Payment.KeySecret == "" {
			errs = append(errs, errors.New("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required in gateway checkout mode"))
		}
	case CheckoutDirect:
	default:
		errs = append(errs, fmt.Errorf("CHECKOUT_MODE %q is not supported", c.Checkout.Mode))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		fmt.Printf("warning: invalid duration for %s, using default\n", key)
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
