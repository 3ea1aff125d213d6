package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/nationalninesgolf/api/internal/pricing"
)

type AppConfig struct {
	Port        string
	FrontendURL string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type AMQPConfig struct {
	URL string
}

type RedisConfig struct {
	Addr     string
	Password string
	CountTTL time.Duration
}

type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Stripe   StripeConfig
	AMQP     AMQPConfig
	Redis    RedisConfig
	Pricing  pricing.Config
}

// Load reads configuration from the environment, optionally seeded from a
// .env file. Pricing falls back to the published season rates so a dev
// environment only has to provide database and Stripe settings.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	cfg := &Config{}
	cfg.App.Port = getenv("APP_PORT", "8080")
	cfg.App.FrontendURL = getenv("FRONTEND_URL", "https://nationalninesgolf.co.uk")

	var err error
	if cfg.Postgres.Host, err = require("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Postgres.Port, err = require("DB_PORT"); err != nil {
		return nil, err
	}
	if cfg.Postgres.User, err = require("DB_USER"); err != nil {
		return nil, err
	}
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	if cfg.Postgres.DBName, err = require("DB_NAME"); err != nil {
		return nil, err
	}
	cfg.Postgres.SSLMode = getenv("DB_SSLMODE", "disable")
	cfg.Postgres.MaxConns = int32(getenvInt("DB_MAX_CONNS", 10))
	cfg.Postgres.MinConns = int32(getenvInt("DB_MIN_CONNS", 2))
	cfg.Postgres.MaxConnLifetime = getenvDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute)
	cfg.Postgres.MigrationsPath = getenv("DB_MIGRATIONS_PATH", "migrations")

	cfg.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.Stripe.WebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")

	cfg.AMQP.URL = os.Getenv("AMQP_URL")

	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.CountTTL = getenvDuration("REDIS_COUNT_TTL", 30*time.Second)

	cfg.Pricing = pricing.DefaultConfig()
	cfg.Pricing.KentFee = getenvFloat("KENT_NINES_FEE", cfg.Pricing.KentFee)
	cfg.Pricing.EssexFee = getenvFloat("ESSEX_NINES_FEE", cfg.Pricing.EssexFee)
	cfg.Pricing.ShippingSmall = getenvFloat("SHIPPING_SMALL", cfg.Pricing.ShippingSmall)
	cfg.Pricing.ShippingMedium = getenvFloat("SHIPPING_MEDIUM", cfg.Pricing.ShippingMedium)
	cfg.Pricing.ShippingLarge = getenvFloat("SHIPPING_LARGE", cfg.Pricing.ShippingLarge)

	return cfg, nil
}

func require(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
