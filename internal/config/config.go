// Package config loads process configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func New() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		logrus.Debug("no .env file found, using process environment")
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}

type Config struct {
	APP
	DB
	Redis
	Kafka
	Webhook
	Monitor
	Gateways
}

type APP struct {
	Port     string `env:"APP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type DB struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	User     string `env:"DB_USER" envDefault:"nexus"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" envDefault:"nexus_gateway"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN builds the Postgres connection string gorm expects.
func (d DB) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type Redis struct {
	// Addr empty disables the health snapshot cache.
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type Kafka struct {
	// Brokers empty disables event publishing to Kafka.
	Brokers string `env:"KAFKA_BROKERS"`
	Topic   string `env:"KAFKA_TOPIC" envDefault:"payments.events"`
}

func (k Kafka) BrokerList() []string {
	if k.Brokers == "" {
		return nil
	}
	return strings.Split(k.Brokers, ",")
}

type Webhook struct {
	SigningSecret string `env:"WEBHOOK_SIGNING_SECRET" envDefault:"whsec_dev_only"`
}

type Monitor struct {
	Interval     time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"30s"`
	StartupDelay time.Duration `env:"HEALTH_CHECK_STARTUP_DELAY" envDefault:"5s"`
}

type Gateways struct {
	// Process-wide fallback credentials, used when a merchant has no
	// gateway config rows of their own.
	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`
	RazorpayKey     string `env:"RAZORPAY_KEY"` // key_id:key_secret
}
