// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. BOOKING_HTTP_ADDR.
const Prefix = "BOOKING"

type App struct {
	Env string `envconfig:"ENV" default:"development"`

	// HTTP
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Storage
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"booking.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Expiry sweeper
	SweepEnabled     bool          `envconfig:"SWEEP_ENABLED" default:"true"`
	SweepInterval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	PendingTTL       time.Duration `envconfig:"PENDING_TTL" default:"72h"`
	SweepConcurrency int           `envconfig:"SWEEP_CONCURRENCY" default:"4"`

	PolicyFile string `envconfig:"POLICY_FILE"`

	// Notifications
	AMQPURL        string `envconfig:"AMQP_URL"`
	AMQPExchange   string `envconfig:"AMQP_EXCHANGE" default:"booking.events"`
	TelegramToken  string `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `envconfig:"TELEGRAM_CHAT_ID"`
	NotifyQueue    int    `envconfig:"NOTIFY_QUEUE" default:"256"`

	// Tracing
	OTelEndpoint string `envconfig:"OTEL_ENDPOINT"`
}

// Load reads an optional .env file and then the BOOKING_* environment.
func Load(envFiles ...string) (App, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return App{}, fmt.Errorf("load env file: %w", err)
	}

	var c App
	if err := envconfig.Process(Prefix, &c); err != nil {
		return App{}, err
	}
	if err := c.Validate(); err != nil {
		return App{}, err
	}
	return c, nil
}

// Validate checks combinations envconfig cannot express.
func (c App) Validate() error {
	switch c.DBDriver {
	case "sqlite", "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("config: BOOKING_DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown BOOKING_DB_DRIVER %q", c.DBDriver)
	}
	if c.PendingTTL <= 0 {
		return errors.New("config: BOOKING_PENDING_TTL must be positive")
	}
	if c.SweepEnabled && c.SweepInterval <= 0 {
		return errors.New("config: BOOKING_SWEEP_INTERVAL must be positive")
	}
	if c.SweepConcurrency < 1 {
		return errors.New("config: BOOKING_SWEEP_CONCURRENCY must be at least 1")
	}
	if c.NotifyQueue < 0 {
		return errors.New("config: BOOKING_NOTIFY_QUEUE must not be negative")
	}
	return nil
}

// Production reports whether the process runs with production settings.
func (c App) Production() bool {
	return c.Env == "production"
}
