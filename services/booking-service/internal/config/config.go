package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	libconfig "github.com/md-rashed-zaman/homebook/libs/config"
)

// Config is the booking-service runtime configuration. Every field maps to
// the environment variable named in its tag.
type Config struct {
	ServiceName string `mapstructure:"SERVICE_NAME"`
	Port        string `mapstructure:"PORT"`
	GRPCPort    string `mapstructure:"GRPC_PORT"`

	// DatabaseURL empty selects the in-memory store.
	DatabaseURL  string        `mapstructure:"DATABASE_URL"`
	DBMaxConns   int           `mapstructure:"DB_MAX_CONNS"`
	AutoMigrate  bool          `mapstructure:"AUTO_MIGRATE"`
	KafkaBrokers string        `mapstructure:"KAFKA_BROKERS"`
	OutboxPoll   time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxBatch  int           `mapstructure:"OUTBOX_BATCH_SIZE"`
	OutboxKeep   time.Duration `mapstructure:"OUTBOX_RETENTION"`

	StripeSecretKey  string        `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookKey string        `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripeTolerance  time.Duration `mapstructure:"STRIPE_WEBHOOK_TOLERANCE"`

	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RateLimit       int           `mapstructure:"RATE_LIMIT"`
	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitOpen   bool          `mapstructure:"RATE_LIMIT_FAIL_OPEN"`
	BodyLimitBytes  int64         `mapstructure:"BODY_LIMIT_BYTES"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	SweepEnabled  bool          `mapstructure:"RECONCILE_ENABLED"`
	SweepInterval time.Duration `mapstructure:"RECONCILE_INTERVAL"`
	SweepAfter    time.Duration `mapstructure:"RECONCILE_PENDING_AFTER"`
	SweepBatch    int           `mapstructure:"RECONCILE_BATCH_SIZE"`
	SweepLockKey  int64         `mapstructure:"RECONCILE_LOCK_KEY"`
}

func defaults() map[string]any {
	return map[string]any{
		"SERVICE_NAME":             "booking-service",
		"PORT":                     "8083",
		"GRPC_PORT":                "9083",
		"DATABASE_URL":             "",
		"DB_MAX_CONNS":             10,
		"AUTO_MIGRATE":             false,
		"KAFKA_BROKERS":            "",
		"OUTBOX_POLL_INTERVAL":     "2s",
		"OUTBOX_BATCH_SIZE":        50,
		"OUTBOX_RETENTION":         "168h",
		"STRIPE_SECRET_KEY":        "",
		"STRIPE_WEBHOOK_SECRET":    "",
		"STRIPE_WEBHOOK_TOLERANCE": "5m",
		"REDIS_ADDR":               "",
		"RATE_LIMIT":               120,
		"RATE_LIMIT_WINDOW":        "1m",
		"RATE_LIMIT_FAIL_OPEN":     true,
		"BODY_LIMIT_BYTES":         1 << 20,
		"REQUEST_TIMEOUT":          "15s",
		"RECONCILE_ENABLED":        true,
		"RECONCILE_INTERVAL":       "1m",
		"RECONCILE_PENDING_AFTER":  "15m",
		"RECONCILE_BATCH_SIZE":     50,
		"RECONCILE_LOCK_KEY":       4242101,
	}
}

// Load reads defaults, then file (when non-empty), then the environment.
func Load(file string) (Config, error) {
	var c Config
	if err := libconfig.Load(&c, defaults(), file); err != nil {
		return Config{}, err
	}
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.StripeSecretKey = strings.TrimSpace(c.StripeSecretKey)
	c.StripeWebhookKey = strings.TrimSpace(c.StripeWebhookKey)
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	for name, port := range map[string]string{"PORT": c.Port, "GRPC_PORT": c.GRPCPort} {
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("%s must be a valid TCP port (got %q)", name, port))
		}
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("RATE_LIMIT must not be negative"))
	}
	if c.SweepEnabled && c.SweepInterval <= 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) Brokers() []string {
	return libconfig.SplitList(c.KafkaBrokers)
}

// InMemory reports whether the service runs without Postgres.
func (c Config) InMemory() bool { return c.DatabaseURL == "" }
