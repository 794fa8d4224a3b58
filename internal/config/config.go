package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported persistence backends
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Port           int           `envconfig:"PORT" default:"8080"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string        `envconfig:"LOG_FORMAT" default:"text"`
	Env            string        `envconfig:"APP_ENV" default:"development"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	StoreDriver    string        `envconfig:"STORE_DRIVER" default:"postgres"`

	DB        DBConfig        `envconfig:"DB"`
	Mongo     MongoConfig     `envconfig:"MONGODB"`
	Kafka     KafkaConfig     `envconfig:"KAFKA"`
	Outbox    OutboxConfig    `envconfig:"OUTBOX"`
	Auth      AuthConfig      `envconfig:"JWT"`
	Payment   PaymentConfig   `envconfig:"PAYMENT"`
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host     string `default:"localhost"`
	Port     int    `default:"5432"`
	User     string `default:"postgres"`
	Password string `default:"postgres"`
	Name     string `default:"storefront"`
	SSLMode  string `default:"disable"`
}

// MongoConfig holds the document store configuration
type MongoConfig struct {
	URI      string `default:"mongodb://localhost:27017/?replicaSet=rs0"`
	Database string `default:"storefront"`
}

// KafkaConfig holds the event publishing configuration
type KafkaConfig struct {
	Enabled       bool     `default:"false"`
	Brokers       []string `default:"localhost:9092"`
	OrdersTopic   string   `split_words:"true" default:"storefront.orders"`
	ConsumerGroup string   `split_words:"true" default:"storefront-events"`
}

// OutboxConfig tunes the outbox relay
type OutboxConfig struct {
	PollInterval time.Duration `split_words:"true" default:"5s"`
	BatchSize    int           `split_words:"true" default:"20"`
	MaxRetries   int           `split_words:"true" default:"5"`
	ClaimTimeout time.Duration `split_words:"true" default:"5m"`
}

// AuthConfig holds the bearer token settings
type AuthConfig struct {
	Secret   string        `default:"change-me"`
	TokenTTL time.Duration `split_words:"true" default:"24h"`
}

// PaymentConfig holds the payment processor settings
type PaymentConfig struct {
	StripeSecretKey string `envconfig:"STRIPE_SECRET_KEY"`
	Currency        string `default:"usd"`
}

// RateLimitConfig limits order placement per caller
type RateLimitConfig struct {
	OrdersBurst     float64 `split_words:"true" default:"10"`
	OrdersPerSecond float64 `split_words:"true" default:"1"`
}

// Load reads an optional .env file and then the environment into a Config.
// Variables already present in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMongo, StoreDriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.StoreDriver)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}

	if c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive")
	}

	if c.Auth.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

// GetDBURL returns the connection string in URL form, as the migration
// driver expects it
func (c *Config) GetDBURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     net.JoinHostPort(c.DB.Host, strconv.Itoa(c.DB.Port)),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}
