package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	CatalogHTTP   = "http"
	CatalogMongo  = "mongo"
	CatalogSQLite = "sqlite"
	CatalogMemory = "memory"
)

type Config struct {
	HTTPPort           string        `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxRequestBodySize int64         `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	OTelEndpoint       string        `env:"OTEL_ENDPOINT"`

	CartStore   string `env:"CART_STORE" envDefault:"mongo"`
	MongoURI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDBName string `env:"MONGO_DB_NAME" envDefault:"cart"`
	PostgresDSN string `env:"POSTGRES_DSN"`

	Cache   CacheConfig   `envPrefix:"CACHE_"`
	Redis   RedisConfig   `envPrefix:"REDIS_"`
	Catalog CatalogConfig `envPrefix:"CATALOG_"`
	Kafka   KafkaConfig   `envPrefix:"KAFKA_"`
	JWT     JWTConfig     `envPrefix:"JWT_"`
}

type CacheConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	TTL     time.Duration `env:"TTL" envDefault:"15m"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type CatalogConfig struct {
	Source     string        `env:"SOURCE" envDefault:"http"`
	URL        string        `env:"URL" envDefault:"http://localhost:5000/api/products"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"3s"`
	SQLitePath string        `env:"SQLITE_PATH" envDefault:"catalog.db"`
}

// KafkaConfig leaves events and the checkout consumer off when no brokers
// are set.
type KafkaConfig struct {
	Brokers       []string `env:"BROKERS" envSeparator:","`
	EventsTopic   string   `env:"EVENTS_TOPIC" envDefault:"cart-events"`
	CheckoutTopic string   `env:"CHECKOUT_TOPIC" envDefault:"checkout-outbox"`
	GroupID       string   `env:"GROUP_ID" envDefault:"cart-service-consumer"`
}

type JWTConfig struct {
	Secret string `env:"SECRET"`
	Issuer string `env:"ISSUER"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.CartStore {
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo cart store"))
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres cart store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown CART_STORE %q", c.CartStore))
	}

	switch c.Catalog.Source {
	case CatalogHTTP:
		if c.Catalog.URL == "" {
			errs = append(errs, errors.New("CATALOG_URL is required for the http catalog"))
		}
	case CatalogMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo catalog"))
		}
	case CatalogSQLite:
		if c.Catalog.SQLitePath == "" {
			errs = append(errs, errors.New("CATALOG_SQLITE_PATH is required for the sqlite catalog"))
		}
	case CatalogMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOG_SOURCE %q", c.Catalog.Source))
	}

	if strings.TrimSpace(c.JWT.Secret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Catalog.Timeout <= 0 {
		errs = append(errs, errors.New("CATALOG_TIMEOUT must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be positive"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return level, nil
}

func (c *Config) EventsEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
