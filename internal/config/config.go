// internal/config/config.go
package config

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jason-s-yu/taboo/internal/models"
	"github.com/sirupsen/logrus"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Postgres holds the connection settings read by database.Connect.
type Postgres struct {
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD"`
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     string `env:"PG_PORT" envDefault:"5432"`
	Database string `env:"PG_DATABASE" envDefault:"taboo"`
}

// URL is the pgx connection string. Credentials are escaped.
func (p Postgres) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, p.Port),
		Path:   "/" + p.Database,
	}
	return u.String()
}

// Redis holds the connection settings read by cache.Connect.
type Redis struct {
	Addr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	QueueName string `env:"HISTORIAN_QUEUE_NAME" envDefault:"taboo_events"`
}

// Config is the server configuration.
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	// PublishEvents queues every broadcast on redis for the historian.
	PublishEvents bool   `env:"HISTORIAN_ENABLED" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	// AllowedOrigins restricts CORS; empty allows any http(s) origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	Postgres Postgres
	Redis    Redis

	MinRounds      int `env:"MIN_ROUNDS" envDefault:"1"`
	MaxRounds      int `env:"MAX_ROUNDS" envDefault:"10"`
	MinTurnSeconds int `env:"MIN_TURN_SECONDS" envDefault:"30"`
	MaxTurnSeconds int `env:"MAX_TURN_SECONDS" envDefault:"180"`

	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"10m"`
	StoreTimeout       time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	// WordsFile replaces the embedded corpus when set.
	WordsFile string `env:"WORDS_FILE"`
	// SeedFile populates lobbies and users for the memory backend.
	SeedFile string `env:"SEED_FILE"`
	// SessionTTL expires sessions kept on redis; zero keeps them.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// MessageRate is inbound messages per second allowed on one connection.
	MessageRate  float64 `env:"MESSAGE_RATE" envDefault:"5"`
	MessageBurst int     `env:"MESSAGE_BURST" envDefault:"10"`

	// RandomSeed makes word and describer draws reproducible; zero seeds from the clock.
	RandomSeed int64 `env:"RANDOM_SEED" envDefault:"0"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings env cannot express.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.MinRounds < 1 || c.MinRounds > c.MaxRounds {
		return fmt.Errorf("invalid round bounds [%d, %d]", c.MinRounds, c.MaxRounds)
	}
	if c.MinTurnSeconds < 1 || c.MinTurnSeconds > c.MaxTurnSeconds {
		return fmt.Errorf("invalid turn bounds [%d, %d]", c.MinTurnSeconds, c.MaxTurnSeconds)
	}
	if c.MessageRate <= 0 || c.MessageBurst < 1 {
		return fmt.Errorf("invalid message rate %v/%d", c.MessageRate, c.MessageBurst)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// Historian is the configuration of cmd/historian.
type Historian struct {
	Postgres Postgres
	Redis    Redis
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	BatchSize     int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	FlushInterval time.Duration `env:"HISTORIAN_FLUSH_INTERVAL" envDefault:"500ms"`
	PopTimeout    time.Duration `env:"HISTORIAN_POP_TIMEOUT" envDefault:"3s"`
}

// LoadHistorian parses the historian's environment.
func LoadHistorian() (Historian, error) {
	var cfg Historian
	if err := env.Parse(&cfg); err != nil {
		return Historian{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BatchSize < 1 {
		return Historian{}, fmt.Errorf("invalid HISTORIAN_BATCH_SIZE %d", cfg.BatchSize)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return Historian{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

// Bounds are the session limits the engine enforces.
func (c Config) Bounds() models.SessionBounds {
	return models.SessionBounds{
		MinRounds:  c.MinRounds,
		MaxRounds:  c.MaxRounds,
		MinSeconds: c.MinTurnSeconds,
		MaxSeconds: c.MaxTurnSeconds,
	}
}

// Level is the parsed LOG_LEVEL. Validate has already rejected bad values.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
