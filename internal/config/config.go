package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

const (
	BackendSQL  = "sql"
	BackendFile = "file"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env              string        `env:"APP_ENV" envDefault:"development"`
	Port             string        `env:"PORT" envDefault:"8080"`
	StorageBackend   string        `env:"STORAGE_BACKEND" envDefault:"sql"`
	DBDriver         string        `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath           string        `env:"DB_PATH" envDefault:"./dev.db"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	DBConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"1m"`
	DataDir          string        `env:"DATA_DIR" envDefault:"./data"`
	RedisAddr        string        `env:"REDIS_ADDR"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL         time.Duration `env:"CACHE_TTL" envDefault:"10m"`
	AdminToken       string        `env:"ADMIN_TOKEN"`
	Currency         string        `env:"CURRENCY"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"console"`
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit dotenv path. Variables already set in the
// environment win over the file.
func LoadFrom(dotenvPath string) (Config, error) {
	if err := loadDotEnv(dotenvPath); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate rejects combinations the application cannot start with.
func (c Config) Validate() error {
	switch c.StorageBackend {
	case BackendSQL, BackendFile:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendSQL, BackendFile, c.StorageBackend)
	}

	if c.StorageBackend == BackendSQL {
		switch c.DBDriver {
		case DriverSQLite:
		case DriverPostgres:
			if c.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=%s", DriverPostgres)
			}
		default:
			return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
		}
	}
	return nil
}

// IsDev reports whether the process runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "" || c.Env == "development" || c.Env == "dev"
}

// DSN returns the data source name for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == DriverPostgres {
		return c.DatabaseURL
	}
	return c.DBPath
}
