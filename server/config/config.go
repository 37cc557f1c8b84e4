package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"herocoach/server/store"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	LogMode string `env:"LOG_MODE" envDefault:"dev"`

	StoreKind   string `env:"STORE_KIND" envDefault:"memory"`
	StorePath   string `env:"STORE_PATH" envDefault:"data"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisAddr   string `env:"REDIS_ADDR"`
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"herocoach:"`

	// EventsChannel enables the Redis event publisher when REDIS_ADDR is set too.
	EventsChannel string `env:"EVENTS_CHANNEL"`

	AutoMigrate  bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	TunablesFile string `env:"TUNABLES_FILE"`
	ChildProfile bool   `env:"CHILD_PROFILE" envDefault:"false"`
}

// Load reads an optional .env file and then the environment. Variables that
// are already set win over the file.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, c.Validate()
}

func (c Config) kind() store.Kind {
	return store.Kind(strings.ToLower(strings.TrimSpace(c.StoreKind)))
}

func (c Config) Validate() error {
	switch c.kind() {
	case store.KindMemory, store.KindFile, store.KindSQLite:
	case store.KindPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORE_KIND=postgres requires DATABASE_URL")
		}
	case store.KindRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("STORE_KIND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown STORE_KIND %q", c.StoreKind)
	}
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("PORT is empty")
	}
	return nil
}

// StoreOptions maps the config onto store.New. A sqlite STORE_PATH that is
// not a .db file is treated as a directory.
func (c Config) StoreOptions() store.Options {
	path := c.StorePath
	if c.kind() == store.KindSQLite && filepath.Ext(path) != ".db" {
		path = filepath.Join(path, "herocoach.db")
	}
	return store.Options{
		Kind:        c.kind(),
		Path:        path,
		DatabaseURL: c.DatabaseURL,
		RedisAddr:   c.RedisAddr,
		RedisPrefix: c.RedisPrefix,
	}
}

// PublishEvents reports whether engine events should also go to Redis.
func (c Config) PublishEvents() bool {
	return c.RedisAddr != "" && c.EventsChannel != ""
}
