package store

import (
	"context"
	"fmt"
	"strings"

	"herocoach/server/engine"
)

const DefaultHistoryLimit = 50

type Kind string

const (
	KindMemory   Kind = "memory"
	KindFile     Kind = "file"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindRedis    Kind = "redis"
)

// Backend is a ProfileStore that owns a connection or handle.
type Backend interface {
	engine.ProfileStore
	Close() error
}

// HistoryReader is implemented by backends that keep session history.
type HistoryReader interface {
	History(ctx context.Context, playerID string, limit int) ([]engine.SessionRecord, error)
}

// Migrator is implemented by backends with a schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

type Options struct {
	Kind        Kind
	Path        string
	DatabaseURL string
	RedisAddr   string
	RedisPrefix string
}

// New opens the backend named by o.Kind.
func New(ctx context.Context, o Options) (Backend, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(string(o.Kind)))) {
	case KindMemory, "":
		return NewMemory(), nil
	case KindFile:
		return NewFile(o.Path)
	case KindSQLite:
		return OpenSQLite(ctx, o.Path)
	case KindPostgres:
		if o.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres store: DATABASE_URL is required")
		}
		db, err := Open(ctx, o.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		return &postgresBackend{db}, nil
	case KindRedis:
		return OpenRedis(ctx, o.RedisAddr, o.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown store kind %q", o.Kind)
	}
}

// postgresBackend gives DB the Migrator shape without changing Migrate's signature.
type postgresBackend struct{ *DB }

func (p *postgresBackend) Migrate(ctx context.Context) error { return Migrate(ctx, p.DB) }
