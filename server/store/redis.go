package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"herocoach/server/engine"
)

// Redis stores each document under prefix + kind + ":" + player id.
type Redis struct {
	rdb    *goredis.Client
	prefix string
}

func OpenRedis(ctx context.Context, addr, prefix string) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(rdb, prefix), nil
}

// NewRedis wraps an existing client.
func NewRedis(rdb *goredis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) key(kind, playerID string) string { return r.prefix + kind + ":" + playerID }

func (r *Redis) get(ctx context.Context, kind, playerID string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.key(kind, playerID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", kind, err)
	}
	return b, nil
}

func (r *Redis) set(ctx context.Context, kind, playerID string, b []byte) error {
	if err := r.rdb.Set(ctx, r.key(kind, playerID), b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", kind, err)
	}
	return nil
}

func (r *Redis) LoadProfile(ctx context.Context, playerID string) (*engine.PlayerProfile, error) {
	b, err := r.get(ctx, "profile", playerID)
	if err != nil {
		return nil, err
	}
	return decodeProfile(b)
}

func (r *Redis) SaveProfile(ctx context.Context, playerID string, p *engine.PlayerProfile) error {
	b, err := encodeProfile(p)
	if err != nil {
		return err
	}
	return r.set(ctx, "profile", playerID, b)
}

func (r *Redis) LoadRecommendation(ctx context.Context, playerID string) (*engine.Recommendation, error) {
	b, err := r.get(ctx, "recommendation", playerID)
	if err != nil {
		return nil, err
	}
	return decodeRecommendation(b)
}

func (r *Redis) SaveRecommendation(ctx context.Context, playerID string, rec *engine.Recommendation) error {
	b, err := encodeRecommendation(rec)
	if err != nil {
		return err
	}
	return r.set(ctx, "recommendation", playerID, b)
}

func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
