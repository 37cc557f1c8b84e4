package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"herocoach/server/engine"
	"herocoach/server/logger"
)

const (
	DefaultChannel = "herocoach.events"
	publishTimeout = 2 * time.Second
)

// RedisPublisher forwards engine events to a Redis pub/sub channel as JSON.
// Publish failures are logged and dropped. Every message carries the
// publisher's origin id so Listen can skip this instance's own events.
type RedisPublisher struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	origin  string
}

// wireEvent is the channel message: the event plus the instance that sent it.
type wireEvent struct {
	Origin string `json:"origin"`
	engine.Event
}

// inbound mirrors wireEvent but keeps the payload as raw JSON.
type inbound struct {
	Origin   string           `json:"origin"`
	Kind     engine.EventKind `json:"kind"`
	PlayerID string           `json:"player"`
	At       time.Time        `json:"at"`
	Payload  json.RawMessage  `json:"payload"`
}

func NewRedisPublisher(log *logger.Logger, addr, channel string) (*RedisPublisher, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisPublisher{
		log:     log.With("service", "RedisEventPublisher"),
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
	}, nil
}

func (p *RedisPublisher) Channel() string { return p.channel }

func (p *RedisPublisher) Origin() string { return p.origin }

// Publish sends one event and reports the error.
func (p *RedisPublisher) Publish(ctx context.Context, ev engine.Event) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	raw, err := json.Marshal(wireEvent{Origin: p.origin, Event: ev})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

// Emit satisfies engine.Emitter.
func (p *RedisPublisher) Emit(ev engine.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, ev); err != nil {
		p.log.Warn("publish event failed", "kind", ev.Kind, "player_id", ev.PlayerID, "error", err)
	}
}

// decode parses a channel message. ok is false for malformed messages and
// for events this publisher sent itself.
func (p *RedisPublisher) decode(raw []byte) (engine.Event, bool) {
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil || in.Kind == "" {
		return engine.Event{}, false
	}
	if in.Origin == p.origin {
		return engine.Event{}, false
	}
	ev := engine.Event{Kind: in.Kind, PlayerID: in.PlayerID, At: in.At}
	if len(in.Payload) > 0 {
		ev.Payload = in.Payload
	}
	return ev, true
}

// Listen delivers events other instances publish on the channel until ctx
// is done.
func (p *RedisPublisher) Listen(ctx context.Context, onEvent func(engine.Event)) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	sub := p.rdb.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				ev, ok := p.decode([]byte(m.Payload))
				if !ok {
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

func (p *RedisPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
