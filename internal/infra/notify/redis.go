package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/pkg/config"
)

// closedHistory 청산 이력 리스트 최대 길이
const closedHistory = 1000

// ErrNoDecision 캐시된 결정 없음
var ErrNoDecision = errors.New("no cached decision")

// RedisPublisher publishes events on pub/sub channels and keeps the
// latest decision per symbol under a TTL.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisPublisher connects and pings Redis
func NewRedisPublisher(ctx context.Context, cfg config.RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		MinIdleConns: cfg.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info().
		Str("addr", client.Options().Addr).
		Int("db", cfg.DB).
		Msg("✅ Redis connected")

	return NewRedisPublisherFromClient(client, cfg.Prefix, cfg.DecisionTTL), nil
}

// NewRedisPublisherFromClient wraps an existing client
func NewRedisPublisherFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisPublisher {
	if prefix == "" {
		prefix = "quant"
	}
	return &RedisPublisher{client: client, prefix: prefix, ttl: ttl}
}

func (p *RedisPublisher) Name() string { return "redis" }

// Publish sends evt to "<prefix>:events:<type>" and updates the per-symbol state
func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	data, err := evt.encode()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, p.channel(evt.Type), data)

	switch evt.Type {
	case EventDecision:
		if evt.Decision != nil {
			decision, err := json.Marshal(evt.Decision)
			if err != nil {
				return fmt.Errorf("marshal decision: %w", err)
			}
			pipe.Set(ctx, p.decisionKey(evt.Symbol), decision, p.ttl)
		}
	case EventPositionClosed:
		pipe.LPush(ctx, p.closedKey(), data)
		pipe.LTrim(ctx, p.closedKey(), 0, closedHistory-1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", evt.Type, err)
	}
	return nil
}

// LatestDecision returns the cached decision for symbol
func (p *RedisPublisher) LatestDecision(ctx context.Context, symbol string) (*signals.FusedDecision, error) {
	data, err := p.client.Get(ctx, p.decisionKey(symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoDecision
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var d signals.FusedDecision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal decision: %w", err)
	}
	return &d, nil
}

// Subscribe opens a pub/sub subscription for the given event types
func (p *RedisPublisher) Subscribe(ctx context.Context, types ...EventType) *redis.PubSub {
	channels := make([]string, len(types))
	for i, t := range types {
		channels[i] = p.channel(t)
	}
	return p.client.Subscribe(ctx, channels...)
}

// Ping checks the connection (readiness check)
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisPublisher) channel(t EventType) string {
	return fmt.Sprintf("%s:events:%s", p.prefix, t)
}

func (p *RedisPublisher) decisionKey(symbol string) string {
	return fmt.Sprintf("%s:decision:%s", p.prefix, symbol)
}

func (p *RedisPublisher) closedKey() string {
	return fmt.Sprintf("%s:positions:closed", p.prefix)
}
