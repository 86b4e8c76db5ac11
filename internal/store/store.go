package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/junyuhe/scholarbot/backend/internal/model/conversation"
)

var (
	ErrInvalidDriver = errors.New("unknown conversation store driver")
	ErrInvalidConfig = errors.New("invalid conversation store configuration")
)

// Store persists conversation transcripts. Load of an unknown id returns a
// fresh empty conversation; conversations come into existence on first
// append. Append is the only mutator and never edits existing turns.
type Store interface {
	Load(ctx context.Context, id string) (conversation.Conversation, error)
	Append(ctx context.Context, id string, turn conversation.Turn) error
	Close() error
}

// Driver selects a storage backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverRedis  Driver = "redis"
)

// Option configures the store factory.
type Option func(*config)

type config struct {
	redisClient *redis.Client
	redisTTL    time.Duration
}

// WithRedisClient sets the client used by the redis driver.
func WithRedisClient(client *redis.Client) Option {
	return func(c *config) { c.redisClient = client }
}

// WithRedisTTL sets the expiry applied to conversation keys.
func WithRedisTTL(ttl time.Duration) Option {
	return func(c *config) { c.redisTTL = ttl }
}

// New creates a conversation store for the given driver. The redis driver
// requires WithRedisClient.
func New(driver Driver, opts ...Option) (Store, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch driver {
	case DriverMemory:
		return newMemoryStore(), nil
	case DriverRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return newRedisStore(cfg.redisClient, cfg.redisTTL), nil
	default:
		return nil, ErrInvalidDriver
	}
}
