package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/junyuhe/scholarbot/backend/internal/model/conversation"
)

const (
	conversationKeyPrefix = "conv:"
	defaultTTL            = 24 * time.Hour
)

// redisStore persists each conversation as a redis list of JSON-encoded
// turns. RPUSH is atomic per key, which serializes concurrent appends to the
// same conversation without any client-side locking.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisStore(client *redis.Client, ttl time.Duration) *redisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) Load(ctx context.Context, id string) (conversation.Conversation, error) {
	key := s.key(id)
	vals, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return conversation.Conversation{}, fmt.Errorf("load conversation %s: %w", id, err)
	}

	conv := conversation.Conversation{ID: id, Turns: make([]conversation.Turn, 0, len(vals))}
	for _, val := range vals {
		var turn conversation.Turn
		if err := json.Unmarshal([]byte(val), &turn); err != nil {
			return conversation.Conversation{}, fmt.Errorf("decode turn for conversation %s: %w", id, err)
		}
		conv.Turns = append(conv.Turns, turn)
	}

	if len(vals) > 0 {
		// Refresh TTL on read
		_ = s.client.Expire(ctx, key, s.ttl).Err()
	}
	return conv, nil
}

func (s *redisStore) Append(ctx context.Context, id string, turn conversation.Turn) error {
	val, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}

	key := s.key(id)
	if err := s.client.RPush(ctx, key, val).Err(); err != nil {
		return fmt.Errorf("append to conversation %s: %w", id, err)
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func (s *redisStore) key(id string) string {
	return conversationKeyPrefix + id
}
