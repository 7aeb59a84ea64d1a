package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	webhookDedupeTTL = 48 * time.Hour
	suggestionTTL    = 10 * time.Minute

	// EventsChannel carries realtime events between server instances.
	EventsChannel = "airhost:events"
)

// RedisStore handles Redis operations for webhook dedupe, event fan-out and caching.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for the rate limiter.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// webhookMessageKey returns the key marking a processed WhatsApp message.
func webhookMessageKey(wamid string) string {
	return fmt.Sprintf("webhook:msg:%s", wamid)
}

// suggestionKey returns the key for a conversation's cached AI reply.
func suggestionKey(conversationID string) string {
	return fmt.Sprintf("ai:suggestion:%s", conversationID)
}

// MarkWebhookMessage records a WhatsApp message ID as processed. It returns
// false when the ID was already seen.
func (s *RedisStore) MarkWebhookMessage(ctx context.Context, wamid string) (bool, error) {
	return s.client.SetNX(ctx, webhookMessageKey(wamid), "1", webhookDedupeTTL).Result()
}

// ReleaseWebhookMessage forgets a processed ID so a redelivery is handled
// again. It is used when storing the message failed after the ID was marked.
func (s *RedisStore) ReleaseWebhookMessage(ctx context.Context, wamid string) error {
	return s.client.Del(ctx, webhookMessageKey(wamid)).Err()
}

// Publish sends a serialized event to every subscribed instance.
func (s *RedisStore) Publish(ctx context.Context, payload []byte) error {
	return s.client.Publish(ctx, EventsChannel, payload).Err()
}

// Subscribe opens a subscription to the events channel. The caller closes it.
func (s *RedisStore) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, EventsChannel)
}

// CacheSuggestion stores the last generated reply for a conversation.
func (s *RedisStore) CacheSuggestion(ctx context.Context, conversationID, suggestion string) error {
	return s.client.Set(ctx, suggestionKey(conversationID), suggestion, suggestionTTL).Err()
}

// GetSuggestion returns the cached reply, or "" when none is cached.
func (s *RedisStore) GetSuggestion(ctx context.Context, conversationID string) (string, error) {
	val, err := s.client.Get(ctx, suggestionKey(conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// InvalidateSuggestion drops the cached reply, e.g. after a new guest message.
func (s *RedisStore) InvalidateSuggestion(ctx context.Context, conversationID string) error {
	return s.client.Del(ctx, suggestionKey(conversationID)).Err()
}
