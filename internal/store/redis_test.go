package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client), mr
}

func TestMarkWebhookMessageDedupes(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()

	first, err := s.MarkWebhookMessage(ctx, "wamid.1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkWebhookMessage(ctx, "wamid.1")
	require.NoError(t, err)
	assert.False(t, again)

	mr.FastForward(49 * time.Hour)

	afterExpiry, err := s.MarkWebhookMessage(ctx, "wamid.1")
	require.NoError(t, err)
	assert.True(t, afterExpiry)
}

func TestReleaseWebhookMessage(t *testing.T) {
	s, _ := newTestRedis(t)
	ctx := context.Background()

	_, err := s.MarkWebhookMessage(ctx, "wamid.2")
	require.NoError(t, err)
	require.NoError(t, s.ReleaseWebhookMessage(ctx, "wamid.2"))

	fresh, err := s.MarkWebhookMessage(ctx, "wamid.2")
	require.NoError(t, err)
	assert.True(t, fresh)

	assert.NoError(t, s.ReleaseWebhookMessage(ctx, "wamid.unknown"))
}

func TestSuggestionCache(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()

	got, err := s.GetSuggestion(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.CacheSuggestion(ctx, "conv-1", "Bienvenue !"))
	got, err = s.GetSuggestion(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Bienvenue !", got)

	require.NoError(t, s.InvalidateSuggestion(ctx, "conv-1"))
	got, err = s.GetSuggestion(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.CacheSuggestion(ctx, "conv-1", "again"))
	mr.FastForward(11 * time.Minute)
	got, err = s.GetSuggestion(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPublishSubscribe(t *testing.T) {
	s, _ := newTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := s.Subscribe(ctx)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Publish(ctx, []byte(`{"type":"message.created"}`)))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventsChannel, msg.Channel)
	assert.JSONEq(t, `{"type":"message.created"}`, msg.Payload)
}
