package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Publisher emits events to connected dashboards.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// LocalPublisher delivers straight to the in-process hub. Used when Redis is
// not configured and only one server instance runs.
type LocalPublisher struct {
	hub *Hub
}

// NewLocalPublisher wraps a hub.
func NewLocalPublisher(hub *Hub) *LocalPublisher {
	return &LocalPublisher{hub: hub}
}

// Publish implements Publisher.
func (p *LocalPublisher) Publish(_ context.Context, ev Event) error {
	p.hub.Dispatch(ev)
	return nil
}

// Broker is the Redis side of the fan-out, satisfied by store.RedisStore.
type Broker interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context) *redis.PubSub
}

// RedisPublisher sends events through Redis so every instance relays them to
// its own connections.
type RedisPublisher struct {
	broker Broker
}

// NewRedisPublisher wraps a broker.
func NewRedisPublisher(broker Broker) *RedisPublisher {
	return &RedisPublisher{broker: broker}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.broker.Publish(ctx, payload)
}

// Relay forwards events from the broker to the local hub until ctx is done.
func Relay(ctx context.Context, broker Broker, hub *Hub, logger zerolog.Logger) {
	sub := broker.Subscribe(ctx)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn().Err(err).Msg("dropping malformed realtime event")
				continue
			}
			hub.Dispatch(ev)
		}
	}
}
