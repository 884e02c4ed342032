// Package redisbridge relays lifecycle events between instances sharing
// one store. Local events are published to a Redis channel; events from
// peers are handed to a callback, typically one that resyncs the local
// loader.
package redisbridge

import (
	"context"
	"fmt"

	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/leeforge/pluginhub/json"
	"github.com/leeforge/pluginhub/plugin"
)

// RemoteHandler is called for every event published by another instance.
type RemoteHandler func(ctx context.Context, event plugin.Event) error

type Bridge struct {
	client  *redis.Client
	channel string
	source  string
	logger  *zap.Logger
}

// New creates a Bridge. source identifies this instance; events carrying it
// are ignored when they come back from Redis.
func New(client *redis.Client, channel, source string, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		client:  client,
		channel: channel,
		source:  source,
		logger:  logger.Named("redisbridge"),
	}
}

// Attach forwards every local event on bus to Redis.
func (b *Bridge) Attach(bus plugin.EventBus) plugin.Subscription {
	return bus.Subscribe(plugin.TopicAll, func(ctx context.Context, event plugin.Event) error {
		return b.Publish(ctx, event)
	})
}

// Publish writes one event to the channel, stamped with this instance's source.
func (b *Bridge) Publish(ctx context.Context, event plugin.Event) error {
	payload, err := encode(event, b.source)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Name, b.channel, err)
	}
	return nil
}

// Run subscribes to the channel and dispatches peer events to handle until
// ctx is done.
func (b *Bridge) Run(ctx context.Context, handle RemoteHandler) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("listening for peer lifecycle events", zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := decode(msg.Payload)
			if err != nil {
				b.logger.Warn("dropping malformed event", zap.Error(err))
				continue
			}
			if event.Source == b.source {
				continue
			}
			if err := handle(ctx, event); err != nil {
				b.logger.Warn("peer event handler failed",
					zap.String("event", event.Name),
					zap.String("plugin", event.Plugin),
					zap.String("source", event.Source),
					zap.Error(err))
			}
		}
	}
}

func encode(event plugin.Event, source string) (string, error) {
	if event.Source == "" {
		event.Source = source
	}
	if event.Name == "" {
		event.Name = plugin.Topic(event.Action)
	}
	data, err := json.MarshalToString(event)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

func decode(payload string) (plugin.Event, error) {
	var event plugin.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return plugin.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if event.Plugin == "" {
		return plugin.Event{}, fmt.Errorf("decode event: missing plugin")
	}
	return event, nil
}
