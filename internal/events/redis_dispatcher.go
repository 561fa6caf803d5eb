package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisDispatcher publishes events to a Redis Pub/Sub channel. Subscribers are
// local; Run feeds them with whatever arrives on the channel, so handlers run
// outside the publishing request.
type RedisDispatcher struct {
	client  *redis.Client
	channel string
	local   *inMemoryDispatcher
	logger  *zap.Logger
}

// NewRedisDispatcher creates a dispatcher bound to channel.
func NewRedisDispatcher(client *redis.Client, channel string, logger *zap.Logger) *RedisDispatcher {
	return &RedisDispatcher{
		client:  client,
		channel: channel,
		local:   newInMemoryDispatcher(),
		logger:  logger.With(zap.String("component", "events.redis"), zap.String("channel", channel)),
	}
}

// Publish serializes the event and hands it to Redis.
func (d *RedisDispatcher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := d.client.Publish(ctx, d.channel, data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe registers a local handler fed by Run.
func (d *RedisDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.local.Subscribe(eventType, handler)
}

// Run consumes the channel until ctx is cancelled.
func (d *RedisDispatcher) Run(ctx context.Context) error {
	sub := d.client.Subscribe(ctx, d.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", d.channel, err)
	}
	d.logger.Info("listening for damage events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			d.Deliver(ctx, msg.Payload)
		}
	}
}

// Deliver decodes one raw message and passes it to local handlers.
// Malformed messages and handler failures are logged and dropped.
func (d *RedisDispatcher) Deliver(ctx context.Context, raw string) {
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		d.logger.Warn("dropping malformed event", zap.Error(err))
		return
	}
	if err := d.local.Publish(ctx, event); err != nil {
		d.logger.Warn("event handler failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
