package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const messageChannel = "messages:new"

// MessageBus relays new chat messages between instances so each one can push
// to the WebSocket clients it holds.
type MessageBus struct {
	rdb *goredis.Client
}

var _ domain.MessagePublisher = (*MessageBus)(nil)

func NewMessageBus(rdb *goredis.Client) *MessageBus {
	return &MessageBus{rdb: rdb}
}

func (b *MessageBus) PublishMessage(ctx context.Context, m domain.Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := b.rdb.Publish(ctx, messageChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Start subscribes and hands every message to deliver until ctx is cancelled.
func (b *MessageBus) Start(ctx context.Context, deliver func(domain.Message)) {
	pubsub := b.rdb.Subscribe(ctx, messageChannel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok || msg == nil {
				return
			}
			var m domain.Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				slog.Warn("Ignoring malformed message event", "error", err)
				continue
			}
			deliver(m)
		case <-ctx.Done():
			return
		}
	}
}
