package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "conv:"

// RedisNotifier publica y suscribe eventos via Redis pub/sub, para que los
// suscriptores puedan colgar de cualquier instancia del servicio. Mantiene
// la misma semantica advisory que el hub en memoria: sin buffer para
// desconectados.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{client: client, logger: logger}
}

func (n *RedisNotifier) Publish(ctx context.Context, event NewMessageEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	channel := channelPrefix + event.Message.ConversationKey
	if err := n.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, conversationKey string) (<-chan NewMessageEvent, func()) {
	channel := channelPrefix + conversationKey
	pubsub := n.client.Subscribe(ctx, channel)
	out := make(chan NewMessageEvent, subscriberBuffer)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var event NewMessageEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					n.logger.Warn("discarding malformed realtime event",
						zap.String("channel", channel), zap.Error(err))
					continue
				}
				select {
				case out <- event:
				default:
					n.logger.Warn("realtime subscriber lagging, event dropped",
						zap.String("channel", channel))
				}
			}
		}
	}()

	cancel := func() {
		if err := pubsub.Close(); err != nil {
			n.logger.Warn("closing redis subscription", zap.Error(err))
		}
	}
	return out, cancel
}
