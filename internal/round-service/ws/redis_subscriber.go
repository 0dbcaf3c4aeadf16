package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/pkg/contracts/events"
	"github.com/radieske/minigame-settlement/pkg/contracts/topics"
)

// StartRedisSubscriber escuta os canais de eventos e repassa cada envelope ao Hub
func StartRedisSubscriber(ctx context.Context, r *redis.Client, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, topics.All...)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env events.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Warn("ws subscriber unmarshal error", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				hub.Broadcast(env)
			}
		}
	}()
}
