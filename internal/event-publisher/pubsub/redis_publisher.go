package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/pkg/contracts/events"
	"github.com/radieske/minigame-settlement/pkg/contracts/topics"
)

// RedisBroadcaster publica bytes crus em um canal Redis
type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}

// Publisher faz o fan-out best-effort dos eventos: no máximo uma entrega,
// falhas só geram log e nunca voltam para quem chamou.
type Publisher struct {
	b       *RedisBroadcaster
	log     *zap.Logger
	timeout time.Duration

	OnPublished func(topic string) // métricas
	OnFailed    func(topic string)
}

func NewPublisher(b *RedisBroadcaster, log *zap.Logger) *Publisher {
	return &Publisher{b: b, log: log, timeout: 500 * time.Millisecond}
}

// Publish envelopa o payload e publica no canal do tópico
func (p *Publisher) Publish(ctx context.Context, topic, game string, userID int64, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		p.fail(topic, game, err)
		return
	}
	b, err := json.Marshal(events.Envelope{Topic: topic, Game: game, UserID: userID, Payload: raw})
	if err != nil {
		p.fail(topic, game, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.b.Publish(ctx, topic, b); err != nil {
		p.fail(topic, game, err)
		return
	}
	if p.OnPublished != nil {
		p.OnPublished(topic)
	}
}

func (p *Publisher) RoundNew(ctx context.Context, ev events.RoundNew) {
	p.Publish(ctx, topics.RoundNew, ev.Game, 0, ev)
}

func (p *Publisher) RoundResult(ctx context.Context, ev events.RoundResult) {
	p.Publish(ctx, topics.RoundResult, ev.Game, 0, ev)
}

func (p *Publisher) BalanceUpdate(ctx context.Context, ev events.BalanceUpdate) {
	p.Publish(ctx, topics.BalanceUpdate, "", ev.UserID, ev)
}

func (p *Publisher) WagerResult(ctx context.Context, ev events.WagerResult) {
	p.Publish(ctx, topics.WagerResult, ev.WagerDetail.Game, ev.UserID, ev)
}

func (p *Publisher) fail(topic, game string, err error) {
	p.log.Warn("event publish failed", zap.String("topic", topic), zap.String("game", game), zap.Error(err))
	if p.OnFailed != nil {
		p.OnFailed(topic)
	}
}
