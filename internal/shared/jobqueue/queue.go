package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

// MessageWriter é o subconjunto do *kafka.Writer usado pela fila
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Queue grava envelopes de jobs nos tópicos Kafka
type Queue struct {
	w MessageWriter
}

func New(w MessageWriter) *Queue { return &Queue{w: w} }

// Enqueue serializa o envelope e grava no tópico. A chave (jogo) mantém os jobs de um jogo na mesma partição.
func (q *Queue) Enqueue(ctx context.Context, topic, key string, env jobs.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	}
	if err := q.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s on %s: %w", env.Kind, topic, err)
	}
	return nil
}
