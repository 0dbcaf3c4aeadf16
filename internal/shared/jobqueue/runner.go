package jobqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

// Reader é o subconjunto do *kafka.Reader usado pelo runner
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, topic, key string, env jobs.Envelope) error
}

// Handler processa um envelope. Erro devolvido aciona a política de retry do runner.
type Handler func(ctx context.Context, env jobs.Envelope) error

// Runner consome um tópico de jobs, espera o NotBefore de cada envelope e despacha pelo Kind.
// O offset só é commitado depois do processamento (ou do reenfileiramento).
type Runner struct {
	Log      *zap.Logger
	Reader   Reader
	Queue    Enqueuer
	Topic    string // tópico consumido, usado nos retries
	DLQTopic string // opcional
	Handlers map[jobs.Kind]Handler

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	OnConsumed func(kind string) // métricas
	OnRetried  func()
	OnDead     func()
	OnError    func(stage string)
}

// Run inicia o loop principal de consumo
func (r *Runner) Run(ctx context.Context) error {
	for {
		m, err := r.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			r.Log.Warn("kafka fetch failed", zap.Error(err))
			r.onError("read")
			if err := r.sleep(ctx, 500*time.Millisecond); err != nil {
				return err
			}
			continue
		}

		if err := r.Handle(ctx, m); err != nil {
			// só chega aqui quando o contexto foi cancelado durante a espera
			return err
		}

		if err := r.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.Log.Warn("kafka commit failed", zap.Error(err))
			r.onError("commit")
		}
	}
}

// Handle processa uma mensagem. Só retorna erro se o contexto for cancelado antes do job rodar.
func (r *Runner) Handle(ctx context.Context, m kafka.Message) error {
	var env jobs.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		r.Log.Warn("invalid job message", zap.Error(err))
		r.onError("decode")
		return nil
	}
	if r.OnConsumed != nil {
		r.OnConsumed(string(env.Kind))
	}

	if wait := env.NotBefore.Sub(r.now()); !env.NotBefore.IsZero() && wait > 0 {
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}

	h, ok := r.Handlers[env.Kind]
	if !ok {
		r.Log.Warn("no handler for job kind", zap.String("kind", string(env.Kind)), zap.String("job_id", env.ID))
		r.onError("unknown_kind")
		return nil
	}

	herr := h(ctx, env)
	if herr == nil {
		return nil
	}
	r.onError("handle")

	log := r.Log.With(
		zap.String("job_id", env.ID),
		zap.String("kind", string(env.Kind)),
		zap.Int("attempt", env.Attempt),
		zap.Int("max_attempts", env.MaxAttempts),
		zap.Error(herr),
	)

	if !env.Exhausted() {
		next := env.Next(r.now())
		if err := r.Queue.Enqueue(ctx, r.Topic, string(m.Key), next); err != nil {
			log.Error("job retry enqueue failed", zap.NamedError("enqueue_error", err))
			r.onError("retry_enqueue")
			return nil
		}
		log.Warn("job failed, retry scheduled")
		if r.OnRetried != nil {
			r.OnRetried()
		}
		return nil
	}

	if r.OnDead != nil {
		r.OnDead()
	}
	if r.DLQTopic == "" {
		log.Warn("job attempts exhausted, dropped")
		return nil
	}
	if err := r.Queue.Enqueue(ctx, r.DLQTopic, string(m.Key), env); err != nil {
		log.Error("dlq enqueue failed", zap.NamedError("enqueue_error", err))
		r.onError("dlq")
		return nil
	}
	log.Error("job attempts exhausted, sent to dlq")
	return nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) onError(stage string) {
	if r.OnError != nil {
		r.OnError(stage)
	}
}
