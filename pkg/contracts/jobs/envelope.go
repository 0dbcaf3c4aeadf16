package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindIngest        Kind = "ingest"
	KindSettle        Kind = "settle"
	KindRoundResult   Kind = "round_result"
	KindBalanceUpdate Kind = "balance_update"
	KindWagerResult   Kind = "wager_result"
)

// Envelope é a mensagem gravada nos tópicos de jobs.
// NotBefore transforma qualquer job em job atrasado: o runner só o executa a partir desse instante.
type Envelope struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"maxAttempts"`
	BackoffMs   int64           `json:"backoffMs,omitempty"`
	NotBefore   time.Time       `json:"notBefore,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

// New monta um envelope com id novo, tentativa 1
func New(kind Kind, payload any, maxAttempts int) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Envelope{
		ID:          uuid.NewString(),
		Kind:        kind,
		Attempt:     1,
		MaxAttempts: maxAttempts,
		Payload:     b,
	}, nil
}

// Delayed retorna uma cópia do envelope que só deve rodar após delay
func (e Envelope) Delayed(now time.Time, delay time.Duration) Envelope {
	e.NotBefore = now.Add(delay)
	return e
}

// WithBackoff define o intervalo fixo entre tentativas
func (e Envelope) WithBackoff(d time.Duration) Envelope {
	e.BackoffMs = d.Milliseconds()
	return e
}

func (e Envelope) Backoff() time.Duration { return time.Duration(e.BackoffMs) * time.Millisecond }

// Exhausted indica que não há mais tentativas disponíveis
func (e Envelope) Exhausted() bool { return e.Attempt >= e.MaxAttempts }

// Next devolve o envelope da próxima tentativa, agendado após o backoff
func (e Envelope) Next(now time.Time) Envelope {
	e.Attempt++
	e.NotBefore = now.Add(e.Backoff())
	return e
}

// Decode desserializa o payload no tipo de destino
func (e Envelope) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Kind, err)
	}
	return nil
}
