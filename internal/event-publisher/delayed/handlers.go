package delayed

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/internal/rounds/repo"
	"github.com/radieske/minigame-settlement/internal/shared/jobqueue"
	"github.com/radieske/minigame-settlement/internal/shared/logger"
	"github.com/radieske/minigame-settlement/pkg/contracts/events"
	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

// ErrResultNotReady faz o runner reagendar o publish até o resultado existir
var ErrResultNotReady = errors.New("round result not ready")

type ResultReader interface {
	Get(ctx context.Context, game, roundID string) (repo.Result, bool, error)
}

type Publisher interface {
	RoundResult(ctx context.Context, ev events.RoundResult)
	BalanceUpdate(ctx context.Context, ev events.BalanceUpdate)
	WagerResult(ctx context.Context, ev events.WagerResult)
}

// Handlers executa os jobs atrasados do tópico de publicação
type Handlers struct {
	Log     *zap.Logger
	Catalog *games.Catalog
	Results ResultReader
	Events  Publisher

	OnGaveUp func(kind string) // métricas
}

// ResultMap atende o tópico de round:result. Esses jobs esperam minutos pelo NotBefore,
// por isso não dividem partição com as notificações.
func (h *Handlers) ResultMap() map[jobs.Kind]jobqueue.Handler {
	return map[jobs.Kind]jobqueue.Handler{
		jobs.KindRoundResult: h.RoundResult,
	}
}

// NotificationMap atende o tópico de notificações de aposta
func (h *Handlers) NotificationMap() map[jobs.Kind]jobqueue.Handler {
	return map[jobs.Kind]jobqueue.Handler{
		jobs.KindBalanceUpdate: h.BalanceUpdate,
		jobs.KindWagerResult:   h.WagerResult,
	}
}

// RoundResult publica o resultado se ele já for válido. Caso contrário devolve
// ErrResultNotReady e o runner tenta de novo; na última tentativa desiste com warning.
func (h *Handlers) RoundResult(ctx context.Context, env jobs.Envelope) error {
	var job jobs.RoundResultPublish
	if err := env.Decode(&job); err != nil {
		h.Log.Warn("invalid round result job", zap.String("job_id", env.ID), zap.Error(err))
		return nil
	}
	log := logger.Game(h.Log, job.Game, job.RoundID)

	g, ok := h.Catalog.Game(job.Game)
	if !ok {
		log.Warn("round result for unknown game")
		return nil
	}

	res, found, err := h.Results.Get(ctx, g.Key, job.RoundID)
	if err != nil {
		return err
	}
	if !found || !h.Catalog.StrategyFor(g).Valid(res.Codes) {
		if env.Exhausted() {
			log.Warn("round result never became available, giving up", zap.Int("attempts", env.Attempt))
			if h.OnGaveUp != nil {
				h.OnGaveUp(string(env.Kind))
			}
			return nil
		}
		return ErrResultNotReady
	}

	h.Events.RoundResult(ctx, events.RoundResult{
		Game:        g.Key,
		RoundID:     res.RoundID,
		RoundNumber: res.RoundNumber,
		ResultCodes: res.Codes,
	})
	return nil
}

func (h *Handlers) BalanceUpdate(ctx context.Context, env jobs.Envelope) error {
	var ev events.BalanceUpdate
	if err := env.Decode(&ev); err != nil {
		h.Log.Warn("invalid balance update job", zap.String("job_id", env.ID), zap.Error(err))
		return nil
	}
	h.Events.BalanceUpdate(ctx, ev)
	return nil
}

func (h *Handlers) WagerResult(ctx context.Context, env jobs.Envelope) error {
	var ev events.WagerResult
	if err := env.Decode(&ev); err != nil {
		h.Log.Warn("invalid wager result job", zap.String("job_id", env.ID), zap.Error(err))
		return nil
	}
	h.Events.WagerResult(ctx, ev)
	return nil
}
