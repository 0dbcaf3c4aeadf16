package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/internal/bettingconfig"
	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/internal/roundclock"
	"github.com/radieske/minigame-settlement/internal/rounds/repo"
	"github.com/radieske/minigame-settlement/internal/shared/jobqueue"
	"github.com/radieske/minigame-settlement/internal/shared/logger"
	"github.com/radieske/minigame-settlement/pkg/contracts/events"
	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

// Ingestor processa um lote de resultados do fornecedor para um jogo
type Ingestor interface {
	Ingest(ctx context.Context, g games.Game, in jobs.Ingest) error
}

// Registry é o subconjunto de repo.Registry usado pelos ingestores
type Registry interface {
	Find(ctx context.Context, game, roundID string) (repo.Entry, bool, error)
	Create(ctx context.Context, e repo.Entry) (bool, error)
	UpdateTiming(ctx context.Context, game, roundID string, start, end, now time.Time) (bool, error)
	ForceTiming(ctx context.Context, game, roundID string, start, end, now time.Time) (bool, error)
	MarkFinished(ctx context.Context, game, roundID string) error
	Recycle(ctx context.Context, e repo.Entry, now time.Time) (bool, error)
}

type ResultStore interface {
	UpsertBatch(ctx context.Context, game string, results []repo.Result) error
	Discard(ctx context.Context, game, roundID string) error
}

type SettingsSource interface {
	Get(ctx context.Context, game string) (bettingconfig.Settings, error)
}

// RoundAnnouncer publica round:new. Best-effort, sem retorno de erro.
type RoundAnnouncer interface {
	RoundNew(ctx context.Context, ev events.RoundNew)
}

// Timing agrupa os prazos dos jobs gerados pela ingestão
type Timing struct {
	PrevResultDelay time.Duration // atraso do publish do resultado anterior (jogos agendados)
	PublishAttempts int
	PublishBackoff  time.Duration
	SettleAttempts  int
	SettleBackoff   time.Duration
	Backfill        int // máximo de linhas da página atual reprocessadas por lote
}

func DefaultTiming() Timing {
	return Timing{
		PrevResultDelay: 8 * time.Second,
		PublishAttempts: 10,
		PublishBackoff:  3 * time.Second,
		SettleAttempts:  5,
		SettleBackoff:   2 * time.Second,
		Backfill:        10,
	}
}

// Base reúne as dependências e passos comuns aos dois ingestores
type Base struct {
	Log      *zap.Logger
	Clock    *roundclock.Clock
	Catalog  *games.Catalog
	Registry Registry
	Results  ResultStore
	Settings SettingsSource
	Events   RoundAnnouncer
	Queue    jobqueue.Enqueuer

	SettleTopic string
	ResultTopic string // publish atrasado de round:result, separado das notificações de aposta
	Timing      Timing
	Now         func() time.Time

	OnRoundCreated func(game string) // métricas
	OnResultsSaved func(game string, n int)
}

// placedRow é uma linha do lote já resolvida para a sua janela
type placedRow struct {
	row    jobs.OutcomeRow
	window roundclock.Window
}

func (b *Base) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// ensure cria a entrada da janela se ainda não existir. created=false quando outro worker chegou antes.
func (b *Base) ensure(ctx context.Context, g games.Game, w roundclock.Window) (bool, error) {
	created, err := b.Registry.Create(ctx, repo.Entry{
		Game:        g.Key,
		RoundID:     w.RoundID,
		RoundNumber: w.RoundNumber,
		Start:       w.Start,
		End:         w.End,
		Status:      repo.StatusActive,
	})
	if err != nil {
		return false, err
	}
	if created {
		logger.Game(b.Log, g.Key, w.RoundID).Info("round created",
			zap.Int("round_number", w.RoundNumber),
			zap.Time("start", w.Start),
			zap.Time("end", w.End),
		)
		if b.OnRoundCreated != nil {
			b.OnRoundCreated(g.Key)
		}
	}
	return created, nil
}

// claim é o ensure dos jogos contínuos. O ciclo não fecha um dia, então o mesmo round_id
// volta horas depois: a entrada encerrada de um ciclo anterior é reaberta com o horário novo
// e o resultado antigo é descartado. created=true nesse caso.
func (b *Base) claim(ctx context.Context, g games.Game, w roundclock.Window, now time.Time) (bool, error) {
	created, err := b.ensure(ctx, g, w)
	if err != nil || created {
		return created, err
	}
	prev, found, err := b.Registry.Find(ctx, g.Key, w.RoundID)
	if err != nil {
		return false, err
	}
	if !found || prev.End.After(now) || w.Start.Sub(prev.Start) < g.Config.CycleLength()/2 {
		return false, nil
	}

	reopened, err := b.Registry.Recycle(ctx, repo.Entry{
		Game:        g.Key,
		RoundID:     w.RoundID,
		RoundNumber: w.RoundNumber,
		Start:       w.Start,
		End:         w.End,
		Status:      repo.StatusActive,
	}, now)
	if err != nil || !reopened {
		return false, err
	}
	if err := b.Results.Discard(ctx, g.Key, w.RoundID); err != nil {
		return false, err
	}
	logger.Game(b.Log, g.Key, w.RoundID).Info("round id recycled",
		zap.Time("previous_start", prev.Start),
		zap.Time("start", w.Start),
		zap.Time("end", w.End),
	)
	if b.OnRoundCreated != nil {
		b.OnRoundCreated(g.Key)
	}
	return true, nil
}

// announce emite round:new com os parâmetros de aposta vigentes
func (b *Base) announce(ctx context.Context, g games.Game, w roundclock.Window) {
	st, err := b.Settings.Get(ctx, g.Key)
	if err != nil {
		b.Log.Warn("betting settings unavailable, using defaults", zap.String("game", g.Key), zap.Error(err))
		st = bettingconfig.Defaults(g.Key)
	}
	b.Events.RoundNew(ctx, events.RoundNew{
		Game:           g.Key,
		RoundID:        w.RoundID,
		RoundNumber:    w.RoundNumber,
		Start:          w.Start,
		End:            w.End,
		BettingOptions: bettingconfig.BettingParams(g, b.Catalog.StrategyFor(g), st),
	})
}

// publishLater agenda o publish do resultado da rodada como job atrasado com retry limitado.
// Falha no enqueue só gera log: o publish nunca derruba a ingestão.
func (b *Base) publishLater(ctx context.Context, g games.Game, roundID string, delay time.Duration) {
	env, err := jobs.New(jobs.KindRoundResult, jobs.RoundResultPublish{Game: g.Key, RoundID: roundID}, b.Timing.PublishAttempts)
	if err == nil {
		env = env.WithBackoff(b.Timing.PublishBackoff).Delayed(b.now(), delay)
		err = b.Queue.Enqueue(ctx, b.ResultTopic, g.Key, env)
	}
	if err != nil {
		logger.Game(b.Log, g.Key, roundID).Warn("schedule result publish failed", zap.Error(err))
	}
}

func (b *Base) enqueueSettle(ctx context.Context, game, roundID string) error {
	env, err := jobs.New(jobs.KindSettle, jobs.Settle{Game: game, RoundID: roundID}, b.Timing.SettleAttempts)
	if err != nil {
		return err
	}
	return b.Queue.Enqueue(ctx, b.SettleTopic, game, env.WithBackoff(b.Timing.SettleBackoff))
}

// persist deriva os códigos das linhas, descarta as inválidas e grava o restante em um lote.
// Devolve os resultados gravados.
func (b *Base) persist(ctx context.Context, g games.Game, rows []placedRow) ([]repo.Result, error) {
	s := b.Catalog.StrategyFor(g)
	now := b.now()

	out := make([]repo.Result, 0, len(rows))
	for _, pr := range rows {
		codes := s.Derive(pr.row)
		if !s.Valid(codes) {
			b.Log.Debug("skipping incomplete result",
				zap.String("game", g.Key), zap.String("round_id", pr.window.RoundID))
			continue
		}
		rt := pr.row.ResultTime
		if rt.IsZero() {
			rt = now
		}
		out = append(out, repo.Result{
			Game:        g.Key,
			RoundID:     pr.window.RoundID,
			RoundNumber: pr.window.RoundNumber,
			Codes:       codes,
			ResultTime:  rt,
		})
	}
	if len(out) == 0 {
		return nil, nil
	}

	if err := b.Results.UpsertBatch(ctx, g.Key, out); err != nil {
		return nil, err
	}
	for _, r := range out {
		if err := b.Registry.MarkFinished(ctx, g.Key, r.RoundID); err != nil {
			return nil, err
		}
	}
	if b.OnResultsSaved != nil {
		b.OnResultsSaved(g.Key, len(out))
	}
	return out, nil
}

// dedupe mantém a última linha de cada número de rodada e descarta números fora do ciclo
func dedupe(cfg roundclock.GameConfig, rows []jobs.OutcomeRow) map[int]jobs.OutcomeRow {
	m := make(map[int]jobs.OutcomeRow, len(rows))
	for _, r := range rows {
		if r.RoundNumber < 1 || r.RoundNumber > cfg.RoundsPerDay {
			continue
		}
		m[r.RoundNumber] = r
	}
	return m
}

// Service resolve o jogo pela chave do fornecedor e despacha para o ingestor da família
type Service struct {
	Log        *zap.Logger
	Catalog    *games.Catalog
	Scheduled  Ingestor
	Continuous Ingestor
}

// Handle é o handler do runner para jobs de ingestão
func (s *Service) Handle(ctx context.Context, env jobs.Envelope) error {
	var in jobs.Ingest
	if err := env.Decode(&in); err != nil {
		// payload corrompido não melhora com retry
		s.Log.Warn("invalid ingest payload", zap.String("job_id", env.ID), zap.Error(err))
		return nil
	}
	return s.Ingest(ctx, in)
}

func (s *Service) Ingest(ctx context.Context, in jobs.Ingest) error {
	g, ok := s.Catalog.ByProvider(in.ProviderGameKey)
	if !ok {
		s.Log.Warn("unknown provider game", zap.String("provider_game", in.ProviderGameKey))
		return nil
	}
	ing := s.Scheduled
	if g.Config.Continuous {
		ing = s.Continuous
	}
	if err := ing.Ingest(ctx, g, in); err != nil {
		return fmt.Errorf("ingest %s: %w", g.Key, err)
	}
	return nil
}
