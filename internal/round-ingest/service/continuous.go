package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/internal/roundclock"
	"github.com/radieske/minigame-settlement/internal/shared/logger"
	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

// WaitingCache guarda o próximo número de rodada esperado por jogo
type WaitingCache interface {
	Get(ctx context.Context, game string) (int, bool, error)
	CompareAndSet(ctx context.Context, game string, old int, oldPresent bool, next int) (bool, error)
}

type beat int

const (
	beatCold    beat = iota // cache vazio: só aprende o próximo número
	beatStale               // lote atrasado ou CAS perdido
	beatBehind              // cache ficou para trás: realinha
	beatProceed             // cache == R
)

// ContinuousIngestor trata jogos sem reset diário (rball, runningball, space).
// O horário das rodadas é inferido do instante de recebimento do lote, sincronizado
// pelo cache de rodada esperada ("skip-first-beat").
type ContinuousIngestor struct {
	*Base
	Waiting WaitingCache
}

func NewContinuous(b *Base, w WaitingCache) *ContinuousIngestor {
	return &ContinuousIngestor{Base: b, Waiting: w}
}

func (c *ContinuousIngestor) Ingest(ctx context.Context, g games.Game, in jobs.Ingest) error {
	cfg := g.Config
	now := c.now()

	byNumber := dedupe(cfg, in.Rows)
	if len(byNumber) == 0 {
		return nil
	}
	latest := mostRecent(cfg, byNumber)
	s := c.Catalog.StrategyFor(g)
	latestValid := s.Valid(s.Derive(latest))

	received := in.Timestamp
	if received.IsZero() {
		received = now
	}
	start := received
	if latestValid {
		start = c.Clock.SnapDown(cfg, received.Add(-cfg.ResultLatency))
	}
	next := c.Clock.WindowStartingAt(cfg, roundclock.NextRound(cfg, latest.RoundNumber), start, now)
	log := logger.Game(c.Log, g.Key, next.RoundID)

	b, err := c.sync(ctx, g, latest.RoundNumber)
	if err != nil {
		return err
	}
	switch b {
	case beatCold:
		log.Info("waiting round learned", zap.Int("round_number", next.RoundNumber))
		return nil
	case beatStale, beatBehind:
		log.Debug("window creation skipped", zap.Int("latest_round", latest.RoundNumber), zap.Int("beat", int(b)))
	case beatProceed:
		if err := c.openRounds(ctx, g, latest.RoundNumber, latestValid, next, now); err != nil {
			c.rollback(ctx, g, latest.RoundNumber, next.RoundNumber, log)
			return err
		}
	}

	placed := make([]placedRow, 0, len(byNumber))
	for n, row := range byNumber {
		placed = append(placed, placedRow{row: row, window: c.Clock.ComputeWindowForRoundNumber(cfg, n, next)})
	}
	sort.Slice(placed, func(i, j int) bool { return placed[i].window.Start.Before(placed[j].window.Start) })
	saved, err := c.persist(ctx, g, placed)
	if err != nil {
		return err
	}
	for _, r := range saved {
		if err := c.enqueueSettle(ctx, g.Key, r.RoundID); err != nil {
			return err
		}
	}
	// varredura por jogo: rodadas que nunca recebem resultado só são reembolsadas por aqui
	return c.enqueueSettle(ctx, g.Key, jobs.ScanAll)
}

// sync compara o cache W com a rodada mais recente R. Toda escrita é CAS a partir do valor lido.
func (c *ContinuousIngestor) sync(ctx context.Context, g games.Game, r int) (beat, error) {
	cfg := g.Config
	next := roundclock.NextRound(cfg, r)

	w, present, err := c.Waiting.Get(ctx, g.Key)
	if err != nil {
		return beatStale, err
	}
	if !present {
		if _, err := c.Waiting.CompareAndSet(ctx, g.Key, 0, false, next); err != nil {
			return beatStale, err
		}
		return beatCold, nil
	}

	switch roundclock.Compare(cfg, w, r) {
	case 1:
		return beatStale, nil
	case -1:
		if _, err := c.Waiting.CompareAndSet(ctx, g.Key, w, true, next); err != nil {
			return beatStale, err
		}
		return beatBehind, nil
	}

	won, err := c.Waiting.CompareAndSet(ctx, g.Key, r, true, next)
	if err != nil {
		return beatStale, err
	}
	if !won {
		return beatStale, nil
	}
	return beatProceed, nil
}

// rollback devolve o cache para R quando a criação das janelas falhou
func (c *ContinuousIngestor) rollback(ctx context.Context, g games.Game, r, next int, log *zap.Logger) {
	ok, err := c.Waiting.CompareAndSet(ctx, g.Key, next, true, r)
	if err != nil || !ok {
		log.Warn("waiting round rollback failed", zap.Bool("swapped", ok), zap.Error(err))
	}
}

// openRounds cria as janelas a partir de R.
// R válido: R+1 e R+2 (o resultado de R+1 chega com latência, R+2 já precisa existir).
// R sem resultado: só R+1, com horário forçado se já existia.
func (c *ContinuousIngestor) openRounds(ctx context.Context, g games.Game, r int, rValid bool, next roundclock.Window, now time.Time) error {
	cfg := g.Config
	current := c.Clock.ComputeWindowForRoundNumber(cfg, r, next)

	created, err := c.claim(ctx, g, next, now)
	if err != nil {
		return err
	}

	if !rValid {
		if !created {
			if _, err := c.Registry.ForceTiming(ctx, g.Key, next.RoundID, next.Start, next.End, now); err != nil {
				return err
			}
		}
		c.announce(ctx, g, next)
		c.publishLater(ctx, g, current.RoundID, cfg.ResultPublishDelay)
		return nil
	}

	if !created {
		// só aceita estimativa mais cedo
		if _, err := c.Registry.UpdateTiming(ctx, g.Key, next.RoundID, next.Start, next.End, now); err != nil {
			return err
		}
	}
	if _, err := c.claim(ctx, g, c.Clock.Next(cfg, next, now), now); err != nil {
		return err
	}
	if created {
		c.announce(ctx, g, next)
	}
	c.publishLater(ctx, g, current.RoundID, cfg.ResultLatency)
	return nil
}

// mostRecent escolhe a rodada mais à frente no ciclo, considerando o giro
func mostRecent(cfg roundclock.GameConfig, rows map[int]jobs.OutcomeRow) jobs.OutcomeRow {
	var (
		best  jobs.OutcomeRow
		first = true
	)
	for n, row := range rows {
		if first || roundclock.Compare(cfg, n, best.RoundNumber) > 0 {
			best, first = row, false
		}
	}
	return best
}
