package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/internal/roundclock"
	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

// ScheduledIngestor trata jogos de calendário fixo (powerball, ladder, holdem).
// A janela vem sempre do relógio, o lote só traz resultados.
type ScheduledIngestor struct {
	*Base
}

func NewScheduled(b *Base) *ScheduledIngestor { return &ScheduledIngestor{Base: b} }

func (s *ScheduledIngestor) Ingest(ctx context.Context, g games.Game, in jobs.Ingest) error {
	cfg := g.Config
	now := s.now()
	cur := s.Clock.ComputeWindow(cfg, now)

	if err := s.openCurrent(ctx, g, cur, now); err != nil {
		return err
	}

	// mantém o registro um passo à frente, independente da cadência dos lotes
	next := s.Clock.Next(cfg, cur, now)
	if next.Started(now) {
		created, err := s.ensure(ctx, g, next)
		if err != nil {
			return err
		}
		if created {
			s.announce(ctx, g, next)
		}
	}

	if _, err := s.persist(ctx, g, s.selectRows(cfg, cur, in.Rows)); err != nil {
		return err
	}
	return s.enqueueSettle(ctx, g.Key, jobs.ScanAll)
}

// openCurrent cria a rodada corrente na primeira vez que é vista já iniciada,
// anuncia e agenda a publicação do resultado da rodada anterior
func (s *ScheduledIngestor) openCurrent(ctx context.Context, g games.Game, cur roundclock.Window, now time.Time) error {
	_, found, err := s.Registry.Find(ctx, g.Key, cur.RoundID)
	if err != nil {
		return err
	}
	if found || !cur.Started(now) {
		return nil
	}

	created, err := s.ensure(ctx, g, cur)
	if err != nil || !created {
		return err
	}
	s.announce(ctx, g, cur)

	prev := s.Clock.ComputeWindowForRoundNumber(g.Config, roundclock.PrevRound(g.Config, cur.RoundNumber), cur)
	s.publishLater(ctx, g, prev.RoundID, s.Timing.PrevResultDelay)
	return nil
}

// selectRows escolhe as linhas do lote que serão gravadas:
// da página atual, anteriores à rodada corrente (só as mais recentes, até Backfill);
// do ciclo anterior (número maior que o corrente), todas.
func (s *ScheduledIngestor) selectRows(cfg roundclock.GameConfig, cur roundclock.Window, rows []jobs.OutcomeRow) []placedRow {
	byNumber := dedupe(cfg, rows)

	var page, previous []int
	for n := range byNumber {
		switch {
		case n < cur.RoundNumber:
			page = append(page, n)
		case n > cur.RoundNumber:
			previous = append(previous, n)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(page)))
	if limit := s.Timing.Backfill; limit > 0 && len(page) > limit {
		s.Log.Debug("backfill capped", zap.Int("rows", len(page)), zap.Int("limit", limit))
		page = page[:limit]
	}
	sort.Ints(previous)

	out := make([]placedRow, 0, len(page)+len(previous))
	for _, n := range append(page, previous...) {
		out = append(out, placedRow{
			row:    byNumber[n],
			window: s.Clock.ComputeWindowForRoundNumber(cfg, n, cur),
		})
	}
	return out
}
