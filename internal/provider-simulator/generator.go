package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/internal/roundclock"
	"github.com/radieske/minigame-settlement/internal/shared/jobqueue"
	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

// Generator sorteia resultados para as rodadas encerradas de cada jogo do catálogo e
// devolve lotes no formato do fornecedor, com as linhas mais recentes primeiro.
// Usado só em ambiente local, no lugar do feed real.
type Generator struct {
	Catalog     *games.Catalog
	Clock       *roundclock.Clock
	HistorySize int

	mu      sync.Mutex
	rnd     *rand.Rand
	history map[string][]jobs.OutcomeRow // por jogo, mais recente primeiro
	drawn   map[string]string            // jogo -> último roundId sorteado
}

func NewGenerator(c *games.Catalog, clock *roundclock.Clock, seed int64) *Generator {
	return &Generator{
		Catalog:     c,
		Clock:       clock,
		HistorySize: 20,
		rnd:         rand.New(rand.NewSource(seed)),
		history:     make(map[string][]jobs.OutcomeRow),
		drawn:       make(map[string]string),
	}
}

// Tick produz um lote por jogo. A rodada só "sai" depois de End + ResultLatency.
func (g *Generator) Tick(now time.Time) []jobs.Ingest {
	g.mu.Lock()
	defer g.mu.Unlock()

	all := g.Catalog.All()
	out := make([]jobs.Ingest, 0, len(all))
	for _, game := range all {
		cfg := game.Config
		cur := g.Clock.ComputeWindow(cfg, now.Add(-cfg.ResultLatency))
		last := g.Clock.ComputeWindowForRoundNumber(cfg, roundclock.PrevRound(cfg, cur.RoundNumber), cur)

		if g.drawn[game.Key] != last.RoundID {
			g.drawn[game.Key] = last.RoundID
			row := g.draw(game.Family)
			row.RoundNumber = last.RoundNumber
			row.ResultTime = last.End.Add(cfg.ResultLatency)
			h := append([]jobs.OutcomeRow{row}, g.history[game.Key]...)
			if len(h) > g.HistorySize {
				h = h[:g.HistorySize]
			}
			g.history[game.Key] = h
		}

		out = append(out, jobs.Ingest{
			ProviderGameKey: game.ProviderKey,
			Rows:            append([]jobs.OutcomeRow(nil), g.history[game.Key]...),
			Timestamp:       now,
		})
	}
	return out
}

func (g *Generator) draw(f games.Family) jobs.OutcomeRow {
	switch f {
	case games.Powerball:
		pb := g.rnd.Intn(10)
		return jobs.OutcomeRow{Numbers: g.distinct(5, 28), Powerball: &pb}
	case games.Ladder:
		start := "LEFT"
		if g.rnd.Intn(2) == 1 {
			start = "RIGHT"
		}
		return jobs.OutcomeRow{Start: start, Lines: 3 + g.rnd.Intn(2)}
	case games.Holdem:
		ranks := games.HoldemRanks()
		winners := []string{"A", "B", "TIE"}
		return jobs.OutcomeRow{Winner: winners[g.rnd.Intn(len(winners))], HandRank: ranks[g.rnd.Intn(len(ranks))]}
	case games.RunningBall:
		return jobs.OutcomeRow{Numbers: g.distinct(3, 10)}
	case games.Space:
		return jobs.OutcomeRow{Numbers: []int{1 + g.rnd.Intn(8)}}
	}
	return jobs.OutcomeRow{}
}

// distinct sorteia n números distintos em 1..max, na ordem do sorteio
func (g *Generator) distinct(n, max int) []int {
	perm := g.rnd.Perm(max)[:n]
	out := make([]int, n)
	for i, p := range perm {
		out[i] = p + 1
	}
	return out
}


// Emit enfileira um job de ingestão por jogo, com a chave do fornecedor como chave da mensagem
func (g *Generator) Emit(ctx context.Context, q jobqueue.Enqueuer, topic string, maxAttempts int, now time.Time) error {
	for _, in := range g.Tick(now) {
		env, err := jobs.New(jobs.KindIngest, in, maxAttempts)
		if err != nil {
			return err
		}
		if err := q.Enqueue(ctx, topic, in.ProviderGameKey, env); err != nil {
			return fmt.Errorf("enqueue ingest %s: %w", in.ProviderGameKey, err)
		}
	}
	return nil
}
