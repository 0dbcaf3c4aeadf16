package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/internal/roundclock"
	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

var kst = time.FixedZone("KST", 9*3600)

type captureQueue struct {
	topics []string
	keys   []string
	envs   []jobs.Envelope
	err    error
}

func (q *captureQueue) Enqueue(_ context.Context, topic, key string, env jobs.Envelope) error {
	if q.err != nil {
		return q.err
	}
	q.topics = append(q.topics, topic)
	q.keys = append(q.keys, key)
	q.envs = append(q.envs, env)
	return nil
}

func TestTickProducesValidRowsForEveryGame(t *testing.T) {
	cat := games.Default()
	g := NewGenerator(cat, roundclock.New(kst), 42)
	now := time.Date(2024, 3, 10, 12, 7, 30, 0, kst)

	for i := 0; i < 20; i++ {
		batches := g.Tick(now.Add(time.Duration(i) * 3 * time.Minute))
		if len(batches) != len(cat.All()) {
			t.Fatalf("batches = %d, want %d", len(batches), len(cat.All()))
		}
		for _, b := range batches {
			game, ok := cat.ByProvider(b.ProviderGameKey)
			if !ok {
				t.Fatalf("unknown provider key %q", b.ProviderGameKey)
			}
			s := cat.StrategyFor(game)
			for _, row := range b.Rows {
				if !s.Valid(s.Derive(row)) {
					t.Fatalf("%s round %d: invalid row %+v", game.Key, row.RoundNumber, row)
				}
			}
		}
	}
}

func TestTickEmitsLastFinishedRoundOnce(t *testing.T) {
	g := NewGenerator(games.Default(), roundclock.New(kst), 1)
	now := time.Date(2024, 3, 10, 0, 10, 30, 0, kst) // powerball_5m: rodada 3 em andamento

	first := byKey(g.Tick(now), "pbg_powerball5")
	if len(first.Rows) != 1 || first.Rows[0].RoundNumber != 2 {
		t.Fatalf("rows = %+v, want round 2", first.Rows)
	}
	again := byKey(g.Tick(now.Add(time.Minute)), "pbg_powerball5")
	if len(again.Rows) != 1 {
		t.Fatalf("same round drawn twice: %+v", again.Rows)
	}
	next := byKey(g.Tick(now.Add(5*time.Minute)), "pbg_powerball5")
	if len(next.Rows) != 2 || next.Rows[0].RoundNumber != 3 || next.Rows[1].RoundNumber != 2 {
		t.Fatalf("rows = %+v, want [3 2]", next.Rows)
	}
}

func TestHistoryIsCapped(t *testing.T) {
	g := NewGenerator(games.Default(), roundclock.New(kst), 7)
	g.HistorySize = 3
	now := time.Date(2024, 3, 10, 1, 0, 30, 0, kst)
	var b jobs.Ingest
	for i := 0; i < 6; i++ {
		b = byKey(g.Tick(now.Add(time.Duration(i)*5*time.Minute)), "pbg_powerball5")
	}
	if len(b.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(b.Rows))
	}
}

func TestEmitEnqueuesOneIngestJobPerGame(t *testing.T) {
	cat := games.Default()
	g := NewGenerator(cat, roundclock.New(kst), 3)
	q := &captureQueue{}
	now := time.Date(2024, 3, 10, 12, 7, 30, 0, kst)

	if err := g.Emit(context.Background(), q, "minigame_ingest", 5, now); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(q.envs) != len(cat.All()) {
		t.Fatalf("enqueued %d, want %d", len(q.envs), len(cat.All()))
	}
	for i, env := range q.envs {
		if q.topics[i] != "minigame_ingest" || env.Kind != jobs.KindIngest || env.MaxAttempts != 5 {
			t.Fatalf("job %d: topic %q env %+v", i, q.topics[i], env)
		}
		var in jobs.Ingest
		if err := env.Decode(&in); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if in.ProviderGameKey != q.keys[i] || !in.Timestamp.Equal(now) {
			t.Fatalf("job %d: %+v, key %q", i, in, q.keys[i])
		}
	}
}

func TestEmitStopsOnEnqueueError(t *testing.T) {
	g := NewGenerator(games.Default(), roundclock.New(kst), 3)
	boom := errors.New("broker down")
	err := g.Emit(context.Background(), &captureQueue{err: boom}, "minigame_ingest", 5, time.Now())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want broker down", err)
	}
}

func byKey(batches []jobs.Ingest, key string) jobs.Ingest {
	for _, b := range batches {
		if b.ProviderGameKey == key {
			return b
		}
	}
	return jobs.Ingest{}
}
