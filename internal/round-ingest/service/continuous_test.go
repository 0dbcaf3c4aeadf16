package service

import (
	"errors"
	"testing"
	"time"

	"github.com/radieske/minigame-settlement/internal/rounds/repo"
	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

const rb = "runningball_5m"

func TestContinuousSkipFirstBeat(t *testing.T) {
	h := newHarness(t, time.Date(2024, 3, 10, 12, 2, 30, 0, kst))

	// cache vazio: só aprende o próximo número
	if err := h.ingest(t, "runningball5", runningRow(50)); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if len(h.registry.entries) != 0 || len(h.queue.msgs) != 0 || h.results.calls != 0 {
		t.Fatalf("cold tick must not create windows or persist")
	}
	if h.waiting.m[rb] != 51 {
		t.Fatalf("waiting = %d, want 51", h.waiting.m[rb])
	}

	h.now = time.Date(2024, 3, 10, 12, 7, 30, 0, kst)
	if err := h.ingest(t, "runningball5", runningRow(51), runningRow(50)); err != nil {
		t.Fatalf("second tick: %v", err)
	}

	// R=51 válido: início de 52 = snap(12:07:30 - 2m) = 12:05
	e52, ok := h.registry.entries[rkey(rb, "20240310_052")]
	if !ok {
		t.Fatalf("round 52 not created: %v", h.registry.entries)
	}
	if want := time.Date(2024, 3, 10, 12, 5, 0, 0, kst); !e52.Start.Equal(want) {
		t.Fatalf("round 52 start = %v, want %v", e52.Start, want)
	}
	if !h.hasRound(rb, "20240310_053") {
		t.Fatalf("round 53 not created")
	}
	if len(h.registry.entries) != 2 {
		t.Fatalf("registry entries = %d, want 2", len(h.registry.entries))
	}
	if len(h.events.rounds) != 1 || h.events.rounds[0].RoundNumber != 52 {
		t.Fatalf("round:new = %+v", h.events.rounds)
	}

	pubs := h.queue.on("results")
	if len(pubs) != 1 {
		t.Fatalf("delayed publishes = %d", len(pubs))
	}
	if p := decodePublish(t, pubs[0]); p.RoundID != "20240310_051" {
		t.Fatalf("publish for %q, want round 51", p.RoundID)
	}
	if want := h.now.Add(2 * time.Minute); !pubs[0].env.NotBefore.Equal(want) {
		t.Fatalf("NotBefore = %v, want %v", pubs[0].env.NotBefore, want)
	}
	if h.waiting.m[rb] != 52 {
		t.Fatalf("waiting = %d, want 52", h.waiting.m[rb])
	}

	settles := h.queue.on("settle")
	if len(settles) != 3 {
		t.Fatalf("settle jobs = %d, want one per row plus the game scan", len(settles))
	}
	seen := map[string]bool{}
	for _, s := range settles {
		seen[decodeSettle(t, s).RoundID] = true
	}
	if !seen["20240310_050"] || !seen["20240310_051"] || !seen[jobs.ScanAll] {
		t.Fatalf("settle jobs for %v", seen)
	}
}

func TestContinuousScansGameWhenRoundHasNoResult(t *testing.T) {
	h := newHarness(t, time.Date(2024, 3, 10, 12, 7, 30, 0, kst))
	h.waiting.m[rb] = 51

	// 51 nunca recebe resultado; o replay cai em stale e também precisa varrer
	for i := 0; i < 2; i++ {
		if err := h.ingest(t, "runningball5", jobs.OutcomeRow{RoundNumber: 51}); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	settles := h.queue.on("settle")
	if len(settles) != 2 {
		t.Fatalf("settle jobs = %d, want one scan per tick", len(settles))
	}
	for _, s := range settles {
		if p := decodeSettle(t, s); p.RoundID != jobs.ScanAll || p.Game != rb {
			t.Fatalf("settle job = %+v, want scan_all for %s", p, rb)
		}
	}
}

func TestContinuousRecyclesRoundIDFromPreviousCycle(t *testing.T) {
	h := newHarness(t, time.Date(2024, 3, 10, 23, 7, 30, 0, kst))
	h.waiting.m[rb] = 51

	// 264 rodadas de 5min = 22h: o 052 das 01:05 volta às 23:05 do mesmo dia
	clock := h.svc.Continuous.(*ContinuousIngestor).Clock
	early := time.Date(2024, 3, 10, 1, 5, 0, 0, kst)
	id := clock.RoundID(52, early)
	h.registry.entries[rkey(rb, id)] = repo.Entry{
		Game: rb, RoundID: id, RoundNumber: 52,
		Start: early, End: early.Add(5 * time.Minute), Status: repo.StatusFinished,
	}
	h.registry.finished[rkey(rb, id)] = true
	h.results.saved = map[string]repo.Result{rkey(rb, id): {Game: rb, RoundID: id, RoundNumber: 52}}

	if err := h.ingest(t, "runningball5", runningRow(51)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if len(h.registry.recycled) != 1 || h.registry.recycled[0] != id {
		t.Fatalf("recycled = %v, want %s", h.registry.recycled, id)
	}
	e := h.registry.entries[rkey(rb, id)]
	if want := time.Date(2024, 3, 10, 23, 5, 0, 0, kst); !e.Start.Equal(want) || e.Status != repo.StatusActive {
		t.Fatalf("entry = %+v, want active from %v", e, want)
	}
	if h.registry.finished[rkey(rb, id)] {
		t.Fatalf("recycled round still marked finished")
	}
	if _, stale := h.results.saved[rkey(rb, id)]; stale {
		t.Fatalf("result of the previous cycle was kept")
	}
	if len(h.events.rounds) != 1 || h.events.rounds[0].RoundID != id {
		t.Fatalf("round:new = %+v", h.events.rounds)
	}
}

func TestContinuousKeepsEndedRoundOfSameCycle(t *testing.T) {
	h := newHarness(t, time.Date(2024, 3, 10, 23, 7, 30, 0, kst))
	h.waiting.m[rb] = 51

	// janela já encerrada, mas do mesmo ciclo: não é reaproveitamento
	clock := h.svc.Continuous.(*ContinuousIngestor).Clock
	start := time.Date(2024, 3, 10, 23, 0, 0, 0, kst)
	id := clock.RoundID(52, start)
	h.registry.entries[rkey(rb, id)] = repo.Entry{
		Game: rb, RoundID: id, RoundNumber: 52, Start: start, End: start.Add(5 * time.Minute),
	}

	if err := h.ingest(t, "runningball5", runningRow(51)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(h.registry.recycled) != 0 || len(h.results.discarded) != 0 {
		t.Fatalf("recycled = %v discarded = %v", h.registry.recycled, h.results.discarded)
	}
	if !h.registry.entries[rkey(rb, id)].Start.Equal(start) {
		t.Fatalf("ended entry timing changed")
	}
	if len(h.events.rounds) != 0 {
		t.Fatalf("round:new emitted for an existing round: %+v", h.events.rounds)
	}
}

func TestContinuousReplayIsStale(t *testing.T) {
	h := newHarness(t, time.Date(2024, 3, 10, 12, 7, 30, 0, kst))
	h.waiting.m[rb] = 51

	for i := 0; i < 2; i++ {
		if err := h.ingest(t, "runningball5", runningRow(51)); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if len(h.registry.entries) != 2 || len(h.events.rounds) != 1 || len(h.queue.on("results")) != 1 {
		t.Fatalf("replay created windows again: entries=%d events=%d", len(h.registry.entries), len(h.events.rounds))
	}
	// a linha histórica continua sendo gravada de forma idempotente
	if h.results.calls != 2 || len(h.results.saved) != 1 {
		t.Fatalf("results calls=%d saved=%d", h.results.calls, len(h.results.saved))
	}
}

func TestContinuousFellBehindResets(t *testing.T) {
	h := newHarness(t, time.Date(2024, 3, 10, 12, 7, 30, 0, kst))
	h.waiting.m[rb] = 40

	if err := h.ingest(t, "runningball5", runningRow(51)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(h.registry.entries) != 0 {
		t.Fatalf("behind tick created windows")
	}
	if h.waiting.m[rb] != 52 {
		t.Fatalf("waiting = %d, want 52", h.waiting.m[rb])
	}
	if len(h.results.saved) != 1 {
		t.Fatalf("historical row not persisted")
	}
}

func TestContinuousWrapsAroundCycle(t *testing.T) {
	h := newHarness(t, time.Date(2024, 3, 10, 12, 7, 30, 0, kst))
	h.waiting.m[rb] = 264

	if err := h.ingest(t, "runningball5", runningRow(263), runningRow(264)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if h.waiting.m[rb] != 1 {
		t.Fatalf("waiting = %d, want 1", h.waiting.m[rb])
	}
	if len(h.events.rounds) != 1 || h.events.rounds[0].RoundNumber != 1 {
		t.Fatalf("round:new = %+v", h.events.rounds)
	}
	var numbers []int
	for _, e := range h.registry.entries {
		numbers = append(numbers, e.RoundNumber)
	}
	if len(numbers) != 2 {
		t.Fatalf("registry = %v", numbers)
	}
	for _, n := range numbers {
		if n != 1 && n != 2 {
			t.Fatalf("unexpected round %d after wrap", n)
		}
	}
}

func TestContinuousWithoutResult(t *testing.T) {
	h := newHarness(t, time.Date(2024, 3, 10, 12, 7, 30, 0, kst))
	h.waiting.m[rb] = 51

	pending := jobs.OutcomeRow{RoundNumber: 51}
	if err := h.ingest(t, "runningball5", pending, runningRow(50)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// sem resultado em R o início de R+1 é o instante recebido
	var e52 repo.Entry
	for _, e := range h.registry.entries {
		e52 = e
	}
	if len(h.registry.entries) != 1 || e52.RoundNumber != 52 || !e52.Start.Equal(h.now) {
		t.Fatalf("registry = %+v", h.registry.entries)
	}
	if len(h.events.rounds) != 1 {
		t.Fatalf("round:new not emitted")
	}
	pubs := h.queue.on("results")
	if len(pubs) != 1 {
		t.Fatalf("delayed publishes = %d", len(pubs))
	}
	if p := decodePublish(t, pubs[0]); p.RoundID != "20240310_051" {
		t.Fatalf("publish for %q, want the round without result", p.RoundID)
	}
	if want := h.now.Add(30 * time.Second); !pubs[0].env.NotBefore.Equal(want) {
		t.Fatalf("NotBefore = %v, want %v", pubs[0].env.NotBefore, want)
	}
	if len(h.results.saved) != 1 {
		t.Fatalf("only the complete row should be saved, got %d", len(h.results.saved))
	}
}

func TestContinuousWithoutResultForcesExistingTiming(t *testing.T) {
	h := newHarness(t, time.Date(2024, 3, 10, 12, 7, 30, 0, kst))
	h.waiting.m[rb] = 51

	id := h.svc.Continuous.(*ContinuousIngestor).Clock.RoundID(52, h.now)
	h.registry.entries[rkey(rb, id)] = repo.Entry{
		Game: rb, RoundID: id, RoundNumber: 52,
		Start: h.now.Add(-time.Minute), End: h.now.Add(4 * time.Minute),
	}

	if err := h.ingest(t, "runningball5", jobs.OutcomeRow{RoundNumber: 51}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(h.registry.forced) != 1 || h.registry.forced[0] != id {
		t.Fatalf("forced = %v", h.registry.forced)
	}
	if got := h.registry.entries[rkey(rb, id)].Start; !got.Equal(h.now) {
		t.Fatalf("start = %v, want %v", got, h.now)
	}
	// mesmo já existente, R+1 é anunciada de imediato
	if len(h.events.rounds) != 1 {
		t.Fatalf("round:new = %d", len(h.events.rounds))
	}
}

func TestContinuousRollsBackCacheOnFailure(t *testing.T) {
	h := newHarness(t, time.Date(2024, 3, 10, 12, 7, 30, 0, kst))
	h.waiting.m[rb] = 51
	h.registry.createErr = errBoom

	err := h.ingest(t, "runningball5", runningRow(51))
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if h.waiting.m[rb] != 51 {
		t.Fatalf("waiting = %d, want rollback to 51", h.waiting.m[rb])
	}
	if h.results.calls != 0 {
		t.Fatalf("rows persisted after failed window creation")
	}
}
