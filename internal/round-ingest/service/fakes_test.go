package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/internal/bettingconfig"
	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/internal/roundclock"
	"github.com/radieske/minigame-settlement/internal/rounds/repo"
	"github.com/radieske/minigame-settlement/pkg/contracts/events"
	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

var kst = time.FixedZone("KST", 9*3600)

func rkey(game, roundID string) string { return game + "/" + roundID }

type fakeRegistry struct {
	entries   map[string]repo.Entry
	finished  map[string]bool
	forced    []string
	updated   []string
	recycled  []string
	createErr error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{entries: map[string]repo.Entry{}, finished: map[string]bool{}}
}

func (f *fakeRegistry) Find(_ context.Context, game, roundID string) (repo.Entry, bool, error) {
	e, ok := f.entries[rkey(game, roundID)]
	return e, ok, nil
}

func (f *fakeRegistry) Create(_ context.Context, e repo.Entry) (bool, error) {
	if f.createErr != nil {
		return false, f.createErr
	}
	k := rkey(e.Game, e.RoundID)
	if _, ok := f.entries[k]; ok {
		return false, nil
	}
	f.entries[k] = e
	return true, nil
}

func (f *fakeRegistry) UpdateTiming(_ context.Context, game, roundID string, start, end, now time.Time) (bool, error) {
	f.updated = append(f.updated, roundID)
	k := rkey(game, roundID)
	e, ok := f.entries[k]
	if !ok || !e.End.After(now) || start.After(e.Start) {
		return false, nil
	}
	e.Start, e.End = start, end
	f.entries[k] = e
	return true, nil
}

func (f *fakeRegistry) ForceTiming(_ context.Context, game, roundID string, start, end, now time.Time) (bool, error) {
	f.forced = append(f.forced, roundID)
	k := rkey(game, roundID)
	e, ok := f.entries[k]
	if !ok || !e.End.After(now) {
		return false, nil
	}
	e.Start, e.End = start, end
	f.entries[k] = e
	return true, nil
}

func (f *fakeRegistry) Recycle(_ context.Context, e repo.Entry, now time.Time) (bool, error) {
	k := rkey(e.Game, e.RoundID)
	prev, ok := f.entries[k]
	if !ok || prev.End.After(now) {
		return false, nil
	}
	f.recycled = append(f.recycled, e.RoundID)
	f.entries[k] = e
	delete(f.finished, k)
	return true, nil
}

func (f *fakeRegistry) MarkFinished(_ context.Context, game, roundID string) error {
	f.finished[rkey(game, roundID)] = true
	return nil
}

type fakeResults struct {
	saved     map[string]repo.Result
	calls     int
	discarded []string
}

func (f *fakeResults) Discard(_ context.Context, game, roundID string) error {
	f.discarded = append(f.discarded, roundID)
	delete(f.saved, rkey(game, roundID))
	return nil
}

func (f *fakeResults) UpsertBatch(_ context.Context, game string, results []repo.Result) error {
	f.calls++
	if f.saved == nil {
		f.saved = map[string]repo.Result{}
	}
	for _, r := range results {
		f.saved[rkey(game, r.RoundID)] = r
	}
	return nil
}

type fakeSettings struct{}

func (fakeSettings) Get(_ context.Context, game string) (bettingconfig.Settings, error) {
	return bettingconfig.Defaults(game), nil
}

type fakeEvents struct{ rounds []events.RoundNew }

func (f *fakeEvents) RoundNew(_ context.Context, ev events.RoundNew) { f.rounds = append(f.rounds, ev) }

type queued struct {
	topic string
	key   string
	env   jobs.Envelope
}

type fakeQueue struct{ msgs []queued }

func (f *fakeQueue) Enqueue(_ context.Context, topic, key string, env jobs.Envelope) error {
	f.msgs = append(f.msgs, queued{topic: topic, key: key, env: env})
	return nil
}

func (f *fakeQueue) on(topic string) []queued {
	var out []queued
	for _, m := range f.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type fakeWaiting struct{ m map[string]int }

func (f *fakeWaiting) Get(_ context.Context, game string) (int, bool, error) {
	v, ok := f.m[game]
	return v, ok, nil
}

func (f *fakeWaiting) CompareAndSet(_ context.Context, game string, old int, oldPresent bool, next int) (bool, error) {
	cur, ok := f.m[game]
	if ok != oldPresent || (ok && cur != old) {
		return false, nil
	}
	f.m[game] = next
	return true, nil
}

type harness struct {
	now      time.Time
	registry *fakeRegistry
	results  *fakeResults
	events   *fakeEvents
	queue    *fakeQueue
	waiting  *fakeWaiting
	catalog  *games.Catalog
	svc      *Service
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	h := &harness{
		now:      now,
		registry: newFakeRegistry(),
		results:  &fakeResults{},
		events:   &fakeEvents{},
		queue:    &fakeQueue{},
		waiting:  &fakeWaiting{m: map[string]int{}},
		catalog:  games.Default(),
	}
	b := &Base{
		Log:         zap.NewNop(),
		Clock:       roundclock.New(kst),
		Catalog:     h.catalog,
		Registry:    h.registry,
		Results:     h.results,
		Settings:    fakeSettings{},
		Events:      h.events,
		Queue:       h.queue,
		SettleTopic: "settle",
		ResultTopic: "results",
		Timing:      DefaultTiming(),
		Now:         func() time.Time { return h.now },
	}
	h.svc = &Service{
		Log:        zap.NewNop(),
		Catalog:    h.catalog,
		Scheduled:  NewScheduled(b),
		Continuous: NewContinuous(b, h.waiting),
	}
	return h
}

func (h *harness) ingest(t *testing.T, provider string, rows ...jobs.OutcomeRow) error {
	t.Helper()
	return h.svc.Ingest(context.Background(), jobs.Ingest{ProviderGameKey: provider, Rows: rows, Timestamp: h.now})
}

func (h *harness) hasRound(game, roundID string) bool {
	_, ok := h.registry.entries[rkey(game, roundID)]
	return ok
}

func decodePublish(t *testing.T, q queued) jobs.RoundResultPublish {
	t.Helper()
	var p jobs.RoundResultPublish
	if err := json.Unmarshal(q.env.Payload, &p); err != nil {
		t.Fatalf("decode publish payload: %v", err)
	}
	return p
}

func decodeSettle(t *testing.T, q queued) jobs.Settle {
	t.Helper()
	var p jobs.Settle
	if err := json.Unmarshal(q.env.Payload, &p); err != nil {
		t.Fatalf("decode settle payload: %v", err)
	}
	return p
}

func intp(n int) *int { return &n }

func powerballRow(n int) jobs.OutcomeRow {
	return jobs.OutcomeRow{RoundNumber: n, Numbers: []int{3, 11, 17, 20, 28}, Powerball: intp(7)}
}

func runningRow(n int) jobs.OutcomeRow {
	return jobs.OutcomeRow{RoundNumber: n, Numbers: []int{4, 9, 2}}
}

var errBoom = errors.New("boom")
