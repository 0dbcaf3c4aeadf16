package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/internal/roundclock"
	"github.com/radieske/minigame-settlement/internal/rounds/repo"
)

var kst = time.FixedZone("KST", 9*3600)

type stubRounds struct {
	entries []repo.Entry
	limit   int
}

func (s *stubRounds) Find(_ context.Context, game, roundID string) (repo.Entry, bool, error) {
	for _, e := range s.entries {
		if e.Game == game && e.RoundID == roundID {
			return e, true, nil
		}
	}
	return repo.Entry{}, false, nil
}

func (s *stubRounds) Recent(_ context.Context, game string, limit int) ([]repo.Entry, error) {
	s.limit = limit
	var out []repo.Entry
	for _, e := range s.entries {
		if e.Game == game {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubResults struct{}

func (stubResults) Recent(context.Context, string, int) ([]repo.Result, error) { return nil, nil }

func newServer(t *testing.T, rounds *stubRounds, now time.Time) *httptest.Server {
	t.Helper()
	api := &API{
		Catalog: games.Default(),
		Clock:   roundclock.New(kst),
		Rounds:  rounds,
		Results: stubResults{},
		Now:     func() time.Time { return now },
	}
	srv := httptest.NewServer(api.Router(nil))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, dst any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if dst != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func TestListGames(t *testing.T) {
	srv := newServer(t, &stubRounds{}, time.Now())
	var out []gameDTO
	if code := getJSON(t, srv.URL+"/v1/games", &out); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(out) != 9 {
		t.Fatalf("games = %d", len(out))
	}
}

func TestCurrentRoundScheduled(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 1, 0, 0, kst)
	rounds := &stubRounds{entries: []repo.Entry{{Game: "coin_powerball_5m", RoundID: "20240310_109"}}}
	srv := newServer(t, rounds, now)

	var out windowDTO
	if code := getJSON(t, srv.URL+"/v1/games/coin_powerball_5m/rounds/current", &out); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if out.RoundID != "20240310_109" || !out.Registered || out.Status != "active" {
		t.Fatalf("current = %+v", out)
	}
}

func TestCurrentRoundContinuousPrefersRegistry(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 7, 0, 0, kst)
	start := time.Date(2024, 3, 10, 12, 5, 0, 0, kst)
	rounds := &stubRounds{entries: []repo.Entry{
		{Game: "runningball_5m", RoundID: "20240310_052", RoundNumber: 52, Start: start, End: start.Add(5 * time.Minute)},
	}}
	srv := newServer(t, rounds, now)

	var out windowDTO
	getJSON(t, srv.URL+"/v1/games/runningball_5m/rounds/current", &out)
	if out.RoundNumber != 52 || !out.Registered {
		t.Fatalf("current = %+v", out)
	}
}

func TestListRoundsLimit(t *testing.T) {
	rounds := &stubRounds{}
	srv := newServer(t, rounds, time.Now())

	var out []repo.Entry
	if code := getJSON(t, srv.URL+"/v1/games/ladder_5m/rounds?limit=5000", &out); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if rounds.limit != maxLimit || out == nil {
		t.Fatalf("limit = %d, out = %v", rounds.limit, out)
	}
}

func TestUnknownGame(t *testing.T) {
	srv := newServer(t, &stubRounds{}, time.Now())
	if code := getJSON(t, srv.URL+"/v1/games/nope/results", nil); code != http.StatusNotFound {
		t.Fatalf("status = %d", code)
	}
}
