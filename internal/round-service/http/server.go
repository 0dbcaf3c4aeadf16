package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/internal/roundclock"
	"github.com/radieske/minigame-settlement/internal/rounds/repo"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

type RoundReader interface {
	Find(ctx context.Context, game, roundID string) (repo.Entry, bool, error)
	Recent(ctx context.Context, game string, limit int) ([]repo.Entry, error)
}

type ResultReader interface {
	Recent(ctx context.Context, game string, limit int) ([]repo.Result, error)
}

// API expõe a consulta de jogos, rodadas e resultados
type API struct {
	Catalog *games.Catalog
	Clock   *roundclock.Clock
	Rounds  RoundReader
	Results ResultReader
	Now     func() time.Time
}

// Router retorna o roteador HTTP. ws é opcional e é montado em /ws.
func (a *API) Router(ws http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/games", a.listGames)
	r.Get("/v1/games/{game}/rounds/current", a.currentRound)
	r.Get("/v1/games/{game}/rounds", a.listRounds)
	r.Get("/v1/games/{game}/results", a.listResults)
	if ws != nil {
		r.Get("/ws", ws)
	}
	return r
}

type gameDTO struct {
	Key             string `json:"key"`
	Family          string `json:"family"`
	IntervalMinutes int    `json:"intervalMinutes"`
	RoundsPerDay    int    `json:"roundsPerDay"`
	Continuous      bool   `json:"continuous"`
}

type windowDTO struct {
	RoundID     string    `json:"roundId"`
	RoundNumber int       `json:"roundNumber"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      string    `json:"status"`
	Registered  bool      `json:"registered"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *API) game(w http.ResponseWriter, r *http.Request) (games.Game, bool) {
	g, ok := a.Catalog.Game(chi.URLParam(r, "game"))
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
	}
	return g, ok
}

func limit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

func (a *API) listGames(w http.ResponseWriter, r *http.Request) {
	all := a.Catalog.All()
	out := make([]gameDTO, 0, len(all))
	for _, g := range all {
		out = append(out, gameDTO{
			Key:             g.Key,
			Family:          string(g.Family),
			IntervalMinutes: g.Config.IntervalMinutes,
			RoundsPerDay:    g.Config.RoundsPerDay,
			Continuous:      g.Config.Continuous,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// currentRound usa o relógio para jogos agendados. Em jogos contínuos a numeração vem
// do registro (inferida pela ingestão), então a entrada que cobre agora tem prioridade.
func (a *API) currentRound(w http.ResponseWriter, r *http.Request) {
	g, ok := a.game(w, r)
	if !ok {
		return
	}
	now := a.now()

	if g.Config.Continuous {
		recent, err := a.Rounds.Recent(r.Context(), g.Key, 3)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, e := range recent {
			if !now.Before(e.Start) && now.Before(e.End) {
				writeJSON(w, http.StatusOK, windowDTO{
					RoundID: e.RoundID, RoundNumber: e.RoundNumber, Start: e.Start, End: e.End,
					Status: string(roundclock.Active), Registered: true,
				})
				return
			}
		}
	}

	win := a.Clock.ComputeWindow(g.Config, now)
	_, found, err := a.Rounds.Find(r.Context(), g.Key, win.RoundID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, windowDTO{
		RoundID: win.RoundID, RoundNumber: win.RoundNumber, Start: win.Start, End: win.End,
		Status: string(win.Status), Registered: found,
	})
}

func (a *API) listRounds(w http.ResponseWriter, r *http.Request) {
	g, ok := a.game(w, r)
	if !ok {
		return
	}
	rounds, err := a.Rounds.Recent(r.Context(), g.Key, limit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rounds == nil {
		rounds = []repo.Entry{}
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (a *API) listResults(w http.ResponseWriter, r *http.Request) {
	g, ok := a.game(w, r)
	if !ok {
		return
	}
	results, err := a.Results.Recent(r.Context(), g.Key, limit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []repo.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}
