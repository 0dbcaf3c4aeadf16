package roundclock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	NotStarted Status = "not_started"
	Active     Status = "active"
	Finished   Status = "finished"
)

// Window é a janela [Start, End) de uma rodada. Derivada, nunca persistida.
type Window struct {
	RoundNumber int
	RoundID     string
	Start       time.Time
	End         time.Time
	Base        time.Time // início do ciclo (dia lógico ou volta contínua) a que a rodada pertence
	Status      Status
}

// StatusAt classifica a janela em relação a now
func (w Window) StatusAt(now time.Time) Status {
	switch {
	case now.Before(w.Start):
		return NotStarted
	case now.Before(w.End):
		return Active
	default:
		return Finished
	}
}

// Started indica se a janela já começou em now
func (w Window) Started(now time.Time) bool { return !now.Before(w.Start) }

// Clock converte instantes em janelas de rodada. O fuso só é usado aqui, para o dia do roundId.
type Clock struct {
	loc *time.Location
}

func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.FixedZone("KST", 9*3600)
	}
	return &Clock{loc: loc}
}

func (c *Clock) Location() *time.Location { return c.loc }

// ComputeWindow devolve a janela da rodada corrente em now
func (c *Clock) ComputeWindow(cfg GameConfig, now time.Time) Window {
	if cfg.Continuous {
		return c.continuousWindow(cfg, now)
	}
	return c.dailyWindow(cfg, now)
}

// dailyWindow: base mais recente <= now entre a de hoje e a de ontem.
// Uma base 23:57 faz a rodada 1 começar às 23:57 do dia anterior ao seu dia lógico.
func (c *Clock) dailyWindow(cfg GameConfig, now time.Time) Window {
	local := now.In(c.loc)
	base := time.Date(local.Year(), local.Month(), local.Day(), cfg.BaseHour, cfg.BaseMinute, cfg.BaseSecond, 0, c.loc)
	if base.After(local) {
		base = base.AddDate(0, 0, -1)
	}

	idx := int(local.Sub(base) / cfg.Interval())
	if idx >= cfg.RoundsPerDay {
		idx = cfg.RoundsPerDay - 1
	}
	return c.build(cfg, idx+1, base.Add(time.Duration(idx)*cfg.Interval()), base, now)
}

// continuousWindow: sem reset diário, a numeração gira módulo RoundsPerDay desde a âncora
func (c *Clock) continuousWindow(cfg GameConfig, now time.Time) Window {
	anchor := c.anchor(cfg)
	elapsed := floorDiv(int64(now.Sub(anchor)), int64(cfg.Interval()))
	n := int64(cfg.RoundsPerDay)

	number := int(mod(elapsed, n)) + 1
	cycles := floorDiv(elapsed, n)
	base := anchor.Add(time.Duration(cycles) * cfg.CycleLength())
	start := base.Add(time.Duration(number-1) * cfg.Interval())
	return c.build(cfg, number, start, base, now)
}

// ComputeWindowForRoundNumber resolve a janela de uma rodada qualquer a partir de uma janela conhecida.
// Números maiores que o da referência pertencem ao ciclo (ou dia) anterior.
// O status é relativo à referência: rodadas anteriores a ela já terminaram.
func (c *Clock) ComputeWindowForRoundNumber(cfg GameConfig, roundNumber int, ref Window) Window {
	offset := roundNumber - ref.RoundNumber
	base := ref.Base
	if roundNumber > ref.RoundNumber {
		offset -= cfg.RoundsPerDay
		if cfg.Continuous {
			base = base.Add(-cfg.CycleLength())
		} else {
			base = base.AddDate(0, 0, -1)
		}
	}
	start := ref.Start.Add(time.Duration(offset) * cfg.Interval())

	w := c.build(cfg, roundNumber, start, base, ref.Start)
	switch {
	case offset < 0:
		w.Status = Finished
	case offset == 0:
		w.Status = ref.Status
	default:
		w.Status = NotStarted
	}
	return w
}

// WindowStartingAt monta a janela de uma rodada cujo início foi medido fora do relógio
// (jogos contínuos, a partir do instante de recebimento do lote)
func (c *Clock) WindowStartingAt(cfg GameConfig, roundNumber int, start, now time.Time) Window {
	base := start.Add(-time.Duration(roundNumber-1) * cfg.Interval())
	return c.build(cfg, roundNumber, start, base, now)
}

// Next devolve a janela imediatamente posterior
func (c *Clock) Next(cfg GameConfig, w Window, now time.Time) Window {
	n := NextRound(cfg, w.RoundNumber)
	base := w.Base
	if n == 1 {
		base = w.End
	}
	return c.build(cfg, n, w.End, base, now)
}

// RoundID formata {YYYYMMDD}_{NNN}. A rodada 1 que começa entre 23:00 e 00:59 recebe a data do dia
// que ela abre: uma rodada 1 às 23:57 pertence ao dia seguinte, uma às 00:00 ao próprio dia.
func (c *Clock) RoundID(roundNumber int, start time.Time) string {
	local := start.In(c.loc)
	if roundNumber == 1 && (local.Hour() == 23 || local.Hour() == 0) {
		local = local.Add(time.Hour)
	}
	return fmt.Sprintf("%s_%03d", local.Format("20060102"), roundNumber)
}

// WindowForRoundID reconstrói a janela de um jogo agendado a partir do round_id.
// Jogos contínuos repetem ids dentro do mesmo dia e não têm reconstrução: ok=false.
func (c *Clock) WindowForRoundID(cfg GameConfig, roundID string, now time.Time) (Window, bool) {
	if cfg.Continuous {
		return Window{}, false
	}
	datePart, numPart, found := strings.Cut(roundID, "_")
	if !found {
		return Window{}, false
	}
	day, err := time.ParseInLocation("20060102", datePart, c.loc)
	if err != nil {
		return Window{}, false
	}
	n, err := strconv.Atoi(numPart)
	if err != nil || n < 1 || n > cfg.RoundsPerDay {
		return Window{}, false
	}

	// base tardia (23:xx) abre o dia lógico na véspera
	for _, back := range []int{0, -1} {
		d := day.AddDate(0, 0, back)
		base := time.Date(d.Year(), d.Month(), d.Day(), cfg.BaseHour, cfg.BaseMinute, cfg.BaseSecond, 0, c.loc)
		w := c.build(cfg, n, base.Add(time.Duration(n-1)*cfg.Interval()), base, now)
		if w.RoundID == roundID {
			return w, true
		}
	}
	return Window{}, false
}

// SnapDown alinha t para baixo na grade de intervalos do jogo
func (c *Clock) SnapDown(cfg GameConfig, t time.Time) time.Time {
	anchor := c.anchor(cfg)
	steps := floorDiv(int64(t.Sub(anchor)), int64(cfg.Interval()))
	return anchor.Add(time.Duration(steps) * cfg.Interval())
}

func (c *Clock) build(cfg GameConfig, number int, start, base, now time.Time) Window {
	w := Window{
		RoundNumber: number,
		RoundID:     c.RoundID(number, start),
		Start:       start,
		End:         start.Add(cfg.Interval()),
		Base:        base,
	}
	w.Status = w.StatusAt(now)
	return w
}

func (c *Clock) anchor(cfg GameConfig) time.Time {
	if !cfg.Anchor.IsZero() {
		return cfg.Anchor
	}
	return time.Date(2020, 1, 1, 0, 0, 0, 0, c.loc)
}

// NextRound devolve o sucessor de n, girando em RoundsPerDay
func NextRound(cfg GameConfig, n int) int {
	if n >= cfg.RoundsPerDay {
		return 1
	}
	return n + 1
}

// PrevRound devolve o antecessor de n, girando em RoundsPerDay
func PrevRound(cfg GameConfig, n int) int {
	if n <= 1 {
		return cfg.RoundsPerDay
	}
	return n - 1
}

// Compare compara dois números de rodada considerando o giro do ciclo:
// -1 se a está atrás de b, 0 se iguais, +1 se a está à frente de b.
// A distância circular mais curta decide o sentido.
func Compare(cfg GameConfig, a, b int) int {
	if a == b {
		return 0
	}
	n := cfg.RoundsPerDay
	ahead := ((a-b)%n + n) % n
	if ahead <= n/2 {
		return 1
	}
	return -1
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int64) int64 {
	return ((a % b) + b) % b
}
