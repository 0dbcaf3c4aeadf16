package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/internal/roundclock"
	roundsrepo "github.com/radieske/minigame-settlement/internal/rounds/repo"
	"github.com/radieske/minigame-settlement/internal/settlement/repo"
	"github.com/radieske/minigame-settlement/internal/shared/jobqueue"
	"github.com/radieske/minigame-settlement/internal/shared/logger"
	"github.com/radieske/minigame-settlement/pkg/contracts/events"
	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

// Store é o subconjunto de repo.Postgres usado pela liquidação
type Store interface {
	PendingWagers(ctx context.Context, game, roundID string) ([]repo.Wager, error)
	IncrementTries(ctx context.Context, wagerID int64) (int, bool, error)
	SettleUser(ctx context.Context, userID int64, outcomes []repo.Outcome) (repo.UserSettlement, error)
	Refund(ctx context.Context, w repo.Wager) (int64, bool, error)
}

type ResultReader interface {
	Get(ctx context.Context, game, roundID string) (roundsrepo.Result, bool, error)
}

type RoundReader interface {
	Find(ctx context.Context, game, roundID string) (roundsrepo.Entry, bool, error)
}

// Processor liquida apostas pendentes de uma rodada ou de um jogo inteiro (scan_all)
type Processor struct {
	Log     *zap.Logger
	Catalog *games.Catalog
	Store   Store
	Results ResultReader
	Rounds  RoundReader
	Clock   *roundclock.Clock // fim das rodadas agendadas que nunca chegaram ao registro
	Queue   jobqueue.Enqueuer

	DelayedTopic string
	NotifyDelay  time.Duration // atraso dos eventos de saldo/aposta, alinhado à revelação no cliente
	Now          func() time.Time

	OnWager func(status string) // métricas
}

// Handle é o handler do runner para jobs de liquidação
func (p *Processor) Handle(ctx context.Context, env jobs.Envelope) error {
	var job jobs.Settle
	if err := env.Decode(&job); err != nil {
		p.Log.Warn("invalid settle payload", zap.String("job_id", env.ID), zap.Error(err))
		return nil
	}
	return p.Settle(ctx, job)
}

// Settle processa um job. Falhas por usuário são agregadas com errors.Join
// para que o runner repita o job; usuários já liquidados não são afetados pelo retry.
func (p *Processor) Settle(ctx context.Context, job jobs.Settle) error {
	g, ok := p.Catalog.Game(job.Game)
	if !ok {
		p.Log.Warn("settle for unknown game", zap.String("game", job.Game))
		return nil
	}
	s := p.Catalog.StrategyFor(g)

	roundID := job.RoundID
	if roundID == jobs.ScanAll {
		roundID = ""
	}
	wagers, err := p.Store.PendingWagers(ctx, g.Key, roundID)
	if err != nil {
		return err
	}
	if len(wagers) == 0 {
		return nil
	}

	byRound := make(map[string][]repo.Wager)
	var rounds []string
	for _, w := range wagers {
		if _, ok := byRound[w.RoundID]; !ok {
			rounds = append(rounds, w.RoundID)
		}
		byRound[w.RoundID] = append(byRound[w.RoundID], w)
	}
	sort.Strings(rounds)

	var errs []error
	for _, id := range rounds {
		if err := p.settleRound(ctx, g, s, id, byRound[id]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Processor) settleRound(ctx context.Context, g games.Game, s *games.Strategy, roundID string, wagers []repo.Wager) error {
	res, found, err := p.Results.Get(ctx, g.Key, roundID)
	if err != nil {
		return err
	}
	if found && s.Valid(res.Codes) {
		return p.pay(ctx, g, s, res, wagers)
	}
	return p.expire(ctx, g, s, roundID, wagers)
}

// pay avalia as apostas contra os códigos já derivados e aplica uma transação por usuário
func (p *Processor) pay(ctx context.Context, g games.Game, s *games.Strategy, res roundsrepo.Result, wagers []repo.Wager) error {
	log := logger.Game(p.Log, g.Key, res.RoundID)

	byUser := make(map[int64][]repo.Outcome)
	var users []int64
	for _, w := range wagers {
		o := repo.Outcome{Wager: w, Status: repo.StatusLose}
		if s.Win(w.SelectedOption, res.Codes) {
			o.Status = repo.StatusWin
			o.WinAmount = WinAmount(w.BetAmount, w.Rate)
		}
		if _, ok := byUser[w.UserID]; !ok {
			users = append(users, w.UserID)
		}
		byUser[w.UserID] = append(byUser[w.UserID], o)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	var errs []error
	for _, uid := range users {
		us, err := p.Store.SettleUser(ctx, uid, byUser[uid])
		if err != nil {
			log.Error("user settlement failed", zap.Int64("user_id", uid), zap.Error(err))
			errs = append(errs, fmt.Errorf("settle user %d round %s: %w", uid, res.RoundID, err))
			continue
		}
		if len(us.Settled) == 0 {
			continue
		}
		log.Info("user settled", zap.Int64("user_id", uid), zap.Int("wagers", len(us.Settled)), zap.Int64("balance", us.Balance))

		details := make([]events.WagerDetail, 0, len(us.Settled))
		for _, o := range us.Settled {
			p.count(o.Status)
			details = append(details, detail(o.Wager, o.Status, o.WinAmount))
		}
		p.notify(ctx, g.Key, uid, us.Balance, details)
	}
	return errors.Join(errs...)
}

// expire trata apostas sem resultado: depois do fim da rodada cada scan conta uma tentativa
// e no teto da família a aposta é reembolsada
func (p *Processor) expire(ctx context.Context, g games.Game, s *games.Strategy, roundID string, wagers []repo.Wager) error {
	log := logger.Game(p.Log, g.Key, roundID)

	end, known, err := p.roundEnd(ctx, g, roundID)
	if err != nil {
		return err
	}
	if !known || p.now().Before(end) {
		log.Debug("round not ended, waiting for result", zap.Bool("known", known))
		return nil
	}

	var errs []error
	for _, w := range wagers {
		tries := w.Tries
		if tries < s.RefundCeiling {
			n, ok, err := p.Store.IncrementTries(ctx, w.ID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !ok {
				continue
			}
			tries = n
		}
		if tries < s.RefundCeiling {
			continue
		}

		balance, refunded, err := p.Store.Refund(ctx, w)
		if err != nil {
			log.Error("refund failed", zap.Int64("wager_id", w.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("refund wager %d: %w", w.ID, err))
			continue
		}
		if !refunded {
			continue
		}
		log.Info("wager refunded", zap.Int64("wager_id", w.ID), zap.Int("tries", tries))
		p.count(repo.StatusRefund)
		p.notify(ctx, g.Key, w.UserID, balance, []events.WagerDetail{detail(w, repo.StatusRefund, w.BetAmount)})
	}
	return errors.Join(errs...)
}

// roundEnd busca o fim da rodada no registro. Rodada agendada sem registro (a ingestão nunca
// a viu) tem o horário reconstruído pelo round_id; contínua fica esperando.
func (p *Processor) roundEnd(ctx context.Context, g games.Game, roundID string) (time.Time, bool, error) {
	entry, found, err := p.Rounds.Find(ctx, g.Key, roundID)
	if err != nil {
		return time.Time{}, false, err
	}
	if found {
		return entry.End, true, nil
	}
	if p.Clock == nil {
		return time.Time{}, false, nil
	}
	w, ok := p.Clock.WindowForRoundID(g.Config, roundID, p.now())
	return w.End, ok, nil
}

// notify agenda os eventos de saldo e de resultado por aposta como jobs atrasados de tentativa única.
// Falhas só geram log, a liquidação já foi commitada.
func (p *Processor) notify(ctx context.Context, game string, userID, balance int64, details []events.WagerDetail) {
	now := p.now()
	enqueue := func(kind jobs.Kind, payload any) {
		env, err := jobs.New(kind, payload, 1)
		if err == nil {
			err = p.Queue.Enqueue(ctx, p.DelayedTopic, game, env.Delayed(now, p.NotifyDelay))
		}
		if err != nil {
			p.Log.Warn("schedule notification failed", zap.String("kind", string(kind)), zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	enqueue(jobs.KindBalanceUpdate, events.BalanceUpdate{UserID: userID, Balance: balance})
	for _, d := range details {
		enqueue(jobs.KindWagerResult, events.WagerResult{UserID: userID, WagerDetail: d})
	}
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Processor) count(status string) {
	if p.OnWager != nil {
		p.OnWager(status)
	}
}

// WinAmount calcula aposta × taxa em decimal, truncado para unidades inteiras
func WinAmount(bet int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(bet).Mul(rate).Floor().IntPart()
}

func detail(w repo.Wager, status string, win int64) events.WagerDetail {
	return events.WagerDetail{
		WagerID:        w.ID,
		Game:           w.Game,
		RoundID:        w.RoundID,
		SelectedOption: w.SelectedOption,
		BetAmount:      w.BetAmount,
		Rate:           w.Rate.InexactFloat64(),
		Status:         status,
		WinAmount:      win,
	}
}
