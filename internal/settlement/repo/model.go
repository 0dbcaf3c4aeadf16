package repo

import "github.com/shopspring/decimal"

const (
	StatusPending = "pending"
	StatusWin     = "win"
	StatusLose    = "lose"
	StatusRefund  = "refund"

	LedgerWin    = "minigame_win"
	LedgerRefund = "minigame_refund"
)

// Wager é uma aposta de minigame (tabela minigame_bets)
type Wager struct {
	ID             int64
	UserID         int64
	Game           string
	RoundID        string
	SelectedOption string
	BetAmount      int64
	Rate           decimal.Decimal
	Status         string
	WinAmount      int64
	Tries          int
}

// Outcome é o veredito calculado para uma aposta pendente
type Outcome struct {
	Wager     Wager
	Status    string // win | lose
	WinAmount int64
}

// UserSettlement é o que foi efetivamente aplicado para um usuário em uma transação
type UserSettlement struct {
	UserID  int64
	Balance int64     // saldo após a transação
	Settled []Outcome // só as apostas que ainda estavam pendentes
}
