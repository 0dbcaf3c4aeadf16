package events

// Evento publicado no canal "balance:update" após a liquidação
type BalanceUpdate struct {
	UserID  int64 `json:"userId"`
	Balance int64 `json:"balance"`
}

type WagerDetail struct {
	WagerID        int64   `json:"wagerId"`
	Game           string  `json:"game"`
	RoundID        string  `json:"roundId"`
	SelectedOption string  `json:"selectedOption"`
	BetAmount      int64   `json:"betAmount"`
	Rate           float64 `json:"rate"`
	Status         string  `json:"status"` // "win" | "lose" | "refund"
	WinAmount      int64   `json:"winAmount"`
}

// Evento publicado no canal "wager:result"
type WagerResult struct {
	UserID      int64       `json:"userId"`
	WagerDetail WagerDetail `json:"wagerDetail"`
}
