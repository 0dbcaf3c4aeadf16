package events

import "time"

// BettingOption é uma opção de aposta aberta para a rodada, com a taxa de pagamento vigente
type BettingOption struct {
	Code string  `json:"code"`
	Rate float64 `json:"rate"`
}

// BettingParams reúne os parâmetros de aposta lidos da configuração em tempo de execução
type BettingParams struct {
	MinBet       int64           `json:"minBet"`
	MaxBet       int64           `json:"maxBet"`
	MaxPayout    int64           `json:"maxPayout"`
	BlockSeconds int             `json:"blockSeconds"` // janela final sem apostas
	Options      []BettingOption `json:"options"`
}

// Evento publicado no canal "round:new"
type RoundNew struct {
	Game           string        `json:"game"`
	RoundID        string        `json:"roundId"`
	RoundNumber    int           `json:"roundNumber"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	BettingOptions BettingParams `json:"bettingOptions"`
}

// Evento publicado no canal "round:result"
type RoundResult struct {
	Game        string            `json:"game"`
	RoundID     string            `json:"roundId"`
	RoundNumber int               `json:"roundNumber"`
	ResultCodes map[string]string `json:"resultCodes"`
}
