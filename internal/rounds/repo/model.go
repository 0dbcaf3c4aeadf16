package repo

import "time"

const (
	StatusActive   = "active"
	StatusFinished = "finished"
)

// Entry é o registro canônico de uma rodada (tabela game_rounds)
type Entry struct {
	Game        string    `json:"game"`
	RoundID     string    `json:"roundId"`
	RoundNumber int       `json:"roundNumber"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      string    `json:"status"`
}

// Result são os códigos de resultado já derivados de uma rodada.
// Só é autoritativo quando a estratégia da família o considera válido.
type Result struct {
	Game        string            `json:"game"`
	RoundID     string            `json:"roundId"`
	RoundNumber int               `json:"roundNumber"`
	Codes       map[string]string `json:"codes"`
	ResultTime  time.Time         `json:"resultTime"`
}
