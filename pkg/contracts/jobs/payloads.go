package jobs

import "time"

// ScanAll no lugar do roundId pede a liquidação de todas as apostas pendentes do jogo
const ScanAll = "scan_all"

// OutcomeRow é uma linha de resultado bruta reportada pelo fornecedor.
// Cada família de jogo usa apenas os campos que lhe dizem respeito.
type OutcomeRow struct {
	RoundNumber int       `json:"round"`
	Numbers     []int     `json:"numbers,omitempty"`   // bolas sorteadas, na ordem
	Powerball   *int      `json:"powerball,omitempty"` // powerball
	Start       string    `json:"start,omitempty"`     // ladder: LEFT | RIGHT
	Lines       int       `json:"lines,omitempty"`     // ladder: 3 | 4
	Winner      string    `json:"winner,omitempty"`    // holdem: A | B | TIE
	HandRank    string    `json:"handRank,omitempty"`  // holdem
	ResultTime  time.Time `json:"resultTime,omitempty"`
}

// Ingest é o job produzido a cada lote recebido do fornecedor
type Ingest struct {
	ProviderGameKey string       `json:"providerGameKey"`
	Rows            []OutcomeRow `json:"rows"`
	Timestamp       time.Time    `json:"timestamp"`
}

// Settle pede a liquidação de uma rodada, ou de todo o jogo quando RoundID == ScanAll
type Settle struct {
	Game    string `json:"game"`
	RoundID string `json:"roundId"`
}

// RoundResultPublish pede a publicação do resultado de uma rodada assim que ele existir
type RoundResultPublish struct {
	Game    string `json:"game"`
	RoundID string `json:"roundId"`
}
