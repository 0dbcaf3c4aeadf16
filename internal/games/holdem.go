package games

import (
	"strings"

	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

var holdemColumns = []string{"winner", "hand_rank"}

var holdemRanks = []string{
	"HIGH_CARD", "ONE_PAIR", "TWO_PAIR", "THREE_OF_A_KIND", "STRAIGHT",
	"FLUSH", "FULL_HOUSE", "FOUR_OF_A_KIND", "STRAIGHT_FLUSH",
}

// HoldemRanks devolve as categorias de mão aceitas, da menor para a maior
func HoldemRanks() []string { return append([]string(nil), holdemRanks...) }

// Holdem: duas mãos A e B, vencedor (ou empate) e a categoria da mão vencedora
func newHoldemStrategy() *Strategy {
	opts := []string{"H_A", "H_B", "H_TIE"}
	for _, r := range holdemRanks {
		opts = append(opts, "H_"+r)
	}
	return &Strategy{
		Family:        Holdem,
		Table:         "holdem_results",
		Columns:       holdemColumns,
		Options:       opts,
		RefundCeiling: 3,
		Derive:        deriveHoldem,
	}
}

func deriveHoldem(row jobs.OutcomeRow) map[string]string {
	codes := placeholders(holdemColumns)
	winner := strings.ToUpper(strings.TrimSpace(row.Winner))
	rank := strings.ToUpper(strings.TrimSpace(row.HandRank))
	if winner != "A" && winner != "B" && winner != "TIE" {
		return codes
	}
	known := false
	for _, r := range holdemRanks {
		if r == rank {
			known = true
			break
		}
	}
	if !known {
		return codes
	}

	codes["winner"] = "H_" + winner
	codes["hand_rank"] = "H_" + rank
	return codes
}
