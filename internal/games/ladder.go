package games

import (
	"strconv"
	"strings"

	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

var ladderColumns = []string{"start", "lines", "odd_even", "combo"}

// Ladder: ponto de partida LEFT/RIGHT e 3 ou 4 degraus.
// O lado de chegada define paridade: LEFT3 e RIGHT4 terminam em EVEN, LEFT4 e RIGHT3 em ODD.
func newLadderStrategy() *Strategy {
	return &Strategy{
		Family:        Ladder,
		Table:         "ladder_results",
		Columns:       ladderColumns,
		Options:       []string{"L_LEFT", "L_RIGHT", "L_3", "L_4", "L_ODD", "L_EVEN", "LEFT3EVEN", "LEFT4ODD", "RIGHT3ODD", "RIGHT4EVEN"},
		RefundCeiling: 3,
		Derive:        deriveLadder,
	}
}

func deriveLadder(row jobs.OutcomeRow) map[string]string {
	codes := placeholders(ladderColumns)
	start := strings.ToUpper(strings.TrimSpace(row.Start))
	if (start != "LEFT" && start != "RIGHT") || (row.Lines != 3 && row.Lines != 4) {
		return codes
	}

	parity := "ODD"
	if (start == "LEFT") == (row.Lines == 3) {
		parity = "EVEN"
	}
	lines := strconv.Itoa(row.Lines)

	codes["start"] = "L_" + start
	codes["lines"] = "L_" + lines
	codes["odd_even"] = "L_" + parity
	codes["combo"] = start + lines + parity
	return codes
}
