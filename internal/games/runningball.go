package games

import "github.com/radieske/minigame-settlement/pkg/contracts/jobs"

var runningBallColumns = []string{
	"first_number", "first_odd_even", "first_under_over",
	"sum_odd_even", "sum_under_over", "sum_combo",
}

// Running ball: 3 bolas (1..10). Primeira bola under <= 5; soma under <= 16.
func newRunningBallStrategy() *Strategy {
	opts := []string{"F_ODD", "F_EVEN", "F_UNDER", "F_OVER", "S_ODD", "S_EVEN", "S_UNDER", "S_OVER"}
	opts = append(opts, comboOptions("S")...)
	for n := 1; n <= 10; n++ {
		opts = append(opts, valueCode("F", n))
	}
	return &Strategy{
		Family:        RunningBall,
		Table:         "runningball_results",
		Columns:       runningBallColumns,
		Options:       opts,
		RefundCeiling: 30, // resultado chega com latência maior
		Derive:        deriveRunningBall,
	}
}

func deriveRunningBall(row jobs.OutcomeRow) map[string]string {
	codes := placeholders(runningBallColumns)
	if len(row.Numbers) != 3 {
		return codes
	}
	sum := 0
	for _, n := range row.Numbers {
		if !inRange(n, 1, 10) {
			return codes
		}
		sum += n
	}
	first := row.Numbers[0]

	codes["first_number"] = valueCode("F", first)
	codes["first_odd_even"] = oddEven("F", first)
	codes["first_under_over"] = underOver("F", first, 5)
	codes["sum_odd_even"] = oddEven("S", sum)
	codes["sum_under_over"] = underOver("S", sum, 16)
	codes["sum_combo"] = combo("S", codes["sum_odd_even"], codes["sum_under_over"])
	return codes
}
