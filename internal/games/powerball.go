package games

import "github.com/radieske/minigame-settlement/pkg/contracts/jobs"

var powerballColumns = []string{
	"pb_number", "pb_odd_even", "pb_under_over", "pb_combo",
	"sum_odd_even", "sum_under_over", "sum_size", "sum_combo",
}

// Powerball: 5 bolas normais (1..28) e uma powerball (0..9).
// Powerball under 0..4, over 5..9. Soma under <= 72, over >= 73.
// Faixa da soma: small 15..64, medium 65..80, large 81..130.
func newPowerballStrategy() *Strategy {
	opts := []string{"P_ODD", "P_EVEN", "P_UNDER", "P_OVER", "N_ODD", "N_EVEN", "N_UNDER", "N_OVER", "N_SMALL", "N_MEDIUM", "N_LARGE"}
	opts = append(opts, comboOptions("P")...)
	opts = append(opts, comboOptions("N")...)
	for n := 0; n <= 9; n++ {
		opts = append(opts, valueCode("P", n))
	}

	return &Strategy{
		Family:        Powerball,
		Table:         "powerball_results",
		Columns:       powerballColumns,
		Options:       opts,
		RefundCeiling: 3,
		Derive:        derivePowerball,
	}
}

func derivePowerball(row jobs.OutcomeRow) map[string]string {
	codes := placeholders(powerballColumns)
	if row.Powerball == nil || len(row.Numbers) != 5 {
		return codes
	}
	pb := *row.Powerball
	if !inRange(pb, 0, 9) {
		return codes
	}
	sum := 0
	for _, n := range row.Numbers {
		if !inRange(n, 1, 28) {
			return codes
		}
		sum += n
	}

	codes["pb_number"] = valueCode("P", pb)
	codes["pb_odd_even"] = oddEven("P", pb)
	codes["pb_under_over"] = underOver("P", pb, 4)
	codes["pb_combo"] = combo("P", codes["pb_odd_even"], codes["pb_under_over"])

	codes["sum_odd_even"] = oddEven("N", sum)
	codes["sum_under_over"] = underOver("N", sum, 72)
	codes["sum_size"] = sumSize(sum)
	codes["sum_combo"] = combo("N", codes["sum_odd_even"], codes["sum_under_over"])
	return codes
}

func sumSize(sum int) string {
	switch {
	case sum <= 64:
		return "N_SMALL"
	case sum <= 80:
		return "N_MEDIUM"
	default:
		return "N_LARGE"
	}
}
