package games

import "github.com/radieske/minigame-settlement/pkg/contracts/jobs"

var spaceColumns = []string{"number", "odd_even", "under_over", "combo"}

// Space: um número de 1 a 8; under <= 4
func newSpaceStrategy() *Strategy {
	opts := []string{"SP_ODD", "SP_EVEN", "SP_UNDER", "SP_OVER"}
	opts = append(opts, comboOptions("SP")...)
	for n := 1; n <= 8; n++ {
		opts = append(opts, valueCode("SP", n))
	}
	return &Strategy{
		Family:        Space,
		Table:         "space_results",
		Columns:       spaceColumns,
		Options:       opts,
		RefundCeiling: 30,
		Derive:        deriveSpace,
	}
}

func deriveSpace(row jobs.OutcomeRow) map[string]string {
	codes := placeholders(spaceColumns)
	if len(row.Numbers) != 1 || !inRange(row.Numbers[0], 1, 8) {
		return codes
	}
	n := row.Numbers[0]

	codes["number"] = valueCode("SP", n)
	codes["odd_even"] = oddEven("SP", n)
	codes["under_over"] = underOver("SP", n, 4)
	codes["combo"] = combo("SP", codes["odd_even"], codes["under_over"])
	return codes
}
