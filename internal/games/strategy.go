package games

import (
	"fmt"

	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

type Family string

const (
	Powerball   Family = "powerball"
	Ladder      Family = "ladder"
	Holdem      Family = "holdem"
	RunningBall Family = "runningball"
	Space       Family = "space"
)

// Placeholder marca um código que o fornecedor ainda não preencheu
const Placeholder = "-"

// Strategy concentra tudo que varia por família de jogo: tabela de resultados, derivação dos
// códigos a partir da linha bruta, validade e regra de acerto.
type Strategy struct {
	Family  Family
	Table   string   // tabela de resultados da família
	Columns []string // colunas de código, na ordem da tabela
	Options []string // códigos apostáveis

	// RefundCeiling é o número de tentativas sem resultado antes do estorno
	RefundCeiling int

	Derive func(row jobs.OutcomeRow) map[string]string
}

// Valid: todos os códigos obrigatórios presentes e diferentes de placeholder
func (s *Strategy) Valid(codes map[string]string) bool {
	if len(codes) == 0 {
		return false
	}
	for _, col := range s.Columns {
		if isPlaceholder(codes[col]) {
			return false
		}
	}
	return true
}

// Win verifica por pertinência exata se a opção escolhida está entre os códigos do resultado
func (s *Strategy) Win(option string, codes map[string]string) bool {
	if isPlaceholder(option) {
		return false
	}
	for _, col := range s.Columns {
		if codes[col] == option {
			return true
		}
	}
	return false
}

// Offers indica se a família aceita a opção
func (s *Strategy) Offers(option string) bool {
	for _, o := range s.Options {
		if o == option {
			return true
		}
	}
	return false
}

func isPlaceholder(v string) bool {
	switch v {
	case "", Placeholder, "0", "null":
		return true
	}
	return false
}

// placeholders devolve um mapa com todas as colunas em placeholder
func placeholders(cols []string) map[string]string {
	out := make(map[string]string, len(cols))
	for _, c := range cols {
		out[c] = Placeholder
	}
	return out
}

func oddEven(prefix string, n int) string {
	if n%2 == 0 {
		return prefix + "_EVEN"
	}
	return prefix + "_ODD"
}

func underOver(prefix string, n, underMax int) string {
	if n <= underMax {
		return prefix + "_UNDER"
	}
	return prefix + "_OVER"
}

// combo junta paridade e faixa: P_ODD + P_UNDER -> P_ODD_UNDER
func combo(prefix, parity, band string) string {
	return prefix + parity[len(prefix):] + band[len(prefix):]
}

func valueCode(prefix string, n int) string { return fmt.Sprintf("%s_%d", prefix, n) }

func inRange(n, lo, hi int) bool { return n >= lo && n <= hi }

// comboOptions lista as quatro combinações paridade x faixa
func comboOptions(prefix string) []string {
	return []string{prefix + "_ODD_UNDER", prefix + "_ODD_OVER", prefix + "_EVEN_UNDER", prefix + "_EVEN_OVER"}
}
