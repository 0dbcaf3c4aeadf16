package bettingconfig

import (
	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/pkg/contracts/events"
)

// BettingParams monta o bloco bettingOptions do evento round:new.
// Opções sem taxa configurada usam a taxa padrão do jogo; taxa <= 0 fecha a opção.
func BettingParams(g games.Game, s *games.Strategy, st Settings) events.BettingParams {
	out := events.BettingParams{
		MinBet:       st.MinBet,
		MaxBet:       st.MaxBet,
		MaxPayout:    st.MaxPayout,
		BlockSeconds: st.BlockSeconds,
		Options:      make([]events.BettingOption, 0, len(s.Options)),
	}
	if !st.Enabled {
		return out
	}
	for _, code := range s.Options {
		rate, ok := st.Rates[code]
		if !ok {
			rate = g.DefaultRate
		}
		if rate <= 0 {
			continue
		}
		out.Options = append(out.Options, events.BettingOption{Code: code, Rate: rate})
	}
	return out
}
