package roundclock

import (
	"errors"
	"fmt"
	"time"
)

// GameConfig descreve o calendário de rodadas de um jogo. Estático, carregado na inicialização.
type GameConfig struct {
	IntervalMinutes int
	RoundsPerDay    int
	Continuous      bool

	// jogos com âncora diária
	BaseHour   int
	BaseMinute int
	BaseSecond int

	// jogos contínuos
	Anchor             time.Time     // zero: 2020-01-01 00:00 no fuso do relógio
	ResultLatency      time.Duration // atraso típico entre o fim da rodada e o resultado
	ResultPublishDelay time.Duration // espera fixa para publicar o resultado quando ele ainda não é válido
}

func (c GameConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// CycleLength é a duração de uma volta completa de numeração
func (c GameConfig) CycleLength() time.Duration {
	return time.Duration(c.RoundsPerDay) * c.Interval()
}

// Validate garante que as contas do relógio fecham para a configuração
func (c GameConfig) Validate() error {
	if c.IntervalMinutes <= 0 {
		return errors.New("interval must be positive")
	}
	if c.RoundsPerDay <= 0 || c.RoundsPerDay > 999 {
		return fmt.Errorf("rounds per day %d out of range", c.RoundsPerDay)
	}
	if c.Continuous {
		return nil
	}
	if c.CycleLength() != 24*time.Hour {
		return fmt.Errorf("day-anchored game must cover 24h, got %s", c.CycleLength())
	}
	if c.BaseHour < 0 || c.BaseHour > 23 || c.BaseMinute < 0 || c.BaseMinute > 59 || c.BaseSecond < 0 || c.BaseSecond > 59 {
		return fmt.Errorf("invalid base time %02d:%02d:%02d", c.BaseHour, c.BaseMinute, c.BaseSecond)
	}
	return nil
}
