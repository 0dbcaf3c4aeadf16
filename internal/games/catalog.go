package games

import (
	"fmt"
	"sort"
	"time"

	"github.com/radieske/minigame-settlement/internal/roundclock"
)

// Game liga a chave interna do jogo à chave do fornecedor, à família e ao calendário
type Game struct {
	Key         string
	ProviderKey string
	Family      Family
	Config      roundclock.GameConfig
	DefaultRate float64 // taxa usada quando a configuração em runtime não define uma por opção
}

// Catalog é o mapa de estratégias resolvido uma única vez na inicialização
type Catalog struct {
	games      map[string]Game
	byProvider map[string]string
	strategies map[Family]*Strategy
}

// NewCatalog valida as configurações e monta os índices
func NewCatalog(list []Game) (*Catalog, error) {
	c := &Catalog{
		games:      make(map[string]Game, len(list)),
		byProvider: make(map[string]string, len(list)),
		strategies: map[Family]*Strategy{
			Powerball:   newPowerballStrategy(),
			Ladder:      newLadderStrategy(),
			Holdem:      newHoldemStrategy(),
			RunningBall: newRunningBallStrategy(),
			Space:       newSpaceStrategy(),
		},
	}
	for _, g := range list {
		if _, dup := c.games[g.Key]; dup {
			return nil, fmt.Errorf("duplicate game %q", g.Key)
		}
		if _, ok := c.strategies[g.Family]; !ok {
			return nil, fmt.Errorf("game %q: unknown family %q", g.Key, g.Family)
		}
		if err := g.Config.Validate(); err != nil {
			return nil, fmt.Errorf("game %q: %w", g.Key, err)
		}
		if g.ProviderKey != "" {
			if other, dup := c.byProvider[g.ProviderKey]; dup {
				return nil, fmt.Errorf("provider key %q used by %q and %q", g.ProviderKey, other, g.Key)
			}
			c.byProvider[g.ProviderKey] = g.Key
		}
		c.games[g.Key] = g
	}
	return c, nil
}

// Default devolve o catálogo de produção
func Default() *Catalog {
	c, err := NewCatalog(defaultGames)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Game(key string) (Game, bool) {
	g, ok := c.games[key]
	return g, ok
}

// ByProvider resolve a chave do fornecedor recebida no job de ingestão
func (c *Catalog) ByProvider(providerKey string) (Game, bool) {
	key, ok := c.byProvider[providerKey]
	if !ok {
		return c.Game(providerKey)
	}
	return c.Game(key)
}

func (c *Catalog) Strategy(f Family) *Strategy { return c.strategies[f] }

// StrategyFor devolve a estratégia da família do jogo
func (c *Catalog) StrategyFor(g Game) *Strategy { return c.strategies[g.Family] }

// All lista os jogos ordenados pela chave
func (c *Catalog) All() []Game {
	out := make([]Game, 0, len(c.games))
	for _, g := range c.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Families lista as estratégias registradas
func (c *Catalog) Families() []*Strategy {
	out := make([]*Strategy, 0, len(c.strategies))
	for _, s := range c.strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Family < out[j].Family })
	return out
}

func scheduled(interval, rounds, h, m int) roundclock.GameConfig {
	return roundclock.GameConfig{IntervalMinutes: interval, RoundsPerDay: rounds, BaseHour: h, BaseMinute: m}
}

func continuous(interval, rounds int, latency, publishDelay time.Duration) roundclock.GameConfig {
	return roundclock.GameConfig{
		IntervalMinutes:    interval,
		RoundsPerDay:       rounds,
		Continuous:         true,
		ResultLatency:      latency,
		ResultPublishDelay: publishDelay,
	}
}

var defaultGames = []Game{
	{Key: "powerball_5m", ProviderKey: "pbg_powerball5", Family: Powerball, Config: scheduled(5, 288, 0, 0), DefaultRate: 1.95},
	{Key: "powerball_3m", ProviderKey: "pbg_powerball3", Family: Powerball, Config: scheduled(3, 480, 0, 0), DefaultRate: 1.95},
	{Key: "coin_powerball_5m", ProviderKey: "coin_powerball5", Family: Powerball, Config: scheduled(5, 288, 23, 57), DefaultRate: 1.95},
	{Key: "ladder_5m", ProviderKey: "named_ladder5", Family: Ladder, Config: scheduled(5, 288, 0, 0), DefaultRate: 1.95},
	{Key: "ladder_3m", ProviderKey: "named_ladder3", Family: Ladder, Config: scheduled(3, 480, 0, 0), DefaultRate: 1.95},
	{Key: "holdem_2m", ProviderKey: "holdem_2", Family: Holdem, Config: scheduled(2, 720, 0, 0), DefaultRate: 1.95},
	{Key: "rball_3m", ProviderKey: "rball", Family: RunningBall, Config: continuous(3, 440, 2*time.Minute, 30*time.Second), DefaultRate: 1.95},
	{Key: "runningball_5m", ProviderKey: "runningball5", Family: RunningBall, Config: continuous(5, 264, 2*time.Minute, 30*time.Second), DefaultRate: 1.95},
	{Key: "space_2m", ProviderKey: "space8", Family: Space, Config: continuous(2, 660, time.Minute, 20*time.Second), DefaultRate: 1.95},
}
