package bettingconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Settings é a configuração de apostas de um jogo, editada pelo admin em minigame_settings
type Settings struct {
	Game         string             `json:"game"`
	MinBet       int64              `json:"minBet"`
	MaxBet       int64              `json:"maxBet"`
	MaxPayout    int64              `json:"maxPayout"`
	BlockSeconds int                `json:"blockSeconds"`
	Enabled      bool               `json:"enabled"`
	Rates        map[string]float64 `json:"rates,omitempty"` // opção -> taxa
}

// Defaults usados quando o jogo ainda não tem linha em minigame_settings
func Defaults(game string) Settings {
	return Settings{
		Game:         game,
		MinBet:       1000,
		MaxBet:       1_000_000,
		MaxPayout:    5_000_000,
		BlockSeconds: 10,
		Enabled:      true,
	}
}

// Store lê a configuração do Postgres com cache Redis (somente leitura)
type Store struct {
	db  *sql.DB
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewStore(db *sql.DB, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Store {
	return &Store{db: db, rdb: rdb, ttl: ttl, log: log}
}

func key(game string) string { return "minigame:settings:" + game }

// Get devolve a configuração do jogo, preferencialmente do cache.
// Falha de cache não bloqueia a leitura do banco.
func (s *Store) Get(ctx context.Context, game string) (Settings, error) {
	if st, ok := s.fromCache(ctx, game); ok {
		return st, nil
	}

	st, err := s.load(ctx, game)
	if err != nil {
		return Settings{}, err
	}

	if b, err := json.Marshal(st); err == nil {
		if err := s.rdb.Set(ctx, key(game), b, s.ttl).Err(); err != nil {
			s.log.Warn("settings cache set failed", zap.String("game", game), zap.Error(err))
		}
	}
	return st, nil
}

func (s *Store) fromCache(ctx context.Context, game string) (Settings, bool) {
	b, err := s.rdb.Get(ctx, key(game)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("settings cache get failed", zap.String("game", game), zap.Error(err))
		}
		return Settings{}, false
	}
	var st Settings
	if err := json.Unmarshal(b, &st); err != nil {
		return Settings{}, false
	}
	return st, true
}

func (s *Store) load(ctx context.Context, game string) (Settings, error) {
	st := Settings{Game: game}
	var rates []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT min_bet, max_bet, max_payout, block_seconds, enabled, rates
		FROM minigame_settings
		WHERE game = $1`, game).
		Scan(&st.MinBet, &st.MaxBet, &st.MaxPayout, &st.BlockSeconds, &st.Enabled, &rates)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(game), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings %s: %w", game, err)
	}
	if len(rates) > 0 {
		if err := json.Unmarshal(rates, &st.Rates); err != nil {
			return Settings{}, fmt.Errorf("decode rates %s: %w", game, err)
		}
	}
	return st, nil
}
