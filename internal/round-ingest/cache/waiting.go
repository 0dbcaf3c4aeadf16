package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// casScript grava ARGV[3] com TTL ARGV[4] se o valor atual bater com o observado.
// ARGV[1] == "1" indica que a chave existia com valor ARGV[2]; "0" exige chave ausente.
var casScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if ARGV[1] == "1" then
	if cur ~= ARGV[2] then return 0 end
else
	if cur then return 0 end
end
redis.call("SET", KEYS[1], ARGV[3], "EX", ARGV[4])
return 1
`)

// WaitingRounds guarda, por jogo, o próximo número de rodada que o ingestor espera
type WaitingRounds struct {
	r   *redis.Client
	ttl time.Duration
}

func NewWaitingRounds(r *redis.Client, ttl time.Duration) *WaitingRounds {
	if ttl <= 0 {
		ttl = 120 * time.Second
	}
	return &WaitingRounds{r: r, ttl: ttl}
}

func key(game string) string { return "minigame:waiting:" + game }

// Get devolve o valor atual; ok=false quando a chave não existe (ou expirou)
func (w *WaitingRounds) Get(ctx context.Context, game string) (int, bool, error) {
	v, err := w.r.Get(ctx, key(game)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get waiting round %s: %w", game, err)
	}
	return v, true, nil
}

// CompareAndSet troca old por next atomicamente. Devolve false se outro worker mexeu antes.
func (w *WaitingRounds) CompareAndSet(ctx context.Context, game string, old int, oldPresent bool, next int) (bool, error) {
	present := "0"
	if oldPresent {
		present = "1"
	}
	ttl := int64(w.ttl / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	res, err := casScript.Run(ctx, w.r, []string{key(game)},
		present, strconv.Itoa(old), strconv.Itoa(next), ttl).Int()
	if err != nil {
		return false, fmt.Errorf("cas waiting round %s: %w", game, err)
	}
	return res == 1, nil
}
