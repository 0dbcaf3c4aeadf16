package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/minigame-settlement/internal/games"
)

// Results persiste os códigos derivados em uma tabela por família (powerball_results, ladder_results, ...).
// Tabela e colunas vêm da estratégia da família, nunca da entrada.
type Results struct {
	db      *sql.DB
	catalog *games.Catalog
}

func NewResults(db *sql.DB, catalog *games.Catalog) *Results {
	return &Results{db: db, catalog: catalog}
}

func (r *Results) strategy(game string) (*games.Strategy, error) {
	g, ok := r.catalog.Game(game)
	if !ok {
		return nil, fmt.Errorf("unknown game %q", game)
	}
	return r.catalog.StrategyFor(g), nil
}

// UpsertBatch insere ou atualiza os resultados de um jogo em uma única transação.
// ON CONFLICT (game, round_id) garante uma linha por rodada mesmo com lotes repetidos.
func (r *Results) UpsertBatch(ctx context.Context, game string, results []Result) error {
	if len(results) == 0 {
		return nil
	}
	s, err := r.strategy(game)
	if err != nil {
		return err
	}
	q := upsertQuery(s)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, res := range results {
		args := make([]any, 0, 4+len(s.Columns))
		args = append(args, game, res.RoundID, res.RoundNumber, nullTime(res.ResultTime))
		for _, col := range s.Columns {
			args = append(args, res.Codes[col])
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("upsert result %s/%s: %w", game, res.RoundID, err)
		}
	}
	return tx.Commit()
}

// Discard apaga o resultado de uma rodada cujo round_id foi reaproveitado
func (r *Results) Discard(ctx context.Context, game, roundID string) error {
	s, err := r.strategy(game)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE game = $1 AND round_id = $2`, pq.QuoteIdentifier(s.Table))
	if _, err := r.db.ExecContext(ctx, q, game, roundID); err != nil {
		return fmt.Errorf("discard result %s/%s: %w", game, roundID, err)
	}
	return nil
}

// Get busca o resultado de uma rodada; found=false quando ainda não existe
func (r *Results) Get(ctx context.Context, game, roundID string) (Result, bool, error) {
	s, err := r.strategy(game)
	if err != nil {
		return Result{}, false, err
	}
	q := fmt.Sprintf(`SELECT round_id, round_number, result_time, %s FROM %s WHERE game = $1 AND round_id = $2`,
		columnList(s.Columns), pq.QuoteIdentifier(s.Table))

	res, err := scanResult(r.db.QueryRowContext(ctx, q, game, roundID), s, game)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("get result %s/%s: %w", game, roundID, err)
	}
	return res, true, nil
}

// Recent lista os resultados mais recentes do jogo
func (r *Results) Recent(ctx context.Context, game string, limit int) ([]Result, error) {
	s, err := r.strategy(game)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT round_id, round_number, result_time, %s FROM %s WHERE game = $1 ORDER BY round_id DESC LIMIT $2`,
		columnList(s.Columns), pq.QuoteIdentifier(s.Table))

	rows, err := r.db.QueryContext(ctx, q, game, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		res, err := scanResult(rows, s, game)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner, s *games.Strategy, game string) (Result, error) {
	var (
		res Result
		rt  sql.NullTime
	)
	vals := make([]sql.NullString, len(s.Columns))
	dest := []any{&res.RoundID, &res.RoundNumber, &rt}
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := sc.Scan(dest...); err != nil {
		return Result{}, err
	}

	res.Game = game
	if rt.Valid {
		res.ResultTime = rt.Time
	}
	res.Codes = make(map[string]string, len(s.Columns))
	for i, col := range s.Columns {
		res.Codes[col] = vals[i].String
	}
	return res, nil
}

func upsertQuery(s *games.Strategy) string {
	cols := columnList(s.Columns)
	placeholders := make([]string, 0, len(s.Columns))
	sets := make([]string, 0, len(s.Columns))
	for i, c := range s.Columns {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+5))
		qc := pq.QuoteIdentifier(c)
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", qc, qc))
	}
	return fmt.Sprintf(`
		INSERT INTO %s (game, round_id, round_number, result_time, %s)
		VALUES ($1,$2,$3,$4,%s)
		ON CONFLICT (game, round_id) DO UPDATE SET
		  round_number = EXCLUDED.round_number,
		  result_time  = EXCLUDED.result_time,
		  %s,
		  updated_at   = NOW()`,
		pq.QuoteIdentifier(s.Table), cols, strings.Join(placeholders, ","), strings.Join(sets, ",\n\t\t  "))
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
