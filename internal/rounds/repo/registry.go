package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Registry persiste o ciclo de vida das rodadas em game_rounds.
// Uma linha por (game, round_id); criação idempotente, timing só melhora para uma estimativa mais cedo.
type Registry struct{ db *sql.DB }

func NewRegistry(db *sql.DB) *Registry { return &Registry{db: db} }

// Find busca a rodada; found=false quando não existe
func (r *Registry) Find(ctx context.Context, game, roundID string) (Entry, bool, error) {
	var e Entry
	err := r.db.QueryRowContext(ctx, `
		SELECT game, round_id, round_number, start_at, end_at, status
		FROM game_rounds
		WHERE game = $1 AND round_id = $2`, game, roundID).
		Scan(&e.Game, &e.RoundID, &e.RoundNumber, &e.Start, &e.End, &e.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("find round %s/%s: %w", game, roundID, err)
	}
	return e, true, nil
}

// Create insere a rodada se ainda não existir.
// Corridas entre workers caem no ON CONFLICT e retornam created=false, sem erro.
func (r *Registry) Create(ctx context.Context, e Entry) (bool, error) {
	status := e.Status
	if status == "" {
		status = StatusActive
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO game_rounds (game, round_id, round_number, start_at, end_at, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (game, round_id) DO NOTHING`,
		e.Game, e.RoundID, e.RoundNumber, e.Start, e.End, status,
	)
	if err != nil {
		return false, fmt.Errorf("create round %s/%s: %w", e.Game, e.RoundID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateTiming corrige start/end apenas quando não há start gravado ou o novo start é mais cedo,
// e nunca depois que a janela gravada terminou
func (r *Registry) UpdateTiming(ctx context.Context, game, roundID string, start, end, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE game_rounds
		SET start_at = $3, end_at = $4, updated_at = NOW()
		WHERE game = $1 AND round_id = $2
		  AND end_at > $5
		  AND (start_at IS NULL OR $3 <= start_at)`,
		game, roundID, start, end, now,
	)
	return affected(res, err, "update timing", game, roundID)
}

// ForceTiming sobrescreve start/end ignorando a regra monotônica (janela ainda aberta)
func (r *Registry) ForceTiming(ctx context.Context, game, roundID string, start, end, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE game_rounds
		SET start_at = $3, end_at = $4, updated_at = NOW()
		WHERE game = $1 AND round_id = $2
		  AND end_at > $5`,
		game, roundID, start, end, now,
	)
	return affected(res, err, "force timing", game, roundID)
}

// Recycle reabre uma entrada encerrada cujo round_id voltou a ser usado pelo ciclo seguinte
// (jogos contínuos: o ciclo é menor que um dia). Só toca linhas cuja janela já terminou.
func (r *Registry) Recycle(ctx context.Context, e Entry, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE game_rounds
		SET round_number = $3, start_at = $4, end_at = $5, status = $6, updated_at = NOW()
		WHERE game = $1 AND round_id = $2
		  AND end_at <= $7`,
		e.Game, e.RoundID, e.RoundNumber, e.Start, e.End, StatusActive, now,
	)
	return affected(res, err, "recycle", e.Game, e.RoundID)
}

// MarkFinished marca a rodada como finalizada quando um resultado válido chega
func (r *Registry) MarkFinished(ctx context.Context, game, roundID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE game_rounds SET status = 'finished', updated_at = NOW()
		WHERE game = $1 AND round_id = $2 AND status <> 'finished'`, game, roundID)
	if err != nil {
		return fmt.Errorf("mark finished %s/%s: %w", game, roundID, err)
	}
	return nil
}

// Recent lista as rodadas mais recentes do jogo
func (r *Registry) Recent(ctx context.Context, game string, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT game, round_id, round_number, start_at, end_at, status
		FROM game_rounds
		WHERE game = $1
		ORDER BY start_at DESC
		LIMIT $2`, game, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Game, &e.RoundID, &e.RoundNumber, &e.Start, &e.End, &e.Status); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func affected(res sql.Result, err error, op, game, roundID string) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("%s %s/%s: %w", op, game, roundID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
