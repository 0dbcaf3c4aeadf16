package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrOperatorNotFound = errors.New("operator not found")
)

// Postgres implementa apostas, saldos e ledger da liquidação.
// Saldos só mudam por incremento no servidor dentro de uma transação por usuário.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// PendingWagers lista as apostas pendentes do jogo. roundID vazio traz todas as rodadas.
func (p *Postgres) PendingWagers(ctx context.Context, game, roundID string) ([]Wager, error) {
	q := `
		SELECT id, user_id, game, round_id, selected_option, bet_amount, rate, status, win_amount, tries
		FROM minigame_bets
		WHERE game = $1 AND status = 'pending'`
	args := []any{game}
	if roundID != "" {
		q += ` AND round_id = $2`
		args = append(args, roundID)
	}
	q += ` ORDER BY id`

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pending wagers %s: %w", game, err)
	}
	defer rows.Close()

	var out []Wager
	for rows.Next() {
		var w Wager
		if err := rows.Scan(&w.ID, &w.UserID, &w.Game, &w.RoundID, &w.SelectedOption,
			&w.BetAmount, &w.Rate, &w.Status, &w.WinAmount, &w.Tries); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// IncrementTries soma uma tentativa à aposta ainda pendente.
// ok=false quando a aposta já saiu de pending.
func (p *Postgres) IncrementTries(ctx context.Context, wagerID int64) (int, bool, error) {
	var tries int
	err := p.db.QueryRowContext(ctx, `
		UPDATE minigame_bets SET tries = tries + 1
		WHERE id = $1 AND status = 'pending'
		RETURNING tries`, wagerID).Scan(&tries)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment tries %d: %w", wagerID, err)
	}
	return tries, true, nil
}

// SettleUser aplica os vereditos de um usuário em uma única transação:
// status protegido por status='pending', incremento atômico de usuário e operador,
// uma entrada de ledger por aposta vencedora em ordem crescente de id.
func (p *Postgres) SettleUser(ctx context.Context, userID int64, outcomes []Outcome) (UserSettlement, error) {
	out := UserSettlement{UserID: userID}

	sorted := append([]Outcome(nil), outcomes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Wager.ID < sorted[j].Wager.ID })

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return out, err
	}
	defer tx.Rollback()

	var total int64
	for _, o := range sorted {
		res, err := tx.ExecContext(ctx, `
			UPDATE minigame_bets SET status = $2, win_amount = $3, settled_at = now()
			WHERE id = $1 AND status = 'pending'`, o.Wager.ID, o.Status, o.WinAmount)
		if err != nil {
			return out, fmt.Errorf("update wager %d: %w", o.Wager.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return out, err
		}
		if n == 0 {
			continue // já liquidada por outro job
		}
		out.Settled = append(out.Settled, o)
		total += o.WinAmount
	}
	if len(out.Settled) == 0 {
		return out, nil
	}

	if total == 0 {
		if err := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = $1`, userID).Scan(&out.Balance); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return out, ErrUserNotFound
			}
			return out, err
		}
		return out, tx.Commit()
	}

	after, err := credit(ctx, tx, userID, total)
	if err != nil {
		return out, err
	}

	// replay do saldo a partir do valor imediatamente anterior ao incremento
	running := after - total
	for _, o := range out.Settled {
		if o.WinAmount == 0 {
			continue
		}
		if err := appendLedger(ctx, tx, userID, LedgerWin, o.WinAmount, running, o.Wager.ID); err != nil {
			return out, err
		}
		running += o.WinAmount
	}

	if err := tx.Commit(); err != nil {
		return out, err
	}
	out.Balance = after
	return out, nil
}

// Refund devolve o valor apostado com lock pessimista no usuário.
// refunded=false quando a aposta já não estava pendente.
func (p *Postgres) Refund(ctx context.Context, w Wager) (balance int64, refunded bool, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	if err = tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, w.UserID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, ErrUserNotFound
		}
		return 0, false, err
	}

	var amount int64
	err = tx.QueryRowContext(ctx, `
		UPDATE minigame_bets SET status = 'refund', win_amount = bet_amount, settled_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING bet_amount`, w.ID).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return balance, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("refund wager %d: %w", w.ID, err)
	}

	after, err := credit(ctx, tx, w.UserID, amount)
	if err != nil {
		return 0, false, err
	}
	if err = appendLedger(ctx, tx, w.UserID, LedgerRefund, amount, after-amount, w.ID); err != nil {
		return 0, false, err
	}

	if err = tx.Commit(); err != nil {
		return 0, false, err
	}
	return after, true, nil
}

// credit incrementa usuário e operador dentro da transação e devolve o saldo do usuário
func credit(ctx context.Context, tx *sql.Tx, userID, amount int64) (int64, error) {
	var (
		after      int64
		operatorID int64
	)
	err := tx.QueryRowContext(ctx, `
		UPDATE users SET balance = balance + $2
		WHERE id = $1
		RETURNING balance, operator_id`, userID, amount).Scan(&after, &operatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit user %d: %w", userID, err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE operators SET balance = balance + $2 WHERE id = $1`, operatorID, amount)
	if err != nil {
		return 0, fmt.Errorf("credit operator %d: %w", operatorID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("operator %d: %w", operatorID, ErrOperatorNotFound)
	}
	return after, nil
}

func appendLedger(ctx context.Context, tx *sql.Tx, userID int64, kind string, amount, before, wagerID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO balance_ledger (user_id, type, amount, balance_before, balance_after, wager_ref)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		userID, kind, amount, before, before+amount, wagerID)
	if err != nil {
		return fmt.Errorf("ledger %s wager %d: %w", kind, wagerID, err)
	}
	return nil
}
