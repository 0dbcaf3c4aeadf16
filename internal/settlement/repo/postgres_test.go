package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func newRepo(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func wager(id int64, bet int64) Wager {
	return Wager{ID: id, UserID: 7, Game: "ladder_5m", RoundID: "20240310_109", BetAmount: bet, Rate: decimal.RequireFromString("1.95"), Status: StatusPending}
}

func TestPendingWagersScopedToRound(t *testing.T) {
	p, mock := newRepo(t)
	cols := []string{"id", "user_id", "game", "round_id", "selected_option", "bet_amount", "rate", "status", "win_amount", "tries"}
	mock.ExpectQuery("FROM minigame_bets").
		WithArgs("ladder_5m", "20240310_109").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 7, "ladder_5m", "20240310_109", "L_LEFT", 10000, "1.95", "pending", 0, 2))

	ws, err := p.PendingWagers(context.Background(), "ladder_5m", "20240310_109")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(ws) != 1 || ws[0].Tries != 2 || !ws[0].Rate.Equal(decimal.RequireFromString("1.95")) {
		t.Fatalf("unexpected wagers %+v", ws)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSettleUserReplaysLedgerInWagerOrder(t *testing.T) {
	p, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE minigame_bets SET status").WithArgs(int64(3), StatusWin, int64(19500)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE minigame_bets SET status").WithArgs(int64(5), StatusLose, int64(0)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE minigame_bets SET status").WithArgs(int64(9), StatusWin, int64(3900)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE users SET balance").WithArgs(int64(7), int64(23400)).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "operator_id"}).AddRow(123400, 2))
	mock.ExpectExec("UPDATE operators SET balance").WithArgs(int64(2), int64(23400)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO balance_ledger").
		WithArgs(int64(7), LedgerWin, int64(19500), int64(100000), int64(119500), int64(3)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO balance_ledger").
		WithArgs(int64(7), LedgerWin, int64(3900), int64(119500), int64(123400), int64(9)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	// fora de ordem de propósito
	got, err := p.SettleUser(context.Background(), 7, []Outcome{
		{Wager: wager(9, 2000), Status: StatusWin, WinAmount: 3900},
		{Wager: wager(3, 10000), Status: StatusWin, WinAmount: 19500},
		{Wager: wager(5, 5000), Status: StatusLose},
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got.Balance != 123400 || len(got.Settled) != 3 {
		t.Fatalf("unexpected settlement %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSettleUserSkipsAlreadySettled(t *testing.T) {
	p, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE minigame_bets SET status").WithArgs(int64(3), StatusWin, int64(19500)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	got, err := p.SettleUser(context.Background(), 7, []Outcome{{Wager: wager(3, 10000), Status: StatusWin, WinAmount: 19500}})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(got.Settled) != 0 {
		t.Fatalf("replayed wager settled again: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSettleUserMissingOperatorRollsBack(t *testing.T) {
	p, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE minigame_bets SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE users SET balance").
		WillReturnRows(sqlmock.NewRows([]string{"balance", "operator_id"}).AddRow(19500, 99))
	mock.ExpectExec("UPDATE operators SET balance").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := p.SettleUser(context.Background(), 7, []Outcome{{Wager: wager(3, 10000), Status: StatusWin, WinAmount: 19500}})
	if !errors.Is(err, ErrOperatorNotFound) {
		t.Fatalf("err = %v, want ErrOperatorNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRefundLocksUserAndWritesOneEntry(t *testing.T) {
	p, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM users WHERE id = \\$1 FOR UPDATE").WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(50000))
	mock.ExpectQuery("UPDATE minigame_bets SET status = 'refund'").WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"bet_amount"}).AddRow(10000))
	mock.ExpectQuery("UPDATE users SET balance").WithArgs(int64(7), int64(10000)).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "operator_id"}).AddRow(60000, 2))
	mock.ExpectExec("UPDATE operators SET balance").WithArgs(int64(2), int64(10000)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO balance_ledger").
		WithArgs(int64(7), LedgerRefund, int64(10000), int64(50000), int64(60000), int64(3)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	bal, refunded, err := p.Refund(context.Background(), wager(3, 10000))
	if err != nil || !refunded || bal != 60000 {
		t.Fatalf("refund = %d, %v, %v", bal, refunded, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRefundAlreadySettledIsNoop(t *testing.T) {
	p, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(50000))
	mock.ExpectQuery("UPDATE minigame_bets SET status = 'refund'").
		WillReturnRows(sqlmock.NewRows([]string{"bet_amount"}))
	mock.ExpectRollback()

	_, refunded, err := p.Refund(context.Background(), wager(3, 10000))
	if err != nil || refunded {
		t.Fatalf("refund = %v, %v; want no-op", refunded, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
