package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streampay/streampay/internal/domain/amount"
	"github.com/streampay/streampay/internal/domain/ledger"
)

// AccountLedger implements ledger.Ledger over an accounts table. Each debit
// or credit runs in its own transaction with the account row locked, so
// concurrent stream operations cannot lose an update.
type AccountLedger struct {
	pool *pgxpool.Pool
}

func NewAccountLedger(pool *pgxpool.Pool) *AccountLedger {
	return &AccountLedger{pool: pool}
}

func (l *AccountLedger) Debit(ctx context.Context, account string, amt amount.Amount) error {
	return l.adjust(ctx, account, amt, false)
}

func (l *AccountLedger) Credit(ctx context.Context, account string, amt amount.Amount) error {
	return l.adjust(ctx, account, amt, true)
}

// Balance reads an account's current balance; unknown accounts hold zero.
func (l *AccountLedger) Balance(ctx context.Context, account string) (amount.Amount, error) {
	var raw string
	err := l.pool.QueryRow(ctx, `SELECT balance FROM accounts WHERE account=$1`, account).Scan(&raw)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	return decodeAmount(raw)
}

// Deposit funds an account outside the streaming flow.
func (l *AccountLedger) Deposit(ctx context.Context, account string, amt amount.Amount) error {
	return l.Credit(ctx, account, amt)
}

func (l *AccountLedger) adjust(ctx context.Context, account string, amt amount.Amount, credit bool) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var raw string
	err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE account=$1 FOR UPDATE`, account).Scan(&raw)
	var balance amount.Amount
	switch {
	case err == pgx.ErrNoRows:
		if _, err := tx.Exec(ctx, `INSERT INTO accounts (account, balance) VALUES ($1, '0')`, account); err != nil {
			return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
		}
	case err != nil:
		return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	default:
		if balance, err = decodeAmount(raw); err != nil {
			return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
		}
	}

	var next amount.Amount
	if credit {
		if next, err = balance.Add(amt); err != nil {
			return err
		}
	} else {
		if next, err = balance.Sub(amt); err != nil {
			return fmt.Errorf("%w: account %s holds %s, needs %s", ledger.ErrInsufficientFunds, account, balance, amt)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance=$2 WHERE account=$1`, account, encodeAmount(next)); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	return nil
}
