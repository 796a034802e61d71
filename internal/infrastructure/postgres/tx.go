package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streampay/streampay/internal/domain/event"
	"github.com/streampay/streampay/internal/domain/stream"
)

// TxRunner runs a stream mutation and its event append in one database
// transaction, so the live entity and the log cannot diverge.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) RunInTx(ctx context.Context, fn func(streams stream.Repository, events event.Repository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", stream.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(newTxStreamRepository(tx), newTxEventRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", stream.ErrStorageUnavailable, err)
	}
	return nil
}
