package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildflow/buildflow/pkg/composables"
)

// PgxUnitOfWork scopes repository calls to one Postgres transaction carried
// in the context. Savepoints map to pgx nested transactions, so a failed
// statement only discards the work done inside that savepoint.
type PgxUnitOfWork struct {
	pool *pgxpool.Pool
}

func NewUnitOfWork(pool *pgxpool.Pool) *PgxUnitOfWork {
	return &PgxUnitOfWork{pool: pool}
}

func (u *PgxUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	pool := u.pool
	if pool == nil {
		var err error
		if pool, err = composables.UsePool(ctx); err != nil {
			return ctx, err
		}
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return ctx, err
	}
	return composables.WithTx(ctx, tx), nil
}

func (u *PgxUnitOfWork) Commit(ctx context.Context) error {
	tx, err := composables.UsePgxTx(ctx)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Rollback is safe to call after Commit.
func (u *PgxUnitOfWork) Rollback(ctx context.Context) error {
	tx, err := composables.UsePgxTx(ctx)
	if err != nil {
		return err
	}
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

func (u *PgxUnitOfWork) Savepoint(ctx context.Context, fn func(context.Context) error) error {
	tx, err := composables.UsePgxTx(ctx)
	if err != nil {
		return err
	}
	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(composables.WithTx(ctx, sp)); err != nil {
		if rErr := sp.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			return errors.Join(err, rErr)
		}
		return err
	}
	return sp.Commit(ctx)
}
