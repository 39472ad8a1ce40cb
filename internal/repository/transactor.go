package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Transactor runs fn inside a single database transaction. Repositories
// called with the ctx passed to fn join that transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type pgTransactor struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewTransactor returns a pgx backed Transactor.
func NewTransactor(pool *pgxpool.Pool, logger *zap.Logger) Transactor {
	return &pgTransactor{pool: pool, logger: logger}
}

func (t *pgTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) (txErr error) {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if txErr != nil {
			if err := tx.Rollback(txCtx); err != nil {
				t.logger.Error("rollback", zap.Error(err))
			}
			return
		}
		if err := tx.Commit(txCtx); err != nil {
			txErr = fmt.Errorf("commit tx: %w", err)
		}
	}()

	return fn(txCtx)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conn returns the transaction bound to ctx, or the pool.
func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

func affectedOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// IsForeignKeyViolation reports whether err is a Postgres foreign key
// violation, i.e. the row is still referenced.
func IsForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == "23503"
}

// IsUniqueViolation reports whether err is a Postgres unique violation.
func IsUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505"
}

// isID reports whether id can name a row. Every key column is a UUID, and
// Postgres rejects anything else with 22P02 instead of finding no row.
func isID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// allIDs reports whether every non-nil id can name a row.
func allIDs(ids ...*string) bool {
	for _, id := range ids {
		if id != nil && !isID(*id) {
			return false
		}
	}
	return true
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
