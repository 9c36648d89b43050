// Package tx carries a SQL transaction through context so stores can join a
// caller-scoped unit of work without changing their signatures. The patient
// cascade relies on this to make its multi-store deletion atomic.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// Execer is the subset of *sql.DB / *sql.Tx stores need.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// ExecerFrom returns the context transaction when present, else the fallback.
func ExecerFrom(ctx context.Context, fallback Execer) Execer {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return fallback
}

// Run executes fn inside a single transaction injected into the context.
// Any error (or panic) rolls the whole unit of work back.
func Run(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) (err error) {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()
	if err = fn(WithTx(ctx, sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
