package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so
// every query runs against whichever is bound to the context.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// conn returns the transaction carried by ctx when present, otherwise
// the pool.
func (q *Queries) conn(ctx context.Context) DBTX {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return q.pool
}

// WithTx runs fn inside a single transaction. Queries issued through
// the ctx passed to fn join that transaction. Nested calls reuse the
// enclosing transaction.
func (q *Queries) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(withTx(ctx, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// WithCompanyLock runs fn inside a transaction holding an exclusive
// row lock on the company. Concurrent activation attempts for the
// same company serialize on this lock, so a count-check-and-write in
// fn cannot race another one.
func (q *Queries) WithCompanyLock(ctx context.Context, companyID string, fn func(ctx context.Context) error) error {
	return q.WithTx(ctx, func(ctx context.Context) error {
		var id string
		err := q.conn(ctx).QueryRow(ctx,
			"SELECT id FROM companies WHERE id = $1 FOR UPDATE",
			companyID,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to lock company: %w", err)
		}
		return fn(ctx)
	})
}

var _ DBTX = (*pgxpool.Pool)(nil)
