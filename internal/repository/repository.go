// Package repository implements all database queries for the club backend.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boulderhaus/clubhouse/internal/store"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every query
// below runs identically inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL implementation of store.Store.
type Store struct {
	q querier
}

var _ store.Store = (*Store)(nil)

// Pool wraps a pgxpool and hands out Stores, either pool-backed for plain
// reads or transaction-backed through Atomic.
type Pool struct {
	db *pgxpool.Pool
}

// NewPool wraps db.
func NewPool(db *pgxpool.Pool) *Pool {
	return &Pool{db: db}
}

// Store returns a pool-backed store for non-transactional reads.
func (p *Pool) Store() *Store {
	return &Store{q: p.db}
}

// Atomic runs fn against a store bound to one serializable transaction.
// State transitions additionally take a FOR UPDATE lock on the event row
// (see Store.LockEvent), which serializes concurrent attend/leave/promote
// calls per event: two capacity checks can never interleave. Predicate
// reads outside the locked row can still abort with a serialization
// failure under contention; those are retried from the top, so fn must be
// safe to re-run.
func (p *Pool) Atomic(ctx context.Context, fn func(store.Store) error) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = p.atomic(ctx, fn)
		if !retryableTxError(err) {
			return err
		}
	}
	return err
}

func (p *Pool) atomic(ctx context.Context, fn func(store.Store) error) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&Store{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// retryableTxError reports whether err is a serialization or deadlock
// abort (SQLSTATE 40001 / 40P01), safe to retry from the start of the
// transaction.
func retryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

var _ store.TxRunner = (*Pool)(nil)
