package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/store"
)

// InsertLedgerEntry appends one transaction.
func (s *Store) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO ledger_entries (id, user_id, amount, description, event_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserID, e.Amount.String(), e.Description, e.EventID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// DeleteLedgerEntry removes an entry. The attendance_records FK is declared
// ON DELETE SET NULL, so any payment reference to the entry is nulled in the
// same statement; no dangling references survive.
func (s *Store) DeleteLedgerEntry(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// LedgerEntries returns a user's transactions, newest first.
func (s *Store) LedgerEntries(ctx context.Context, userID string) ([]model.LedgerEntry, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, user_id, amount::text, description, event_id, created_at
		 FROM ledger_entries
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var (
			e      model.LedgerEntry
			amount string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &amount, &e.Description, &e.EventID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse ledger amount: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Balance sums the user's remaining entries.
func (s *Store) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var sum string
	err := s.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM ledger_entries WHERE user_id = $1`,
		userID,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum ledger: %w", err)
	}
	balance, err := decimal.NewFromString(sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance: %w", err)
	}
	return balance, nil
}

// HasEventPayment reports whether the user already holds a debit entry for
// the event.
func (s *Store) HasEventPayment(ctx context.Context, eventID, userID string) (bool, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM ledger_entries
		 WHERE event_id = $1 AND user_id = $2 AND amount < 0`,
		eventID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check event payment: %w", err)
	}
	return n > 0, nil
}
