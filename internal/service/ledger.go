package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/store"
)

// Ledger is the financial transaction surface. The log is append-only in
// normal operation; only the explicit admin edit path deletes entries, and
// deletion nulls any attendance payment reference so nothing dangles.
type Ledger struct {
	runner store.TxRunner
	st     store.Store
	now    func() time.Time
}

// NewLedger constructs the service.
func NewLedger(runner store.TxRunner, st store.Store) *Ledger {
	return &Ledger{runner: runner, st: st, now: time.Now}
}

// Entries returns a user's transactions, newest first.
func (l *Ledger) Entries(ctx context.Context, userID string) ([]model.LedgerEntry, error) {
	if _, err := l.st.UserByID(ctx, userID); err != nil {
		return nil, orNotFound(err, "User not found")
	}
	entries, err := l.st.LedgerEntries(ctx, userID)
	if err != nil {
		return nil, Internal(err)
	}
	return entries, nil
}

// Balance sums the user's remaining entries.
func (l *Ledger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if _, err := l.st.UserByID(ctx, userID); err != nil {
		return decimal.Zero, orNotFound(err, "User not found")
	}
	balance, err := l.st.Balance(ctx, userID)
	if err != nil {
		return decimal.Zero, Internal(err)
	}
	return balance, nil
}

// Add appends an admin-created entry.
func (l *Ledger) Add(ctx context.Context, req model.LedgerEntryRequest) (*model.LedgerEntry, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return nil, Precondition("Amount must be a decimal number")
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, Precondition("Description is required")
	}
	entry := &model.LedgerEntry{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		Amount:      amount,
		Description: strings.TrimSpace(req.Description),
		EventID:     req.EventID,
		CreatedAt:   l.now(),
	}
	err = l.runner.Atomic(ctx, func(st store.Store) error {
		if _, uerr := st.UserByID(ctx, req.UserID); uerr != nil {
			return orNotFound(uerr, "User not found")
		}
		if err := st.InsertLedgerEntry(ctx, entry); err != nil {
			return Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete removes an entry by admin edit. Any attendance record referencing
// it has its payment pointer nulled in the same transaction.
func (l *Ledger) Delete(ctx context.Context, entryID string) error {
	return l.runner.Atomic(ctx, func(st store.Store) error {
		if err := st.DeleteLedgerEntry(ctx, entryID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NotFound("Ledger entry not found")
			}
			return Internal(err)
		}
		return nil
	})
}
