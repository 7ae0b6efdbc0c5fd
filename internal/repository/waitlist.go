package repository

import (
	"context"
	"fmt"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/store"
)

// Waitlist returns the event's queue in FIFO order.
func (s *Store) Waitlist(ctx context.Context, eventID string) ([]model.WaitlistEntry, error) {
	rows, err := s.q.Query(ctx,
		`SELECT event_id, user_id, joined_at
		 FROM waitlist_entries
		 WHERE event_id = $1
		 ORDER BY joined_at ASC`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	defer rows.Close()

	var entries []model.WaitlistEntry
	for rows.Next() {
		var e model.WaitlistEntry
		if err := rows.Scan(&e.EventID, &e.UserID, &e.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan waitlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// OnWaitlist reports whether the user is queued for the event.
func (s *Store) OnWaitlist(ctx context.Context, eventID, userID string) (bool, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM waitlist_entries WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check waitlist: %w", err)
	}
	return n > 0, nil
}

// InsertWaitlistEntry queues the user.
func (s *Store) InsertWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO waitlist_entries (event_id, user_id, joined_at)
		 VALUES ($1, $2, $3)`,
		e.EventID, e.UserID, e.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	return nil
}

// DeleteWaitlistEntry removes the user's entry, or store.ErrNotFound.
func (s *Store) DeleteWaitlistEntry(ctx context.Context, eventID, userID string) error {
	tag, err := s.q.Exec(ctx,
		`DELETE FROM waitlist_entries WHERE event_id = $1 AND user_id = $2`,
		eventID, userID)
	if err != nil {
		return fmt.Errorf("delete waitlist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
