package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/store"
)

// Waitlist is the FIFO queue per event. Promotion itself runs inside the
// leave transaction (see promoteNext); this service covers the join/leave
// queue surface.
type Waitlist struct {
	runner store.TxRunner
	st     store.Store
	now    func() time.Time
}

// NewWaitlist constructs the coordinator.
func NewWaitlist(runner store.TxRunner, st store.Store) *Waitlist {
	return &Waitlist{runner: runner, st: st, now: time.Now}
}

// Join queues the user for the event. A user cannot hold active attendance
// and a queue spot for the same event at once.
func (w *Waitlist) Join(ctx context.Context, eventID, userID string) error {
	return w.runner.Atomic(ctx, func(st store.Store) error {
		if _, err := st.LockEvent(ctx, eventID); err != nil {
			return orNotFound(err, "Event not found")
		}
		if _, err := st.ActiveAttendance(ctx, eventID, userID); err == nil {
			return Conflict("Already attending this event")
		} else if !errors.Is(err, store.ErrNotFound) {
			return Internal(err)
		}
		queued, err := st.OnWaitlist(ctx, eventID, userID)
		if err != nil {
			return Internal(err)
		}
		if queued {
			return Conflict("Already on the waiting list")
		}
		entry := &model.WaitlistEntry{
			EventID:  eventID,
			UserID:   userID,
			JoinedAt: w.now(),
		}
		if err := st.InsertWaitlistEntry(ctx, entry); err != nil {
			return Internal(err)
		}
		return nil
	})
}

// Leave removes the user from the queue.
func (w *Waitlist) Leave(ctx context.Context, eventID, userID string) error {
	return w.runner.Atomic(ctx, func(st store.Store) error {
		if _, err := st.LockEvent(ctx, eventID); err != nil {
			return orNotFound(err, "Event not found")
		}
		if err := st.DeleteWaitlistEntry(ctx, eventID, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Precondition("You are not on the waiting list")
			}
			return Internal(err)
		}
		return nil
	})
}

// List returns the event's queue in FIFO order.
func (w *Waitlist) List(ctx context.Context, eventID string) ([]model.WaitlistEntry, error) {
	if _, err := w.st.EventByID(ctx, eventID); err != nil {
		return nil, orNotFound(err, "Event not found")
	}
	entries, err := w.st.Waitlist(ctx, eventID)
	if err != nil {
		return nil, Internal(err)
	}
	return entries, nil
}

// promoteNext upgrades the longest-waiting eligible user into the slot a
// departure just freed. The eligibility subset is deliberately relaxed:
// intake complete and a session source, but no debt gate, so a transient
// balance issue cannot starve the queue. Ineligible entries are skipped but
// stay queued; they may become eligible later.
func promoteNext(ctx context.Context, st store.Store, a *Attendance, event *model.Event, now time.Time) error {
	active, err := st.ActiveAttendeeCount(ctx, event.ID)
	if err != nil {
		return Internal(err)
	}
	if !event.HasCapacity(active) {
		return nil
	}

	entries, err := st.Waitlist(ctx, event.ID)
	if err != nil {
		return Internal(err)
	}
	for _, entry := range entries {
		u, err := st.UserByID(ctx, entry.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return Internal(err)
		}
		if !u.IntakeComplete {
			continue
		}
		if !u.IsMember && u.FreeSessions <= 0 {
			continue
		}

		// The promoted user did not initiate this action, so the normal
		// attend pipeline is bypassed; charging happens club-side.
		if err := a.admit(ctx, st, event, u, now, true); err != nil {
			return err
		}
		if err := st.DeleteWaitlistEntry(ctx, event.ID, u.ID); err != nil {
			return Internal(err)
		}
		slog.Info("promoted from waitlist", "event_id", event.ID, "user_id", u.ID)
		return nil
	}
	return nil
}
