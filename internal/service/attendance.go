package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/store"
)

// Attendance is the join/leave state machine. Every entry point runs as a
// single serializable transaction with a row lock on the event, so a failed
// step rolls the whole transition back; there is no partial state to
// compensate.
type Attendance struct {
	runner     store.TxRunner
	st         store.Store // pool-backed, for plain reads
	minBalance decimal.Decimal

	// now is swappable in tests.
	now func() time.Time
}

// NewAttendance constructs the state machine with the club policy values
// threaded in explicitly.
func NewAttendance(runner store.TxRunner, st store.Store, minBalance decimal.Decimal) *Attendance {
	return &Attendance{
		runner:     runner,
		st:         st,
		minBalance: minBalance,
		now:        time.Now,
	}
}

// Attend joins userID to the event after the eligibility pipeline passes.
// Precondition order is part of the contract: each denial names the first
// rule that failed.
func (a *Attendance) Attend(ctx context.Context, eventID, userID string) error {
	return a.runner.Atomic(ctx, func(st store.Store) error {
		user, err := st.UserByID(ctx, userID)
		if err != nil {
			return orNotFound(err, "User not found")
		}
		event, err := st.LockEvent(ctx, eventID)
		if err != nil {
			return orNotFound(err, "Event not found")
		}

		// 1. Visibility: a hidden event behaves as forbidden, not missing.
		if err := visibilityError(user, user.MaxDifficulty, event); err != nil {
			return err
		}

		// 2. Capacity.
		active, err := st.ActiveAttendeeCount(ctx, eventID)
		if err != nil {
			return Internal(err)
		}
		if !event.HasCapacity(active) {
			return Conflict("Event is full")
		}

		// 3. Timing: registration closes at start, not end.
		now := a.now()
		if !now.Before(event.EndsAt) {
			return Precondition("Event has already ended")
		}
		if !now.Before(event.StartsAt) {
			return Precondition("Registration closed: event has started")
		}

		// 4. Tag join policy. Whitelists were already enforced by the
		// visibility check; the role policy needs role-derived managed tags.
		for _, t := range event.Tags {
			if t.JoinPolicy != model.JoinPolicyRole {
				continue
			}
			roleTags, err := st.RoleManagedTagIDs(ctx, userID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return Internal(err)
			}
			if !containsString(roleTags, t.ID) {
				return Forbidden("Tag %s is restricted to role holders", t.Name)
			}
		}

		// 5. Debt gate, skipped when the user already paid for this event.
		paying, err := st.HasEventPayment(ctx, eventID, userID)
		if err != nil {
			return Internal(err)
		}
		if !paying {
			balance, err := st.Balance(ctx, userID)
			if err != nil {
				return Internal(err)
			}
			if balance.LessThan(a.minBalance) {
				return Precondition("Your balance is below the club minimum")
			}
		}

		// 6. Legal/medical intake.
		if !user.IntakeComplete {
			return Precondition("Medical intake form not completed")
		}

		// 7. A coach must already be attending, unless the joiner is one.
		if !user.IsCoach {
			coaches, err := st.ActiveCoachCount(ctx, eventID)
			if err != nil {
				return Internal(err)
			}
			if coaches == 0 {
				return Precondition("No coach is attending this event yet")
			}
		}

		// 8. Membership or a remaining free session.
		if !user.IsMember && user.FreeSessions <= 0 {
			return Precondition("No free sessions remaining")
		}

		// 9. One active record per (event, user).
		if _, err := st.ActiveAttendance(ctx, eventID, userID); err == nil {
			return Conflict("Already attending this event")
		} else if !errors.Is(err, store.ErrNotFound) {
			return Internal(err)
		}

		// A direct join supersedes a queue spot; the user must never hold
		// both at once.
		queued, err := st.OnWaitlist(ctx, eventID, userID)
		if err != nil {
			return Internal(err)
		}
		if queued {
			if err := st.DeleteWaitlistEntry(ctx, eventID, userID); err != nil {
				return Internal(err)
			}
		}

		return a.admit(ctx, st, event, user, now, false)
	})
}

// admit applies the attend side effects: session decrement, upfront debit,
// late-join correction, attendance insert. promoted marks waitlist
// promotions, which charge via the club rather than self-pay.
func (a *Attendance) admit(ctx context.Context, st store.Store, event *model.Event, user *model.User, now time.Time, promoted bool) error {
	if !user.IsMember {
		if err := st.AdjustFreeSessions(ctx, user.ID, -1); err != nil {
			return Internal(err)
		}
	}

	rec := &model.AttendanceRecord{
		ID:          uuid.New().String(),
		EventID:     event.ID,
		UserID:      user.ID,
		JoinedAt:    now,
		IsAttending: true,
	}

	if event.Paid() {
		desc := fmt.Sprintf("Attendance fee: %s", event.Title)
		if promoted {
			desc = fmt.Sprintf("Attendance fee (waitlist promotion): %s", event.Title)
		}
		debit := &model.LedgerEntry{
			ID:          uuid.New().String(),
			UserID:      user.ID,
			Amount:      event.UpfrontCost.Neg(),
			Description: desc,
			EventID:     &event.ID,
			CreatedAt:   now,
		}
		if err := st.InsertLedgerEntry(ctx, debit); err != nil {
			return Internal(err)
		}
		rec.PaymentEntryID = &debit.ID

		// Joining after the refund cutoff immediately triggers the refund
		// cycle: the late joiner must not stay charged past the deadline.
		if event.RefundCutoff != nil && now.After(*event.RefundCutoff) {
			credit := &model.LedgerEntry{
				ID:          uuid.New().String(),
				UserID:      user.ID,
				Amount:      event.UpfrontCost,
				Description: fmt.Sprintf("Late-join correction: %s", event.Title),
				EventID:     &event.ID,
				CreatedAt:   now,
			}
			if err := st.InsertLedgerEntry(ctx, credit); err != nil {
				return Internal(err)
			}
			rec.PaymentEntryID = nil
		}
	}

	if err := st.InsertAttendance(ctx, rec); err != nil {
		return Internal(err)
	}
	return nil
}

// Leave closes the caller's active record. If the leaver is the last active
// coach, the no-coach cascade force-removes everyone else first. A freed
// slot triggers waitlist promotion before the call returns.
func (a *Attendance) Leave(ctx context.Context, eventID, userID string) error {
	return a.runner.Atomic(ctx, func(st store.Store) error {
		event, err := st.LockEvent(ctx, eventID)
		if err != nil {
			return orNotFound(err, "Event not found")
		}
		rec, err := st.ActiveAttendance(ctx, eventID, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Precondition("You are not attending this event")
			}
			return Internal(err)
		}
		user, err := st.UserByID(ctx, userID)
		if err != nil {
			return orNotFound(err, "User not found")
		}

		now := a.now()

		// The no-coach cascade runs before the leaver's own timing check.
		if user.IsCoach {
			coaches, err := st.ActiveCoachCount(ctx, eventID)
			if err != nil {
				return Internal(err)
			}
			if coaches == 1 {
				if err := a.cascadeCoachDeparture(ctx, st, event, userID, now); err != nil {
					return err
				}
			}
		}

		if !now.Before(event.StartsAt) {
			return Precondition("Cannot leave after the event has started")
		}

		if err := st.CloseAttendance(ctx, rec.ID, now); err != nil {
			return Internal(err)
		}
		if !user.IsMember {
			if err := st.AdjustFreeSessions(ctx, userID, 1); err != nil {
				return Internal(err)
			}
		}

		// Self-initiated leave before the cutoff refunds by deleting the
		// payment entry, which also nulls the record's reference to it.
		// This is deliberately distinct from the admin refund cycle, which
		// appends an offsetting credit.
		if rec.PaymentEntryID != nil && event.RefundOpen(now) {
			if err := st.DeleteLedgerEntry(ctx, *rec.PaymentEntryID); err != nil {
				return Internal(err)
			}
		}

		return promoteNext(ctx, st, a, event, now)
	})
}

// cascadeCoachDeparture enforces the no-coach-present invariant: every
// other active attendee is force-removed, paying attendees get a credit
// refund, non-members get their session back.
func (a *Attendance) cascadeCoachDeparture(ctx context.Context, st store.Store, event *model.Event, departingID string, now time.Time) error {
	attendees, err := st.ActiveAttendees(ctx, event.ID)
	if err != nil {
		return Internal(err)
	}
	removed := 0
	for _, rec := range attendees {
		if rec.UserID == departingID {
			continue
		}
		u, err := st.UserByID(ctx, rec.UserID)
		if err != nil {
			return orNotFound(err, "User not found")
		}
		if rec.PaymentEntryID != nil {
			if err := a.refund(ctx, st, event, &rec, now); err != nil {
				return err
			}
		}
		if !u.IsMember {
			if err := st.AdjustFreeSessions(ctx, u.ID, 1); err != nil {
				return Internal(err)
			}
		}
		if err := st.CloseAttendance(ctx, rec.ID, now); err != nil {
			return Internal(err)
		}
		removed++
	}
	slog.Info("coach departure cascade",
		"event_id", event.ID, "coach_id", departingID, "removed", removed)
	return nil
}

// refund runs the credit-refund cycle for one attendance record: a new
// offsetting entry, and the payment reference nulled so the record cannot
// be refunded twice.
func (a *Attendance) refund(ctx context.Context, st store.Store, event *model.Event, rec *model.AttendanceRecord, now time.Time) error {
	credit := &model.LedgerEntry{
		ID:          uuid.New().String(),
		UserID:      rec.UserID,
		Amount:      event.UpfrontCost,
		Description: fmt.Sprintf("Event refund: %s", event.Title),
		EventID:     &event.ID,
		CreatedAt:   now,
	}
	if err := st.InsertLedgerEntry(ctx, credit); err != nil {
		return Internal(err)
	}
	if err := st.ClearAttendancePayment(ctx, rec.ID); err != nil {
		return Internal(err)
	}
	return nil
}

// RefundAttendee is the admin-initiated refund cycle for one attendee.
func (a *Attendance) RefundAttendee(ctx context.Context, eventID, userID string) error {
	return a.runner.Atomic(ctx, func(st store.Store) error {
		event, err := st.LockEvent(ctx, eventID)
		if err != nil {
			return orNotFound(err, "Event not found")
		}
		rec, err := st.ActiveAttendance(ctx, eventID, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NotFound("Attendee not found")
			}
			return Internal(err)
		}
		if rec.PaymentEntryID == nil {
			return Precondition("No refundable payment for this attendee")
		}
		return a.refund(ctx, st, event, rec, a.now())
	})
}

// CancelEvent force-removes every active attendee: paying attendees are
// credit-refunded, non-members get their session back, all records close.
// Invoked from the authorized admin surface.
func (a *Attendance) CancelEvent(ctx context.Context, eventID string) error {
	return a.runner.Atomic(ctx, func(st store.Store) error {
		event, err := st.LockEvent(ctx, eventID)
		if err != nil {
			return orNotFound(err, "Event not found")
		}
		now := a.now()
		attendees, err := st.ActiveAttendees(ctx, eventID)
		if err != nil {
			return Internal(err)
		}
		for _, rec := range attendees {
			u, err := st.UserByID(ctx, rec.UserID)
			if err != nil {
				return orNotFound(err, "User not found")
			}
			if rec.PaymentEntryID != nil {
				if err := a.refund(ctx, st, event, &rec, now); err != nil {
					return err
				}
			}
			if !u.IsMember {
				if err := st.AdjustFreeSessions(ctx, u.ID, 1); err != nil {
					return Internal(err)
				}
			}
			if err := st.CloseAttendance(ctx, rec.ID, now); err != nil {
				return Internal(err)
			}
		}
		slog.Info("event cancelled", "event_id", eventID, "removed", len(attendees))
		return nil
	})
}

// ActiveAttendees lists the event's current attendees.
func (a *Attendance) ActiveAttendees(ctx context.Context, eventID string) ([]model.AttendanceRecord, error) {
	if _, err := a.st.EventByID(ctx, eventID); err != nil {
		return nil, orNotFound(err, "Event not found")
	}
	recs, err := a.st.ActiveAttendees(ctx, eventID)
	if err != nil {
		return nil, Internal(err)
	}
	return recs, nil
}

// AttendanceHistory returns the full append-only log for the event,
// including departed rows. Restricted to holders of event.history.view.
func (a *Attendance) AttendanceHistory(ctx context.Context, eventID string) ([]model.AttendanceRecord, error) {
	if _, err := a.st.EventByID(ctx, eventID); err != nil {
		return nil, orNotFound(err, "Event not found")
	}
	recs, err := a.st.AttendanceHistory(ctx, eventID)
	if err != nil {
		return nil, Internal(err)
	}
	return recs, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
