// Package store declares the persistence ports the services depend on.
// The repository package provides the PostgreSQL implementation; tests
// substitute an in-memory one.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boulderhaus/clubhouse/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Store is the full view of the club's persistent state. Inside Atomic the
// same interface is bound to a single transaction.
type Store interface {
	// Users
	UserByID(ctx context.Context, id string) (*model.User, error)
	// AdjustFreeSessions changes a user's free-session count by delta.
	AdjustFreeSessions(ctx context.Context, userID string, delta int) error

	// Events. EventByID and LockEvent load the event with its tags and
	// whitelists; LockEvent additionally takes the row lock that serializes
	// concurrent state transitions on the event.
	EventByID(ctx context.Context, id string) (*model.Event, error)
	LockEvent(ctx context.Context, id string) (*model.Event, error)
	EventsBetween(ctx context.Context, from, to time.Time) ([]model.Event, error)
	CreateEvent(ctx context.Context, e *model.Event) error
	UpdateEvent(ctx context.Context, e *model.Event) error
	DeleteEvent(ctx context.Context, id string) error

	// Tags
	TagByID(ctx context.Context, id string) (*model.Tag, error)
	CreateTag(ctx context.Context, t *model.Tag) error
	UpdateTag(ctx context.Context, t *model.Tag) error
	DeleteTag(ctx context.Context, id string) error

	// Attendance log
	ActiveAttendance(ctx context.Context, eventID, userID string) (*model.AttendanceRecord, error)
	ActiveAttendeeCount(ctx context.Context, eventID string) (int, error)
	ActiveCoachCount(ctx context.Context, eventID string) (int, error)
	ActiveAttendees(ctx context.Context, eventID string) ([]model.AttendanceRecord, error)
	AttendanceHistory(ctx context.Context, eventID string) ([]model.AttendanceRecord, error)
	InsertAttendance(ctx context.Context, rec *model.AttendanceRecord) error
	CloseAttendance(ctx context.Context, recordID string, leftAt time.Time) error
	// ClearAttendancePayment nulls the payment reference so a row cannot be
	// refunded twice.
	ClearAttendancePayment(ctx context.Context, recordID string) error

	// Waitlist
	Waitlist(ctx context.Context, eventID string) ([]model.WaitlistEntry, error)
	OnWaitlist(ctx context.Context, eventID, userID string) (bool, error)
	InsertWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error
	DeleteWaitlistEntry(ctx context.Context, eventID, userID string) error

	// Ledger
	InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error
	// DeleteLedgerEntry removes an entry and nulls any attendance record
	// referencing it.
	DeleteLedgerEntry(ctx context.Context, id string) error
	LedgerEntries(ctx context.Context, userID string) ([]model.LedgerEntry, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	// HasEventPayment reports whether the user already holds a debit entry
	// for the event.
	HasEventPayment(ctx context.Context, eventID, userID string) (bool, error)

	// Roles, permissions and managed-tag grants
	PermissionSlugs(ctx context.Context, userID string) ([]string, error)
	ManagedTagIDs(ctx context.Context, userID string) ([]string, error)
	RoleManagedTagIDs(ctx context.Context, userID string) ([]string, error)
	GrantPermission(ctx context.Context, userID, slug string) error
	RevokePermission(ctx context.Context, userID, slug string) error
	GrantManagedTag(ctx context.Context, userID, tagID string) error
	RevokeManagedTag(ctx context.Context, userID, tagID string) error
	SetUserRole(ctx context.Context, userID string, roleID *string) error
}

// TxRunner executes fn against a Store bound to one serializable
// transaction. Every attendance/ledger state transition runs through it so
// partial-failure compensation is never needed: an error from fn rolls the
// whole transition back.
type TxRunner interface {
	Atomic(ctx context.Context, fn func(Store) error) error
}
