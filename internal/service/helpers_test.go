package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boulderhaus/clubhouse/internal/model"
)

// base is the reference clock for every timing test. The standard
// fixture event starts one hour after base and runs for two hours.
var base = time.Date(2026, time.September, 1, 18, 0, 0, 0, time.UTC)

func at(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func member(id string) *model.User {
	return &model.User{
		ID:             id,
		Name:           id,
		Email:          id + "@club.test",
		IsMember:       true,
		IntakeComplete: true,
		MaxDifficulty:  5,
	}
}

func coach(id string) *model.User {
	u := member(id)
	u.IsCoach = true
	return u
}

func guest(id string, sessions int) *model.User {
	u := member(id)
	u.IsMember = false
	u.FreeSessions = sessions
	return u
}

func addUser(f *fakeStore, u *model.User) {
	f.users[u.ID] = u
}

func fixtureEvent(id string, maxAttendees int, cost string) *model.Event {
	return &model.Event{
		ID:           id,
		Title:        "Bouldering session",
		Difficulty:   3,
		StartsAt:     base.Add(time.Hour),
		EndsAt:       base.Add(3 * time.Hour),
		MaxAttendees: maxAttendees,
		UpfrontCost:  dec(cost),
		CreatedAt:    base.Add(-24 * time.Hour),
	}
}

func addEvent(f *fakeStore, e *model.Event) {
	f.events[e.ID] = e
	for i := range e.Tags {
		t := e.Tags[i]
		f.tags[t.ID] = &t
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newAttendance(f *fakeStore, minBalance string, now time.Time) *Attendance {
	a := NewAttendance(f, f, dec(minBalance))
	a.now = at(now)
	return a
}

func newWaitlist(f *fakeStore, now time.Time) *Waitlist {
	w := NewWaitlist(f, f)
	w.now = at(now)
	return w
}

// wantKind asserts the error classification and exact message.
func wantKind(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("want %q error, got nil", msg)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("error kind = %v, want %v (err: %v)", got, kind, err)
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not a service error", err)
	}
	if se.Message != msg {
		t.Fatalf("error message = %q, want %q", se.Message, msg)
	}
}

func balanceOf(t *testing.T, f *fakeStore, userID string) decimal.Decimal {
	t.Helper()
	b, err := f.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("Balance(%s): %v", userID, err)
	}
	return b
}
