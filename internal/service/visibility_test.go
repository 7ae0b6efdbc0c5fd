package service

import (
	"context"
	"testing"
	"time"

	"github.com/boulderhaus/clubhouse/internal/model"
)

func intp(v int) *int { return &v }

func TestVisibleEventsFiltersByCeiling(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFakeStore()
	beginner := member("beginner")
	beginner.MaxDifficulty = 2
	addUser(f, beginner)

	easy := fixtureEvent("easy", 0, "0")
	easy.Difficulty = 1
	addEvent(f, easy)
	hard := fixtureEvent("hard", 0, "0")
	hard.Difficulty = 4
	hard.StartsAt = easy.StartsAt.Add(time.Hour)
	hard.EndsAt = easy.EndsAt.Add(time.Hour)
	addEvent(f, hard)
	v := NewVisibility(f, 1)

	from, to := base, base.Add(24*time.Hour)
	events, err := v.VisibleEvents(ctx, "beginner", from, to)
	if err != nil {
		t.Fatalf("VisibleEvents: %v", err)
	}
	if len(events) != 1 || events[0].ID != "easy" {
		t.Fatalf("visible = %+v, want only easy", events)
	}

	// Anonymous viewers use the configured default ceiling.
	events, err = v.VisibleEvents(ctx, "", from, to)
	if err != nil {
		t.Fatalf("VisibleEvents(anonymous): %v", err)
	}
	if len(events) != 1 || events[0].ID != "easy" {
		t.Fatalf("anonymous visible = %+v, want only easy", events)
	}

	_, err = v.VisibleEvent(ctx, "beginner", "hard")
	wantKind(t, err, KindForbidden, "Event difficulty 4 exceeds your level")
}

// A tag's minimum difficulty can raise the floor above the event's own
// level.
func TestVisibilityTagFloor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFakeStore()
	u := member("u")
	u.MaxDifficulty = 3
	addUser(f, u)

	ev := fixtureEvent("ev", 0, "0")
	ev.Difficulty = 1
	ev.Tags = []model.Tag{{ID: "t1", Name: "Advanced", MinDifficulty: intp(5), JoinPolicy: model.JoinPolicyNone}}
	addEvent(f, ev)
	v := NewVisibility(f, 1)

	_, err := v.VisibleEvent(ctx, "u", "ev")
	wantKind(t, err, KindForbidden, "Tag Advanced requires difficulty level 5")
}

func TestVisibilityWhitelist(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFakeStore()
	addUser(f, member("listed"))
	addUser(f, member("outsider"))

	ev := fixtureEvent("ev", 0, "0")
	ev.Tags = []model.Tag{{
		ID:         "t1",
		Name:       "Invitational",
		JoinPolicy: model.JoinPolicyWhitelist,
		Whitelist:  []string{"listed"},
	}}
	addEvent(f, ev)
	v := NewVisibility(f, 5)

	if _, err := v.VisibleEvent(ctx, "listed", "ev"); err != nil {
		t.Fatalf("VisibleEvent(listed): %v", err)
	}
	_, err := v.VisibleEvent(ctx, "outsider", "ev")
	wantKind(t, err, KindForbidden, "You are not on the whitelist for tag Invitational")
	_, err = v.VisibleEvent(ctx, "", "ev")
	wantKind(t, err, KindForbidden, "You are not on the whitelist for tag Invitational")
}

// An empty whitelist on a whitelist-policy tag restricts nobody.
func TestVisibilityEmptyWhitelist(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFakeStore()
	addUser(f, member("u"))
	ev := fixtureEvent("ev", 0, "0")
	ev.Tags = []model.Tag{{ID: "t1", Name: "Open", JoinPolicy: model.JoinPolicyWhitelist}}
	addEvent(f, ev)
	v := NewVisibility(f, 5)

	if _, err := v.VisibleEvent(ctx, "u", "ev"); err != nil {
		t.Fatalf("VisibleEvent: %v", err)
	}
}

// Absent and hidden must stay distinguishable to clients.
func TestVisibleEventNotFoundVsHidden(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFakeStore()
	u := member("u")
	u.MaxDifficulty = 1
	addUser(f, u)
	ev := fixtureEvent("ev", 0, "0")
	ev.Difficulty = 5
	addEvent(f, ev)
	v := NewVisibility(f, 5)

	_, err := v.VisibleEvent(ctx, "u", "missing")
	if got := KindOf(err); got != KindNotFound {
		t.Fatalf("missing event kind = %v, want KindNotFound", got)
	}
	_, err = v.VisibleEvent(ctx, "u", "ev")
	if got := KindOf(err); got != KindForbidden {
		t.Fatalf("hidden event kind = %v, want KindForbidden", got)
	}
}
