package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/boulderhaus/clubhouse/internal/model"
)

func eventRequest() model.EventRequest {
	return model.EventRequest{
		Title:        "Lead climbing intro",
		Difficulty:   2,
		StartsAt:     base.Add(time.Hour),
		EndsAt:       base.Add(3 * time.Hour),
		MaxAttendees: 12,
		UpfrontCost:  "7.50",
	}
}

func newEvents(f *fakeStore, now time.Time) *Events {
	e := NewEvents(f, f)
	e.now = at(now)
	return e
}

func TestEventCreateAuthorization(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFakeStore()
	addUser(f, member("admin"))
	addUser(f, member("scoped"))
	addUser(f, member("plain"))
	f.userPerms["admin"] = []string{PermEventManage}
	f.userTags["scoped"] = []string{"t1"}
	f.tags["t1"] = &model.Tag{ID: "t1", Name: "Youth", JoinPolicy: model.JoinPolicyNone}
	e := newEvents(f, base)

	req := eventRequest()
	req.TagIDs = []string{"t1"}
	ev, err := e.Create(ctx, "scoped", req)
	if err != nil {
		t.Fatalf("Create(scoped, tagged): %v", err)
	}
	if len(ev.Tags) != 1 || ev.Tags[0].ID != "t1" {
		t.Fatalf("created tags = %+v, want t1", ev.Tags)
	}

	// Untagged creation has no scope overlap, so only the unscoped grant
	// passes.
	_, err = e.Create(ctx, "scoped", eventRequest())
	wantKind(t, err, KindForbidden, "You do not have permission to manage these events")
	if _, err := e.Create(ctx, "admin", eventRequest()); err != nil {
		t.Fatalf("Create(admin, untagged): %v", err)
	}
	_, err = e.Create(ctx, "plain", eventRequest())
	wantKind(t, err, KindForbidden, "You do not have permission to manage these events")
}

func TestEventCreateValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFakeStore()
	addUser(f, member("admin"))
	f.userPerms["admin"] = []string{PermEventManage}
	e := newEvents(f, base)

	req := eventRequest()
	req.EndsAt = req.StartsAt.Add(-time.Hour)
	_, err := e.Create(ctx, "admin", req)
	if got := KindOf(err); got != KindPrecondition {
		t.Fatalf("error kind = %v, want KindPrecondition", got)
	}
	var se *Error
	if !errors.As(err, &se) || !strings.HasPrefix(se.Message, "Validation failed") {
		t.Fatalf("message = %v, want validation failure", err)
	}

	req = eventRequest()
	req.UpfrontCost = "-3"
	_, err = e.Create(ctx, "admin", req)
	wantKind(t, err, KindPrecondition, "Upfront cost must be a non-negative decimal")

	req = eventRequest()
	req.TagIDs = []string{"missing"}
	_, err = e.Create(ctx, "admin", req)
	wantKind(t, err, KindNotFound, "Tag not found")
}

func TestEventUpdateScopedByCurrentTags(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFakeStore()
	addUser(f, member("scoped"))
	f.userTags["scoped"] = []string{"t1"}
	f.tags["t1"] = &model.Tag{ID: "t1", Name: "Youth"}
	f.tags["t2"] = &model.Tag{ID: "t2", Name: "Comp"}

	mine := fixtureEvent("mine", 0, "0")
	mine.Tags = []model.Tag{{ID: "t1", Name: "Youth"}}
	addEvent(f, mine)
	other := fixtureEvent("other", 0, "0")
	other.Tags = []model.Tag{{ID: "t2", Name: "Comp"}}
	addEvent(f, other)
	e := newEvents(f, base)

	req := eventRequest()
	req.TagIDs = []string{"t1"}
	updated, err := e.Update(ctx, "scoped", "mine", req)
	if err != nil {
		t.Fatalf("Update(mine): %v", err)
	}
	if updated.Title != "Lead climbing intro" {
		t.Fatalf("title = %q after update", updated.Title)
	}

	_, err = e.Update(ctx, "scoped", "other", req)
	wantKind(t, err, KindForbidden, "You do not have permission to manage this event")
}

func TestEventDeleteAfterStart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFakeStore()
	addUser(f, member("admin"))
	f.userPerms["admin"] = []string{PermEventManage}
	ev := fixtureEvent("ev", 0, "0")
	addEvent(f, ev)

	e := newEvents(f, ev.StartsAt.Add(time.Minute))
	err := e.Delete(ctx, "admin", "ev")
	wantKind(t, err, KindPrecondition, "Cannot delete an event that has already started")

	e.now = at(base)
	if err := e.Delete(ctx, "admin", "ev"); err != nil {
		t.Fatalf("Delete before start: %v", err)
	}
	if _, ok := f.events["ev"]; ok {
		t.Fatal("event still present after delete")
	}
}

func TestTagCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFakeStore()
	e := newEvents(f, base)

	tag, err := e.CreateTag(ctx, model.TagRequest{
		Name:       "Invitational",
		JoinPolicy: model.JoinPolicyWhitelist,
		Whitelist:  []string{"u1"},
	})
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	updated, err := e.UpdateTag(ctx, tag.ID, model.TagRequest{
		Name:          "Invitational",
		MinDifficulty: intp(4),
		JoinPolicy:    model.JoinPolicyWhitelist,
		Whitelist:     []string{"u1", "u2"},
	})
	if err != nil {
		t.Fatalf("UpdateTag: %v", err)
	}
	if updated.MinDifficulty == nil || *updated.MinDifficulty != 4 {
		t.Fatalf("MinDifficulty = %v, want 4", updated.MinDifficulty)
	}

	_, err = e.CreateTag(ctx, model.TagRequest{Name: "Bad", JoinPolicy: "invite-only"})
	if got := KindOf(err); got != KindPrecondition {
		t.Fatalf("invalid join policy kind = %v, want KindPrecondition", got)
	}

	if err := e.DeleteTag(ctx, tag.ID); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	err = e.DeleteTag(ctx, tag.ID)
	wantKind(t, err, KindNotFound, "Tag not found")
}
