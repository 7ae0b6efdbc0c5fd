package service

import (
	"context"
	"errors"
	"time"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/store"
)

// Visibility filters and annotates events by difficulty ceiling and tag
// policy. Anonymous viewers get the configured default ceiling.
type Visibility struct {
	st                   store.Store
	defaultMaxDifficulty int
}

// NewVisibility constructs the gate.
func NewVisibility(st store.Store, defaultMaxDifficulty int) *Visibility {
	return &Visibility{st: st, defaultMaxDifficulty: defaultMaxDifficulty}
}

// visibilityError returns nil when the viewer may see the event, or a
// Forbidden error naming the excluding rule. viewer is nil for anonymous
// callers.
func visibilityError(viewer *model.User, ceiling int, e *model.Event) error {
	if e.Difficulty > ceiling {
		return Forbidden("Event difficulty %d exceeds your level", e.Difficulty)
	}
	for _, t := range e.Tags {
		// A tag's minimum difficulty raises the floor above the event's own
		// level.
		if t.MinDifficulty != nil && *t.MinDifficulty > ceiling {
			return Forbidden("Tag %s requires difficulty level %d", t.Name, *t.MinDifficulty)
		}
		// A configured whitelist hides the event, not just the join button.
		if t.JoinPolicy == model.JoinPolicyWhitelist && len(t.Whitelist) > 0 {
			if viewer == nil || !t.Whitelisted(viewer.ID) {
				return Forbidden("You are not on the whitelist for tag %s", t.Name)
			}
		}
	}
	return nil
}

func (v *Visibility) ceilingFor(viewer *model.User) int {
	if viewer == nil {
		return v.defaultMaxDifficulty
	}
	return viewer.MaxDifficulty
}

// viewer loads the calling user, or returns nil for anonymous callers.
func (v *Visibility) viewer(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, nil
	}
	u, err := v.st.UserByID(ctx, userID)
	if err != nil {
		return nil, orNotFound(err, "User not found")
	}
	return u, nil
}

// VisibleEvents lists events in [from, to] the caller may see, sorted by
// start time ascending.
func (v *Visibility) VisibleEvents(ctx context.Context, userID string, from, to time.Time) ([]model.Event, error) {
	viewer, err := v.viewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	ceiling := v.ceilingFor(viewer)

	all, err := v.st.EventsBetween(ctx, from, to)
	if err != nil {
		return nil, Internal(err)
	}
	visible := []model.Event{}
	for _, e := range all {
		if visibilityError(viewer, ceiling, &e) == nil {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

// VisibleEvent returns a single event, NotFound when absent, or a
// Forbidden denial when the caller is excluded. The two stay distinct so
// clients can tell "exists but hidden" from "does not exist".
func (v *Visibility) VisibleEvent(ctx context.Context, userID, eventID string) (*model.Event, error) {
	viewer, err := v.viewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	e, err := v.st.EventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("Event not found")
		}
		return nil, Internal(err)
	}
	if err := visibilityError(viewer, v.ceilingFor(viewer), e); err != nil {
		return nil, err
	}
	return e, nil
}
