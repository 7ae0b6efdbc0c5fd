package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/boulderhaus/clubhouse/internal/model"
	"github.com/boulderhaus/clubhouse/internal/store"
)

// Events is the authorized administrative surface for events and tags.
// Event operations are tag-scoped: a scoped admin may only touch events
// whose tags intersect their managed-tag set.
type Events struct {
	runner   store.TxRunner
	st       store.Store
	validate *validator.Validate
	now      func() time.Time
}

// NewEvents constructs the admin service.
func NewEvents(runner store.TxRunner, st store.Store) *Events {
	return &Events{
		runner:   runner,
		st:       st,
		validate: validator.New(),
		now:      time.Now,
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, strings.ToLower(fe.Field())+" failed on "+fe.Tag())
		}
		return Precondition("Validation failed: " + strings.Join(msgs, "; "))
	}
	return Precondition("Validation failed")
}

func (e *Events) eventFromRequest(req model.EventRequest) (*model.Event, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	cost := decimal.Zero
	if req.UpfrontCost != "" {
		var err error
		cost, err = decimal.NewFromString(req.UpfrontCost)
		if err != nil || cost.IsNegative() {
			return nil, Precondition("Upfront cost must be a non-negative decimal")
		}
	}
	ev := &model.Event{
		Title:        strings.TrimSpace(req.Title),
		Difficulty:   req.Difficulty,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		MaxAttendees: req.MaxAttendees,
		UpfrontCost:  cost,
		RefundCutoff: req.RefundCutoff,
	}
	return ev, nil
}

// resolveTags verifies every candidate tag exists and attaches it.
func resolveTags(ctx context.Context, st store.Store, ev *model.Event, tagIDs []string) error {
	ev.Tags = nil
	for _, id := range tagIDs {
		t, err := st.TagByID(ctx, id)
		if err != nil {
			return orNotFound(err, "Tag not found")
		}
		ev.Tags = append(ev.Tags, *t)
	}
	return nil
}

// Create validates, authorizes against the candidate tags, and inserts.
// Scoped admins cannot create untagged events: with no tags there is no
// scope overlap, so only the unscoped grant passes.
func (e *Events) Create(ctx context.Context, actorID string, req model.EventRequest) (*model.Event, error) {
	ev, err := e.eventFromRequest(req)
	if err != nil {
		return nil, err
	}
	err = e.runner.Atomic(ctx, func(st store.Store) error {
		ok, aerr := canManageEvent(ctx, st, actorID, nil, req.TagIDs)
		if aerr != nil {
			return aerr
		}
		if !ok {
			return Forbidden("You do not have permission to manage these events")
		}
		if err := resolveTags(ctx, st, ev, req.TagIDs); err != nil {
			return err
		}
		ev.ID = uuid.New().String()
		ev.CreatedAt = e.now()
		if err := st.CreateEvent(ctx, ev); err != nil {
			return Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Update validates, authorizes against the event's current tags, and
// rewrites the row and its tag links.
func (e *Events) Update(ctx context.Context, actorID, eventID string, req model.EventRequest) (*model.Event, error) {
	ev, err := e.eventFromRequest(req)
	if err != nil {
		return nil, err
	}
	err = e.runner.Atomic(ctx, func(st store.Store) error {
		current, lerr := st.LockEvent(ctx, eventID)
		if lerr != nil {
			return orNotFound(lerr, "Event not found")
		}
		ok, aerr := canManageEvent(ctx, st, actorID, current, nil)
		if aerr != nil {
			return aerr
		}
		if !ok {
			return Forbidden("You do not have permission to manage this event")
		}
		if err := resolveTags(ctx, st, ev, req.TagIDs); err != nil {
			return err
		}
		ev.ID = current.ID
		ev.CreatedAt = current.CreatedAt
		if err := st.UpdateEvent(ctx, ev); err != nil {
			return Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Delete removes an event that has not started yet.
func (e *Events) Delete(ctx context.Context, actorID, eventID string) error {
	return e.runner.Atomic(ctx, func(st store.Store) error {
		current, err := st.LockEvent(ctx, eventID)
		if err != nil {
			return orNotFound(err, "Event not found")
		}
		ok, aerr := canManageEvent(ctx, st, actorID, current, nil)
		if aerr != nil {
			return aerr
		}
		if !ok {
			return Forbidden("You do not have permission to manage this event")
		}
		if !e.now().Before(current.StartsAt) {
			return Precondition("Cannot delete an event that has already started")
		}
		if err := st.DeleteEvent(ctx, eventID); err != nil {
			return Internal(err)
		}
		return nil
	})
}

// Authorize reports whether the actor may administer the event; used by the
// cancellation endpoint before handing off to the attendance cascade.
func (e *Events) Authorize(ctx context.Context, actorID, eventID string) error {
	ev, err := e.st.EventByID(ctx, eventID)
	if err != nil {
		return orNotFound(err, "Event not found")
	}
	ok, err := canManageEvent(ctx, e.st, actorID, ev, nil)
	if err != nil {
		return err
	}
	if !ok {
		return Forbidden("You do not have permission to manage this event")
	}
	return nil
}

// ─── Tag administration ───────────────────────────────────────────────────────

func (e *Events) tagFromRequest(req model.TagRequest) (*model.Tag, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	return &model.Tag{
		Name:          strings.TrimSpace(req.Name),
		MinDifficulty: req.MinDifficulty,
		JoinPolicy:    req.JoinPolicy,
		Color:         req.Color,
		Whitelist:     req.Whitelist,
	}, nil
}

// CreateTag inserts a tag.
func (e *Events) CreateTag(ctx context.Context, req model.TagRequest) (*model.Tag, error) {
	t, err := e.tagFromRequest(req)
	if err != nil {
		return nil, err
	}
	t.ID = uuid.New().String()
	err = e.runner.Atomic(ctx, func(st store.Store) error {
		if err := st.CreateTag(ctx, t); err != nil {
			return Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTag rewrites a tag.
func (e *Events) UpdateTag(ctx context.Context, tagID string, req model.TagRequest) (*model.Tag, error) {
	t, err := e.tagFromRequest(req)
	if err != nil {
		return nil, err
	}
	t.ID = tagID
	err = e.runner.Atomic(ctx, func(st store.Store) error {
		if err := st.UpdateTag(ctx, t); err != nil {
			return orNotFound(err, "Tag not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTag removes a tag; grants and event links cascade away.
func (e *Events) DeleteTag(ctx context.Context, tagID string) error {
	return e.runner.Atomic(ctx, func(st store.Store) error {
		if err := st.DeleteTag(ctx, tagID); err != nil {
			return orNotFound(err, "Tag not found")
		}
		return nil
	})
}
